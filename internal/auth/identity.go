package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the display part of a Google id_token.
type Identity struct {
	Subject string
	Name    string
	Email   string
}

// Label is what the nav bar shows for a signed-in user.
func (i Identity) Label() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	default:
		return "signed in"
	}
}

// ParseIdentity reads display claims from an id_token without verifying its
// signature. The backend verifies the token; this is only used for labels.
func ParseIdentity(idToken string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return Identity{}, fmt.Errorf("parse id_token: %w", err)
	}
	sub, _ := claims.GetSubject()
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	return Identity{Subject: sub, Name: name, Email: email}, nil
}
