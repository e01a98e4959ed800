package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const callbackPath = "/oauth-callback"

// GoogleEndpoint is Google's OAuth2 authorization-code endpoint.
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// ErrStateMismatch is returned when the callback state does not match the
// state sent with the authorization request.
var ErrStateMismatch = errors.New("oauth callback state mismatch")

// GoogleSignIn runs the authorization-code flow against a loopback redirect
// and yields Google's id_token. The id_token is handed to the backend as-is.
type GoogleSignIn struct {
	config     *oauth2.Config
	listenAddr string
}

func NewGoogleSignIn(clientID, clientSecret, listenAddr string) *GoogleSignIn {
	return &GoogleSignIn{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "http://" + listenAddr + callbackPath,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     GoogleEndpoint,
		},
		listenAddr: listenAddr,
	}
}

// AuthRequest is one pending authorization request.
type AuthRequest struct {
	URL      string
	State    string
	Verifier string
}

// Start builds the consent URL with a fresh state and PKCE verifier.
func (g *GoogleSignIn) Start() AuthRequest {
	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	return AuthRequest{
		URL:      g.config.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier)),
		State:    state,
		Verifier: verifier,
	}
}

// SignIn starts the flow, calls open with the consent URL and waits for the
// browser to come back. It returns Google's id_token.
func (g *GoogleSignIn) SignIn(ctx context.Context, open func(url string) error) (string, error) {
	ln, err := net.Listen("tcp", g.listenAddr)
	if err != nil {
		return "", fmt.Errorf("listen for oauth callback on %s: %w", g.listenAddr, err)
	}

	req := g.Start()
	if err := open(req.URL); err != nil {
		ln.Close()
		return "", fmt.Errorf("open consent page: %w", err)
	}

	code, err := WaitForCallback(ctx, ln, req.State)
	if err != nil {
		return "", err
	}
	return g.Exchange(ctx, code, req.Verifier)
}

// Exchange trades an authorization code for tokens and returns the id_token.
func (g *GoogleSignIn) Exchange(ctx context.Context, code, verifier string) (string, error) {
	tok, err := g.config.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", fmt.Errorf("exchange oauth code: %w", err)
	}
	idToken, _ := tok.Extra("id_token").(string)
	if strings.TrimSpace(idToken) == "" {
		return "", errors.New("oauth token response has no id_token")
	}
	return idToken, nil
}

// WaitForCallback serves the redirect on ln until one callback arrives or
// ctx is done. ln is closed before returning.
func WaitForCallback(ctx context.Context, ln net.Listener, expectedState string) (string, error) {
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != expectedState:
			http.Error(w, "Invalid state", http.StatusBadRequest)
			sendErr(errCh, ErrStateMismatch)
		case q.Get("error") != "":
			http.Error(w, "Sign-in failed: "+q.Get("error"), http.StatusBadRequest)
			sendErr(errCh, fmt.Errorf("google sign-in failed: %s", q.Get("error")))
		case q.Get("code") == "":
			http.Error(w, "No code received", http.StatusBadRequest)
			sendErr(errCh, errors.New("oauth callback has no code"))
		default:
			_, _ = w.Write([]byte("Signed in to IOU Keeper. You can close this window and return to the terminal."))
			select {
			case codeCh <- q.Get("code"):
			default:
			}
		}
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sendErr(errCh, err)
		}
	}()
	defer server.Close()

	select {
	case code := <-codeCh:
		return code, nil
	case err := <-errCh:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
