package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	defaultSecretService = "ioukeeper"
	defaultTokenAccount  = "api_token"
	defaultDBKeyAccount  = "db_key"

	tokenEnv   = "IOU_API_TOKEN"
	serviceEnv = "IOU_KEYCHAIN_SERVICE"
	accountEnv = "IOU_KEYCHAIN_ACCOUNT"
	dbKeyEnv   = "IOU_KEYCHAIN_DB_ACCOUNT"
)

// ErrNoToken is returned when neither the environment nor the keyring holds
// an API token.
var ErrNoToken = errors.New("no API token stored; run 'iou auth login' or 'iou auth set'")

var (
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
)

// LoadToken loads the bill-tracking API token.
//
// Order of precedence:
// 1) IOU_API_TOKEN environment variable.
// 2) OS keyring item referenced by service/account.
func LoadToken() (string, error) {
	if token := strings.TrimSpace(os.Getenv(tokenEnv)); token != "" {
		return token, nil
	}

	service, account := tokenItem()
	token, err := readItem(service, account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoToken
		}
		return "", err
	}
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// HasStoredToken reports whether LoadToken would succeed.
func HasStoredToken() bool {
	_, err := LoadToken()
	return err == nil
}

// SaveToken stores the API token in the system credential store.
func SaveToken(token string) error {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return errors.New("API token cannot be empty")
	}
	service, account := tokenItem()
	return writeItem(service, account, trimmed)
}

// RemoveToken deletes the stored API token. A missing item is not an error.
func RemoveToken() error {
	service, account := tokenItem()
	if err := keyringDelete(service, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf(
			"failed to delete keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}
	return nil
}

// LoadDBKey returns the local database encryption key.
func LoadDBKey() (string, error) {
	service := envOrDefault(serviceEnv, defaultSecretService)
	account := envOrDefault(dbKeyEnv, defaultDBKeyAccount)
	return readItem(service, account)
}

// SaveDBKey stores the local database encryption key.
func SaveDBKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return errors.New("db key cannot be empty")
	}
	service := envOrDefault(serviceEnv, defaultSecretService)
	account := envOrDefault(dbKeyEnv, defaultDBKeyAccount)
	return writeItem(service, account, trimmed)
}

func tokenItem() (service, account string) {
	return envOrDefault(serviceEnv, defaultSecretService), envOrDefault(accountEnv, defaultTokenAccount)
}

func readItem(service, account string) (string, error) {
	secret, err := keyringGet(service, account)
	if err != nil {
		return "", fmt.Errorf(
			"failed to read keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}
	return strings.TrimSpace(secret), nil
}

func writeItem(service, account, secret string) error {
	if err := keyringSet(service, account, secret); err != nil {
		return fmt.Errorf(
			"failed to store keyring item service=%q account=%q: %w",
			service,
			account,
			err,
		)
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
