package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const keychainService = "heysheets"

// Keychain abstracts the platform secret store: macOS Keychain via the
// security CLI, a permission-restricted secrets file elsewhere.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

type platformKeychain struct{}

// NewKeychain returns the platform secret store.
func NewKeychain() Keychain {
	return platformKeychain{}
}

func (platformKeychain) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the admin bearer token, generating and storing one on
// first run. The token gates the admin endpoints; the store owner reads it
// out of the secret store to configure their dashboard.
func GetAPIToken(kc Keychain) (string, error) {
	if token, err := kc.Get(keychainService, "admin_token"); err == nil && token != "" {
		return token, nil
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := kc.Set(keychainService, "admin_token", token); err != nil {
		return "", fmt.Errorf("storing admin token: %w", err)
	}
	return token, nil
}
