package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"jobradar-engine/internal/config"
)

const (
	// "Service" groups the app's secrets in the OS keychain.
	KeyringService = "jobradar"

	envToken = "TWILIO_AUTH_TOKEN"
)

// GetTwilioToken resolves the auth token: keychain first, then the
// environment, then the config fallback field.
func GetTwilioToken(keyringAccount string, cfg config.Config) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		tok, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(tok) != "" {
			return tok, nil
		}
	}
	if tok := strings.TrimSpace(os.Getenv(envToken)); tok != "" {
		return tok, nil
	}
	if tok := strings.TrimSpace(cfg.Notify.TwilioAuthToken); tok != "" {
		return tok, nil
	}
	return "", errors.New("Twilio auth token not found (set it in the keychain, TWILIO_AUTH_TOKEN, or config)")
}

func SetTwilioToken(keyringAccount string, token string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, token)
}

func DeleteTwilioToken(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func TwilioKeyringAccount(cfg config.Config) string {
	return fmt.Sprintf("jobradar:twilio:%s", cfg.Notify.TwilioAccountSID)
}
