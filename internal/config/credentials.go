package config

import (
	"fmt"
	"os"
	"strings"
)

// Credentials is one venue's API key material, loaded from the
// environment rather than the settings file so secrets never touch
// disk in the JSON settings document.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string // optional; empty for venues that don't require one
}

// LoadCredentials reads SPOTARB_<VENUE>_API_KEY, _API_SECRET, and the
// optional _PASSPHRASE for venueID, the way env.go's getEnv helpers
// read a fixed set of expected keys with no silent defaults for
// secrets.
func LoadCredentials(venueID string) (Credentials, error) {
	prefix := "SPOTARB_" + strings.ToUpper(venueID) + "_"

	key := strings.TrimSpace(os.Getenv(prefix + "API_KEY"))
	secret := strings.TrimSpace(os.Getenv(prefix + "API_SECRET"))
	if key == "" || secret == "" {
		return Credentials{}, fmt.Errorf("config: missing credentials for venue %q (expected %sAPI_KEY and %sAPI_SECRET)", venueID, prefix, prefix)
	}

	return Credentials{
		APIKey:     key,
		APISecret:  secret,
		Passphrase: strings.TrimSpace(os.Getenv(prefix + "PASSPHRASE")),
	}, nil
}
