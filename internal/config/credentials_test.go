package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/spotarb/internal/config"
)

func TestLoadCredentials(t *testing.T) {
	t.Setenv("SPOTARB_VENA_API_KEY", "key123")
	t.Setenv("SPOTARB_VENA_API_SECRET", "secret456")
	t.Setenv("SPOTARB_VENA_PASSPHRASE", "pp789")

	creds, err := config.LoadCredentials("venA")
	require.NoError(t, err)
	assert.Equal(t, "key123", creds.APIKey)
	assert.Equal(t, "secret456", creds.APISecret)
	assert.Equal(t, "pp789", creds.Passphrase)
}

func TestLoadCredentials_MissingRequiredFields(t *testing.T) {
	t.Setenv("SPOTARB_VENB_API_KEY", "")
	t.Setenv("SPOTARB_VENB_API_SECRET", "")

	_, err := config.LoadCredentials("venB")
	assert.Error(t, err)
}

func TestLoadCredentials_OptionalPassphraseDefaultsEmpty(t *testing.T) {
	t.Setenv("SPOTARB_VENC_API_KEY", "key")
	t.Setenv("SPOTARB_VENC_API_SECRET", "secret")

	creds, err := config.LoadCredentials("venC")
	require.NoError(t, err)
	assert.Empty(t, creds.Passphrase)
}
