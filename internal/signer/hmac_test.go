package signer_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chidi150c/spotarb/internal/signer"
)

func validConfig() signer.HMACConfig {
	return signer.HMACConfig{
		APIKey: "key1",
		Secret: base64.StdEncoding.EncodeToString([]byte("supersecret")),
	}
}

func TestNewHMACSigner_Validation(t *testing.T) {
	_, err := signer.NewHMACSigner(signer.HMACConfig{Secret: "c2VjcmV0"})
	assert.Error(t, err, "missing API key")

	_, err = signer.NewHMACSigner(signer.HMACConfig{APIKey: "key1"})
	assert.Error(t, err, "missing secret")

	_, err = signer.NewHMACSigner(signer.HMACConfig{APIKey: "key1", Secret: "not base64!!"})
	assert.Error(t, err, "non-base64 secret")

	_, err = signer.NewHMACSigner(validConfig())
	assert.NoError(t, err)
}

func TestSign_ProducesExpectedHeaders(t *testing.T) {
	s, err := signer.NewHMACSigner(validConfig())
	require.NoError(t, err)

	headers, err := s.Sign("GET", "/api/v3/brokerage/accounts", nil)
	require.NoError(t, err)

	assert.Equal(t, "key1", headers["CB-ACCESS-KEY"])
	assert.NotEmpty(t, headers["CB-ACCESS-SIGN"])
	assert.NotEmpty(t, headers["CB-ACCESS-TIMESTAMP"])
	_, hasPassphrase := headers["CB-ACCESS-PASSPHRASE"]
	assert.False(t, hasPassphrase, "no passphrase header when config has none")
}

func TestSign_IncludesPassphraseWhenConfigured(t *testing.T) {
	cfg := validConfig()
	cfg.Passphrase = "pp1"
	s, err := signer.NewHMACSigner(cfg)
	require.NoError(t, err)

	headers, err := s.Sign("GET", "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "pp1", headers["CB-ACCESS-PASSPHRASE"])
}

func TestSign_SignatureMatchesHMACOfPrehash(t *testing.T) {
	cfg := validConfig()
	s, err := signer.NewHMACSigner(cfg)
	require.NoError(t, err)

	headers, err := s.Sign("POST", "/orders", []byte(`{"side":"buy"}`))
	require.NoError(t, err)

	secret, _ := base64.StdEncoding.DecodeString(cfg.Secret)
	prehash := headers["CB-ACCESS-TIMESTAMP"] + "POST" + "/orders" + `{"side":"buy"}`
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(prehash))
	want := base64.StdEncoding.EncodeToString(h.Sum(nil))

	assert.Equal(t, want, headers["CB-ACCESS-SIGN"])
}
