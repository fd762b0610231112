// Package signer computes the request headers a venue's REST API
// needs for authenticated calls, grounded on the HMAC-SHA256 scheme
// common to Coinbase-style exchanges.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"time"
)

// HMACConfig is the key material for one venue.
type HMACConfig struct {
	APIKey     string
	Secret     string // base64-encoded, as most Coinbase-style venues issue it
	Passphrase string // optional; empty when the venue's dialect doesn't use one
}

// Headers is the set of request headers produced by Sign.
type Headers map[string]string

// HMACSigner signs a request as:
//
//	prehash   = timestamp + method + path + body
//	signature = base64(HMAC-SHA256(base64_decode(secret), prehash))
//
// Safe for concurrent use; it holds no mutable state.
type HMACSigner struct {
	cfg HMACConfig
}

// NewHMACSigner validates cfg and returns a ready signer.
func NewHMACSigner(cfg HMACConfig) (*HMACSigner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("signer: API key is required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("signer: secret is required")
	}
	if _, err := base64.StdEncoding.DecodeString(cfg.Secret); err != nil {
		return nil, fmt.Errorf("signer: secret must be valid base64: %w", err)
	}
	return &HMACSigner{cfg: cfg}, nil
}

// Sign produces the header set for one request. method is the HTTP
// verb, path is the request path including any query string, body is
// the raw request body (empty for GET).
func (s *HMACSigner) Sign(method, path string, body []byte) (Headers, error) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	prehash := timestamp + method + path + string(body)

	secret, err := base64.StdEncoding.DecodeString(s.cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("signer: decode secret: %w", err)
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(prehash))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))

	headers := Headers{
		"CB-ACCESS-KEY":       s.cfg.APIKey,
		"CB-ACCESS-SIGN":      sig,
		"CB-ACCESS-TIMESTAMP": timestamp,
	}
	if s.cfg.Passphrase != "" {
		headers["CB-ACCESS-PASSPHRASE"] = s.cfg.Passphrase
	}
	return headers, nil
}
