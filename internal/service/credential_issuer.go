package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"checkout-fulfillment/internal/core/domain"
	"checkout-fulfillment/pkg/logger"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

const (
	// DefaultCredentialPrefix marks keys minted for the AI API product.
	DefaultCredentialPrefix = "sk-ai-"
	credentialEntropyBytes  = 32
)

// RandomCredentialIssuer implements ports.CredentialIssuer.
// Credentials are prefix + hex(32 random bytes); fingerprints are keyed BLAKE2b-256.
type RandomCredentialIssuer struct {
	prefix string
	fpKey  []byte
	rand   io.Reader
	log    zerolog.Logger
}

// NewCredentialIssuer creates an issuer. fingerprintKeyHex must decode to 1..64 bytes.
func NewCredentialIssuer(prefix, fingerprintKeyHex string, log zerolog.Logger) (*RandomCredentialIssuer, error) {
	key, err := hex.DecodeString(fingerprintKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding fingerprint key: %w", err)
	}
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("fingerprint key must be 1..%d bytes, got %d", blake2b.Size, len(key))
	}
	if prefix == "" {
		prefix = DefaultCredentialPrefix
	}
	return &RandomCredentialIssuer{
		prefix: prefix,
		fpKey:  key,
		rand:   rand.Reader,
		log:    logger.Component(log, "credential_issuer"),
	}, nil
}

// Issue mints a fresh credential for order. It never reuses or derives from prior state.
func (i *RandomCredentialIssuer) Issue(_ context.Context, order *domain.Order) (string, error) {
	buf := make([]byte, credentialEntropyBytes)
	if _, err := io.ReadFull(i.rand, buf); err != nil {
		return "", fmt.Errorf("reading entropy: %w", err)
	}

	i.log.Debug().
		Str("session_id", order.ExternalSessionID).
		Str("user_id", order.UserID).
		Msg("credential issued")

	return i.prefix + hex.EncodeToString(buf), nil
}

// Fingerprint returns the hex keyed BLAKE2b-256 digest used to look a credential up.
func (i *RandomCredentialIssuer) Fingerprint(credential string) string {
	h, err := blake2b.New256(i.fpKey)
	if err != nil {
		// key length is checked in NewCredentialIssuer
		panic(err)
	}
	h.Write([]byte(credential))
	return hex.EncodeToString(h.Sum(nil))
}
