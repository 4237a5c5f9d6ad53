package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed journal identity.
// Version suffix enables future algorithm migration.
const (
	DomainAction   = "seed/action/v1"
	DomainSnapshot = "seed/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ActionHash computes the content hash of a journaled action.
// The hash covers everything that affects reducers: type, intent, error flag,
// sequence number and the journal view of the payload. Invocation ids are
// excluded so a replayed journal hashes identically.
func ActionHash(a Action) (string, error) {
	obj := map[string]any{
		"type":    a.Type,
		"intent":  a.Intent,
		"error":   a.Error,
		"seq":     a.Seq,
		"payload": a.Payload.View(),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// StateHash computes the content hash of a model state slice.
func StateHash(model string, s State) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{"model": model, "state": s})
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}

// MustActionHash is like ActionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustActionHash(a Action) string {
	h, err := ActionHash(a)
	if err != nil {
		panic(err)
	}
	return h
}
