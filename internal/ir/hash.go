package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainState = "gisdoc/state/v1"
	DomainItem  = "gisdoc/item/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash computes the content hash of a whole document.
// Two replicas that have integrated the same operations produce the same
// hash regardless of delivery order; this is how convergence is checked.
func StateHash(c Content) (string, error) {
	canonical, err := MarshalCanonical(c)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ItemHash computes the content hash of any other value, such as a layer or
// a whole op log. It never collides with a StateHash of the same bytes.
func ItemHash(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ItemHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainItem, canonical), nil
}

// MustStateHash is like StateHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStateHash(c Content) string {
	h, err := StateHash(c)
	if err != nil {
		panic(err)
	}
	return h
}
