package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// allows the encoding to change without colliding with old hashes.
const (
	DomainKernel = "loopsmith/kernel/v1"
	DomainParams = "loopsmith/params/v1"
	DomainState  = "loopsmith/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KernelHash identifies a loop tree by content. Two trees that encode
// identically hash identically regardless of pointer identity.
func KernelHash(nodes []Node) (string, error) {
	canonical, err := MarshalCanonical(Document(nodes, nil))
	if err != nil {
		return "", fmt.Errorf("KernelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainKernel, canonical), nil
}

// StateHash identifies a rewritten tree together with its elemental
// functions.
func StateHash(nodes []Node, callables []*Callable) (string, error) {
	canonical, err := MarshalCanonical(Document(nodes, callables))
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ParamsHash identifies a rewriter parameter set given as plain values.
func ParamsHash(params map[string]any) (string, error) {
	canonical, err := MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("ParamsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainParams, canonical), nil
}

// MustKernelHash is like KernelHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustKernelHash(nodes []Node) string {
	h, err := KernelHash(nodes)
	if err != nil {
		panic(err)
	}
	return h
}
