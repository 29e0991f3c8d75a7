package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows a later change of
// trace layout without colliding with recorded digests.
const (
	DomainTrace = "reactest/trace/v1"
	DomainValue = "reactest/value/v1"
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

// TraceDigest identifies one scenario run by the canonical JSON of its trace.
// Two runs of a deterministic scenario produce the same digest; a differing
// digest for the same scenario means the graph or its inputs behaved
// differently.
func TraceDigest(scenario string, canonical []byte) string {
	data := make([]byte, 0, len(scenario)+1+len(canonical))
	data = append(data, scenario...)
	data = append(data, 0x00)
	data = append(data, canonical...)
	return hashWithDomain(DomainTrace, data)
}

// ValueDigest hashes a single value's canonical form.
func ValueDigest(v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("ValueDigest: %w", err)
	}
	return hashWithDomain(DomainValue, canonical), nil
}
