package ir

import (
	"crypto/sha256"
	"encoding/hex"
)

// Domain prefixes for content-addressed protocol identity.
// Version suffix enables future algorithm migration.
const (
	DomainGlobal = "choreo/global/v1"
	DomainLocal  = "choreo/local/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GlobalHash computes the content-addressed identity of a global
// protocol. Stable across processes given structurally identical input.
func GlobalHash(p *GlobalProtocol) (string, error) {
	data, err := MarshalGlobal(p)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainGlobal, data), nil
}

// LocalHash computes the content-addressed identity of a local
// protocol tree.
func LocalHash(l Local) (string, error) {
	data, err := MarshalLocal(l)
	if err != nil {
		return "", err
	}
	return hashWithDomain(DomainLocal, data), nil
}
