package kernel

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// ConfigHash returns the SHA-256 hex digest of the canonical JSON
// serialization of cfg. encoding/json emits struct fields in
// declaration order, so cfg is marshalled once, decoded into generic
// maps (numbers kept as their literal text) and marshalled again:
// encoding/json writes map keys in sorted order, which yields a
// sorted-keys, whitespace-free byte sequence without a third-party
// canonical-JSON library.
func ConfigHash(cfg *Config) (string, error) {
	b, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// sha256Hex is a small helper used by the snapshot integrity check.
func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
