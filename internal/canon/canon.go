// Package canon provides canonical JSON serialization and SHA-256
// digesting. Every hash in the ledger is computed over canonical form so
// that results are independent of struct field order.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// Canonicalize converts a JSON-like value to its canonical string form:
// object keys sorted lexicographically, array order preserved.
func Canonicalize(v any) (string, error) {
	// Marshal first so struct tags and omitempty apply, then re-process
	// through interface{} to get sorted keys.
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	var obj any
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}

	out, err := canonicalMarshal(obj)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		return marshalSortedMap(val)
	case []any:
		return marshalArray(val)
	default:
		return json.Marshal(v)
	}
}

func marshalSortedMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := canonicalMarshal(m[k])
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		valBytes, err := canonicalMarshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Digest returns the SHA-256 hash of data as lowercase hex.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ChainHash computes the hash of a chain line: SHA256(prev + "\n" +
// canonicalize(payload)). This is the only way line hashes are derived.
func ChainHash(prev string, payload any) (string, error) {
	c, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	return Digest([]byte(prev + "\n" + c)), nil
}
