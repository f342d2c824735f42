package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// DeriveKey combines the connection secret with its place and job
// identity. Binding the key to the identity pair means a captured secret
// alone cannot sign requests for a different connection.
func DeriveKey(secret, placeID, jobID string) []byte {
	return []byte(secret + ":" + placeID + ":" + jobID)
}

// Sign computes the signature header value for a request body.
func Sign(body, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "sha256=<hex>" header against the HMAC-SHA256
// of body under key. Digest comparison is constant time.
func VerifySignature(body, key []byte, header string) bool {
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	claimed, err := hex.DecodeString(header[len(signaturePrefix):])
	if err != nil || len(claimed) != sha256.Size {
		return false
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hmac.Equal(claimed, mac.Sum(nil))
}

// EqualKeys compares two API keys without leaking length or content
// through timing. Both sides are hashed so the comparison is fixed-width.
func EqualKeys(a, b string) bool {
	ha := sha256.Sum256([]byte(strings.TrimSpace(a)))
	hb := sha256.Sum256([]byte(strings.TrimSpace(b)))
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}
