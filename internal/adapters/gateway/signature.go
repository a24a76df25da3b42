package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes HMAC-SHA256(endpoint + payload) with the gateway signing key, hex encoded
func Sign(key, endpoint string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(key))
	h.Write([]byte(endpoint))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a signature produced by Sign in constant time
func VerifySignature(key, endpoint string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(key, endpoint, payload)), []byte(signature))
}
