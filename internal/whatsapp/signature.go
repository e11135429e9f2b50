package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks Meta's X-Hub-Signature-256 header ("sha256=<hex>")
// against the raw request body.
func VerifySignature(appSecret string, body []byte, header string) bool {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}
