package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// CallbackSigner signs and verifies confidential-computation callback bodies
// with a shared secret. The service signs HMAC-SHA256(secret, body) and sends
// it base64-encoded in the X-Compute-Signature header; verification is the
// structural authorization for the callback endpoint.
type CallbackSigner struct {
	secret []byte
}

// NewCallbackSigner creates a signer from the shared callback secret.
func NewCallbackSigner(secret string) *CallbackSigner {
	return &CallbackSigner{secret: []byte(secret)}
}

// Sign returns the base64 HMAC-SHA256 signature of body.
func (s *CallbackSigner) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is a valid signature over body. Comparison is
// constant-time.
func (s *CallbackSigner) Verify(body []byte, sig string) bool {
	raw, err := base64.StdEncoding.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return hmac.Equal(raw, mac.Sum(nil))
}
