package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/viralforge/marketplace-ledger/internal/domain"
)

// WebhookSigner verifies hex HMAC-SHA256 signatures, one secret per gateway.
type WebhookSigner struct {
	secrets map[string][]byte
}

func NewWebhookSigner(secrets map[string]string) *WebhookSigner {
	out := make(map[string][]byte, len(secrets))
	for gateway, secret := range secrets {
		if secret == "" {
			continue
		}
		out[strings.ToLower(gateway)] = []byte(secret)
	}
	return &WebhookSigner{secrets: out}
}

func (s *WebhookSigner) Verify(gateway string, body []byte, signature string) error {
	secret, ok := s.secrets[strings.ToLower(gateway)]
	if !ok {
		return domain.ErrInvalidSignature
	}
	given, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(given) == 0 {
		return domain.ErrInvalidSignature
	}
	if !hmac.Equal(given, mac(secret, body)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (s *WebhookSigner) Sign(gateway string, body []byte) string {
	secret, ok := s.secrets[strings.ToLower(gateway)]
	if !ok {
		return ""
	}
	return hex.EncodeToString(mac(secret, body))
}

func mac(secret, body []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return h.Sum(nil)
}
