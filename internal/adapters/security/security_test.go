package security

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viralforge/marketplace-ledger/internal/domain"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	t.Parallel()

	v, err := NewJWTVerifier("test-secret", "auth.viralforge")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	raw, err := v.Sign("seller-1", "user", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims, err := v.ParseAndValidate(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.SubjectID != "seller-1" || claims.Role != "user" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestJWTVerifierRejects(t *testing.T) {
	t.Parallel()

	v, _ := NewJWTVerifier("test-secret", "auth.viralforge")
	other, _ := NewJWTVerifier("other-secret", "auth.viralforge")
	wrongIssuer, _ := NewJWTVerifier("test-secret", "someone-else")

	expired, _ := v.Sign("buyer-1", "user", -time.Hour)
	forged, _ := other.Sign("buyer-1", "admin", time.Hour)
	misissued, _ := wrongIssuer.Sign("buyer-1", "user", time.Hour)
	noneAlg, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "buyer-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name string
		raw  string
	}{
		{name: "expired", raw: expired},
		{name: "wrong secret", raw: forged},
		{name: "wrong issuer", raw: misissued},
		{name: "none algorithm", raw: noneAlg},
		{name: "garbage", raw: "not-a-token"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := v.ParseAndValidate(tc.raw); err == nil {
				t.Fatalf("expected token rejected")
			}
		})
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	t.Parallel()
	if _, err := NewJWTVerifier("", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestWebhookSigner(t *testing.T) {
	t.Parallel()

	signer := NewWebhookSigner(map[string]string{"PayFast": "pf-secret", "ozow": ""})
	body := []byte(`{"gateway_ref":"pf-1","type":"payment","status":"succeeded"}`)
	sig := signer.Sign("payfast", body)
	if sig == "" {
		t.Fatalf("expected signature for configured gateway")
	}

	tests := []struct {
		name      string
		gateway   string
		body      []byte
		signature string
		wantErr   bool
	}{
		{name: "valid", gateway: "payfast", body: body, signature: sig},
		{name: "prefixed", gateway: "PAYFAST", body: body, signature: "sha256=" + sig},
		{name: "tampered body", gateway: "payfast", body: []byte(`{"amount":1}`), signature: sig, wantErr: true},
		{name: "unknown gateway", gateway: "stripe", body: body, signature: sig, wantErr: true},
		{name: "gateway without secret", gateway: "ozow", body: body, signature: sig, wantErr: true},
		{name: "not hex", gateway: "payfast", body: body, signature: "zz", wantErr: true},
		{name: "empty", gateway: "payfast", body: body, signature: "", wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := signer.Verify(tc.gateway, tc.body, tc.signature)
			if tc.wantErr && !errors.Is(err, domain.ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("expected valid signature, got %v", err)
			}
		})
	}
}
