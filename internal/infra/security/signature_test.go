//go:build !integration

package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"course-payments/internal/domain"
)

func newTestVerifier(t *testing.T) *SignatureVerifier {
	t.Helper()
	v, err := NewSignatureVerifier("key_secret_123", "whsec_456")
	if err != nil {
		t.Fatalf("NewSignatureVerifier: %v", err)
	}
	return v
}

func TestNewSignatureVerifier_RequiresSecrets(t *testing.T) {
	if _, err := NewSignatureVerifier("", "x"); err == nil {
		t.Error("expected error for empty key secret")
	}
	if _, err := NewSignatureVerifier("x", ""); err == nil {
		t.Error("expected error for empty webhook secret")
	}
}

func TestVerifyPayment(t *testing.T) {
	v := newTestVerifier(t)

	// independent computation of the documented scheme
	m := hmac.New(sha256.New, []byte("key_secret_123"))
	m.Write([]byte("order_abc|pay_xyz"))
	valid := hex.EncodeToString(m.Sum(nil))

	t.Run("valid signature is accepted", func(t *testing.T) {
		if err := v.VerifyPayment("order_abc", "pay_xyz", valid); err != nil {
			t.Fatalf("expected valid, got %v", err)
		}
		if v.SignPayment("order_abc", "pay_xyz") != valid {
			t.Error("SignPayment disagrees with the documented scheme")
		}
	})

	t.Run("uppercase hex is accepted", func(t *testing.T) {
		if err := v.VerifyPayment("order_abc", "pay_xyz", strings.ToUpper(valid)); err != nil {
			t.Fatalf("expected valid, got %v", err)
		}
	})

	rejects := []struct {
		name, order, payment, sig, reason string
	}{
		{"tampered payment id", "order_abc", "pay_other", valid, "mismatch"},
		{"tampered order id", "order_zzz", "pay_xyz", valid, "mismatch"},
		{"missing signature", "order_abc", "pay_xyz", "", "missing signature"},
		{"non hex", "order_abc", "pay_xyz", "not-hex!", "signature is not hex"},
		{"truncated", "order_abc", "pay_xyz", valid[:10], "mismatch"},
		{"missing ids", "", "pay_xyz", valid, "missing order or payment id"},
	}
	for _, tc := range rejects {
		t.Run(tc.name, func(t *testing.T) {
			err := v.VerifyPayment(tc.order, tc.payment, tc.sig)
			if !errors.Is(err, domain.ErrSignatureInvalid) {
				t.Fatalf("expected ErrSignatureInvalid, got %v", err)
			}
			var se *SignatureError
			if !errors.As(err, &se) || se.Reason != tc.reason || se.Path != PathClient {
				t.Errorf("unexpected rejection detail: %+v", se)
			}
		})
	}
}

func TestVerifyWebhook(t *testing.T) {
	v := newTestVerifier(t)
	body := []byte(`{"event":"payment.captured","payload":{}}`)
	sig := v.SignWebhook(body)

	if err := v.VerifyWebhook(body, sig); err != nil {
		t.Fatalf("expected valid webhook signature, got %v", err)
	}

	tampered := []byte(`{"event":"payment.captured","payload":{"x":1}}`)
	if err := v.VerifyWebhook(tampered, sig); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Errorf("tampered body must be rejected, got %v", err)
	}

	// signing with the key secret instead of the webhook secret must not pass
	m := hmac.New(sha256.New, []byte("key_secret_123"))
	m.Write(body)
	if err := v.VerifyWebhook(body, hex.EncodeToString(m.Sum(nil))); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Errorf("wrong secret must be rejected, got %v", err)
	}

	if err := v.VerifyWebhook(nil, sig); !errors.Is(err, domain.ErrSignatureInvalid) {
		t.Errorf("empty body must be rejected, got %v", err)
	}
}
