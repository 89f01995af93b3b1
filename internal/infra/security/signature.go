// File: internal/infra/security/signature.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"course-payments/internal/domain"
	"course-payments/internal/domain/ports/adapter"
)

var _ adapter.SignatureVerifier = (*SignatureVerifier)(nil)

// Verification paths, also used as metric labels.
const (
	PathClient  = "client"
	PathWebhook = "webhook"
)

// SignatureError is a rejected signature. It matches domain.ErrSignatureInvalid.
type SignatureError struct {
	Path   string
	Reason string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("%s signature rejected: %s", e.Path, e.Reason)
}

func (e *SignatureError) Is(target error) bool { return target == domain.ErrSignatureInvalid }

// SignatureVerifier validates HMAC-SHA256 signatures issued by the gateway.
// The client path is keyed with the API key secret, the webhook path with the
// separately configured webhook secret.
type SignatureVerifier struct {
	keySecret     []byte
	webhookSecret []byte
}

// NewSignatureVerifier requires both secrets.
func NewSignatureVerifier(keySecret, webhookSecret string) (*SignatureVerifier, error) {
	if keySecret == "" {
		return nil, errors.New("signature verifier: key secret empty")
	}
	if webhookSecret == "" {
		return nil, errors.New("signature verifier: webhook secret empty")
	}
	return &SignatureVerifier{keySecret: []byte(keySecret), webhookSecret: []byte(webhookSecret)}, nil
}

// VerifyPayment checks HMAC(keySecret, orderID + "|" + paymentID).
func (v *SignatureVerifier) VerifyPayment(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return &SignatureError{Path: PathClient, Reason: "missing order or payment id"}
	}
	return compare(PathClient, signPayment(v.keySecret, gatewayOrderID, gatewayPaymentID), signature)
}

// VerifyWebhook checks HMAC(webhookSecret, rawBody). body must be the exact bytes received.
func (v *SignatureVerifier) VerifyWebhook(body []byte, signature string) error {
	if len(body) == 0 {
		return &SignatureError{Path: PathWebhook, Reason: "empty body"}
	}
	return compare(PathWebhook, sign(v.webhookSecret, body), signature)
}

// SignPayment produces the signature the gateway hands to the client after checkout.
func (v *SignatureVerifier) SignPayment(gatewayOrderID, gatewayPaymentID string) string {
	return hex.EncodeToString(signPayment(v.keySecret, gatewayOrderID, gatewayPaymentID))
}

// SignWebhook produces the signature header value for body.
func (v *SignatureVerifier) SignWebhook(body []byte) string {
	return hex.EncodeToString(sign(v.webhookSecret, body))
}

func signPayment(secret []byte, orderID, paymentID string) []byte {
	return sign(secret, []byte(orderID+"|"+paymentID))
}

func sign(secret, msg []byte) []byte {
	m := hmac.New(sha256.New, secret)
	m.Write(msg)
	return m.Sum(nil)
}

func compare(path string, expected []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return &SignatureError{Path: path, Reason: "missing signature"}
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return &SignatureError{Path: path, Reason: "signature is not hex"}
	}
	if !hmac.Equal(expected, got) {
		return &SignatureError{Path: path, Reason: "mismatch"}
	}
	return nil
}
