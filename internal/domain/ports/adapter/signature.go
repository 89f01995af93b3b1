package adapter

// SignatureVerifier checks gateway-issued HMAC signatures.
// Both methods return nil on success and an error matching
// domain.ErrSignatureInvalid (carrying the rejection reason) otherwise.
type SignatureVerifier interface {
	VerifyPayment(gatewayOrderID, gatewayPaymentID, signature string) error
	VerifyWebhook(body []byte, signature string) error
}
