//go:build !integration

package usecase_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"course-payments/internal/domain/model"
	"course-payments/internal/infra/adapters/payment"
	"course-payments/internal/infra/security"
	"course-payments/internal/usecase"
)

const (
	testKeySecret     = "key_secret_test"
	testWebhookSecret = "webhook_secret_test"
)

func hmacHex(secret, msg string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func clientSignature(gatewayOrderID, paymentID string) string {
	return hmacHex(testKeySecret, gatewayOrderID+"|"+paymentID)
}

func webhookSignature(body []byte) string {
	return hmacHex(testWebhookSecret, string(body))
}

func capturedBody(event, gatewayOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"amount":3000,"status":"captured","method":"upi"}}}}`,
		event, paymentID, gatewayOrderID))
}

func failedBody(gatewayOrderID, paymentID, reason string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"failed","error_description":%q}}}}`,
		paymentID, gatewayOrderID, reason))
}

func refundBody(gatewayOrderID, paymentID, refundID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"refund.processed","payload":{"refund":{"entity":{"id":%q,"payment_id":%q,"amount":3000}},"payment":{"entity":{"id":%q,"order_id":%q}}}}`,
		refundID, paymentID, paymentID, gatewayOrderID))
}

// testDeps wires the real state machine and verifier over in-memory stores.
type testDeps struct {
	orders       *MockOrderRepo
	catalog      *MockCatalogRepo
	entitlements *MockEntitlementRepo
	audit        *MockWebhookEventRepo
	tm           *MockTxManager
	gateway      *MockPaymentGateway
	events       *MockPublisher
	verifier     *security.SignatureVerifier
	sm           *usecase.OrderStateMachine
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	v, err := security.NewSignatureVerifier(testKeySecret, testWebhookSecret)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	d := &testDeps{
		orders:       NewMockOrderRepo(),
		entitlements: NewMockEntitlementRepo(),
		audit:        &MockWebhookEventRepo{},
		tm:           NewMockTxManager(),
		gateway:      &MockPaymentGateway{},
		events:       &MockPublisher{},
		verifier:     v,
		catalog: NewMockCatalogRepo(
			&model.CatalogItem{ItemType: model.ItemTypeCourse, ItemID: "go-101", Title: "Go 101", Price: 1000, Currency: "INR", Active: true},
			&model.CatalogItem{ItemType: model.ItemTypeService, ItemID: "mentoring", Title: "Mentoring", Price: 500, Currency: "INR", Active: true},
			&model.CatalogItem{ItemType: model.ItemTypeCourse, ItemID: "retired", Price: 100, Currency: "INR", Active: false},
			&model.CatalogItem{ItemType: model.ItemTypeCourse, ItemID: "usd-course", Price: 100, Currency: "USD", Active: true},
		),
	}
	d.sm = usecase.NewOrderStateMachine(d.orders, d.entitlements, d.tm, d.events, newTestLogger())
	return d
}

func (d *testDeps) orderUC() usecase.OrderUseCase {
	return usecase.NewOrderUseCase(d.orders, d.catalog, d.entitlements, d.gateway, "INR", newTestLogger())
}

func (d *testDeps) paymentUC() usecase.PaymentUseCase {
	return usecase.NewPaymentUseCase(d.sm, d.verifier, newTestLogger(), false)
}

func (d *testDeps) webhookUC() usecase.WebhookUseCase {
	return usecase.NewWebhookUseCase(d.sm, d.orders, d.audit, d.verifier, payment.NewSandboxGateway(), newTestLogger(), false)
}

func (d *testDeps) adminUC() usecase.AdminUseCase {
	return usecase.NewAdminUseCase(d.sm, d.orders, d.gateway, newTestLogger())
}

// seedPending stores a pending order with one quarterly course line.
func (d *testDeps) seedPending(t *testing.T, id, userID string) *model.PaymentOrder {
	t.Helper()
	o := &model.PaymentOrder{
		ID:             id,
		UserID:         userID,
		Amount:         3000,
		Currency:       "INR",
		Status:         model.OrderStatusPending,
		GatewayOrderID: "order_" + id,
		Items: []model.OrderItem{
			{ItemType: model.ItemTypeCourse, ItemID: "go-101", BasePrice: 1000, Price: 3000, BillingPeriod: model.BillingQuarterly},
		},
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := d.orders.Save(context.Background(), nil, o); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return o
}

func (d *testDeps) mustFind(t *testing.T, id string) *model.PaymentOrder {
	t.Helper()
	o, err := d.orders.FindByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("find %s: %v", id, err)
	}
	return o
}
