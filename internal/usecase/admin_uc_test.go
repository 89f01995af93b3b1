//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
)

// seedConsultation stores a pending consultation order. Without explicit
// items it carries a single one-time mentoring service line.
func (d *testDeps) seedConsultation(t *testing.T, id string, price *int64, items ...model.OrderItem) *model.PaymentOrder {
	t.Helper()
	if len(items) == 0 {
		items = []model.OrderItem{
			{ItemType: model.ItemTypeService, ItemID: "mentoring", BillingPeriod: model.BillingOneTime},
		}
	}
	o := &model.PaymentOrder{
		ID:                    id,
		UserID:                "user-1",
		Currency:              "INR",
		Status:                model.OrderStatusPending,
		Items:                 items,
		IsConsultationPayment: true,
		ConsultationPrice:     price,
		CreatedAt:             time.Now(),
		UpdatedAt:             time.Now(),
	}
	if err := d.orders.Save(context.Background(), nil, o); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return o
}

func TestAdminUseCase_Activate(t *testing.T) {
	ctx := context.Background()

	t.Run("should activate once and conflict on the second attempt", func(t *testing.T) {
		// --- Arrange ---
		d := newTestDeps(t)
		zero := int64(0)
		o := d.seedConsultation(t, "ord-c", &zero)
		uc := d.adminUC()

		// --- Act ---
		got, err := uc.Activate(ctx, o.ID, "admin-1")
		_, secondErr := uc.Activate(ctx, o.ID, "admin-2")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != model.OrderStatusFreeConsultation {
			t.Errorf("expected free_consultation, got %s", got.Status)
		}
		if got.ActivatedBy != "admin-1" || got.ActivatedAt == nil || !got.PaymentActivatedByAdmin || got.PaymentMethod != "admin" {
			t.Errorf("activation not recorded: %+v", got)
		}
		if !errors.Is(secondErr, domain.ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict on second activation, got %v", secondErr)
		}
		if stored := d.mustFind(t, o.ID); stored.ActivatedBy != "admin-1" {
			t.Errorf("second attempt overwrote the activation: %+v", stored)
		}
		if d.entitlements.GrantCalls != 1 {
			t.Errorf("expected one grant, got %d", d.entitlements.GrantCalls)
		}
	})

	t.Run("should default a price-less consultation order to free_consultation", func(t *testing.T) {
		// --- Arrange ---
		d := newTestDeps(t)
		o := d.seedConsultation(t, "ord-c", nil, model.OrderItem{ItemType: model.ItemTypeCourse, ItemID: "go-101", BillingPeriod: model.BillingOneTime})

		// --- Act ---
		got, err := d.adminUC().Activate(ctx, o.ID, "admin-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != model.OrderStatusFreeConsultation {
			t.Errorf("expected free_consultation, got %s", got.Status)
		}
		if got.ActivatedBy != "admin-1" || got.ActivatedAt == nil {
			t.Errorf("activation not recorded: %+v", got)
		}
	})

	t.Run("should pick free_service for a price-less order of services only", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedConsultation(t, "ord-s", nil)
		got, err := d.adminUC().Activate(ctx, o.ID, "admin-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != model.OrderStatusFreeService {
			t.Errorf("expected free_service, got %s", got.Status)
		}
	})

	t.Run("should refuse regular orders", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		_, err := d.adminUC().Activate(ctx, o.ID, "admin-1")
		if domain.Kind(err) != domain.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
		if got := d.mustFind(t, o.ID); got.Status != model.OrderStatusPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
	})

	t.Run("should conflict when the order already completed", func(t *testing.T) {
		d := newTestDeps(t)
		price := int64(100)
		o := d.seedConsultation(t, "ord-c", &price)
		d.orders.CompareAndSetStatus(ctx, nil, o.ID, model.OrderStatusPending, model.OrderStatusCompleted, model.StatusPatch{})
		_, err := d.adminUC().Activate(ctx, o.ID, "admin-1")
		if !errors.Is(err, domain.ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict, got %v", err)
		}
	})
}

func TestAdminUseCase_Refund(t *testing.T) {
	ctx := context.Background()

	t.Run("should refund through the gateway and revoke access", func(t *testing.T) {
		// --- Arrange ---
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		if _, err := d.paymentUC().Verify(ctx, "user-1", verifyInput(o.ID, o.GatewayOrderID, "pay_1")); err != nil {
			t.Fatalf("verify: %v", err)
		}

		// --- Act ---
		got, err := d.adminUC().Refund(ctx, o.ID, "admin-1")

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != model.OrderStatusRefunded || got.RefundID != "rfnd_pay_1" {
			t.Errorf("unexpected order: %+v", got)
		}
		if len(d.gateway.Calls.Refunds) != 1 || d.gateway.Calls.Refunds[0] != "pay_1" {
			t.Errorf("expected one refund of pay_1, got %v", d.gateway.Calls.Refunds)
		}
		ents, _ := d.entitlements.ListByOrder(ctx, nil, o.ID)
		for _, e := range ents {
			if e.RevokedAt == nil {
				t.Errorf("entitlement %s still active", e.ItemID)
			}
		}
	})

	t.Run("should leave the order alone when the gateway refuses", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		d.orders.CompareAndSetStatus(ctx, nil, o.ID, model.OrderStatusPending, model.OrderStatusCompleted, model.StatusPatch{TransactionID: ptr("pay_1")})
		d.gateway.RefundPaymentFunc = func(ctx context.Context, id string, amount int64, notes map[string]string) (adapter.RefundResult, error) {
			return adapter.RefundResult{}, &domain.GatewayError{Op: "refund", StatusCode: 400}
		}

		_, err := d.adminUC().Refund(ctx, o.ID, "admin-1")

		if domain.Kind(err) != domain.KindGateway {
			t.Fatalf("expected gateway error, got %v", err)
		}
		if got := d.mustFind(t, o.ID); got.Status != model.OrderStatusCompleted {
			t.Errorf("expected completed, got %s", got.Status)
		}
	})

	t.Run("should refuse orders that are not completed", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		_, err := d.adminUC().Refund(ctx, o.ID, "admin-1")
		if !errors.Is(err, domain.ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict, got %v", err)
		}
		if len(d.gateway.Calls.Refunds) != 0 {
			t.Error("gateway must not be called")
		}
	})
}

func TestAdminUseCase_GatewayStatus(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps(t)
	o := d.seedPending(t, "ord-1", "user-1")
	zero := int64(0)
	free := d.seedConsultation(t, "ord-free", &zero)

	got, err := d.adminUC().GatewayStatus(ctx, o.ID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.ID != o.GatewayOrderID {
		t.Errorf("expected %s, got %s", o.GatewayOrderID, got.ID)
	}
	if _, err := d.adminUC().GatewayStatus(ctx, free.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an order without gateway id, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
