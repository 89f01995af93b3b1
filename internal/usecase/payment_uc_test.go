//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/usecase"
)

func verifyInput(orderID, gatewayOrderID, paymentID string) usecase.VerifyPaymentInput {
	return usecase.VerifyPaymentInput{
		OrderID:          orderID,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        clientSignature(gatewayOrderID, paymentID),
		PaymentMethod:    "card",
	}
}

func TestPaymentUseCase_Verify(t *testing.T) {
	ctx := context.Background()

	t.Run("should complete the order and grant access", func(t *testing.T) {
		// --- Arrange ---
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		uc := d.paymentUC()

		// --- Act ---
		got, err := uc.Verify(ctx, "user-1", verifyInput(o.ID, o.GatewayOrderID, "pay_1"))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.Status != model.OrderStatusCompleted || got.TransactionID != "pay_1" || got.PaymentMethod != "card" {
			t.Errorf("unexpected order after verify: %+v", got)
		}
		ents, _ := d.entitlements.ListByOrder(ctx, nil, o.ID)
		if len(ents) != 1 || ents[0].ItemID != "go-101" {
			t.Errorf("expected one course entitlement, got %+v", ents)
		}
		if types := d.events.Types(); len(types) != 1 || types[0] != "order.completed" {
			t.Errorf("expected one order.completed event, got %v", types)
		}
	})

	t.Run("should treat a repeated verify as success without side effects", func(t *testing.T) {
		// --- Arrange ---
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		uc := d.paymentUC()
		in := verifyInput(o.ID, o.GatewayOrderID, "pay_1")
		first, err := uc.Verify(ctx, "user-1", in)
		if err != nil {
			t.Fatalf("first verify: %v", err)
		}

		// --- Act ---
		second, err := uc.Verify(ctx, "user-1", in)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected second verify to succeed, got %v", err)
		}
		if second.Status != first.Status || second.TransactionID != first.TransactionID {
			t.Errorf("second verify changed the order: %+v vs %+v", second, first)
		}
		if d.entitlements.GrantCalls != 1 {
			t.Errorf("expected entitlements granted once, got %d grants", d.entitlements.GrantCalls)
		}
		if len(d.events.Events) != 1 {
			t.Errorf("expected a single event, got %d", len(d.events.Events))
		}
	})

	t.Run("should reject a bad signature before touching the order", func(t *testing.T) {
		// --- Arrange ---
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		in := verifyInput(o.ID, o.GatewayOrderID, "pay_1")
		in.Signature = clientSignature(o.GatewayOrderID, "pay_other")

		// --- Act ---
		_, err := d.paymentUC().Verify(ctx, "user-1", in)

		// --- Assert ---
		if !errors.Is(err, domain.ErrSignatureInvalid) {
			t.Fatalf("expected ErrSignatureInvalid, got %v", err)
		}
		if d.orders.CASCalls != 0 {
			t.Error("a rejected signature must not attempt a transition")
		}
		if got := d.mustFind(t, o.ID); got.Status != model.OrderStatusPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
	})

	t.Run("should reject someone else's order", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		_, err := d.paymentUC().Verify(ctx, "user-2", verifyInput(o.ID, o.GatewayOrderID, "pay_1"))
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		if got := d.mustFind(t, o.ID); got.Status != model.OrderStatusPending {
			t.Errorf("expected pending, got %s", got.Status)
		}
	})

	t.Run("should reject a signature for a different gateway order", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		d.seedPending(t, "ord-2", "user-1")
		_, err := d.paymentUC().Verify(ctx, "user-1", verifyInput(o.ID, "order_ord-2", "pay_1"))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("should conflict on a failed order", func(t *testing.T) {
		d := newTestDeps(t)
		o := d.seedPending(t, "ord-1", "user-1")
		if _, err := d.paymentUC().ReportFailure(ctx, "user-1", usecase.ReportFailureInput{OrderID: o.ID, GatewayOrderID: o.GatewayOrderID}); err != nil {
			t.Fatalf("report failure: %v", err)
		}
		_, err := d.paymentUC().Verify(ctx, "user-1", verifyInput(o.ID, o.GatewayOrderID, "pay_1"))
		if !errors.Is(err, domain.ErrStateConflict) {
			t.Fatalf("expected ErrStateConflict, got %v", err)
		}
	})

	t.Run("should require all fields", func(t *testing.T) {
		d := newTestDeps(t)
		_, err := d.paymentUC().Verify(ctx, "user-1", usecase.VerifyPaymentInput{OrderID: "ord-1"})
		if domain.Kind(err) != domain.KindValidation {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestPaymentUseCase_ReportFailure(t *testing.T) {
	ctx := context.Background()
	d := newTestDeps(t)
	o := d.seedPending(t, "ord-1", "user-1")
	uc := d.paymentUC()

	got, err := uc.ReportFailure(ctx, "user-1", usecase.ReportFailureInput{OrderID: o.ID, GatewayOrderID: o.GatewayOrderID, Reason: "card declined"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got.Status != model.OrderStatusFailed || got.FailureReason != "card declined" {
		t.Errorf("unexpected order: %+v", got)
	}
	if _, err := uc.ReportFailure(ctx, "user-1", usecase.ReportFailureInput{OrderID: o.ID}); err != nil {
		t.Errorf("repeated failure report should be idempotent, got %v", err)
	}
	if d.entitlements.GrantCalls != 0 {
		t.Error("a failed order must not grant access")
	}
}
