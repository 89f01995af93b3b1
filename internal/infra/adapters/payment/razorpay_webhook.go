package payment

import (
	"encoding/json"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
)

type rzpEntity[T any] struct {
	Entity *T `json:"entity"`
}

type rzpPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	Method           string `json:"method"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type rzpRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

type rzpOrderRef struct {
	ID string `json:"id"`
}

type rzpWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment rzpEntity[rzpPayment]  `json:"payment"`
		Order   rzpEntity[rzpOrderRef] `json:"order"`
		Refund  rzpEntity[rzpRefund]   `json:"refund"`
	} `json:"payload"`
}

// DecodeWebhook turns a verified webhook body into a domain event.
// Kinds outside the closed set decode to model.EventUnknown without error.
// eventID is the provider's delivery id header, if any.
func (g *RazorpayGateway) DecodeWebhook(body []byte, eventID string) (model.WebhookEvent, error) {
	return DecodeRazorpayWebhook(body, eventID)
}

func DecodeRazorpayWebhook(body []byte, eventID string) (model.WebhookEvent, error) {
	var w rzpWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return model.WebhookEvent{}, domain.NewInvalidArgument("body", "malformed webhook json")
	}
	if w.Event == "" {
		return model.WebhookEvent{}, domain.NewInvalidArgument("event", "missing event kind")
	}

	ev := model.WebhookEvent{
		ID:      eventID,
		Kind:    model.WebhookEventKind(w.Event),
		RawKind: w.Event,
	}
	if !ev.Kind.Known() {
		ev.Kind = model.EventUnknown
		return ev, nil
	}

	pay := w.Payload.Payment.Entity
	switch ev.Kind {
	case model.EventPaymentCaptured, model.EventPaymentAuthorized:
		if err := requirePayment(pay); err != nil {
			return model.WebhookEvent{}, err
		}
		ev.GatewayOrderID = pay.OrderID
		ev.Succeeded = &model.PaymentSucceeded{GatewayPaymentID: pay.ID, Method: pay.Method, Amount: pay.Amount}

	case model.EventOrderPaid:
		if err := requirePayment(pay); err != nil {
			return model.WebhookEvent{}, err
		}
		ev.GatewayOrderID = pay.OrderID
		if o := w.Payload.Order.Entity; o != nil && o.ID != "" {
			ev.GatewayOrderID = o.ID
		}
		ev.Succeeded = &model.PaymentSucceeded{GatewayPaymentID: pay.ID, Method: pay.Method, Amount: pay.Amount}

	case model.EventPaymentFailed:
		if err := requirePayment(pay); err != nil {
			return model.WebhookEvent{}, err
		}
		reason := pay.ErrorDescription
		if reason == "" {
			reason = pay.ErrorCode
		}
		ev.GatewayOrderID = pay.OrderID
		ev.Failed = &model.PaymentFailed{GatewayPaymentID: pay.ID, Reason: reason}

	case model.EventRefundProcessed:
		r := w.Payload.Refund.Entity
		if r == nil || r.ID == "" {
			return model.WebhookEvent{}, domain.NewInvalidArgument("payload.refund", "missing refund entity")
		}
		if pay == nil || pay.OrderID == "" {
			return model.WebhookEvent{}, domain.NewInvalidArgument("payload.payment", "refund event without order reference")
		}
		paymentID := r.PaymentID
		if paymentID == "" {
			paymentID = pay.ID
		}
		ev.GatewayOrderID = pay.OrderID
		ev.Refund = &model.RefundProcessed{RefundID: r.ID, GatewayPaymentID: paymentID, Amount: r.Amount}
	}
	return ev, nil
}

func requirePayment(p *rzpPayment) error {
	switch {
	case p == nil:
		return domain.NewInvalidArgument("payload.payment", "missing payment entity")
	case p.ID == "":
		return domain.NewInvalidArgument("payload.payment.id", "missing payment id")
	case p.OrderID == "":
		return domain.NewInvalidArgument("payload.payment.order_id", "missing order id")
	}
	return nil
}
