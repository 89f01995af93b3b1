package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/metrics"
	"course-payments/internal/infra/redis"
	"course-payments/internal/usecase"
)

const (
	headerSignature = "X-Razorpay-Signature"
	headerEventID   = "X-Razorpay-Event-Id"
)

// ---- DTOs ----

type itemRequest struct {
	ItemType         string   `json:"itemType" validate:"required,oneof=course service"`
	ItemID           string   `json:"itemId" validate:"required,max=128"`
	BillingPeriod    string   `json:"billingPeriod" validate:"omitempty,max=32"`
	SelectedFeatures []string `json:"selectedFeatures" validate:"omitempty,max=32,dive,max=128"`
}

type createOrderRequest struct {
	Items                 []itemRequest `json:"items" validate:"required,min=1,max=50,dive"`
	BillingPeriod         string        `json:"billingPeriod" validate:"omitempty,max=32"`
	IsConsultationPayment bool          `json:"isConsultationPayment"`
	ConsultationPrice     *int64        `json:"consultationPrice" validate:"omitempty,min=0"`
}

type createOrderResponse struct {
	OrderID        string `json:"orderId"`
	GatewayOrderID string `json:"gatewayOrderId,omitempty"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Status         string `json:"status"`
}

type verifyPaymentRequest struct {
	OrderID          string `json:"orderId" validate:"required"`
	GatewayOrderID   string `json:"gatewayOrderId" validate:"required"`
	GatewayPaymentID string `json:"gatewayPaymentId" validate:"required"`
	Signature        string `json:"signature" validate:"required,hexadecimal"`
	PaymentMethod    string `json:"paymentMethod" validate:"omitempty,max=32"`
}

type reportFailureRequest struct {
	OrderID        string `json:"orderId" validate:"required"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Reason         string `json:"reason" validate:"max=512"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type itemResponse struct {
	ItemType         string   `json:"itemType"`
	ItemID           string   `json:"itemId"`
	BasePrice        int64    `json:"basePrice"`
	Price            int64    `json:"price"`
	BillingPeriod    string   `json:"billingPeriod,omitempty"`
	SelectedFeatures []string `json:"selectedFeatures,omitempty"`
}

type entitlementResponse struct {
	ItemType  string     `json:"itemType"`
	ItemID    string     `json:"itemId"`
	GrantedAt time.Time  `json:"grantedAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
}

type orderResponse struct {
	OrderID                 string                `json:"orderId"`
	UserID                  string                `json:"userId"`
	Status                  string                `json:"status"`
	Amount                  int64                 `json:"amount"`
	Currency                string                `json:"currency"`
	PaymentMethod           string                `json:"paymentMethod,omitempty"`
	GatewayOrderID          string                `json:"gatewayOrderId,omitempty"`
	TransactionID           string                `json:"transactionId,omitempty"`
	IsConsultationPayment   bool                  `json:"isConsultationPayment"`
	ConsultationPrice       *int64                `json:"consultationPrice,omitempty"`
	PaymentActivatedByAdmin bool                  `json:"paymentActivatedByAdmin"`
	ActivatedBy             string                `json:"activatedBy,omitempty"`
	ActivatedAt             *time.Time            `json:"activatedAt,omitempty"`
	FailureReason           string                `json:"failureReason,omitempty"`
	RefundID                string                `json:"refundId,omitempty"`
	Items                   []itemResponse        `json:"items"`
	Entitlements            []entitlementResponse `json:"entitlements,omitempty"`
	CreatedAt               time.Time             `json:"createdAt"`
	UpdatedAt               time.Time             `json:"updatedAt"`
}

type gatewayOrderResponse struct {
	ID         string    `json:"id"`
	Amount     int64     `json:"amount"`
	AmountPaid int64     `json:"amountPaid"`
	Currency   string    `json:"currency"`
	Receipt    string    `json:"receipt"`
	Status     string    `json:"status"`
	Attempts   int       `json:"attempts"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toOrderResponse(o *model.PaymentOrder, ents []*model.Entitlement) orderResponse {
	out := orderResponse{
		OrderID:                 o.ID,
		UserID:                  o.UserID,
		Status:                  string(o.Status),
		Amount:                  o.Amount,
		Currency:                o.Currency,
		PaymentMethod:           o.PaymentMethod,
		GatewayOrderID:          o.GatewayOrderID,
		TransactionID:           o.TransactionID,
		IsConsultationPayment:   o.IsConsultationPayment,
		ConsultationPrice:       o.ConsultationPrice,
		PaymentActivatedByAdmin: o.PaymentActivatedByAdmin,
		ActivatedBy:             o.ActivatedBy,
		ActivatedAt:             o.ActivatedAt,
		FailureReason:           o.FailureReason,
		RefundID:                o.RefundID,
		Items:                   make([]itemResponse, 0, len(o.Items)),
		CreatedAt:               o.CreatedAt,
		UpdatedAt:               o.UpdatedAt,
	}
	for _, it := range o.Items {
		out.Items = append(out.Items, itemResponse{
			ItemType:         string(it.ItemType),
			ItemID:           it.ItemID,
			BasePrice:        it.BasePrice,
			Price:            it.Price,
			BillingPeriod:    string(it.BillingPeriod),
			SelectedFeatures: it.SelectedFeatures,
		})
	}
	for _, e := range ents {
		out.Entitlements = append(out.Entitlements, entitlementResponse{
			ItemType:  string(e.ItemType),
			ItemID:    e.ItemID,
			GrantedAt: e.GrantedAt,
			ExpiresAt: e.ExpiresAt,
			RevokedAt: e.RevokedAt,
		})
	}
	return out
}

func toGatewayOrderResponse(g adapter.GatewayOrder) gatewayOrderResponse {
	return gatewayOrderResponse{
		ID:         g.ID,
		Amount:     g.Amount,
		AmountPaid: g.AmountPaid,
		Currency:   g.Currency,
		Receipt:    g.Receipt,
		Status:     g.Status,
		Attempts:   g.Attempts,
		CreatedAt:  g.CreatedAt,
	}
}

// decode reads a JSON body into dst and runs struct validation.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewInvalidArgument("body", "malformed json")
	}
	return s.validate.Struct(dst)
}

// ---- orders ----

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, redis.UserActionKey(id.UserID, "create_order"))
		if err != nil {
			// limiter outage must not block checkout
			logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errorDetail{Kind: kindRateLimited, Message: "too many orders, slow down"}})
			return
		}
	}

	var req createOrderRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	in := usecase.CreateOrderInput{
		BillingPeriod:         model.BillingPeriod(req.BillingPeriod),
		IsConsultationPayment: req.IsConsultationPayment,
		ConsultationPrice:     req.ConsultationPrice,
		Items:                 make([]usecase.ItemSelection, 0, len(req.Items)),
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, usecase.ItemSelection{
			ItemType:         model.ItemType(it.ItemType),
			ItemID:           it.ItemID,
			BillingPeriod:    model.BillingPeriod(it.BillingPeriod),
			SelectedFeatures: it.SelectedFeatures,
		})
	}

	o, err := s.orders.Create(ctx, id.UserID, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createOrderResponse{
		OrderID:        o.ID,
		GatewayOrderID: o.GatewayOrderID,
		Amount:         o.Amount,
		Currency:       o.Currency,
		Status:         string(o.Status),
	})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	view, err := s.orders.Get(ctx, chi.URLParam(r, "id"), id.UserID, id.IsAdmin)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(view.Order, view.Entitlements))
}

// ---- payments ----

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()
	id, _ := IdentityFrom(ctx)

	var err error
	defer func() {
		result, reason := "ok", ""
		if err != nil {
			result, reason = "fail", verifyFailReason(err)
		}
		metrics.PaymentVerifyRequests.WithLabelValues(result, reason).Inc()
		metrics.PaymentVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	var req verifyPaymentRequest
	if err = s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	var o *model.PaymentOrder
	o, err = s.payments.Verify(ctx, id.UserID, usecase.VerifyPaymentInput{
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		Signature:        req.Signature,
		PaymentMethod:    req.PaymentMethod,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(o.Status)})
}

func verifyFailReason(err error) string {
	switch errorKind(err) {
	case domain.KindValidation:
		var ve *domain.ValidationError
		if errors.As(err, &ve) && ve.Field == "body" {
			return "bad_json"
		}
		return "validation"
	case domain.KindSignatureInvalid:
		return "signature"
	case domain.KindNotFound:
		return "not_found"
	case domain.KindStateConflict:
		return "conflict"
	case domain.KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

func (s *Server) handleReportFailure(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	var req reportFailureRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	o, err := s.payments.ReportFailure(ctx, id.UserID, usecase.ReportFailureInput{
		OrderID:        req.OrderID,
		GatewayOrderID: req.GatewayOrderID,
		Reason:         req.Reason,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: string(o.Status)})
}

// ---- webhook ----

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.WebhookMaxBytes))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: errorDetail{Kind: domain.KindValidation, Message: "payload too large"}})
			return
		}
		writeError(w, domain.NewInvalidArgument("body", "unreadable body"))
		return
	}

	res, err := s.webhooks.Handle(ctx, body, r.Header.Get(headerSignature), r.Header.Get(headerEventID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "outcome": res.Outcome})
}

// ---- admin ----

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	o, err := s.admin.Activate(ctx, chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, _ := IdentityFrom(ctx)

	o, err := s.admin.Refund(ctx, chi.URLParam(r, "id"), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, nil))
}

func (s *Server) handleGatewayStatus(w http.ResponseWriter, r *http.Request) {
	g, err := s.admin.GatewayStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGatewayOrderResponse(g))
}
