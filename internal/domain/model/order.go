package model

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending          OrderStatus = "pending"   // created; awaiting gateway confirmation or admin activation
	OrderStatusCompleted        OrderStatus = "completed" // payment verified; access granted
	OrderStatusFailed           OrderStatus = "failed"
	OrderStatusRefunded         OrderStatus = "refunded"
	OrderStatusFreeConsultation OrderStatus = "free_consultation" // admin-activated consultation
	OrderStatusFreeService      OrderStatus = "free_service"      // admin-activated service
)

// IsTerminal reports whether s is one of the terminal states.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusRefunded,
		OrderStatusFreeConsultation, OrderStatusFreeService:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	return s == OrderStatusPending || s.IsTerminal()
}

// legalTransitions is the complete transition table. Anything absent is illegal.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {
		OrderStatusCompleted,
		OrderStatusFailed,
		OrderStatusFreeConsultation,
		OrderStatusFreeService,
	},
	OrderStatusCompleted: {OrderStatusRefunded},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to OrderStatus) bool {
	for _, t := range legalTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

type ItemType string

const (
	ItemTypeCourse  ItemType = "course"
	ItemTypeService ItemType = "service"
)

func (t ItemType) Valid() bool { return t == ItemTypeCourse || t == ItemTypeService }

type BillingPeriod string

const (
	BillingMonthly    BillingPeriod = "monthly"
	BillingQuarterly  BillingPeriod = "quarterly"
	BillingHalfYearly BillingPeriod = "half_yearly"
	BillingYearly     BillingPeriod = "yearly"
	BillingOneTime    BillingPeriod = "one_time"
)

var periodMultipliers = map[BillingPeriod]int64{
	BillingMonthly:    1,
	BillingQuarterly:  3,
	BillingHalfYearly: 6,
	BillingYearly:     12,
	BillingOneTime:    1,
}

// Multiplier returns the price multiplier for p. Unknown or empty periods count as 1.
func (p BillingPeriod) Multiplier() int64 {
	if m, ok := periodMultipliers[p]; ok {
		return m
	}
	return 1
}

// Months is the entitlement length in months, or 0 when access does not expire.
func (p BillingPeriod) Months() int {
	if p == "" || p == BillingOneTime {
		return 0
	}
	if _, ok := periodMultipliers[p]; !ok {
		return 0
	}
	return int(p.Multiplier())
}

// OrderItem is one purchased line. Resolved is only populated when the
// catalog row has been joined explicitly; it is never persisted.
type OrderItem struct {
	ItemType         ItemType      `json:"itemType"`
	ItemID           string        `json:"itemId"`
	BasePrice        int64         `json:"basePrice"` // catalog price per period, minor units
	Price            int64         `json:"price"`     // BasePrice x period multiplier
	BillingPeriod    BillingPeriod `json:"billingPeriod,omitempty"`
	SelectedFeatures []string      `json:"selectedFeatures,omitempty"`
	Resolved         *CatalogItem  `json:"-"`
}

// PaymentOrder is the persisted order record. Orders are never deleted.
type PaymentOrder struct {
	ID             string // ULID; doubles as the gateway receipt
	UserID         string
	Amount         int64  // minor units (paise)
	Currency       string // ISO code
	Status         OrderStatus
	PaymentMethod  string
	GatewayOrderID string // empty for orders that never reach the gateway
	// TransactionID is the gateway payment id. Set on completion and kept
	// on refund as payment history; empty in every other status.
	TransactionID  string
	Items          []OrderItem

	IsConsultationPayment bool
	ConsultationPrice     *int64

	PaymentActivatedByAdmin bool
	ActivatedAt             *time.Time
	ActivatedBy             string

	FailureReason string
	RefundID      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalAmount sums adjusted item prices plus the consultation price when
// applicable. ok is false when a component is negative or the sum does not
// fit in int64.
func (o *PaymentOrder) TotalAmount() (total int64, ok bool) {
	add := func(v int64) bool {
		if v < 0 || total > math.MaxInt64-v {
			return false
		}
		total += v
		return true
	}
	for _, it := range o.Items {
		if !add(it.Price) {
			return 0, false
		}
	}
	if o.IsConsultationPayment && o.ConsultationPrice != nil {
		if !add(*o.ConsultationPrice) {
			return 0, false
		}
	}
	return total, true
}

// ActivationTarget is the free status the admin path moves this order into.
// Consultation orders default to free_consultation; free_service is only
// chosen for price-less orders made up entirely of service items.
func (o *PaymentOrder) ActivationTarget() OrderStatus {
	if o.ConsultationPrice != nil || len(o.Items) == 0 {
		return OrderStatusFreeConsultation
	}
	for _, it := range o.Items {
		if it.ItemType != ItemTypeService {
			return OrderStatusFreeConsultation
		}
	}
	return OrderStatusFreeService
}

// StatusPatch carries the fields written together with a status change.
// Nil pointers leave the column untouched.
type StatusPatch struct {
	TransactionID *string
	PaymentMethod *string
	FailureReason *string
	RefundID      *string
	ActivatedBy   *string
	ActivatedAt   *time.Time
}

// Apply copies the patch onto o (used by in-memory stores and callers
// that want the post-transition view without re-reading).
func (p StatusPatch) Apply(o *PaymentOrder, to OrderStatus) {
	o.Status = to
	if p.TransactionID != nil {
		o.TransactionID = *p.TransactionID
	}
	if p.PaymentMethod != nil {
		o.PaymentMethod = *p.PaymentMethod
	}
	if p.FailureReason != nil {
		o.FailureReason = *p.FailureReason
	}
	if p.RefundID != nil {
		o.RefundID = *p.RefundID
	}
	if p.ActivatedBy != nil {
		o.ActivatedBy = *p.ActivatedBy
		o.PaymentActivatedByAdmin = true
	}
	if p.ActivatedAt != nil {
		t := *p.ActivatedAt
		o.ActivatedAt = &t
	}
}
