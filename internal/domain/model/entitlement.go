package model

import (
	"time"

	"github.com/google/uuid"
)

// Entitlement is the fulfillment record for one order item: course access
// or an activated service. It is written in the same transaction as the
// status change that earned it.
type Entitlement struct {
	ID        string
	OrderID   string
	UserID    string
	ItemType  ItemType
	ItemID    string
	GrantedAt time.Time
	ExpiresAt *time.Time // nil means no expiry
	RevokedAt *time.Time
}

// EntitlementsFor derives one entitlement per item of o, granted at now.
func EntitlementsFor(o *PaymentOrder, now time.Time) []*Entitlement {
	out := make([]*Entitlement, 0, len(o.Items))
	for _, it := range o.Items {
		e := &Entitlement{
			ID:        uuid.NewString(),
			OrderID:   o.ID,
			UserID:    o.UserID,
			ItemType:  it.ItemType,
			ItemID:    it.ItemID,
			GrantedAt: now,
		}
		if it.ItemType == ItemTypeService {
			if months := it.BillingPeriod.Months(); months > 0 {
				ex := now.AddDate(0, months, 0)
				e.ExpiresAt = &ex
			}
		}
		out = append(out, e)
	}
	return out
}
