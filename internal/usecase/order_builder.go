package usecase

import (
	"fmt"
	"math"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
)

// PricedItem is a catalog selection with its authoritative base price.
type PricedItem struct {
	ItemType         model.ItemType
	ItemID           string
	BasePrice        int64               // minor units per period
	BillingPeriod    model.BillingPeriod // overrides the order-wide period when set
	SelectedFeatures []string
	Catalog          *model.CatalogItem
}

// OrderDraft is the priced, not yet persisted shape of an order.
type OrderDraft struct {
	Items    []model.OrderItem
	Amount   int64
	Currency string
}

// BuildOrder prices items for period. Each line contributes
// BasePrice x multiplier(line period, falling back to period).
func BuildOrder(items []PricedItem, period model.BillingPeriod, currency string) (OrderDraft, error) {
	if len(items) == 0 {
		return OrderDraft{}, domain.NewInvalidOrder("items", "order has no items")
	}

	out := OrderDraft{Items: make([]model.OrderItem, 0, len(items)), Currency: currency}
	for i, it := range items {
		field := fmt.Sprintf("items[%d]", i)
		if !it.ItemType.Valid() {
			return OrderDraft{}, domain.NewInvalidOrder(field+".itemType", fmt.Sprintf("unknown item type %q", it.ItemType))
		}
		if it.ItemID == "" {
			return OrderDraft{}, domain.NewInvalidOrder(field+".itemId", "required")
		}
		if it.BasePrice < 0 {
			return OrderDraft{}, domain.NewInvalidOrder(field+".price", "negative price")
		}

		p := it.BillingPeriod
		if p == "" {
			p = period
		}
		mult := p.Multiplier()
		if it.BasePrice > math.MaxInt64/mult {
			return OrderDraft{}, domain.NewInvalidOrder(field+".price", "price out of range")
		}
		price := it.BasePrice * mult
		if out.Amount > math.MaxInt64-price {
			return OrderDraft{}, domain.NewInvalidOrder("items", "order total out of range")
		}
		out.Amount += price

		out.Items = append(out.Items, model.OrderItem{
			ItemType:         it.ItemType,
			ItemID:           it.ItemID,
			BasePrice:        it.BasePrice,
			Price:            price,
			BillingPeriod:    p,
			SelectedFeatures: it.SelectedFeatures,
			Resolved:         it.Catalog,
		})
	}
	return out, nil
}
