package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/domain/ports/repository"
	"course-payments/internal/infra/logging"
	"course-payments/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

type ItemSelection struct {
	ItemType         model.ItemType
	ItemID           string
	BillingPeriod    model.BillingPeriod
	SelectedFeatures []string
}

type CreateOrderInput struct {
	Items                 []ItemSelection
	BillingPeriod         model.BillingPeriod
	IsConsultationPayment bool
	ConsultationPrice     *int64
}

// OrderView is an order with the entitlements it has earned so far.
type OrderView struct {
	Order        *model.PaymentOrder
	Entitlements []*model.Entitlement
}

type OrderUseCase interface {
	// Create prices the selection from the catalog, registers the order with the
	// gateway when there is something to pay, and persists it as pending.
	Create(ctx context.Context, userID string, in CreateOrderInput) (*model.PaymentOrder, error)
	// Get returns the order to its owner or to an admin.
	Get(ctx context.Context, orderID, requesterID string, isAdmin bool) (*OrderView, error)
}

type orderUC struct {
	orders       repository.OrderRepository
	catalog      repository.CatalogRepository
	entitlements repository.EntitlementRepository
	gateway      adapter.PaymentGateway
	currency     string
	log          *zerolog.Logger
	newID        func() string
}

func NewOrderUseCase(
	orders repository.OrderRepository,
	catalog repository.CatalogRepository,
	entitlements repository.EntitlementRepository,
	gateway adapter.PaymentGateway,
	currency string,
	logger *zerolog.Logger,
) *orderUC {
	return &orderUC{
		orders:       orders,
		catalog:      catalog,
		entitlements: entitlements,
		gateway:      gateway,
		currency:     strings.ToUpper(currency),
		log:          logger,
		newID:        newOrderID,
	}
}

func newOrderID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

func (u *orderUC) Create(ctx context.Context, userID string, in CreateOrderInput) (*model.PaymentOrder, error) {
	defer logging.TraceDuration(u.log, "OrderUC.Create")()

	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if in.ConsultationPrice != nil && *in.ConsultationPrice < 0 {
		return nil, domain.NewInvalidOrder("consultationPrice", "negative price")
	}
	if in.ConsultationPrice != nil && !in.IsConsultationPayment {
		return nil, domain.NewInvalidOrder("consultationPrice", "only allowed on consultation payments")
	}

	priced := make([]PricedItem, 0, len(in.Items))
	for i, sel := range in.Items {
		if !sel.ItemType.Valid() {
			return nil, domain.NewInvalidOrder(fmt.Sprintf("items[%d].itemType", i), fmt.Sprintf("unknown item type %q", sel.ItemType))
		}
		item, err := u.catalog.FindItem(ctx, repository.NoTX, sel.ItemType, sel.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("catalog item %s/%s: %w", sel.ItemType, sel.ItemID, domain.ErrNotFound)
			}
			return nil, err
		}
		if !item.Active {
			return nil, domain.NewInvalidOrder(fmt.Sprintf("items[%d]", i), "item is not available")
		}
		if !strings.EqualFold(item.Currency, u.currency) {
			return nil, domain.NewInvalidOrder(fmt.Sprintf("items[%d]", i), fmt.Sprintf("item priced in %s, orders are in %s", item.Currency, u.currency))
		}
		priced = append(priced, PricedItem{
			ItemType:         sel.ItemType,
			ItemID:           sel.ItemID,
			BasePrice:        item.Price,
			BillingPeriod:    sel.BillingPeriod,
			SelectedFeatures: sel.SelectedFeatures,
			Catalog:          item,
		})
	}

	draft, err := BuildOrder(priced, in.BillingPeriod, u.currency)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	o := &model.PaymentOrder{
		ID:                    u.newID(),
		UserID:                userID,
		Currency:              draft.Currency,
		Status:                model.OrderStatusPending,
		Items:                 draft.Items,
		IsConsultationPayment: in.IsConsultationPayment,
		ConsultationPrice:     in.ConsultationPrice,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	amount, ok := o.TotalAmount()
	if !ok {
		return nil, domain.NewInvalidOrder("consultationPrice", "out of range")
	}
	o.Amount = amount

	l := logging.With(logging.WithOrderID(ctx, o.ID), u.log)

	switch {
	case o.Amount > 0:
		gw, err := u.gateway.CreateOrder(ctx, o.Amount, o.Currency, o.ID, map[string]string{
			"order_id": o.ID,
			"user_id":  userID,
		})
		if err != nil {
			l.Error().Err(err).Int64("amount", o.Amount).Msg("gateway order creation failed")
			return nil, err
		}
		o.GatewayOrderID = gw.ID
	case !o.IsConsultationPayment:
		return nil, domain.NewInvalidOrder("amount", "order total must be positive")
	}
	// zero-total consultation orders wait for admin activation

	if err := u.orders.Save(ctx, repository.NoTX, o); err != nil {
		if o.GatewayOrderID != "" {
			// the remote order exists but nothing local points to it
			l.Error().Err(err).Str("gateway_order_id", o.GatewayOrderID).Msg("order save failed after gateway creation")
		}
		return nil, err
	}

	metrics.IncPayment("initiated")
	l.Info().
		Int64("amount", o.Amount).
		Str("currency", o.Currency).
		Str("gateway_order_id", o.GatewayOrderID).
		Int("items", len(o.Items)).
		Msg("order created")
	return o, nil
}

func (u *orderUC) Get(ctx context.Context, orderID, requesterID string, isAdmin bool) (*OrderView, error) {
	defer logging.TraceDuration(u.log, "OrderUC.Get")()

	if orderID == "" {
		return nil, domain.NewInvalidArgument("orderId", "required")
	}
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && o.UserID != requesterID {
		return nil, domain.ErrForbidden
	}
	ents, err := u.entitlements.ListByOrder(ctx, repository.NoTX, o.ID)
	if err != nil {
		return nil, err
	}
	return &OrderView{Order: o, Entitlements: ents}, nil
}
