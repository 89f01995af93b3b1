//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-payments/internal/domain"
	"course-payments/internal/domain/model"
	"course-payments/internal/domain/ports/adapter"
	"course-payments/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func cloneOrder(o *model.PaymentOrder) *model.PaymentOrder {
	c := *o
	c.Items = append([]model.OrderItem(nil), o.Items...)
	if o.ActivatedAt != nil {
		t := *o.ActivatedAt
		c.ActivatedAt = &t
	}
	return &c
}

// =============================
// Repositories
// =============================

// ---- In-memory OrderRepository with conditional status writes ----

type MockOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.PaymentOrder

	SaveFunc                 func(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error
	FindByIDFunc             func(ctx context.Context, tx repository.Tx, id string) (*model.PaymentOrder, error)
	FindByGatewayOrderIDFunc func(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.PaymentOrder, error)
	CASFunc                  func(ctx context.Context, tx repository.Tx, id string, from, to model.OrderStatus, patch model.StatusPatch) (bool, error)

	CASCalls int
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[string]*model.PaymentOrder)}
}

func (m *MockOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.PaymentOrder) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, o)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentOrder, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MockOrderRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.PaymentOrder, error) {
	if m.FindByGatewayOrderIDFunc != nil {
		return m.FindByGatewayOrderIDFunc(ctx, tx, gatewayOrderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if gatewayOrderID != "" && o.GatewayOrderID == gatewayOrderID {
			return cloneOrder(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockOrderRepo) CompareAndSetStatus(ctx context.Context, tx repository.Tx, id string, from, to model.OrderStatus, patch model.StatusPatch) (bool, error) {
	m.mu.Lock()
	m.CASCalls++
	m.mu.Unlock()
	if m.CASFunc != nil {
		return m.CASFunc(ctx, tx, id, from, to, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	patch.Apply(o, to)
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *MockOrderRepo) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// ---- Catalog ----

type MockCatalogRepo struct {
	mu    sync.Mutex
	items map[string]*model.CatalogItem
}

var _ repository.CatalogRepository = (*MockCatalogRepo)(nil)

func NewMockCatalogRepo(items ...*model.CatalogItem) *MockCatalogRepo {
	m := &MockCatalogRepo{items: make(map[string]*model.CatalogItem)}
	for _, it := range items {
		_ = m.Save(context.Background(), nil, it)
	}
	return m
}

func catalogKey(t model.ItemType, id string) string { return fmt.Sprintf("%s/%s", t, id) }

func (m *MockCatalogRepo) FindItem(ctx context.Context, tx repository.Tx, itemType model.ItemType, itemID string) (*model.CatalogItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[catalogKey(itemType, itemID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *it
	return &c, nil
}

func (m *MockCatalogRepo) Save(ctx context.Context, tx repository.Tx, item *model.CatalogItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.items[catalogKey(item.ItemType, item.ItemID)] = &c
	return nil
}

// ---- Entitlements ----

type MockEntitlementRepo struct {
	mu    sync.Mutex
	byKey map[string]*model.Entitlement

	GrantCalls int
}

var _ repository.EntitlementRepository = (*MockEntitlementRepo)(nil)

func NewMockEntitlementRepo() *MockEntitlementRepo {
	return &MockEntitlementRepo{byKey: make(map[string]*model.Entitlement)}
}

func (m *MockEntitlementRepo) Grant(ctx context.Context, tx repository.Tx, e *model.Entitlement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GrantCalls++
	k := e.OrderID + "|" + catalogKey(e.ItemType, e.ItemID)
	if _, ok := m.byKey[k]; ok {
		return nil
	}
	c := *e
	m.byKey[k] = &c
	return nil
}

func (m *MockEntitlementRepo) RevokeByOrder(ctx context.Context, tx repository.Tx, orderID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.byKey {
		if e.OrderID == orderID && e.RevokedAt == nil {
			t := at
			e.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

func (m *MockEntitlementRepo) ListByOrder(ctx context.Context, tx repository.Tx, orderID string) ([]*model.Entitlement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Entitlement
	for _, e := range m.byKey {
		if e.OrderID == orderID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// ---- Webhook audit ----

type MockWebhookEventRepo struct {
	mu      sync.Mutex
	Records []model.WebhookEventRecord

	RecordFunc func(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) error
}

var _ repository.WebhookEventRepository = (*MockWebhookEventRepo)(nil)

func (m *MockWebhookEventRepo) Record(ctx context.Context, tx repository.Tx, rec *model.WebhookEventRecord) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, tx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, *rec)
	return nil
}

func (m *MockWebhookEventRepo) Outcomes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Records))
	for i, r := range m.Records {
		out[i] = r.Outcome
	}
	return out
}

// ---- TransactionManager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type MockPaymentGateway struct {
	mu sync.Mutex

	CreateOrderFunc   func(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error)
	FetchOrderFunc    func(ctx context.Context, gatewayOrderID string) (adapter.GatewayOrder, error)
	RefundPaymentFunc func(ctx context.Context, gatewayPaymentID string, amount int64, notes map[string]string) (adapter.RefundResult, error)

	Calls struct {
		Create  []string // receipts
		Refunds []string // payment ids
	}
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string { return "mock" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (adapter.GatewayOrder, error) {
	m.mu.Lock()
	m.Calls.Create = append(m.Calls.Create, receipt)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, amount, currency, receipt, notes)
	}
	return adapter.GatewayOrder{ID: "order_" + receipt, Amount: amount, Currency: currency, Receipt: receipt, Status: "created"}, nil
}

func (m *MockPaymentGateway) FetchOrder(ctx context.Context, gatewayOrderID string) (adapter.GatewayOrder, error) {
	if m.FetchOrderFunc != nil {
		return m.FetchOrderFunc(ctx, gatewayOrderID)
	}
	return adapter.GatewayOrder{ID: gatewayOrderID, Status: "created"}, nil
}

func (m *MockPaymentGateway) RefundPayment(ctx context.Context, gatewayPaymentID string, amount int64, notes map[string]string) (adapter.RefundResult, error) {
	m.mu.Lock()
	m.Calls.Refunds = append(m.Calls.Refunds, gatewayPaymentID)
	m.mu.Unlock()
	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, gatewayPaymentID, amount, notes)
	}
	return adapter.RefundResult{ID: "rfnd_" + gatewayPaymentID, PaymentID: gatewayPaymentID, Status: "processed"}, nil
}

// ---- Recording event publisher ----

type MockPublisher struct {
	mu     sync.Mutex
	Events []adapter.OrderEvent
}

var _ adapter.OrderEventPublisher = (*MockPublisher)(nil)

func (m *MockPublisher) Publish(ctx context.Context, ev adapter.OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, ev)
	return nil
}

func (m *MockPublisher) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Type
	}
	return out
}
