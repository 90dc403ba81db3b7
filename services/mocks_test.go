package services_test

import (
	"context"
	"sync"
	"time"

	"marketplace-service/models"
	"marketplace-service/repository"
	"marketplace-service/services"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ---- mock order repository ----

type mockOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]*models.Order
	createErr error
	findErr   error
	conflict  bool
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (m *mockOrderRepo) put(o *models.Order) {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	m.orders[o.ID] = &cp
}

func (m *mockOrderRepo) Create(_ context.Context, o *models.Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(o)
	return nil
}

func (m *mockOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp, nil
}

func (m *mockOrderRepo) FindByClientID(_ context.Context, clientID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.ClientID == clientID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) FindAll(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (m *mockOrderRepo) UpdateStatusIfCurrent(_ context.Context, id uuid.UUID, from, to models.OrderStatus, completedAt, cancelledAt *time.Time) (bool, error) {
	if m.conflict {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if completedAt != nil {
		o.CompletedAt = completedAt
	}
	if cancelledAt != nil {
		o.CancelledAt = cancelledAt
	}
	return true, nil
}

// ---- mock payment repository ----

type mockPaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*models.Payment
	orders   *mockOrderRepo
	saveErr  error
}

func newMockPaymentRepo(orders *mockOrderRepo) *mockPaymentRepo {
	return &mockPaymentRepo{payments: map[uuid.UUID]*models.Payment{}, orders: orders}
}

func (m *mockPaymentRepo) Save(_ context.Context, p *models.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *mockPaymentRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockPaymentRepo) FindByProcessorID(_ context.Context, processorID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ProcessorPaymentID != nil && *p.ProcessorPaymentID == processorID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// ApplyEvent mirrors the conditional-write semantics of the GORM
// implementation against the in-memory stores.
func (m *mockPaymentRepo) ApplyEvent(_ context.Context, app repository.StatusApplication) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[app.PaymentID]
	if !ok {
		return false, nil
	}
	matches := false
	for _, from := range app.PaymentFrom {
		if p.Status == from {
			matches = true
			break
		}
	}
	if !matches {
		return false, nil
	}

	p.Status = app.PaymentTo
	if app.PaidAt != nil {
		p.PaidAt = app.PaidAt
	}
	if app.FailedAt != nil {
		p.FailedAt = app.FailedAt
	}
	if app.RefundedAt != nil {
		p.RefundedAt = app.RefundedAt
	}

	if app.ApplyOrder && m.orders != nil {
		m.orders.mu.Lock()
		if o, ok := m.orders.orders[app.OrderID]; ok && o.Status == app.OrderFrom {
			o.Status = app.OrderTo
		}
		m.orders.mu.Unlock()
	}
	return true, nil
}

// ---- mock listing repository ----

type mockListingRepo struct {
	listings map[uuid.UUID]models.ServiceListing
}

func newMockListingRepo(listings ...models.ServiceListing) *mockListingRepo {
	m := &mockListingRepo{listings: map[uuid.UUID]models.ServiceListing{}}
	for _, l := range listings {
		m.listings[l.ID] = l
	}
	return m
}

func (m *mockListingRepo) FindActiveByIDs(_ context.Context, ids []uuid.UUID) ([]models.ServiceListing, error) {
	var out []models.ServiceListing
	for _, id := range ids {
		if l, ok := m.listings[id]; ok && l.Active {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockListingRepo) VendorOwnsAny(_ context.Context, vendorID uuid.UUID, serviceIDs []uuid.UUID) (bool, error) {
	for _, id := range serviceIDs {
		if l, ok := m.listings[id]; ok && l.VendorID == vendorID {
			return true, nil
		}
	}
	return false, nil
}

// ---- mock payment processor ----

type mockProcessor struct {
	createCalls int
	createErrs  []error
	intent      services.ProcessorIntent
	cancelled   []string
	cancelErr   error
	refunded    []string
	refundErr   error
	event       services.WebhookEvent
	verifyErr   error
}

func (m *mockProcessor) CreateIntent(_ context.Context, _ int64, _ string, _ map[string]string) (services.ProcessorIntent, error) {
	idx := m.createCalls
	m.createCalls++
	if idx < len(m.createErrs) && m.createErrs[idx] != nil {
		return services.ProcessorIntent{}, m.createErrs[idx]
	}
	if m.intent.ID == "" {
		m.intent = services.ProcessorIntent{ID: "pi_test", ClientSecret: "pi_test_secret"}
	}
	return m.intent, nil
}

func (m *mockProcessor) CancelIntent(_ context.Context, id string) error {
	m.cancelled = append(m.cancelled, id)
	return m.cancelErr
}

func (m *mockProcessor) CreateRefund(_ context.Context, id string) error {
	if m.refundErr != nil {
		return m.refundErr
	}
	m.refunded = append(m.refunded, id)
	return nil
}

func (m *mockProcessor) VerifyEvent(_ []byte, _ string) (services.WebhookEvent, error) {
	return m.event, m.verifyErr
}

// ---- mock notifier ----

type mockNotifier struct {
	confirmed     int
	statusChanged int
	paymentFailed int
	err           error
}

func (m *mockNotifier) OrderConfirmed(_ context.Context, _ *models.Order) error {
	m.confirmed++
	return m.err
}

func (m *mockNotifier) OrderStatusChanged(_ context.Context, _ *models.Order, _ string) error {
	m.statusChanged++
	return m.err
}

func (m *mockNotifier) PaymentFailed(_ context.Context, _ *models.Order) error {
	m.paymentFailed++
	return m.err
}

// ---- mock kafka producer ----

type mockProducer struct {
	events []models.OrderEvent
	err    error
}

func (m *mockProducer) SendOrderEvent(evt models.OrderEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}
