package tests

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"corridor/internal/domain"
	"corridor/internal/ledger"
	"corridor/internal/provider"
	"corridor/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository.
type MockOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.PaymentOrder

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32

	// Error injection
	CreateError error
	UpdateError error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.PaymentOrder),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = order
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.PaymentOrder) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) GetByIDForUpdate(ctx context.Context, id string) (*domain.PaymentOrder, error) {
	return m.GetByID(ctx, id)
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.PaymentOrder) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[order.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *MockOrderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var due []string
	for _, o := range m.orders {
		if o.Status == domain.OrderStatusProcessing && !o.NextAttemptAt.IsZero() && !o.NextAttemptAt.After(now) {
			due = append(due, o.ID)
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

// GetOrder returns the stored order for test assertions.
func (m *MockOrderRepository) GetOrder(id string) *domain.PaymentOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.orders[id]
}

// ──────────────────────────────────────────────
// MOCK LEG ATTEMPT REPOSITORY
// ──────────────────────────────────────────────

// MockLegAttemptRepository is a mock implementation of LegAttemptRepository.
type MockLegAttemptRepository struct {
	mu       sync.RWMutex
	attempts []*domain.ProviderLegAttempt

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockLegAttemptRepository creates a new mock leg attempt repository.
func NewMockLegAttemptRepository() *MockLegAttemptRepository {
	return &MockLegAttemptRepository{}
}

func (m *MockLegAttemptRepository) Create(ctx context.Context, attempt *domain.ProviderLegAttempt) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *attempt
	m.attempts = append(m.attempts, &copy)
	return nil
}

func (m *MockLegAttemptRepository) Update(ctx context.Context, attempt *domain.ProviderLegAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.attempts {
		if a.ID == attempt.ID {
			copy := *attempt
			m.attempts[i] = &copy
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *MockLegAttemptRepository) GetActive(ctx context.Context, orderID string, role domain.LegRole) (*domain.ProviderLegAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.ProviderLegAttempt
	for _, a := range m.attempts {
		if a.OrderID == orderID && a.Role == role {
			if latest == nil || a.AttemptNumber > latest.AttemptNumber {
				latest = a
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	copy := *latest
	return &copy, nil
}

func (m *MockLegAttemptRepository) GetByExternalID(ctx context.Context, providerID, externalID string) (*domain.ProviderLegAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.attempts {
		if a.ProviderID == providerID && a.ExternalID == externalID {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockLegAttemptRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.ProviderLegAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ProviderLegAttempt
	for _, a := range m.attempts {
		if a.OrderID == orderID {
			copy := *a
			result = append(result, &copy)
		}
	}
	return result, nil
}

// Attempts returns the stored attempts for one order and role, oldest first.
func (m *MockLegAttemptRepository) Attempts(orderID string, role domain.LegRole) []*domain.ProviderLegAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ProviderLegAttempt
	for _, a := range m.attempts {
		if a.OrderID == orderID && a.Role == role {
			result = append(result, a)
		}
	}
	return result
}

// ──────────────────────────────────────────────
// MOCK EVENT REPOSITORY
// ──────────────────────────────────────────────

// MockEventRepository is a mock implementation of EventRepository. Append
// assigns per-order sequence numbers the way the real store does.
type MockEventRepository struct {
	mu     sync.RWMutex
	events []*domain.PaymentEvent

	// Counters for verification
	AppendCallCount int32

	// Error injection
	AppendError error
}

// NewMockEventRepository creates a new mock event repository.
func NewMockEventRepository() *MockEventRepository {
	return &MockEventRepository{}
}

func (m *MockEventRepository) Append(ctx context.Context, event *domain.PaymentEvent) error {
	atomic.AddInt32(&m.AppendCallCount, 1)
	if m.AppendError != nil {
		return m.AppendError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var max int64
	for _, e := range m.events {
		if e.OrderID == event.OrderID && e.Seq > max {
			max = e.Seq
		}
	}
	copy := *event
	copy.Seq = max + 1
	event.Seq = copy.Seq
	m.events = append(m.events, &copy)
	return nil
}

func (m *MockEventRepository) ListByOrder(ctx context.Context, orderID string) ([]*domain.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PaymentEvent
	for _, e := range m.events {
		if e.OrderID == orderID {
			copy := *e
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq < result[j].Seq })
	return result, nil
}

func (m *MockEventRepository) ListUnpublished(ctx context.Context, limit int) ([]*domain.PaymentEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.PaymentEvent
	for _, e := range m.events {
		if !e.Published {
			copy := *e
			result = append(result, &copy)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockEventRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		for _, e := range m.events {
			if e.ID == id {
				e.Published = true
				e.PublishedAt = at
			}
		}
	}
	return nil
}

// EventTypes returns the event type history for an order, in sequence order.
func (m *MockEventRepository) EventTypes(orderID string) []domain.EventType {
	events, _ := m.ListByOrder(context.Background(), orderID)
	types := make([]domain.EventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

// ──────────────────────────────────────────────
// MOCK INTERVENTION REPOSITORY
// ──────────────────────────────────────────────

// MockInterventionRepository is a mock implementation of InterventionRepository.
type MockInterventionRepository struct {
	mu    sync.RWMutex
	cases map[string]*domain.ManualInterventionCase

	// Counters for verification
	CreateCallCount int32
}

// NewMockInterventionRepository creates a new mock intervention repository.
func NewMockInterventionRepository() *MockInterventionRepository {
	return &MockInterventionRepository{
		cases: make(map[string]*domain.ManualInterventionCase),
	}
}

func (m *MockInterventionRepository) Create(ctx context.Context, c *domain.ManualInterventionCase) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *c
	m.cases[c.ID] = &copy
	return nil
}

func (m *MockInterventionRepository) GetByID(ctx context.Context, id string) (*domain.ManualInterventionCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *c
	return &copy, nil
}

func (m *MockInterventionRepository) GetOpenByOrder(ctx context.Context, orderID string) (*domain.ManualInterventionCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.cases {
		if c.OrderID == orderID && (c.Status == domain.CaseStatusPending || c.Status == domain.CaseStatusInProgress) {
			copy := *c
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockInterventionRepository) Update(ctx context.Context, c *domain.ManualInterventionCase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cases[c.ID]; !ok {
		return repository.ErrNotFound
	}
	copy := *c
	m.cases[c.ID] = &copy
	return nil
}

func (m *MockInterventionRepository) ListOpen(ctx context.Context) ([]*domain.ManualInterventionCase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.ManualInterventionCase
	for _, c := range m.cases {
		if c.Status == domain.CaseStatusPending || c.Status == domain.CaseStatusInProgress {
			copy := *c
			result = append(result, &copy)
		}
	}
	return result, nil
}

// OpenCaseFor returns the open case for an order, or nil.
func (m *MockInterventionRepository) OpenCaseFor(orderID string) *domain.ManualInterventionCase {
	c, _ := m.GetOpenByOrder(context.Background(), orderID)
	return c
}

// OpenCasesFor counts the open cases held for an order.
func (m *MockInterventionRepository) OpenCasesFor(orderID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.cases {
		if c.OrderID == orderID && (c.Status == domain.CaseStatusPending || c.Status == domain.CaseStatusInProgress) {
			n++
		}
	}
	return n
}

// ──────────────────────────────────────────────
// MOCK IDEMPOTENCY LEDGER
// ──────────────────────────────────────────────

type ledgerEntry struct {
	state  ledger.State
	hash   string
	result string
}

// MockLedger is an in-memory idempotency ledger.
type MockLedger struct {
	mu      sync.Mutex
	entries map[string]*ledgerEntry

	// Counters for verification
	ReserveCallCount  int32
	CompleteCallCount int32
	FailCallCount     int32
}

// NewMockLedger creates a new mock ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{entries: make(map[string]*ledgerEntry)}
}

func (m *MockLedger) Reserve(ctx context.Context, key, payloadHash string) (ledger.Reservation, error) {
	atomic.AddInt32(&m.ReserveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		m.entries[key] = &ledgerEntry{state: ledger.StateInProgress, hash: payloadHash}
		return ledger.Reservation{State: ledger.StateNew, ReservedAt: time.Now()}, nil
	}
	if entry.hash != payloadHash {
		return ledger.Reservation{}, ledger.ErrConflict
	}
	if entry.state == ledger.StateCompleted {
		return ledger.Reservation{State: ledger.StateCompleted, Result: entry.result}, nil
	}
	return ledger.Reservation{State: ledger.StateInProgress}, nil
}

func (m *MockLedger) Complete(ctx context.Context, key, result string) error {
	atomic.AddInt32(&m.CompleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok || entry.state != ledger.StateInProgress {
		return repository.ErrNotFound
	}
	entry.state = ledger.StateCompleted
	entry.result = result
	return nil
}

func (m *MockLedger) Fail(ctx context.Context, key string) error {
	atomic.AddInt32(&m.FailCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if ok && entry.state == ledger.StateInProgress {
		delete(m.entries, key)
	}
	return nil
}

func (m *MockLedger) Void(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if ok && entry.state == ledger.StateCompleted && !strings.Contains(entry.result, string(provider.OutcomeAccepted)) {
		delete(m.entries, key)
	}
	return nil
}

// Entry returns the stored state and result for a key.
func (m *MockLedger) Entry(key string) (ledger.State, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", "", false
	}
	return entry.state, entry.result, true
}

// ──────────────────────────────────────────────
// MOCK ORDER LOCKER
// ──────────────────────────────────────────────

// MockLockStore is an in-memory per-order lock.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]bool

	// Counters for verification
	AcquireCallCount int32
	ReleaseCallCount int32
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{locks: make(map[string]bool)}
}

func (m *MockLockStore) AcquireOrderLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[orderID] {
		return false, nil
	}
	m.locks[orderID] = true
	return true, nil
}

func (m *MockLockStore) ReleaseOrderLock(ctx context.Context, orderID string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, orderID)
	return nil
}

// Hold marks an order as locked by someone else.
func (m *MockLockStore) Hold(orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks[orderID] = true
}

// ──────────────────────────────────────────────
// MOCK UNIT OF WORK
// ──────────────────────────────────────────────

// MockUnitOfWork runs transactional functions directly against the shared
// mocks. Atomicity is not simulated; tests assert on final state.
type MockUnitOfWork struct {
	OrderRepo *MockOrderRepository
	LegRepo   *MockLegAttemptRepository
	EventRepo *MockEventRepository
	CaseRepo  *MockInterventionRepository

	// Error injection
	WithinError error
}

// NewMockUnitOfWork creates a unit of work over the given mocks.
func NewMockUnitOfWork(orders *MockOrderRepository, legs *MockLegAttemptRepository, events *MockEventRepository, cases *MockInterventionRepository) *MockUnitOfWork {
	return &MockUnitOfWork{OrderRepo: orders, LegRepo: legs, EventRepo: events, CaseRepo: cases}
}

func (m *MockUnitOfWork) Within(ctx context.Context, fn func(tx repository.Tx) error) error {
	if m.WithinError != nil {
		return m.WithinError
	}
	return fn(mockTx{uow: m})
}

type mockTx struct {
	uow *MockUnitOfWork
}

func (t mockTx) Orders() repository.OrderRepository { return t.uow.OrderRepo }

func (t mockTx) Legs() repository.LegAttemptRepository { return t.uow.LegRepo }

func (t mockTx) Events() repository.EventRepository { return t.uow.EventRepo }

func (t mockTx) Cases() repository.InterventionRepository { return t.uow.CaseRepo }

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records events delivered to the outbound stream.
type MockPublisher struct {
	mu     sync.Mutex
	events []*domain.PaymentEvent

	// Counters for verification
	PublishCallCount int32

	// Error injection
	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.PaymentEvent) error {
	atomic.AddInt32(&m.PublishCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishError != nil {
		return m.PublishError
	}
	copy := *event
	m.events = append(m.events, &copy)
	return nil
}

// SetPublishError injects or clears a publish failure.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishError = err
}

// Published returns the delivered events in order.
func (m *MockPublisher) Published() []*domain.PaymentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.PaymentEvent, len(m.events))
	copy(result, m.events)
	return result
}

// ──────────────────────────────────────────────
// FAKE PROVIDER GATEWAY
// ──────────────────────────────────────────────

// FakeGateway is a scriptable in-memory provider. It dedupes on the
// idempotency key the way a real provider does: a replayed key returns the
// stored result without creating a second transfer.
type FakeGateway struct {
	mu     sync.Mutex
	id     string
	secret string

	// Scripted initiate errors per leg role, consumed in order. An empty
	// queue means the call is accepted.
	script map[string][]error

	transfers map[string]provider.LegResult
	statuses  map[string]provider.LegStatus
	nextID    int

	// Counters for verification
	InitiateCallCount    int32
	CheckStatusCallCount int32
	TransferCount        int32
	RefundCallCount      int32

	// Error injection
	RefundError error
}

// NewFakeGateway creates a fake provider gateway.
func NewFakeGateway(id, secret string) *FakeGateway {
	return &FakeGateway{
		id:        id,
		secret:    secret,
		script:    make(map[string][]error),
		transfers: make(map[string]provider.LegResult),
		statuses:  make(map[string]provider.LegStatus),
	}
}

// SetStatus scripts the provider-side state of a transfer for polling.
func (g *FakeGateway) SetStatus(externalID string, status provider.LegStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[externalID] = status
}

// ScriptFailure queues one initiate error for the given leg role.
func (g *FakeGateway) ScriptFailure(role domain.LegRole, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.script[string(role)] = append(g.script[string(role)], err)
}

func (g *FakeGateway) ID() string {
	return g.id
}

func (g *FakeGateway) Initiate(ctx context.Context, req provider.LegRequest, idempotencyKey string) (provider.LegResult, error) {
	atomic.AddInt32(&g.InitiateCallCount, 1)
	g.mu.Lock()
	defer g.mu.Unlock()

	// Provider-side dedupe: same key replays the stored result.
	if result, ok := g.transfers[idempotencyKey]; ok {
		return result, nil
	}

	if queue := g.script[req.Role]; len(queue) > 0 {
		err := queue[0]
		g.script[req.Role] = queue[1:]

		if provider.Classify(err) == provider.ClassTerminal {
			code := "rejected"
			var pe *provider.Error
			if errors.As(err, &pe) {
				code = pe.Code
			}
			result := provider.LegResult{Outcome: provider.OutcomeRejected, ErrorCode: code}
			g.transfers[idempotencyKey] = result
			return result, err
		}
		return provider.LegResult{}, err
	}

	g.nextID++
	externalID := fmt.Sprintf("%s-ext-%d", g.id, g.nextID)
	result := provider.LegResult{Outcome: provider.OutcomeAccepted, ExternalID: externalID}
	g.transfers[idempotencyKey] = result
	g.statuses[externalID] = provider.LegStatus{Value: provider.StatusSucceeded}
	atomic.AddInt32(&g.TransferCount, 1)
	return result, nil
}

func (g *FakeGateway) CheckStatus(ctx context.Context, externalID string) (provider.LegStatus, error) {
	atomic.AddInt32(&g.CheckStatusCallCount, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	status, ok := g.statuses[externalID]
	if !ok {
		return provider.LegStatus{}, &provider.Error{Class: provider.ClassTerminal, Code: "not_found", Message: "unknown transfer"}
	}
	return status, nil
}

func (g *FakeGateway) Refund(ctx context.Context, externalID string, amount float64) (provider.LegResult, error) {
	atomic.AddInt32(&g.RefundCallCount, 1)
	if g.RefundError != nil {
		return provider.LegResult{}, g.RefundError
	}
	return provider.LegResult{Outcome: provider.OutcomeAccepted, ExternalID: "rf-" + externalID}, nil
}

// fakeCallback is the fake's webhook wire format, mirroring the sandbox.
type fakeCallback struct {
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
	ErrorCode  string `json:"error_code"`
	Detail     string `json:"detail"`
	ReportedAt int64  `json:"reported_at"`
}

func (g *FakeGateway) VerifyCallback(payload []byte, signature string) (provider.CallbackEvent, error) {
	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return provider.CallbackEvent{}, provider.ErrSignatureInvalid
	}

	var cb fakeCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return provider.CallbackEvent{}, err
	}

	status := provider.LegStatus{Detail: cb.Detail, ErrorCode: cb.ErrorCode}
	if cb.ReportedAt > 0 {
		status.ReportedAt = time.Unix(cb.ReportedAt, 0)
	}
	switch cb.Status {
	case "succeeded":
		status.Value = provider.StatusSucceeded
	case "failed":
		status.Value = provider.StatusFailed
	default:
		status.Value = provider.StatusPending
	}

	return provider.CallbackEvent{ExternalID: cb.ExternalID, Status: status}, nil
}

// SignedCallback builds a signed webhook body for this gateway.
func (g *FakeGateway) SignedCallback(externalID, status, errorCode string, reportedAt time.Time) ([]byte, string) {
	body, _ := json.Marshal(fakeCallback{
		ExternalID: externalID,
		Status:     status,
		ErrorCode:  errorCode,
		ReportedAt: reportedAt.Unix(),
	})
	return body, provider.SignCallback(g.secret, body)
}

// ExternalIDFor returns the external ID assigned to an idempotency key.
func (g *FakeGateway) ExternalIDFor(key string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.transfers[key].ExternalID
}
