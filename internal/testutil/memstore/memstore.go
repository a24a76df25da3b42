// Package memstore is an in-memory implementation of the charge storage ports.
// Writes inside WithTransaction are serialized and rolled back when fn fails.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/kevin07696/automated-charge/internal/domain"
	"github.com/kevin07696/automated-charge/internal/domain/ports"
	"github.com/shopspring/decimal"
)

// Operation names accepted by FailOn
const (
	OpCreateTransaction  = "transactions.create"
	OpFindOrCreateBatch  = "batches.find_or_create"
	OpAddToControlAmount = "batches.add_to_control_amount"
	OpSaveAttributes     = "attributes.save"
	OpSaveHistory        = "history.save"
	OpFindRecent         = "charges.find_recent"
)

// HistoryEntry is one persisted audit change set
type HistoryEntry struct {
	EntityType string
	Changes    domain.HistoryChangeList
	EntityID   int64
}

// Store holds every record in memory
type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	people        map[int64]*domain.Person
	aliases       map[int64]int64
	gateways      map[int64]*domain.Gateway
	accounts      map[int64]*domain.FinancialAccount
	methods       map[int64][]*domain.SavedPaymentMethod
	definedValues map[uuid.UUID]*domain.DefinedValue
	transactions  []*domain.Transaction
	batches       []*domain.Batch
	attributes    map[int64]map[string]string
	history       []HistoryEntry
	failures      map[string]error
	calls         map[string]int
	nextID        int64
}

var (
	_ ports.EntityStore           = (*Store)(nil)
	_ ports.ChargeHistory         = (*Store)(nil)
	_ ports.TransactionManager    = (*Store)(nil)
	_ ports.TransactionRepository = (*Store)(nil)
	_ ports.BatchRepository       = (*Store)(nil)
	_ ports.AttributeRepository   = (*Store)(nil)
	_ ports.HistoryRepository     = (*Store)(nil)
)

// New creates an empty store
func New() *Store {
	return &Store{
		people:        make(map[int64]*domain.Person),
		aliases:       make(map[int64]int64),
		gateways:      make(map[int64]*domain.Gateway),
		accounts:      make(map[int64]*domain.FinancialAccount),
		methods:       make(map[int64][]*domain.SavedPaymentMethod),
		definedValues: make(map[uuid.UUID]*domain.DefinedValue),
		attributes:    make(map[int64]map[string]string),
		failures:      make(map[string]error),
		calls:         make(map[string]int),
		nextID:        1000,
	}
}

// Seeding

// AddPerson stores a person reachable through its primary alias and any extra aliases
func (s *Store) AddPerson(p *domain.Person, extraAliasIDs ...int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.people[p.ID] = &cp
	s.aliases[p.PrimaryAliasID] = p.ID
	for _, id := range extraAliasIDs {
		s.aliases[id] = p.ID
	}
}

func (s *Store) AddGateway(g *domain.Gateway) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.gateways[g.ID] = &cp
}

func (s *Store) AddAccount(a *domain.FinancialAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.accounts[a.ID] = &cp
}

func (s *Store) AddSavedPaymentMethod(m *domain.SavedPaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.methods[m.PersonID] = append(s.methods[m.PersonID], &cp)
	sort.Slice(s.methods[m.PersonID], func(i, j int) bool {
		return s.methods[m.PersonID][i].ID < s.methods[m.PersonID][j].ID
	})
}

func (s *Store) AddDefinedValue(v *domain.DefinedValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.definedValues[v.GUID] = &cp
}

// AddTransaction seeds a prior transaction into the history
func (s *Store) AddTransaction(t *domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	if cp.ID == 0 {
		cp.ID = s.newID()
	}
	s.transactions = append(s.transactions, &cp)
}

// FailOn makes every later call of op return err; a nil err clears the failure
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// Inspection

func (s *Store) Transactions() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		out = append(out, *t)
	}
	return out
}

func (s *Store) Batches() []domain.Batch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Batch, 0, len(s.batches))
	for _, b := range s.batches {
		out = append(out, *b)
	}
	return out
}

func (s *Store) History() []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]HistoryEntry(nil), s.history...)
}

func (s *Store) Attributes(transactionID int64) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attributes[transactionID]
}

// Calls returns how many times op was invoked
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// ports.TransactionManager

// WithTransaction serializes fn against every other transaction and restores the
// transaction and batch tables when fn returns an error.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	savedTxns := append([]*domain.Transaction(nil), s.transactions...)
	savedBatches := make([]*domain.Batch, len(s.batches))
	for i, b := range s.batches {
		cp := *b
		savedBatches[i] = &cp
	}
	s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		s.mu.Lock()
		s.transactions = savedTxns
		s.batches = savedBatches
		s.mu.Unlock()
		return err
	}
	return nil
}

// ports.EntityStore

func (s *Store) GetPersonByAliasID(_ context.Context, aliasID int64) (*domain.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	personID, ok := s.aliases[aliasID]
	if !ok {
		return nil, nil
	}
	p, ok := s.people[personID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetGateway(_ context.Context, id int64) (*domain.Gateway, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.gateways[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (s *Store) GetAccounts(_ context.Context, ids []int64) (map[int64]*domain.FinancialAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]*domain.FinancialAccount, len(ids))
	for _, id := range ids {
		if a, ok := s.accounts[id]; ok {
			cp := *a
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) ListSavedPaymentMethods(_ context.Context, personID int64) ([]*domain.SavedPaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.SavedPaymentMethod, 0, len(s.methods[personID]))
	for _, m := range s.methods[personID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) GetDefinedValue(_ context.Context, valueType domain.DefinedValueType, guid uuid.UUID) (*domain.DefinedValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.definedValues[guid]
	if !ok || v.Type != valueType {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}

// ports.ChargeHistory

func (s *Store) AliasIDsByGivingID(_ context.Context, givingID string) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for aliasID, personID := range s.aliases {
		if p, ok := s.people[personID]; ok && p.GivingID == givingID {
			ids = append(ids, aliasID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) AliasIDsByPersonID(_ context.Context, personID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for aliasID, owner := range s.aliases {
		if owner == personID {
			ids = append(ids, aliasID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) FindRecentTransaction(_ context.Context, aliasIDs []int64, since time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpFindRecent); err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(aliasIDs))
	for _, id := range aliasIDs {
		wanted[id] = struct{}{}
	}
	var latest *domain.Transaction
	for _, t := range s.transactions {
		if _, ok := wanted[t.AuthorizedPersonAliasID]; !ok || t.TransactionDateTime.Before(since) {
			continue
		}
		if latest == nil || t.TransactionDateTime.After(latest.TransactionDateTime) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// ports.TransactionRepository

func (s *Store) Create(_ context.Context, _ ports.DBTX, txn *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpCreateTransaction); err != nil {
		return err
	}

	txn.ID = s.newID()
	for i := range txn.Details {
		txn.Details[i].ID = s.newID()
		txn.Details[i].TransactionID = txn.ID
	}
	cp := *txn
	cp.Details = append([]domain.TransactionDetail(nil), txn.Details...)
	s.transactions = append(s.transactions, &cp)
	return nil
}

// ports.BatchRepository

func (s *Store) FindOrCreateOpen(_ context.Context, _ ports.DBTX, key domain.BatchKey) (*domain.Batch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpFindOrCreateBatch); err != nil {
		return nil, false, err
	}

	for _, b := range s.batches {
		if b.Name == key.Name && b.Status == domain.BatchStatusOpen && b.Contains(key.TransactionTime) {
			cp := *b
			return &cp, false, nil
		}
	}

	b := domain.NewOpenBatch(key, uuid.New())
	b.ID = s.newID()
	s.batches = append(s.batches, b)
	cp := *b
	return &cp, true, nil
}

func (s *Store) AddToControlAmount(_ context.Context, _ ports.DBTX, batchID int64, amount decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpAddToControlAmount); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	for _, b := range s.batches {
		if b.ID == batchID {
			before := b.ControlAmount
			b.ControlAmount = before.Add(amount)
			return before, b.ControlAmount, nil
		}
	}
	return decimal.Zero, decimal.Zero, fmt.Errorf("batch %d not found", batchID)
}

// ports.AttributeRepository

func (s *Store) SaveTransactionAttributes(_ context.Context, _ ports.DBTX, transactionID int64, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpSaveAttributes); err != nil {
		return err
	}

	attrs := s.attributes[transactionID]
	if attrs == nil {
		attrs = make(map[string]string, len(values))
		s.attributes[transactionID] = attrs
	}
	for k, v := range values {
		attrs[k] = v
	}
	return nil
}

// ports.HistoryRepository

func (s *Store) SaveChanges(_ context.Context, _ ports.DBTX, entityType string, entityID int64, changes domain.HistoryChangeList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpSaveHistory); err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	s.history = append(s.history, HistoryEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    append(domain.HistoryChangeList(nil), changes...),
	})
	return nil
}

// hit counts a call and returns any injected failure. Callers hold mu.
func (s *Store) hit(op string) error {
	s.calls[op]++
	return s.failures[op]
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}
