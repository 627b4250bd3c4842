package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pathwise/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks for AccountStore and EntryStore. These let us test the real
// ledger logic, including races, without a database.
// ---------------------------------------------------------------------------

type fakeTx struct {
	pgx.Tx
}

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

type fakeDB struct{}

func (fakeDB) Begin(context.Context) (pgx.Tx, error) { return fakeTx{}, nil }

type mockAccounts struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	credited map[uuid.UUID]int64
	debited  map[uuid.UUID]int64
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{
		balances: make(map[uuid.UUID]int64),
		credited: make(map[uuid.UUID]int64),
		debited:  make(map[uuid.UUID]int64),
	}
}

func (m *mockAccounts) EnsureTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = 0
	}
	return nil
}

func (m *mockAccounts) BalanceTx(_ context.Context, _ pgx.Tx, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	return b, nil
}

func (m *mockAccounts) DebitTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok || b < amount {
		return 0, pgx.ErrNoRows
	}
	m.balances[userID] = b - amount
	m.debited[userID] += amount
	return m.balances[userID], nil
}

func (m *mockAccounts) CreditTx(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	m.credited[userID] += amount
	return m.balances[userID], nil
}

type mockEntries struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*models.LedgerEntry
}

func newMockEntries() *mockEntries {
	return &mockEntries{entries: make(map[uuid.UUID]*models.LedgerEntry)}
}

func (m *mockEntries) InsertTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.entries[e.ID] = &cp
	return nil
}

func (m *mockEntries) InsertCreditTx(_ context.Context, _ pgx.Tx, e *models.LedgerEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[e.ID]; ok {
		return false, nil
	}
	cp := *e
	m.entries[e.ID] = &cp
	return true, nil
}

func (m *mockEntries) UpdateResultingBalanceTx(_ context.Context, _ pgx.Tx, id uuid.UUID, balance int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[id]; ok {
		e.ResultingBalance = balance
	}
	return nil
}

func (m *mockEntries) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newTestService(accounts *mockAccounts, entries *mockEntries) *Service {
	return NewService(fakeDB{}, accounts, entries)
}

// ---------------------------------------------------------------------------

func TestDebitHappyPath(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[userID] = 100
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	newBal, err := svc.Debit(context.Background(), userID, 30, "task:analyze", nil)
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if newBal != 70 {
		t.Errorf("new balance = %d, want 70", newBal)
	}
	if entries.count() != 1 {
		t.Errorf("entries = %d, want 1", entries.count())
	}
}

func TestDebitAccountNotFound(t *testing.T) {
	svc := newTestService(newMockAccounts(), newMockEntries())

	_, err := svc.Debit(context.Background(), uuid.New(), 10, "task:analyze", nil)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("err = %v, want ErrAccountNotFound", err)
	}
}

func TestDebitInsufficientBalance(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[userID] = 20
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	_, err := svc.Debit(context.Background(), userID, 30, "task:optimize", nil)
	var ib *InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("err = %v, want InsufficientBalanceError", err)
	}
	if ib.Balance != 20 || ib.Required != 30 {
		t.Errorf("got balance=%d required=%d, want 20/30", ib.Balance, ib.Required)
	}
	if accounts.balances[userID] != 20 {
		t.Errorf("balance mutated to %d on failed debit", accounts.balances[userID])
	}
	if entries.count() != 0 {
		t.Errorf("entries = %d, want 0", entries.count())
	}
}

func TestDebitRejectsNonPositiveCost(t *testing.T) {
	svc := newTestService(newMockAccounts(), newMockEntries())
	if _, err := svc.Debit(context.Background(), uuid.New(), 0, "x", nil); err == nil {
		t.Fatal("expected error for zero cost")
	}
	if _, err := svc.Debit(context.Background(), uuid.New(), -5, "x", nil); err == nil {
		t.Fatal("expected error for negative cost")
	}
}

// Two concurrent debits of 60 against a balance of 100: exactly one wins.
func TestDebitNoOverdraftUnderConcurrency(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	accounts.balances[userID] = 100
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Debit(context.Background(), userID, 60, "task:training_slideshow", nil)
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case IsInsufficientBalance(err):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d insufficient, want 1/1", ok, insufficient)
	}
	if got := accounts.balances[userID]; got != 40 {
		t.Errorf("final balance = %d, want 40", got)
	}
	if entries.count() != 1 {
		t.Errorf("entries = %d, want 1", entries.count())
	}
}

func TestCreditProvisionsAccount(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	res, err := svc.Credit(context.Background(), userID, 500, "evt_1", "purchase:starter")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if res.AlreadyProcessed {
		t.Error("first delivery reported AlreadyProcessed")
	}
	if res.NewBalance != 500 {
		t.Errorf("new balance = %d, want 500", res.NewBalance)
	}
	if res.EntryID != models.CreditEntryID("evt_1") {
		t.Errorf("entry id not derived from event id")
	}
}

func TestCreditIdempotentSequential(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	if _, err := svc.Credit(context.Background(), userID, 500, "evt_1", "purchase:starter"); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	res, err := svc.Credit(context.Background(), userID, 500, "evt_1", "purchase:starter")
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !res.AlreadyProcessed {
		t.Error("duplicate delivery not reported as AlreadyProcessed")
	}
	if res.NewBalance != 500 {
		t.Errorf("balance = %d after duplicate, want 500", res.NewBalance)
	}
	if entries.count() != 1 {
		t.Errorf("entries = %d, want 1", entries.count())
	}
}

func TestCreditIdempotentConcurrent(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	const deliveries = 8
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Credit(context.Background(), userID, 500, "evt_race", "purchase:pro"); err != nil {
				t.Errorf("credit: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := accounts.balances[userID]; got != 500 {
		t.Errorf("balance = %d after %d deliveries, want 500", got, deliveries)
	}
	if entries.count() != 1 {
		t.Errorf("entries = %d, want 1", entries.count())
	}
}

func TestCreditsForDistinctEventsAccumulate(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	for _, evt := range []string{"evt_1", "evt_2", "evt_3"} {
		if _, err := svc.Credit(context.Background(), userID, 100, evt, "purchase:starter"); err != nil {
			t.Fatalf("credit %s: %v", evt, err)
		}
	}
	if got := accounts.balances[userID]; got != 300 {
		t.Errorf("balance = %d, want 300", got)
	}
	if entries.count() != 3 {
		t.Errorf("entries = %d, want 3", entries.count())
	}
}

// Conservation: balance == total credited - total debited after every
// operation in a mixed sequence.
func TestLedgerConservation(t *testing.T) {
	userID := uuid.New()
	accounts := newMockAccounts()
	entries := newMockEntries()
	svc := newTestService(accounts, entries)

	check := func(step string) {
		t.Helper()
		accounts.mu.Lock()
		defer accounts.mu.Unlock()
		want := accounts.credited[userID] - accounts.debited[userID]
		if got := accounts.balances[userID]; got != want {
			t.Fatalf("%s: balance %d != credited-debited %d", step, got, want)
		}
	}

	svc.Credit(context.Background(), userID, 200, "evt_a", "purchase:starter")
	check("after credit a")
	svc.Debit(context.Background(), userID, 50, "task:analyze", nil)
	check("after debit 50")
	svc.Credit(context.Background(), userID, 100, "evt_b", "purchase:starter")
	check("after credit b")
	svc.Credit(context.Background(), userID, 100, "evt_b", "purchase:starter") // duplicate
	check("after duplicate credit")
	svc.Debit(context.Background(), userID, 300, "task:training_slideshow", nil) // insufficient, no-op
	check("after failed debit")
	svc.Debit(context.Background(), userID, 250, "task:training_slideshow", nil)
	check("after debit 250")
}
