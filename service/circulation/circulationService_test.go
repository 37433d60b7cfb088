package circulation

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"librarypos/model"
	"librarypos/service/inventory"
)

// memStore backs both the Repo and the Ledger so approval and return can
// be checked end to end. The runner snapshots it before each unit of work
// and restores it on error, mirroring a database rollback.
type memStore struct {
	books  map[int64]*model.Book
	txns   map[int64]*model.Transaction
	items  map[int64]*model.TransactionItem
	nextID int64

	insertErrs []error // consumed by Insert, for collision tests
}

func newMemStore(books ...model.Book) *memStore {
	s := &memStore{
		books:  map[int64]*model.Book{},
		txns:   map[int64]*model.Transaction{},
		items:  map[int64]*model.TransactionItem{},
		nextID: 1,
	}
	for i := range books {
		b := books[i]
		s.books[b.ID] = &b
	}
	return s
}

func (s *memStore) id() int64 { s.nextID++; return s.nextID - 1 }

func (s *memStore) snapshot() *memStore {
	cp := newMemStore()
	cp.nextID = s.nextID
	for k, v := range s.books {
		b := *v
		cp.books[k] = &b
	}
	for k, v := range s.txns {
		t := *v
		cp.txns[k] = &t
	}
	for k, v := range s.items {
		it := *v
		cp.items[k] = &it
	}
	return cp
}

func (s *memStore) restore(from *memStore) {
	s.books, s.txns, s.items, s.nextID = from.books, from.txns, from.items, from.nextID
}

// memRunner mimics RunTx: state mutations inside a failed unit of work are
// rolled back.
type memRunner struct{ s *memStore }

func (r *memRunner) RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	snap := r.s.snapshot()
	if err := fn(nil); err != nil {
		r.s.restore(snap)
		return err
	}
	return nil
}

// Repo implementation

func (s *memStore) Insert(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	if len(s.insertErrs) > 0 {
		err := s.insertErrs[0]
		s.insertErrs = s.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *t
	cp.ID = s.id()
	s.txns[cp.ID] = &cp
	t.ID = cp.ID
	return nil
}

func (s *memStore) InsertItem(ctx context.Context, tx *sql.Tx, transactionID, bookID int64) (int64, error) {
	it := &model.TransactionItem{
		ID: s.id(), TransactionID: transactionID, BookID: bookID, Status: model.LoanBorrowed,
	}
	s.items[it.ID] = it
	return it.ID, nil
}

func (s *memStore) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Transaction, error) {
	t, ok := s.txns[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) MarkApproved(ctx context.Context, tx *sql.Tx, id, approverID int64, at time.Time) error {
	t := s.txns[id]
	t.ApprovalStatus = model.ApprovalApproved
	t.ApprovedBy = &approverID
	t.ApprovedAt = &at
	return nil
}

func (s *memStore) MarkRejected(ctx context.Context, tx *sql.Tx, id, approverID int64, at time.Time) error {
	t := s.txns[id]
	t.ApprovalStatus = model.ApprovalRejected
	t.ApprovedBy = &approverID
	t.ApprovedAt = &at
	return nil
}

func (s *memStore) Items(ctx context.Context, id int64) ([]model.TransactionItem, error) {
	var out []model.TransactionItem
	for i := int64(0); i < s.nextID; i++ {
		if it, ok := s.items[i]; ok && it.TransactionID == id {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *memStore) ItemsForUpdate(ctx context.Context, tx *sql.Tx, id int64) ([]model.TransactionItem, error) {
	return s.Items(ctx, id)
}

func (s *memStore) MarkItemReturned(ctx context.Context, tx *sql.Tx, itemID int64, at time.Time) error {
	it := s.items[itemID]
	it.Status = model.LoanReturned
	it.ReturnDate = &at
	return nil
}

func (s *memStore) MarkReturned(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error {
	t := s.txns[id]
	t.Status = model.LoanReturned
	t.ReturnDate = &at
	return nil
}

func (s *memStore) ListPending(ctx context.Context) ([]model.Transaction, error) {
	var out []model.Transaction
	for i := int64(0); i < s.nextID; i++ {
		if t, ok := s.txns[i]; ok && t.ApprovalStatus == model.ApprovalPending {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) ListOverdue(ctx context.Context, asOf time.Time) ([]model.Transaction, error) {
	var out []model.Transaction
	for _, t := range s.txns {
		if t.ApprovalStatus == model.ApprovalApproved && t.Status == model.LoanBorrowed && t.DueDate.Before(asOf) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *memStore) ListBorrowedByStudent(ctx context.Context, studentID int64) ([]BorrowedItemRow, error) {
	return nil, nil
}

func (s *memStore) HistoryByStudent(ctx context.Context, studentID int64, limit int) ([]model.Transaction, error) {
	return nil, nil
}

func (s *memStore) DashboardStats(ctx context.Context) (*Stats, error) { return &Stats{}, nil }

// inventory.Repo implementation

func (s *memStore) ReserveCopy(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	b, ok := s.books[bookID]
	if !ok || b.CopiesAvailable == 0 {
		return false, nil
	}
	b.CopiesAvailable--
	return true, nil
}

func (s *memStore) ReleaseCopy(ctx context.Context, tx *sql.Tx, bookID int64) error {
	b := s.books[bookID]
	if b.CopiesAvailable < b.CopiesTotal {
		b.CopiesAvailable++
	}
	return nil
}

func (s *memStore) CountAvailable(ctx context.Context, bookID int64) (int64, error) {
	if b, ok := s.books[bookID]; ok {
		return b.CopiesAvailable, nil
	}
	return 0, nil
}

func newFixture(books ...model.Book) (*memStore, Service) {
	store := newMemStore(books...)
	svc := New(&memRunner{s: store}, store, inventory.New(store), 7)
	return store, svc
}

// --- tests ---

func TestCreate_Validation(t *testing.T) {
	_, svc := newFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, 2, nil)
	require.Equal(t, ErrEmptyItems, Code(err))

	_, err = svc.Create(ctx, 1, 2, []int64{5, 6, 5})
	require.Equal(t, ErrDuplicateItem, Code(err))
}

func TestCreate_PendingWithDueDate(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 2, CopiesAvailable: 2})
	ctx := context.Background()

	before := time.Now()
	txn, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)
	require.Equal(t, model.ApprovalPending, txn.ApprovalStatus)
	require.Equal(t, model.LoanBorrowed, txn.Status)
	require.Len(t, txn.TransactionCode, 10)
	require.WithinDuration(t, before.AddDate(0, 0, 7), txn.DueDate, 5*time.Second)

	// no ledger effect before approval
	require.Equal(t, int64(2), store.books[1].CopiesAvailable)

	items, err := svc.Items(ctx, txn.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, int64(1), items[0].BookID)
}

func codeCollisionErr() error {
	return &pgconn.PgError{
		Code:           pgerrcode.UniqueViolation,
		ConstraintName: "transactions_transaction_code_key",
	}
}

func TestCreate_CodeCollisionRetry(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 1, CopiesAvailable: 1})
	store.insertErrs = []error{codeCollisionErr(), codeCollisionErr()}

	txn, err := svc.Create(context.Background(), 100, 10, []int64{1})
	require.NoError(t, err)
	require.NotEmpty(t, txn.TransactionCode)
}

func TestCreate_CodeCollisionExhausted(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 1, CopiesAvailable: 1})
	for i := 0; i < 10; i++ {
		store.insertErrs = append(store.insertErrs, codeCollisionErr())
	}

	_, err := svc.Create(context.Background(), 100, 10, []int64{1})
	require.Error(t, err)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
}

func TestApprove_ReservesCopies(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 2, CopiesAvailable: 2})
	ctx := context.Background()

	txn, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)

	require.NoError(t, svc.Approve(ctx, txn.ID, 99))
	require.Equal(t, int64(1), store.books[1].CopiesAvailable)
	require.Equal(t, model.ApprovalApproved, store.txns[txn.ID].ApprovalStatus)
	require.NotNil(t, store.txns[txn.ID].ApprovedBy)

	// re-approval surfaces the double submit instead of double reserving
	err = svc.Approve(ctx, txn.ID, 99)
	require.Equal(t, ErrNotPending, Code(err))
	require.Equal(t, int64(1), store.books[1].CopiesAvailable)
}

func TestApprove_InsufficientLeavesPending(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 1, CopiesAvailable: 1})
	ctx := context.Background()

	first, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)
	second, err := svc.Create(ctx, 200, 10, []int64{1})
	require.NoError(t, err)

	require.NoError(t, svc.Approve(ctx, first.ID, 99))
	require.Equal(t, int64(0), store.books[1].CopiesAvailable)

	err = svc.Approve(ctx, second.ID, 99)
	var ice *inventory.InsufficientCopiesError
	require.True(t, errors.As(err, &ice))
	require.Equal(t, int64(1), ice.BookID)

	// stays pending so the admin can retry or reject explicitly
	require.Equal(t, model.ApprovalPending, store.txns[second.ID].ApprovalStatus)
	require.Equal(t, int64(0), store.books[1].CopiesAvailable)
}

func TestApprove_BatchAllOrNothing(t *testing.T) {
	store, svc := newFixture(
		model.Book{ID: 1, CopiesTotal: 3, CopiesAvailable: 3},
		model.Book{ID: 2, CopiesTotal: 1, CopiesAvailable: 0},
	)
	ctx := context.Background()

	txn, err := svc.Create(ctx, 100, 10, []int64{1, 2})
	require.NoError(t, err)

	err = svc.Approve(ctx, txn.ID, 99)
	var ice *inventory.InsufficientCopiesError
	require.True(t, errors.As(err, &ice))
	require.Equal(t, int64(2), ice.BookID)

	// book 1's reservation was rolled back with the unit of work
	require.Equal(t, int64(3), store.books[1].CopiesAvailable)
	require.Equal(t, model.ApprovalPending, store.txns[txn.ID].ApprovalStatus)
}

func TestReject_NoLedgerEffect(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 1, CopiesAvailable: 1})
	ctx := context.Background()

	txn, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)

	require.NoError(t, svc.Reject(ctx, txn.ID, 99))
	require.Equal(t, model.ApprovalRejected, store.txns[txn.ID].ApprovalStatus)
	require.Equal(t, int64(1), store.books[1].CopiesAvailable)

	// terminal state
	require.Equal(t, ErrNotPending, Code(svc.Approve(ctx, txn.ID, 99)))
	require.Equal(t, ErrNotPending, Code(svc.Reject(ctx, txn.ID, 99)))
}

func TestReturnItems_FullScenario(t *testing.T) {
	store, svc := newFixture(model.Book{ID: 1, ISBN: "978013", CopiesTotal: 2, CopiesAvailable: 2})
	ctx := context.Background()

	txn, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, txn.ID, 99))
	require.Equal(t, int64(1), store.books[1].CopiesAvailable)

	items, _ := svc.Items(ctx, txn.ID)
	res, err := svc.ReturnItems(ctx, txn.ID, []int64{items[0].ID})
	require.NoError(t, err)
	require.Len(t, res.Returned, 1)
	require.True(t, res.Completed)

	require.Equal(t, int64(2), store.books[1].CopiesAvailable)
	require.Equal(t, model.LoanReturned, store.txns[txn.ID].Status)
	require.NotNil(t, store.txns[txn.ID].ReturnDate)
}

func TestReturnItems_PartialAndIdempotent(t *testing.T) {
	store, svc := newFixture(
		model.Book{ID: 1, CopiesTotal: 1, CopiesAvailable: 1},
		model.Book{ID: 2, CopiesTotal: 1, CopiesAvailable: 1},
	)
	ctx := context.Background()

	txn, err := svc.Create(ctx, 100, 10, []int64{1, 2})
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, txn.ID, 99))

	items, _ := svc.Items(ctx, txn.ID)

	res, err := svc.ReturnItems(ctx, txn.ID, []int64{items[0].ID})
	require.NoError(t, err)
	require.Len(t, res.Returned, 1)
	require.False(t, res.Completed)
	require.Equal(t, model.LoanBorrowed, store.txns[txn.ID].Status)

	// re-scanning the same item reports it, with no double release
	res, err = svc.ReturnItems(ctx, txn.ID, []int64{items[0].ID, items[1].ID})
	require.NoError(t, err)
	require.Len(t, res.Returned, 1)
	require.Equal(t, items[1].ID, res.Returned[0].ID)
	require.Len(t, res.Skipped, 1)
	require.Equal(t, "already_returned", res.Skipped[0].Reason)
	require.True(t, res.Completed)

	require.Equal(t, int64(1), store.books[1].CopiesAvailable)
	require.Equal(t, int64(1), store.books[2].CopiesAvailable)
}

func TestReturnItems_Guards(t *testing.T) {
	_, svc := newFixture(model.Book{ID: 1, CopiesTotal: 1, CopiesAvailable: 1})
	ctx := context.Background()

	_, err := svc.ReturnItems(ctx, 12345, []int64{1})
	require.Equal(t, ErrNotFound, Code(err))

	txn, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)

	// pending transactions have nothing out to return
	_, err = svc.ReturnItems(ctx, txn.ID, []int64{1})
	require.Equal(t, ErrNotApproved, Code(err))

	require.NoError(t, svc.Approve(ctx, txn.ID, 99))

	res, err := svc.ReturnItems(ctx, txn.ID, []int64{424242})
	require.NoError(t, err)
	require.Empty(t, res.Returned)
	require.Len(t, res.Skipped, 1)
	require.Equal(t, "not_in_transaction", res.Skipped[0].Reason)
	require.False(t, res.Completed)
}

func TestConservation(t *testing.T) {
	// copies_total - copies_available == borrowed items of approved
	// transactions, across the whole flow
	store, svc := newFixture(model.Book{ID: 1, CopiesTotal: 3, CopiesAvailable: 3})
	ctx := context.Background()

	check := func() {
		t.Helper()
		borrowed := int64(0)
		for _, it := range store.items {
			txn := store.txns[it.TransactionID]
			if it.Status == model.LoanBorrowed && txn.ApprovalStatus == model.ApprovalApproved {
				borrowed++
			}
		}
		b := store.books[1]
		require.Equal(t, b.CopiesTotal-b.CopiesAvailable, borrowed)
		require.GreaterOrEqual(t, b.CopiesAvailable, int64(0))
		require.LessOrEqual(t, b.CopiesAvailable, b.CopiesTotal)
	}

	t1, err := svc.Create(ctx, 100, 10, []int64{1})
	require.NoError(t, err)
	check()

	require.NoError(t, svc.Approve(ctx, t1.ID, 99))
	check()

	t2, err := svc.Create(ctx, 200, 10, []int64{1})
	require.NoError(t, err)
	require.NoError(t, svc.Approve(ctx, t2.ID, 99))
	check()

	items, _ := svc.Items(ctx, t1.ID)
	_, err = svc.ReturnItems(ctx, t1.ID, []int64{items[0].ID})
	require.NoError(t, err)
	check()
}
