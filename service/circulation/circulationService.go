// Package circulation drives the borrow lifecycle: a confirmed cart
// becomes a pending transaction, an admin approves or rejects it, and
// returns release copies back to the inventory ledger. Every state
// transition runs inside one database transaction together with its
// ledger effect.
package circulation

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"librarypos/model"
	transactionrepo "librarypos/repository/transaction"
)

// errors used by controllers

type ErrCode string

const (
	ErrEmptyItems    ErrCode = "EMPTY_ITEMS"
	ErrDuplicateItem ErrCode = "DUPLICATE_ITEM"
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrNotPending    ErrCode = "NOT_PENDING"
	ErrNotApproved   ErrCode = "NOT_APPROVED"
)

type codedError struct{ code ErrCode }

func (e codedError) Error() string { return string(e.code) }
func (e codedError) Code() ErrCode { return e.code }
func makeErr(c ErrCode) error      { return codedError{code: c} }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// dto

type BorrowedItemRow = transactionrepo.BorrowedItemRow
type Stats = transactionrepo.Stats

type SkippedItem struct {
	ItemID int64  `json:"item_id"`
	Reason string `json:"reason"` // "not_in_transaction" | "already_returned"
}

type ReturnResult struct {
	Returned  []model.TransactionItem `json:"returned"`
	Skipped   []SkippedItem           `json:"skipped,omitempty"`
	Completed bool                    `json:"completed"`
}

// Runner executes fn inside one database transaction.
type Runner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Ledger is the slice of the inventory contract this service needs.
type Ledger interface {
	Release(ctx context.Context, tx *sql.Tx, bookID int64) error
	ReserveBatch(ctx context.Context, tx *sql.Tx, bookIDs []int64) error
}

type Repo interface {
	Insert(ctx context.Context, tx *sql.Tx, t *model.Transaction) error
	InsertItem(ctx context.Context, tx *sql.Tx, transactionID, bookID int64) (int64, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Transaction, error)
	MarkApproved(ctx context.Context, tx *sql.Tx, id, approverID int64, at time.Time) error
	MarkRejected(ctx context.Context, tx *sql.Tx, id, approverID int64, at time.Time) error
	Items(ctx context.Context, id int64) ([]model.TransactionItem, error)
	ItemsForUpdate(ctx context.Context, tx *sql.Tx, id int64) ([]model.TransactionItem, error)
	MarkItemReturned(ctx context.Context, tx *sql.Tx, itemID int64, at time.Time) error
	MarkReturned(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error
	ListPending(ctx context.Context) ([]model.Transaction, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]model.Transaction, error)
	ListBorrowedByStudent(ctx context.Context, studentID int64) ([]BorrowedItemRow, error)
	HistoryByStudent(ctx context.Context, studentID int64, limit int) ([]model.Transaction, error)
	DashboardStats(ctx context.Context) (*Stats, error)
}

type Service interface {
	// Create materializes a confirmed cart as a pending transaction.
	// No ledger effect until approval.
	Create(ctx context.Context, studentID, creatorID int64, bookIDs []int64) (*model.Transaction, error)

	// Approve reserves copies for every item and records the approval in
	// one commit. On insufficient copies the transaction stays pending.
	Approve(ctx context.Context, transactionID, approverID int64) error

	// Reject closes a pending transaction with no ledger effect.
	Reject(ctx context.Context, transactionID, approverID int64) error

	// ReturnItems returns the named items, releasing one copy each.
	// Invalid items are reported in the result, not fatal.
	ReturnItems(ctx context.Context, transactionID int64, itemIDs []int64) (*ReturnResult, error)

	Items(ctx context.Context, transactionID int64) ([]model.TransactionItem, error)
	ListPending(ctx context.Context) ([]model.Transaction, error)
	ListOverdue(ctx context.Context) ([]model.Transaction, error)
	ListBorrowedByStudent(ctx context.Context, studentID int64) ([]BorrowedItemRow, error)
	HistoryByStudent(ctx context.Context, studentID int64) ([]model.Transaction, error)
	Stats(ctx context.Context) (*Stats, error)
}

const (
	codeLen          = 10
	codeCharset      = "ABCDEFGHJKMNPQRSTVWXYZ0123456789"
	maxCodeAttempts  = 5
	historyPageLimit = 10
)

type service struct {
	run      Runner
	r        Repo
	ledger   Ledger
	loanDays int
	now      func() time.Time
}

func New(run Runner, r Repo, l Ledger, loanDays int) Service {
	return &service{run: run, r: r, ledger: l, loanDays: loanDays, now: time.Now}
}

func newTransactionCode() string {
	buf := make([]byte, codeLen)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = codeCharset[int(b)%len(codeCharset)]
	}
	return string(buf)
}

func isCodeCollision(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return strings.Contains(strings.ToLower(pgErr.ConstraintName), "transaction_code")
	}
	return false
}

func (s *service) Create(ctx context.Context, studentID, creatorID int64, bookIDs []int64) (*model.Transaction, error) {
	if len(bookIDs) == 0 {
		return nil, makeErr(ErrEmptyItems)
	}
	seen := make(map[int64]struct{}, len(bookIDs))
	for _, id := range bookIDs {
		if _, dup := seen[id]; dup {
			return nil, makeErr(ErrDuplicateItem)
		}
		seen[id] = struct{}{}
	}

	now := s.now()
	t := &model.Transaction{
		StudentID:      studentID,
		CreatedBy:      creatorID,
		BorrowedDate:   now,
		DueDate:        now.AddDate(0, 0, s.loanDays),
		ApprovalStatus: model.ApprovalPending,
		Status:         model.LoanBorrowed,
	}

	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		t.TransactionCode = newTransactionCode()
		err = s.run.RunTx(ctx, func(tx *sql.Tx) error {
			if err := s.r.Insert(ctx, tx, t); err != nil {
				return err
			}
			for _, bookID := range bookIDs {
				if _, err := s.r.InsertItem(ctx, tx, t.ID, bookID); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			return t, nil
		}
		if !isCodeCollision(err) {
			return nil, err
		}
	}
	return nil, err
}

func (s *service) Approve(ctx context.Context, transactionID, approverID int64) error {
	return s.run.RunTx(ctx, func(tx *sql.Tx) error {
		t, err := s.r.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t == nil {
			return makeErr(ErrNotFound)
		}
		if t.ApprovalStatus != model.ApprovalPending {
			return makeErr(ErrNotPending)
		}

		items, err := s.r.ItemsForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		bookIDs := make([]int64, len(items))
		for i, it := range items {
			bookIDs[i] = it.BookID
		}

		// Reserve before recording the approval. If any book is out of
		// copies the whole transaction aborts and the request stays
		// pending for the admin to retry or reject.
		if err := s.ledger.ReserveBatch(ctx, tx, bookIDs); err != nil {
			return err
		}
		return s.r.MarkApproved(ctx, tx, transactionID, approverID, s.now())
	})
}

func (s *service) Reject(ctx context.Context, transactionID, approverID int64) error {
	return s.run.RunTx(ctx, func(tx *sql.Tx) error {
		t, err := s.r.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t == nil {
			return makeErr(ErrNotFound)
		}
		if t.ApprovalStatus != model.ApprovalPending {
			return makeErr(ErrNotPending)
		}
		return s.r.MarkRejected(ctx, tx, transactionID, approverID, s.now())
	})
}

func (s *service) ReturnItems(ctx context.Context, transactionID int64, itemIDs []int64) (*ReturnResult, error) {
	res := &ReturnResult{}
	err := s.run.RunTx(ctx, func(tx *sql.Tx) error {
		t, err := s.r.GetForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if t == nil {
			return makeErr(ErrNotFound)
		}
		if t.ApprovalStatus != model.ApprovalApproved || t.Status != model.LoanBorrowed {
			return makeErr(ErrNotApproved)
		}

		items, err := s.r.ItemsForUpdate(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		byID := make(map[int64]*model.TransactionItem, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}

		now := s.now()
		requested := make(map[int64]struct{}, len(itemIDs))
		for _, id := range itemIDs {
			if _, dup := requested[id]; dup {
				continue
			}
			requested[id] = struct{}{}

			it, ok := byID[id]
			if !ok {
				res.Skipped = append(res.Skipped, SkippedItem{ItemID: id, Reason: "not_in_transaction"})
				continue
			}
			if it.Status != model.LoanBorrowed {
				res.Skipped = append(res.Skipped, SkippedItem{ItemID: id, Reason: "already_returned"})
				continue
			}

			if err := s.r.MarkItemReturned(ctx, tx, id, now); err != nil {
				return err
			}
			if err := s.ledger.Release(ctx, tx, it.BookID); err != nil {
				return err
			}
			it.Status = model.LoanReturned
			it.ReturnDate = &now
			res.Returned = append(res.Returned, *it)
		}

		stillBorrowed := false
		for i := range items {
			if items[i].Status == model.LoanBorrowed {
				stillBorrowed = true
				break
			}
		}
		if !stillBorrowed && len(res.Returned) > 0 {
			if err := s.r.MarkReturned(ctx, tx, transactionID, now); err != nil {
				return err
			}
			res.Completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Items(ctx context.Context, transactionID int64) ([]model.TransactionItem, error) {
	return s.r.Items(ctx, transactionID)
}

func (s *service) ListPending(ctx context.Context) ([]model.Transaction, error) {
	return s.r.ListPending(ctx)
}

func (s *service) ListOverdue(ctx context.Context) ([]model.Transaction, error) {
	return s.r.ListOverdue(ctx, s.now())
}

func (s *service) ListBorrowedByStudent(ctx context.Context, studentID int64) ([]BorrowedItemRow, error) {
	return s.r.ListBorrowedByStudent(ctx, studentID)
}

func (s *service) HistoryByStudent(ctx context.Context, studentID int64) ([]model.Transaction, error) {
	return s.r.HistoryByStudent(ctx, studentID, historyPageLimit)
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	return s.r.DashboardStats(ctx)
}
