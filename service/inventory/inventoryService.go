// Package inventory is the authoritative counter of available copies.
// Reserve and Release run inside the caller's database transaction; the
// guarded UPDATE in the repository is what makes them atomic per book.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
)

// InsufficientCopiesError names the book that could not be reserved so an
// admin can act on it.
type InsufficientCopiesError struct {
	BookID int64
}

func (e *InsufficientCopiesError) Error() string {
	return fmt.Sprintf("no copies available for book %d", e.BookID)
}

type Repo interface {
	ReserveCopy(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	ReleaseCopy(ctx context.Context, tx *sql.Tx, bookID int64) error
	CountAvailable(ctx context.Context, bookID int64) (int64, error)
}

type Ledger interface {
	// Reserve takes one copy of the book or fails with
	// *InsufficientCopiesError, without mutation.
	Reserve(ctx context.Context, tx *sql.Tx, bookID int64) error

	// Release puts one copy back, clamped at copies_total.
	Release(ctx context.Context, tx *sql.Tx, bookID int64) error

	// ReserveBatch reserves one copy per book in order. On the first
	// failure it returns *InsufficientCopiesError for that book; the
	// caller's rollback undoes the earlier reservations, so the batch is
	// all-or-nothing as long as every call shares one transaction.
	ReserveBatch(ctx context.Context, tx *sql.Tx, bookIDs []int64) error

	// IsAvailable is a display hint only; Reserve is the authoritative
	// check.
	IsAvailable(ctx context.Context, bookID int64) bool
}

type ledger struct{ r Repo }

func New(r Repo) Ledger { return &ledger{r: r} }

func (l *ledger) Reserve(ctx context.Context, tx *sql.Tx, bookID int64) error {
	ok, err := l.r.ReserveCopy(ctx, tx, bookID)
	if err != nil {
		return err
	}
	if !ok {
		return &InsufficientCopiesError{BookID: bookID}
	}
	return nil
}

func (l *ledger) Release(ctx context.Context, tx *sql.Tx, bookID int64) error {
	return l.r.ReleaseCopy(ctx, tx, bookID)
}

func (l *ledger) ReserveBatch(ctx context.Context, tx *sql.Tx, bookIDs []int64) error {
	for _, id := range bookIDs {
		if err := l.Reserve(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

func (l *ledger) IsAvailable(ctx context.Context, bookID int64) bool {
	n, err := l.r.CountAvailable(ctx, bookID)
	if err != nil {
		return false
	}
	return n > 0
}
