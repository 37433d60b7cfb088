// repository/transaction/repo.go
package transactionrepo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"librarypos/model"
)

// BorrowedItemRow is the joined shape the POS return screen works from.
type BorrowedItemRow struct {
	ItemID          int64     `json:"item_id"`
	TransactionID   int64     `json:"transaction_id"`
	TransactionCode string    `json:"transaction_code"`
	BookID          int64     `json:"book_id"`
	BookTitle       string    `json:"book_title"`
	ISBN            string    `json:"isbn"`
	BorrowedDate    time.Time `json:"borrowed_date"`
	DueDate         time.Time `json:"due_date"`
}

type Stats struct {
	TotalStudents        int64 `json:"total_students"`
	TotalBooks           int64 `json:"total_books"`
	TotalBorrowed        int64 `json:"total_borrowed"`
	TotalAvailable       int64 `json:"total_available"`
	PendingRegistrations int64 `json:"pending_registrations"`
	PendingTransactions  int64 `json:"pending_transactions"`
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

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const txnCols = `id, transaction_code, student_id, created_by, approved_by,
	borrowed_date, due_date, approved_at, return_date, approval_status, status`

func scanTxn(row interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	err := row.Scan(&t.ID, &t.TransactionCode, &t.StudentID, &t.CreatedBy, &t.ApprovedBy,
		&t.BorrowedDate, &t.DueDate, &t.ApprovedAt, &t.ReturnDate, &t.ApprovalStatus, &t.Status)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repo) Insert(ctx context.Context, tx *sql.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (transaction_code, student_id, created_by, borrowed_date, due_date, approval_status, status)
VALUES ($1,$2,$3,$4,$5,'pending','borrowed')
RETURNING id`
	return tx.QueryRowContext(ctx, q,
		t.TransactionCode, t.StudentID, t.CreatedBy, t.BorrowedDate, t.DueDate,
	).Scan(&t.ID)
}

func (r *repo) InsertItem(ctx context.Context, tx *sql.Tx, transactionID, bookID int64) (int64, error) {
	const q = `
INSERT INTO transaction_items (transaction_id, book_id, status)
VALUES ($1,$2,'borrowed')
RETURNING id`
	var id int64
	err := tx.QueryRowContext(ctx, q, transactionID, bookID).Scan(&id)
	return id, err
}

// GetForUpdate locks the transaction row so approve/reject/return decisions
// are serialized per transaction.
func (r *repo) GetForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*model.Transaction, error) {
	t, err := scanTxn(tx.QueryRowContext(ctx,
		`SELECT `+txnCols+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *repo) MarkApproved(ctx context.Context, tx *sql.Tx, id, approverID int64, at time.Time) error {
	const q = `
UPDATE transactions
SET approval_status = 'approved', approved_by = $2, approved_at = $3
WHERE id = $1 AND approval_status = 'pending'`
	return mustAffect(tx.ExecContext(ctx, q, id, approverID, at))
}

func (r *repo) MarkRejected(ctx context.Context, tx *sql.Tx, id, approverID int64, at time.Time) error {
	const q = `
UPDATE transactions
SET approval_status = 'rejected', approved_by = $2, approved_at = $3
WHERE id = $1 AND approval_status = 'pending'`
	return mustAffect(tx.ExecContext(ctx, q, id, approverID, at))
}

func mustAffect(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const itemCols = `id, transaction_id, book_id, status, return_date`

func (r *repo) Items(ctx context.Context, id int64) ([]model.TransactionItem, error) {
	const q = `SELECT ` + itemCols + ` FROM transaction_items WHERE transaction_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *repo) ItemsForUpdate(ctx context.Context, tx *sql.Tx, id int64) ([]model.TransactionItem, error) {
	const q = `SELECT ` + itemCols + ` FROM transaction_items WHERE transaction_id = $1 ORDER BY id FOR UPDATE`
	rows, err := tx.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]model.TransactionItem, error) {
	var out []model.TransactionItem
	for rows.Next() {
		var it model.TransactionItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.BookID, &it.Status, &it.ReturnDate); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *repo) MarkItemReturned(ctx context.Context, tx *sql.Tx, itemID int64, at time.Time) error {
	const q = `
UPDATE transaction_items
SET status = 'returned', return_date = $2
WHERE id = $1 AND status = 'borrowed'`
	return mustAffect(tx.ExecContext(ctx, q, itemID, at))
}

func (r *repo) MarkReturned(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error {
	const q = `
UPDATE transactions
SET status = 'returned', return_date = $2
WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, id, at)
	return err
}

func (r *repo) ListPending(ctx context.Context) ([]model.Transaction, error) {
	const q = `
SELECT ` + txnCols + `
FROM transactions
WHERE approval_status = 'pending'
ORDER BY borrowed_date DESC`
	return r.collect(ctx, q)
}

func (r *repo) ListOverdue(ctx context.Context, asOf time.Time) ([]model.Transaction, error) {
	const q = `
SELECT ` + txnCols + `
FROM transactions
WHERE approval_status = 'approved' AND status = 'borrowed' AND due_date < $1
ORDER BY due_date`
	return r.collect(ctx, q, asOf)
}

func (r *repo) HistoryByStudent(ctx context.Context, studentID int64, limit int) ([]model.Transaction, error) {
	const q = `
SELECT ` + txnCols + `
FROM transactions
WHERE student_id = $1 AND approval_status = 'approved'
ORDER BY borrowed_date DESC
LIMIT $2`
	return r.collect(ctx, q, studentID, limit)
}

func (r *repo) collect(ctx context.Context, q string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTxn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *repo) ListBorrowedByStudent(ctx context.Context, studentID int64) ([]BorrowedItemRow, error) {
	const q = `
SELECT
	ti.id               AS item_id,
	t.id                AS transaction_id,
	t.transaction_code  AS transaction_code,
	b.id                AS book_id,
	b.title             AS book_title,
	b.isbn              AS isbn,
	t.borrowed_date     AS borrowed_date,
	t.due_date          AS due_date
FROM transaction_items ti
JOIN transactions t ON t.id = ti.transaction_id
JOIN books b        ON b.id = ti.book_id
WHERE t.student_id = $1
  AND t.approval_status = 'approved'
  AND ti.status = 'borrowed'
ORDER BY t.borrowed_date DESC, ti.id`
	rows, err := r.db.QueryContext(ctx, q, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BorrowedItemRow
	for rows.Next() {
		var row BorrowedItemRow
		if err := rows.Scan(&row.ItemID, &row.TransactionID, &row.TransactionCode,
			&row.BookID, &row.BookTitle, &row.ISBN, &row.BorrowedDate, &row.DueDate); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *repo) DashboardStats(ctx context.Context) (*Stats, error) {
	const q = `
SELECT
	(SELECT COUNT(*) FROM students),
	(SELECT COUNT(*) FROM books),
	(SELECT COUNT(*) FROM transaction_items ti
		JOIN transactions t ON t.id = ti.transaction_id
		WHERE ti.status = 'borrowed' AND t.approval_status = 'approved'),
	(SELECT COUNT(*) FROM books WHERE copies_available > 0),
	(SELECT COUNT(*) FROM students WHERE user_id IS NOT NULL AND NOT is_approved),
	(SELECT COUNT(*) FROM transactions WHERE approval_status = 'pending')`
	var s Stats
	err := r.db.QueryRowContext(ctx, q).Scan(
		&s.TotalStudents, &s.TotalBooks, &s.TotalBorrowed,
		&s.TotalAvailable, &s.PendingRegistrations, &s.PendingTransactions)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
