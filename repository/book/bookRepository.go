// repository/book/repo.go
package bookrepo

import (
	"context"
	"database/sql"
	"errors"

	"librarypos/model"
)

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	ByISBN(ctx context.Context, normalizedISBN string) (*model.Book, error)
	GetOrCreate(ctx context.Context, b *model.Book) (created bool, err error)

	ReserveCopy(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error)
	ReleaseCopy(ctx context.Context, tx *sql.Tx, bookID int64) error
	CountAvailable(ctx context.Context, bookID int64) (int64, error)
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const bookCols = `id, isbn, title, author, category, publisher, year_published, copies_total, copies_available`

func scanBook(row interface{ Scan(...any) error }) (*model.Book, error) {
	var b model.Book
	err := row.Scan(&b.ID, &b.ISBN, &b.Title, &b.Author, &b.Category,
		&b.Publisher, &b.YearPublished, &b.CopiesTotal, &b.CopiesAvailable)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *repo) Create(ctx context.Context, b *model.Book) error {
	const q = `
INSERT INTO books (isbn, title, author, category, publisher, year_published, copies_total, copies_available)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
RETURNING id`
	return r.db.QueryRowContext(ctx, q,
		b.ISBN, b.Title, b.Author, b.Category, b.Publisher, b.YearPublished, b.CopiesTotal,
	).Scan(&b.ID)
}

// Update rewrites the catalog fields and copies_total; copies_available is
// re-clamped in the same statement so it never exceeds the new total.
func (r *repo) Update(ctx context.Context, b *model.Book) error {
	const q = `
UPDATE books
SET title = $2, author = $3, category = $4, publisher = $5, year_published = $6,
    copies_total = $7,
    copies_available = LEAST(copies_available, $7)
WHERE id = $1
RETURNING copies_available`
	return r.db.QueryRowContext(ctx, q,
		b.ID, b.Title, b.Author, b.Category, b.Publisher, b.YearPublished, b.CopiesTotal,
	).Scan(&b.CopiesAvailable)
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) List(ctx context.Context, search string) ([]model.Book, error) {
	const q = `
SELECT ` + bookCols + `
FROM books
WHERE $1 = '' OR title ILIKE '%'||$1||'%' OR author ILIKE '%'||$1||'%' OR isbn ILIKE '%'||$1||'%'
ORDER BY title`
	rows, err := r.db.QueryContext(ctx, q, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (r *repo) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx,
		`SELECT `+bookCols+` FROM books WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

// ByISBN matches on the normalized form of the stored ISBN, so lookups
// succeed regardless of how the stored value was formatted.
func (r *repo) ByISBN(ctx context.Context, normalizedISBN string) (*model.Book, error) {
	const q = `
SELECT ` + bookCols + `
FROM books
WHERE upper(regexp_replace(isbn, '[^0-9A-Za-z]', '', 'g')) = $1`
	b, err := scanBook(r.db.QueryRowContext(ctx, q, normalizedISBN))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return b, err
}

func (r *repo) GetOrCreate(ctx context.Context, b *model.Book) (bool, error) {
	const q = `
INSERT INTO books (isbn, title, author, category, publisher, year_published, copies_total, copies_available)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7)
ON CONFLICT (isbn) DO NOTHING
RETURNING id`
	err := r.db.QueryRowContext(ctx, q,
		b.ISBN, b.Title, b.Author, b.Category, b.Publisher, b.YearPublished, b.CopiesTotal,
	).Scan(&b.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ReserveCopy decrements copies_available iff a copy is free. The guard in
// the WHERE clause makes the read-modify-write atomic per book row:
// concurrent reservers serialize on the row lock and the loser sees
// RowsAffected 0, never a negative count.
func (r *repo) ReserveCopy(ctx context.Context, tx *sql.Tx, bookID int64) (bool, error) {
	const q = `
UPDATE books
SET copies_available = copies_available - 1
WHERE id = $1
  AND copies_available > 0`
	res, err := tx.ExecContext(ctx, q, bookID)
	if err != nil {
		return false, err
	}
	aff, _ := res.RowsAffected()
	return aff > 0, nil
}

// ReleaseCopy increments copies_available, clamped at copies_total.
func (r *repo) ReleaseCopy(ctx context.Context, tx *sql.Tx, bookID int64) error {
	const q = `
UPDATE books
SET copies_available = LEAST(copies_available + 1, copies_total)
WHERE id = $1`
	_, err := tx.ExecContext(ctx, q, bookID)
	return err
}

func (r *repo) CountAvailable(ctx context.Context, bookID int64) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT copies_available FROM books WHERE id = $1`, bookID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}
