// repository/student/repo.go
package studentrepo

import (
	"context"
	"database/sql"
	"errors"

	"librarypos/model"
)

type Repo interface {
	Create(ctx context.Context, s *model.Student) error
	Update(ctx context.Context, s *model.Student) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]model.Student, error)
	ByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	ByUserID(ctx context.Context, userID int64) (*model.Student, error)
	Detail(ctx context.Context, id int64) (*model.Student, error)
	GetOrCreate(ctx context.Context, s *model.Student) (created bool, err error)

	BindUser(ctx context.Context, tx *sql.Tx, id, userID int64) error
	ListPendingApproval(ctx context.Context) ([]model.Student, error)
	SetApproved(ctx context.Context, tx *sql.Tx, id int64, approved bool) error
	ClearUser(ctx context.Context, tx *sql.Tx, id int64) error
}

type repo struct{ db *sql.DB }

func New(db *sql.DB) Repo { return &repo{db} }

const studentCols = `id, student_id, first_name, middle_name, last_name, course, year, section, user_id, is_approved, created_at`

func scanStudent(row interface{ Scan(...any) error }) (*model.Student, error) {
	var s model.Student
	err := row.Scan(&s.ID, &s.StudentID, &s.FirstName, &s.MiddleName, &s.LastName,
		&s.Course, &s.Year, &s.Section, &s.UserID, &s.IsApproved, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) Create(ctx context.Context, s *model.Student) error {
	const q = `
INSERT INTO students (student_id, first_name, middle_name, last_name, course, year, section)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, q,
		s.StudentID, s.FirstName, s.MiddleName, s.LastName, s.Course, s.Year, s.Section,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *repo) Update(ctx context.Context, s *model.Student) error {
	const q = `
UPDATE students
SET first_name = $2, middle_name = $3, last_name = $4, course = $5, year = $6, section = $7
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q,
		s.ID, s.FirstName, s.MiddleName, s.LastName, s.Course, s.Year, s.Section)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) List(ctx context.Context, search string) ([]model.Student, error) {
	const q = `
SELECT ` + studentCols + `
FROM students
WHERE $1 = ''
   OR student_id ILIKE '%'||$1||'%'
   OR first_name ILIKE '%'||$1||'%'
   OR last_name ILIKE '%'||$1||'%'
ORDER BY last_name, first_name`
	rows, err := r.db.QueryContext(ctx, q, search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *repo) ByStudentID(ctx context.Context, studentID string) (*model.Student, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students WHERE student_id = $1`, studentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *repo) ByUserID(ctx context.Context, userID int64) (*model.Student, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *repo) Detail(ctx context.Context, id int64) (*model.Student, error) {
	s, err := scanStudent(r.db.QueryRowContext(ctx,
		`SELECT `+studentCols+` FROM students WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return s, err
}

func (r *repo) GetOrCreate(ctx context.Context, s *model.Student) (bool, error) {
	const q = `
INSERT INTO students (student_id, first_name, middle_name, last_name, course, year, section)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (student_id) DO NOTHING
RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, q,
		s.StudentID, s.FirstName, s.MiddleName, s.LastName, s.Course, s.Year, s.Section,
	).Scan(&s.ID, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repo) BindUser(ctx context.Context, tx *sql.Tx, id, userID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE students SET user_id = $2 WHERE id = $1`, id, userID)
	return err
}

func (r *repo) ListPendingApproval(ctx context.Context) ([]model.Student, error) {
	const q = `
SELECT ` + studentCols + `
FROM students
WHERE user_id IS NOT NULL AND NOT is_approved
ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *repo) SetApproved(ctx context.Context, tx *sql.Tx, id int64, approved bool) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE students SET is_approved = $2 WHERE id = $1`, id, approved)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *repo) ClearUser(ctx context.Context, tx *sql.Tx, id int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE students SET user_id = NULL WHERE id = $1`, id)
	return err
}
