package studentsvc

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"librarypos/model"
)

type ErrCode string

const (
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrNotApproved   ErrCode = "NOT_APPROVED"
	ErrNotRegistered ErrCode = "NOT_REGISTERED"
	ErrBadInput      ErrCode = "BAD_INPUT"
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

type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type Runner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Repo interface {
	Create(ctx context.Context, s *model.Student) error
	Update(ctx context.Context, s *model.Student) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]model.Student, error)
	ByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	ByUserID(ctx context.Context, userID int64) (*model.Student, error)
	Detail(ctx context.Context, id int64) (*model.Student, error)
	GetOrCreate(ctx context.Context, s *model.Student) (created bool, err error)
	ListPendingApproval(ctx context.Context) ([]model.Student, error)
	SetApproved(ctx context.Context, tx *sql.Tx, id int64, approved bool) error
	ClearUser(ctx context.Context, tx *sql.Tx, id int64) error
}

// Users is the slice of the auth repository needed to activate or discard
// the account tied to a registration.
type Users interface {
	SetActive(ctx context.Context, tx *sql.Tx, id int64, active bool) error
	Delete(ctx context.Context, tx *sql.Tx, id int64) error
}

type Service interface {
	// LookupApproved resolves a student by external id for the POS flow;
	// unapproved students are not POS-eligible.
	LookupApproved(ctx context.Context, studentID string) (*model.Student, error)

	// Profile resolves the student row behind a logged-in student account.
	Profile(ctx context.Context, userID int64) (*model.Student, error)

	Create(ctx context.Context, req model.StudentReq) (*model.Student, error)
	Update(ctx context.Context, id int64, req model.StudentReq) (*model.Student, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]model.Student, error)
	Detail(ctx context.Context, id int64) (*model.Student, error)

	ListPendingApproval(ctx context.Context) ([]model.Student, error)
	ApproveRegistration(ctx context.Context, id int64) error
	RejectRegistration(ctx context.Context, id int64) error

	ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error)
}

type service struct {
	run Runner
	r   Repo
	u   Users
}

func New(run Runner, r Repo, u Users) Service { return &service{run: run, r: r, u: u} }

func (s *service) LookupApproved(ctx context.Context, studentID string) (*model.Student, error) {
	st, err := s.r.ByStudentID(ctx, strings.TrimSpace(studentID))
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, makeErr(ErrNotFound)
	}
	if !st.IsApproved {
		return nil, makeErr(ErrNotApproved)
	}
	return st, nil
}

func (s *service) Profile(ctx context.Context, userID int64) (*model.Student, error) {
	st, err := s.r.ByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, makeErr(ErrNotFound)
	}
	return st, nil
}

func (s *service) Create(ctx context.Context, req model.StudentReq) (*model.Student, error) {
	st := &model.Student{
		StudentID:  strings.TrimSpace(req.StudentID),
		FirstName:  req.FirstName,
		MiddleName: req.MiddleName,
		LastName:   req.LastName,
		Course:     req.Course,
		Year:       req.Year,
		Section:    req.Section,
	}
	if st.StudentID == "" {
		return nil, makeErr(ErrBadInput)
	}
	if err := s.r.Create(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) Update(ctx context.Context, id int64, req model.StudentReq) (*model.Student, error) {
	st, err := s.r.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, makeErr(ErrNotFound)
	}
	st.FirstName = req.FirstName
	st.MiddleName = req.MiddleName
	st.LastName = req.LastName
	st.Course = req.Course
	st.Year = req.Year
	st.Section = req.Section
	if err := s.r.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.r.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return makeErr(ErrNotFound)
	}
	return err
}

func (s *service) List(ctx context.Context, search string) ([]model.Student, error) {
	return s.r.List(ctx, strings.TrimSpace(search))
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Student, error) {
	st, err := s.r.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, makeErr(ErrNotFound)
	}
	return st, nil
}

func (s *service) ListPendingApproval(ctx context.Context) ([]model.Student, error) {
	return s.r.ListPendingApproval(ctx)
}

// ApproveRegistration flips the student approved and activates the linked
// account in one commit, so a half-approved registration cannot exist.
func (s *service) ApproveRegistration(ctx context.Context, id int64) error {
	st, err := s.r.Detail(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return makeErr(ErrNotFound)
	}
	if st.UserID == nil {
		return makeErr(ErrNotRegistered)
	}
	return s.run.RunTx(ctx, func(tx *sql.Tx) error {
		if err := s.r.SetApproved(ctx, tx, id, true); err != nil {
			return err
		}
		return s.u.SetActive(ctx, tx, *st.UserID, true)
	})
}

// RejectRegistration unlinks and deletes the account; the student row
// itself stays so the registration can be redone.
func (s *service) RejectRegistration(ctx context.Context, id int64) error {
	st, err := s.r.Detail(ctx, id)
	if err != nil {
		return err
	}
	if st == nil {
		return makeErr(ErrNotFound)
	}
	if st.UserID == nil {
		return makeErr(ErrNotRegistered)
	}
	return s.run.RunTx(ctx, func(tx *sql.Tx) error {
		if err := s.r.ClearUser(ctx, tx, id); err != nil {
			return err
		}
		return s.u.Delete(ctx, tx, *st.UserID)
	})
}

// ImportCSV reads rows of
// student_id,last_name,first_name,middle_name,course,year,section and
// creates the students that do not exist yet.
func (s *service) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, makeErr(ErrBadInput)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	res := &ImportResult{}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}

		st := &model.Student{
			StudentID:  field(rec, "student_id"),
			LastName:   field(rec, "last_name"),
			FirstName:  field(rec, "first_name"),
			MiddleName: field(rec, "middle_name"),
			Course:     field(rec, "course"),
			Year:       field(rec, "year"),
			Section:    field(rec, "section"),
		}
		if st.StudentID == "" || st.LastName == "" || st.FirstName == "" ||
			st.Course == "" || st.Year == "" || st.Section == "" {
			res.Skipped++
			continue
		}

		created, err := s.r.GetOrCreate(ctx, st)
		if err != nil {
			res.Skipped++
			continue
		}
		if created {
			res.Imported++
		} else {
			res.Skipped++
		}
	}
	return res, nil
}
