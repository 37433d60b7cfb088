package authsvc

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"librarypos/model"
	"librarypos/util/hash"
	jwtutil "librarypos/util/jwt"
)

type ErrCode string

const (
	ErrInvalidCreds      ErrCode = "INVALID_CREDS"
	ErrInactive          ErrCode = "INACTIVE"
	ErrStudentNotFound   ErrCode = "STUDENT_NOT_FOUND"
	ErrAlreadyRegistered ErrCode = "ALREADY_REGISTERED"
	ErrBadInput          ErrCode = "BAD_INPUT"
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

type Runner interface {
	RunTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type Repo interface {
	Create(ctx context.Context, tx *sql.Tx, u *model.User) error
	ByUsername(ctx context.Context, username string) (*model.User, error)
	ByID(ctx context.Context, id int64) (*model.User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// Students is the slice of the student repository registration needs.
type Students interface {
	ByStudentID(ctx context.Context, studentID string) (*model.Student, error)
	BindUser(ctx context.Context, tx *sql.Tx, id, userID int64) error
}

type Service interface {
	// Login authenticates any account type and issues a JWT carrying the
	// account role. Accounts pending admin approval cannot log in.
	Login(ctx context.Context, req model.LoginReq) (*model.User, string, error)

	// Register binds a new inactive account to a pre-loaded student row.
	// The account stays unusable until an admin approves the
	// registration.
	Register(ctx context.Context, req model.RegisterReq) (*model.User, error)

	// CreateAccount provisions a staff account (admin or pos). Staff
	// accounts are active immediately; students never come through here.
	CreateAccount(ctx context.Context, req model.CreateUserReq) (*model.User, error)

	// ChangePassword swaps the caller's password after verifying the
	// current one.
	ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordReq) error
}

type service struct {
	run      Runner
	r        Repo
	students Students
	secret   string
}

func New(run Runner, r Repo, students Students, secret string) Service {
	return &service{run: run, r: r, students: students, secret: secret}
}

func (s *service) Login(ctx context.Context, req model.LoginReq) (*model.User, string, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, "", makeErr(ErrBadInput)
	}

	u, err := s.r.ByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	if u == nil || !hash.Check(u.PasswordHash, req.Password) {
		return nil, "", makeErr(ErrInvalidCreds)
	}
	if !u.IsActive {
		return nil, "", makeErr(ErrInactive)
	}

	token, err := jwtutil.Issue(s.secret, u.ID, string(u.UserType), 24)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

func (s *service) Register(ctx context.Context, req model.RegisterReq) (*model.User, error) {
	studentID := strings.TrimSpace(req.StudentID)
	if studentID == "" || len(req.Password) < 6 {
		return nil, makeErr(ErrBadInput)
	}

	st, err := s.students.ByStudentID(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, makeErr(ErrStudentNotFound)
	}
	if st.UserID != nil {
		return nil, makeErr(ErrAlreadyRegistered)
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     studentID,
		PasswordHash: hashed,
		UserType:     model.UserStudent,
		IsActive:     false,
	}

	err = s.run.RunTx(ctx, func(tx *sql.Tx) error {
		if err := s.r.Create(ctx, tx, u); err != nil {
			return err
		}
		return s.students.BindUser(ctx, tx, st.ID, u.ID)
	})
	if err != nil {
		if derr := mapDuplicateErr(err); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return u, nil
}

func (s *service) CreateAccount(ctx context.Context, req model.CreateUserReq) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || len(req.Password) < 6 {
		return nil, makeErr(ErrBadInput)
	}
	if req.UserType != model.UserAdmin && req.UserType != model.UserPOS {
		return nil, makeErr(ErrBadInput)
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		Username:     username,
		PasswordHash: hashed,
		UserType:     req.UserType,
		IsActive:     true,
	}

	err = s.run.RunTx(ctx, func(tx *sql.Tx) error {
		return s.r.Create(ctx, tx, u)
	})
	if err != nil {
		if derr := mapDuplicateErr(err); derr != nil {
			return nil, derr
		}
		return nil, err
	}
	return u, nil
}

func (s *service) ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordReq) error {
	if len(req.NewPassword) < 6 {
		return makeErr(ErrBadInput)
	}

	u, err := s.r.ByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil || !hash.Check(u.PasswordHash, req.CurrentPassword) {
		return makeErr(ErrInvalidCreds)
	}

	hashed, err := hash.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	return s.r.UpdatePassword(ctx, userID, hashed)
}

func mapDuplicateErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		name := strings.ToLower(pgErr.ConstraintName)
		if strings.Contains(name, "username") || strings.Contains(name, "user_id") {
			return makeErr(ErrAlreadyRegistered)
		}
		return makeErr(ErrBadInput)
	}
	return nil
}
