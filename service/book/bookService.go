package booksvc

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"librarypos/model"
	"librarypos/util/isbn"
)

type ErrCode string

const (
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrBadInput ErrCode = "BAD_INPUT"
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

type Repo interface {
	Create(ctx context.Context, b *model.Book) error
	Update(ctx context.Context, b *model.Book) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)
	ByISBN(ctx context.Context, normalizedISBN string) (*model.Book, error)
	GetOrCreate(ctx context.Context, b *model.Book) (created bool, err error)
}

type Service interface {
	Create(ctx context.Context, req model.CreateBookReq) (*model.Book, error)
	Update(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, search string) ([]model.Book, error)
	Detail(ctx context.Context, id int64) (*model.Book, error)

	// ByISBN applies ISBN normalization before lookup, so the scan path
	// and the typed path resolve identically.
	ByISBN(ctx context.Context, rawISBN string) (*model.Book, error)

	ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error)
}

type service struct{ r Repo }

func New(r Repo) Service { return &service{r: r} }

func (s *service) Create(ctx context.Context, req model.CreateBookReq) (*model.Book, error) {
	norm := isbn.Normalize(req.ISBN)
	if norm == "" {
		return nil, makeErr(ErrBadInput)
	}
	b := &model.Book{
		ISBN:            norm,
		Title:           req.Title,
		Author:          req.Author,
		Category:        req.Category,
		Publisher:       req.Publisher,
		YearPublished:   req.YearPublished,
		CopiesTotal:     req.CopiesTotal,
		CopiesAvailable: req.CopiesTotal,
	}
	if err := s.r.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Update edits catalog fields. Lowering copies_total below the number of
// copies out on loan is allowed; copies_available is clamped by the
// repository and conservation recovers as loans come back.
func (s *service) Update(ctx context.Context, id int64, req model.UpdateBookReq) (*model.Book, error) {
	b, err := s.r.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, makeErr(ErrNotFound)
	}
	b.Title = req.Title
	b.Author = req.Author
	b.Category = req.Category
	b.Publisher = req.Publisher
	b.YearPublished = req.YearPublished
	b.CopiesTotal = req.CopiesTotal
	if err := s.r.Update(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) Delete(ctx context.Context, id int64) error {
	err := s.r.Delete(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return makeErr(ErrNotFound)
	}
	return err
}

func (s *service) List(ctx context.Context, search string) ([]model.Book, error) {
	return s.r.List(ctx, strings.TrimSpace(search))
}

func (s *service) Detail(ctx context.Context, id int64) (*model.Book, error) {
	b, err := s.r.Detail(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, makeErr(ErrNotFound)
	}
	return b, nil
}

func (s *service) ByISBN(ctx context.Context, rawISBN string) (*model.Book, error) {
	norm := isbn.Normalize(rawISBN)
	if norm == "" {
		return nil, makeErr(ErrNotFound)
	}
	b, err := s.r.ByISBN(ctx, norm)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, makeErr(ErrNotFound)
	}
	return b, nil
}

// ImportCSV reads rows of
// isbn,title,author,category,publisher,year_published,copies_total and
// creates the books that do not exist yet. Existing ISBNs and malformed
// rows are counted as skipped, never fatal.
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

		norm := isbn.Normalize(field(rec, "isbn"))
		title := field(rec, "title")
		author := field(rec, "author")
		category := field(rec, "category")
		if norm == "" || title == "" || author == "" || category == "" {
			res.Skipped++
			continue
		}

		copies := int64(1)
		if v := field(rec, "copies_total"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				res.Skipped++
				continue
			}
			copies = n
		}
		var year *int
		if v := field(rec, "year_published"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				year = &n
			}
		}

		b := &model.Book{
			ISBN:            norm,
			Title:           title,
			Author:          author,
			Category:        category,
			Publisher:       field(rec, "publisher"),
			YearPublished:   year,
			CopiesTotal:     copies,
			CopiesAvailable: copies,
		}
		created, err := s.r.GetOrCreate(ctx, b)
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
