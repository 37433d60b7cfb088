// Package cart holds the per-operator POS scratch list of books scanned
// for one student before the borrow is committed. Sessions live in memory
// only; confirming or cancelling discards them.
package cart

import (
	"context"
	"errors"
	"sync"

	"librarypos/model"
	"librarypos/util/isbn"
)

type ErrCode string

const (
	ErrNoSession    ErrCode = "NO_SESSION"
	ErrBookNotFound ErrCode = "BOOK_NOT_FOUND"
	ErrDuplicate    ErrCode = "DUPLICATE"
	ErrUnavailable  ErrCode = "UNAVAILABLE"
	ErrEmptyCart    ErrCode = "EMPTY_CART"
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

// BookFinder resolves a normalized ISBN to a catalog row, nil on miss.
type BookFinder interface {
	ByISBN(ctx context.Context, normalizedISBN string) (*model.Book, error)
}

type session struct {
	mu        sync.Mutex
	studentID int64
	entries   []model.CartEntry
	closed    bool
}

type Manager struct {
	mu       sync.Mutex
	sessions map[int64]*session // keyed by POS operator user id
	books    BookFinder
}

func NewManager(books BookFinder) *Manager {
	return &Manager{sessions: make(map[int64]*session), books: books}
}

// Start binds the operator's session to a student. Selecting a different
// student drops whatever was scanned for the previous one.
func (m *Manager) Start(operatorID, studentID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[operatorID]
	if !ok {
		m.sessions[operatorID] = &session{studentID: studentID}
		return
	}
	s.mu.Lock()
	if s.studentID != studentID {
		s.studentID = studentID
		s.entries = nil
	}
	s.mu.Unlock()
}

func (m *Manager) get(operatorID int64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[operatorID]
}

// AddBook normalizes the scanned ISBN, resolves it and appends a cart
// entry. Duplicates are rejected by book identity, not by the raw string,
// so "978-0-13" and "9780 13" collide as they should.
func (m *Manager) AddBook(ctx context.Context, operatorID int64, rawISBN string) (*model.CartEntry, error) {
	s := m.get(operatorID)
	if s == nil {
		return nil, makeErr(ErrNoSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, makeErr(ErrNoSession)
	}

	b, err := m.books.ByISBN(ctx, isbn.Normalize(rawISBN))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, makeErr(ErrBookNotFound)
	}
	for _, e := range s.entries {
		if e.BookID == b.ID {
			return nil, makeErr(ErrDuplicate)
		}
	}
	if !b.IsAvailable() {
		return nil, makeErr(ErrUnavailable)
	}

	entry := model.CartEntry{BookID: b.ID, ISBN: b.ISBN, Title: b.Title, Author: b.Author}
	s.entries = append(s.entries, entry)
	return &entry, nil
}

// RemoveBook is idempotent; removing an absent book is a no-op.
func (m *Manager) RemoveBook(operatorID, bookID int64) error {
	s := m.get(operatorID)
	if s == nil {
		return makeErr(ErrNoSession)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return makeErr(ErrNoSession)
	}
	for i, e := range s.entries {
		if e.BookID == bookID {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Entries returns a copy of the current cart with the bound student id.
func (m *Manager) Entries(operatorID int64) (int64, []model.CartEntry, error) {
	s := m.get(operatorID)
	if s == nil {
		return 0, nil, makeErr(ErrNoSession)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, makeErr(ErrNoSession)
	}
	out := make([]model.CartEntry, len(s.entries))
	copy(out, s.entries)
	return s.studentID, out, nil
}

// Confirm hands back the ordered snapshot for transaction creation and
// clears the session. An empty cart cannot be confirmed.
func (m *Manager) Confirm(operatorID int64) (int64, []model.CartEntry, error) {
	// Lock order is always manager before session. Holding both while
	// closing makes the handoff atomic: a scan racing the confirm either
	// lands in the snapshot or fails with ErrNoSession, never silently
	// into a discarded session.
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[operatorID]
	if s == nil {
		return 0, nil, makeErr(ErrNoSession)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == 0 {
		return 0, nil, makeErr(ErrEmptyCart)
	}
	s.closed = true
	delete(m.sessions, operatorID)
	return s.studentID, s.entries, nil
}

// Cancel discards the operator's session entirely.
func (m *Manager) Cancel(operatorID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[operatorID]
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	delete(m.sessions, operatorID)
}
