package cart

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"librarypos/model"
)

type finderMock struct {
	byISBNFn func(ctx context.Context, normalized string) (*model.Book, error)
}

func (m *finderMock) ByISBN(ctx context.Context, normalized string) (*model.Book, error) {
	return m.byISBNFn(ctx, normalized)
}

func catalog(books ...model.Book) *finderMock {
	return &finderMock{
		byISBNFn: func(ctx context.Context, normalized string) (*model.Book, error) {
			for i := range books {
				if books[i].ISBN == normalized {
					b := books[i]
					return &b, nil
				}
			}
			return nil, nil
		},
	}
}

func TestAddBook_NormalizesAndRejectsDuplicates(t *testing.T) {
	m := NewManager(catalog(model.Book{
		ID: 1, ISBN: "9780134685991", Title: "Effective Java",
		CopiesTotal: 2, CopiesAvailable: 2,
	}))
	m.Start(10, 100)

	entry, err := m.AddBook(context.Background(), 10, "978-0-13-468599-1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if entry.BookID != 1 {
		t.Fatalf("entry book id = %d; want 1", entry.BookID)
	}

	// same book, different raw formatting
	_, err = m.AddBook(context.Background(), 10, "978 0 13 468599 1")
	if Code(err) != ErrDuplicate {
		t.Fatalf("second add: want ErrDuplicate, got %v", err)
	}

	_, entries, err := m.Entries(10)
	if err != nil || len(entries) != 1 {
		t.Fatalf("cart should hold exactly one entry, got %d (err %v)", len(entries), err)
	}
}

func TestAddBook_NotFoundAndUnavailable(t *testing.T) {
	m := NewManager(catalog(model.Book{
		ID: 2, ISBN: "9999", Title: "Gone", CopiesTotal: 1, CopiesAvailable: 0,
	}))
	m.Start(10, 100)

	if _, err := m.AddBook(context.Background(), 10, "0000"); Code(err) != ErrBookNotFound {
		t.Fatalf("want ErrBookNotFound, got %v", err)
	}
	if _, err := m.AddBook(context.Background(), 10, "9999"); Code(err) != ErrUnavailable {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestAddBook_NoSession(t *testing.T) {
	m := NewManager(catalog())
	if _, err := m.AddBook(context.Background(), 99, "1234"); Code(err) != ErrNoSession {
		t.Fatalf("want ErrNoSession, got %v", err)
	}
}

func TestRemoveBook_Idempotent(t *testing.T) {
	m := NewManager(catalog(model.Book{ID: 1, ISBN: "1234", CopiesTotal: 1, CopiesAvailable: 1}))
	m.Start(10, 100)
	if _, err := m.AddBook(context.Background(), 10, "1234"); err != nil {
		t.Fatal(err)
	}

	if err := m.RemoveBook(10, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// absent id is a no-op success
	if err := m.RemoveBook(10, 1); err != nil {
		t.Fatalf("second remove: %v", err)
	}
	_, entries, _ := m.Entries(10)
	if len(entries) != 0 {
		t.Fatalf("cart not empty after remove: %v", entries)
	}
}

func TestConfirm_EmptyAndSnapshot(t *testing.T) {
	m := NewManager(catalog(
		model.Book{ID: 1, ISBN: "1111", CopiesTotal: 1, CopiesAvailable: 1},
		model.Book{ID: 2, ISBN: "2222", CopiesTotal: 1, CopiesAvailable: 1},
	))
	m.Start(10, 100)

	if _, _, err := m.Confirm(10); Code(err) != ErrEmptyCart {
		t.Fatalf("want ErrEmptyCart, got %v", err)
	}

	mustAdd(t, m, 10, "1111")
	mustAdd(t, m, 10, "2222")

	studentID, entries, err := m.Confirm(10)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if studentID != 100 {
		t.Fatalf("student id = %d; want 100", studentID)
	}
	if len(entries) != 2 || entries[0].BookID != 1 || entries[1].BookID != 2 {
		t.Fatalf("snapshot order wrong: %v", entries)
	}

	// session is gone after confirm
	if _, _, err := m.Entries(10); Code(err) != ErrNoSession {
		t.Fatalf("want ErrNoSession after confirm, got %v", err)
	}
}

func TestStart_SwitchingStudentResetsCart(t *testing.T) {
	m := NewManager(catalog(model.Book{ID: 1, ISBN: "1111", CopiesTotal: 1, CopiesAvailable: 1}))
	m.Start(10, 100)
	mustAdd(t, m, 10, "1111")

	m.Start(10, 200)
	_, entries, err := m.Entries(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("switching students must reset the cart, got %v", entries)
	}

	// same student keeps the cart
	m.Start(10, 200)
	mustAdd(t, m, 10, "1111")
	m.Start(10, 200)
	_, entries, _ = m.Entries(10)
	if len(entries) != 1 {
		t.Fatalf("re-selecting the same student must keep the cart, got %v", entries)
	}
}

func TestAddBook_ConcurrentDoubleSubmit(t *testing.T) {
	m := NewManager(catalog(model.Book{ID: 1, ISBN: "1111", CopiesTotal: 5, CopiesAvailable: 5}))
	m.Start(10, 100)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.AddBook(context.Background(), 10, "1111")
		}()
	}
	wg.Wait()

	_, entries, _ := m.Entries(10)
	if len(entries) != 1 {
		t.Fatalf("double-submitted adds must collapse to one entry, got %d", len(entries))
	}
}

func TestConfirm_ConcurrentAddNeverLost(t *testing.T) {
	books := make([]model.Book, 0, 32)
	isbns := make([]string, 0, 32)
	for i := 0; i < 32; i++ {
		isbn := fmt.Sprintf("978000000%02d", i)
		books = append(books, model.Book{ID: int64(i + 1), ISBN: isbn, CopiesTotal: 1, CopiesAvailable: 1})
		isbns = append(isbns, isbn)
	}
	m := NewManager(catalog(books...))
	m.Start(10, 100)
	mustAdd(t, m, 10, isbns[0])

	// Scans racing a confirm must either land in the snapshot or fail
	// with NO_SESSION. A scan vanishing into a discarded session loses
	// a book silently at the counter.
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 1 // the seed entry above
	for _, isbn := range isbns[1:] {
		wg.Add(1)
		go func(isbn string) {
			defer wg.Done()
			if _, err := m.AddBook(context.Background(), 10, isbn); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			} else if Code(err) != ErrNoSession {
				t.Errorf("add %s: unexpected error %v", isbn, err)
			}
		}(isbn)
	}

	var snapshot []model.CartEntry
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, entries, err := m.Confirm(10)
		if err != nil {
			t.Errorf("confirm: %v", err)
			return
		}
		snapshot = entries
	}()
	wg.Wait()

	if len(snapshot) != accepted {
		t.Fatalf("confirmed %d entries but %d adds were accepted", len(snapshot), accepted)
	}
	if _, err := m.AddBook(context.Background(), 10, isbns[1]); Code(err) != ErrNoSession {
		t.Fatalf("add after confirm: want ErrNoSession, got %v", err)
	}
}

func mustAdd(t *testing.T, m *Manager, operatorID int64, rawISBN string) {
	t.Helper()
	if _, err := m.AddBook(context.Background(), operatorID, rawISBN); err != nil {
		t.Fatalf("add %s: %v", rawISBN, err)
	}
}
