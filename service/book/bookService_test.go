// service/book/book_service_test.go
package booksvc_test

import (
	"context"
	"strings"
	"testing"

	"librarypos/model"
	booksvc "librarypos/service/book"
)

type repoMock struct {
	createFn      func(ctx context.Context, b *model.Book) error
	updateFn      func(ctx context.Context, b *model.Book) error
	deleteFn      func(ctx context.Context, id int64) error
	listFn        func(ctx context.Context, search string) ([]model.Book, error)
	detailFn      func(ctx context.Context, id int64) (*model.Book, error)
	byISBNFn      func(ctx context.Context, normalized string) (*model.Book, error)
	getOrCreateFn func(ctx context.Context, b *model.Book) (bool, error)
}

func (m *repoMock) Create(ctx context.Context, b *model.Book) error { return m.createFn(ctx, b) }
func (m *repoMock) Update(ctx context.Context, b *model.Book) error { return m.updateFn(ctx, b) }
func (m *repoMock) Delete(ctx context.Context, id int64) error      { return m.deleteFn(ctx, id) }
func (m *repoMock) List(ctx context.Context, search string) ([]model.Book, error) {
	return m.listFn(ctx, search)
}
func (m *repoMock) Detail(ctx context.Context, id int64) (*model.Book, error) {
	return m.detailFn(ctx, id)
}
func (m *repoMock) ByISBN(ctx context.Context, normalized string) (*model.Book, error) {
	return m.byISBNFn(ctx, normalized)
}
func (m *repoMock) GetOrCreate(ctx context.Context, b *model.Book) (bool, error) {
	return m.getOrCreateFn(ctx, b)
}

func TestCreate_NormalizesISBNAndFillsAvailable(t *testing.T) {
	var got *model.Book
	s := booksvc.New(&repoMock{
		createFn: func(ctx context.Context, b *model.Book) error {
			b.ID = 42
			got = b
			return nil
		},
	})
	b, err := s.Create(context.Background(), model.CreateBookReq{
		ISBN: "978-0-13-468599-1", Title: "Effective Java", Author: "Bloch",
		Category: "Prog", CopiesTotal: 3,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != 42 {
		t.Fatalf("id = %d; want 42", b.ID)
	}
	if got.ISBN != "9780134685991" {
		t.Fatalf("isbn stored unnormalized: %q", got.ISBN)
	}
	if got.CopiesAvailable != 3 {
		t.Fatalf("copies_available = %d; want copies_total", got.CopiesAvailable)
	}
}

func TestCreate_EmptyISBN(t *testing.T) {
	s := booksvc.New(&repoMock{})
	_, err := s.Create(context.Background(), model.CreateBookReq{ISBN: "---", Title: "x", Author: "y", Category: "z", CopiesTotal: 1})
	if booksvc.Code(err) != booksvc.ErrBadInput {
		t.Fatalf("want ErrBadInput, got %v", err)
	}
}

func TestByISBN_NormalizesLookup(t *testing.T) {
	s := booksvc.New(&repoMock{
		byISBNFn: func(ctx context.Context, normalized string) (*model.Book, error) {
			if normalized != "9780134685991" {
				t.Fatalf("lookup with %q; want normalized form", normalized)
			}
			return &model.Book{ID: 7}, nil
		},
	})
	b, err := s.ByISBN(context.Background(), "978 0 13 468599 1")
	if err != nil || b.ID != 7 {
		t.Fatalf("got %v, %v", b, err)
	}
}

func TestByISBN_Miss(t *testing.T) {
	s := booksvc.New(&repoMock{
		byISBNFn: func(ctx context.Context, normalized string) (*model.Book, error) {
			return nil, nil
		},
	})
	_, err := s.ByISBN(context.Background(), "12345")
	if booksvc.Code(err) != booksvc.ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	s := booksvc.New(&repoMock{
		detailFn: func(ctx context.Context, id int64) (*model.Book, error) { return nil, nil },
	})
	_, err := s.Update(context.Background(), 9, model.UpdateBookReq{Title: "t", Author: "a", Category: "c"})
	if booksvc.Code(err) != booksvc.ErrNotFound {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestImportCSV(t *testing.T) {
	var created []string
	s := booksvc.New(&repoMock{
		getOrCreateFn: func(ctx context.Context, b *model.Book) (bool, error) {
			for _, isbn := range created {
				if isbn == b.ISBN {
					return false, nil
				}
			}
			created = append(created, b.ISBN)
			return true, nil
		},
	})

	csvData := strings.Join([]string{
		"isbn,title,author,category,publisher,year_published,copies_total",
		"978-0-13-468599-1,Effective Java,Bloch,Prog,AW,2018,2",
		"978-0-13-468599-1,Effective Java,Bloch,Prog,AW,2018,2", // duplicate
		",No ISBN,Anon,Misc,,,1",                                // malformed
		"0-201-61622-X,Pragmatic Programmer,Hunt,Prog,,1999,",   // default copies
	}, "\n")

	res, err := s.ImportCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 2 {
		t.Fatalf("imported=%d skipped=%d; want 2 and 2", res.Imported, res.Skipped)
	}
}
