// model/book.go
package model

type Book struct {
	ID              int64  `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Category        string `json:"category"`
	Publisher       string `json:"publisher,omitempty"`
	YearPublished   *int   `json:"year_published,omitempty"`
	CopiesTotal     int64  `json:"copies_total"`
	CopiesAvailable int64  `json:"copies_available"`
}

func (b *Book) IsAvailable() bool { return b.CopiesAvailable > 0 }

// CreateBookReq represents book creation payload
// swagger:model CreateBookReq
type CreateBookReq struct {
	ISBN          string `json:"isbn" validate:"required"`
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	Category      string `json:"category" validate:"required"`
	Publisher     string `json:"publisher"`
	YearPublished *int   `json:"year_published"`
	CopiesTotal   int64  `json:"copies_total" validate:"required,gt=0"`
}

// UpdateBookReq represents book edit payload
// swagger:model UpdateBookReq
type UpdateBookReq struct {
	Title         string `json:"title" validate:"required"`
	Author        string `json:"author" validate:"required"`
	Category      string `json:"category" validate:"required"`
	Publisher     string `json:"publisher"`
	YearPublished *int   `json:"year_published"`
	CopiesTotal   int64  `json:"copies_total" validate:"required,gte=0"`
}
