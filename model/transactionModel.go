// model/transaction.go
package model

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type LoanStatus string

const (
	LoanBorrowed LoanStatus = "borrowed"
	LoanReturned LoanStatus = "returned"
)

type Transaction struct {
	ID              int64          `json:"id"`
	TransactionCode string         `json:"transaction_code"`
	StudentID       int64          `json:"student_id"`
	CreatedBy       int64          `json:"created_by"`
	ApprovedBy      *int64         `json:"approved_by,omitempty"`
	BorrowedDate    time.Time      `json:"borrowed_date"`
	DueDate         time.Time      `json:"due_date"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	ReturnDate      *time.Time     `json:"return_date,omitempty"`
	ApprovalStatus  ApprovalStatus `json:"approval_status"`
	Status          LoanStatus     `json:"status"`
}

type TransactionItem struct {
	ID            int64      `json:"id"`
	TransactionID int64      `json:"transaction_id"`
	BookID        int64      `json:"book_id"`
	Status        LoanStatus `json:"status"`
	ReturnDate    *time.Time `json:"return_date,omitempty"`
}

// CartEntry is the ephemeral POS cart row. It is never persisted; the
// denormalized fields exist so the terminal can display what was scanned.
type CartEntry struct {
	BookID int64  `json:"book_id"`
	ISBN   string `json:"isbn"`
	Title  string `json:"title"`
	Author string `json:"author"`
}
