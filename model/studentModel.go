// model/student.go
package model

import "time"

type Student struct {
	ID         int64     `json:"id"`
	StudentID  string    `json:"student_id"`
	FirstName  string    `json:"first_name"`
	MiddleName string    `json:"middle_name,omitempty"`
	LastName   string    `json:"last_name"`
	Course     string    `json:"course,omitempty"`
	Year       string    `json:"year,omitempty"`
	Section    string    `json:"section,omitempty"`
	UserID     *int64    `json:"user_id,omitempty"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Student) FullName() string {
	if s.MiddleName != "" {
		return s.FirstName + " " + s.MiddleName + " " + s.LastName
	}
	return s.FirstName + " " + s.LastName
}

// StudentReq represents student create/edit payload
// swagger:model StudentReq
type StudentReq struct {
	StudentID  string `json:"student_id" validate:"required"`
	FirstName  string `json:"first_name" validate:"required"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name" validate:"required"`
	Course     string `json:"course" validate:"required"`
	Year       string `json:"year" validate:"required"`
	Section    string `json:"section" validate:"required"`
}
