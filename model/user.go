package model

import "time"

type UserType string

const (
	UserAdmin   UserType = "admin"
	UserPOS     UserType = "pos"
	UserStudent UserType = "student"
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	UserType     UserType  `json:"user_type"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// RegisterReq represents student self-registration payload
// swagger:model RegisterReq
type RegisterReq struct {
	StudentID string `json:"student_id" validate:"required"`
	Password  string `json:"password" validate:"required,min=6"`
}

// LoginReq represents login payload
// swagger:model LoginReq
type LoginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateUserReq represents admin-side staff account creation payload.
// Student accounts come from self-registration, never from here.
// swagger:model CreateUserReq
type CreateUserReq struct {
	Username string   `json:"username" validate:"required,min=3"`
	Password string   `json:"password" validate:"required,min=6"`
	UserType UserType `json:"user_type" validate:"required,oneof=admin pos"`
}

// ChangePasswordReq represents self-service password change payload
// swagger:model ChangePasswordReq
type ChangePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}
