package model

import "time"

// User is a candidate allowed to sit the exam.
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginRequest is the form posted by the login page.
type LoginRequest struct {
	Username string `form:"username" binding:"required,max=64"`
	Password string `form:"password" binding:"required,max=128"`
}
