package models

import "time"

// User is a registered account. PasswordHash holds a bcrypt hash and is never
// serialised to clients.
type User struct {
	ID           int64     `json:"id"`
	UserName     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
