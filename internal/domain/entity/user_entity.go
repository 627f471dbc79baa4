package entity

import (
	"time"
)

// User is the aggregate root for the user domain.
// Password holds the argon2id hash of the credential, never the raw value.
//
// Email is optional and only used for password-reset delivery; it is not
// part of registration input.
type User struct {
	ID        int64
	Username  string
	Password  string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
