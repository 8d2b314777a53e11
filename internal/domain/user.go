package domain

import (
	"database/sql"
)

// User is an API client of the mirror service. KeyHash is the bcrypt hash of
// the user's API key secret; the clear secret is only shown once, at creation.
type User struct {
	ID       int64        `json:"id"`
	Username string       `json:"username"`
	KeyHash  string       `json:"-"`
	Created  sql.NullTime `json:"created"`
	Enabled  sql.NullBool `json:"enabled"`
}
