package domain

import (
	"time"
)

// User represents a workforce user managed by the user module
type User struct {
	ID        string    `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Position  string    `json:"position" db:"position"`
	Phone     string    `json:"phone" db:"phone"`
	Avatar    string    `json:"avatar" db:"avatar"`
	Password  string    `json:"password" db:"password_hash"` // bcrypt hash
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// SeedUser is a user entry in the seed YAML file. Password is plain text.
type SeedUser struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Position string `yaml:"position"`
	Phone    string `yaml:"phone"`
	Avatar   string `yaml:"avatar"`
	Password string `yaml:"password"`
}

// UserSeed represents the full seed file
type UserSeed struct {
	Users []SeedUser `yaml:"users"`
}

// Session is the result of a successful login
type Session struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
	Profile   map[string]any `json:"profile"`
}

// Credentials is the login request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
