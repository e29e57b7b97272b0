package model

import "fmt"

// Operator is an API account scoped to one guild.
type Operator struct {
	ID           int64   `json:"id"`
	GuildID      int64   `json:"guild_id"`
	Username     string  `json:"username"`
	DisplayName  string  `json:"display_name"`
	PasswordHash string  `json:"-"`
	Role         string  `json:"role"`
	CreatedAt    string  `json:"created_at"`
	DeletedAt    *string `json:"deleted_at,omitempty"`
}

// Actor returns the operator as a ledger actor.
func (o *Operator) Actor() Actor {
	name := o.DisplayName
	if name == "" {
		name = o.Username
	}
	return Actor{Name: name, ID: o.ID}
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleStaff
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleStaff: 1,
	}
	return levels[role] > 0 && levels[role] >= levels[minimum] && levels[minimum] > 0
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks password requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
