package domain

import "time"

// UserStatus represents lifecycle states for an end-user.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// UserRole is the access level of a user inside a tenant.
type UserRole string

const (
	// UserRoleClient is the least privileged role, assigned to channel-originated users.
	UserRoleClient UserRole = "Client"
	UserRoleAgent  UserRole = "Agent"
	UserRoleAdmin  UserRole = "Admin"
)

// User is the domain model for end-users who submit tickets.
type User struct {
	ID             string
	OrganizationID string
	Name           string
	Phone          string
	Email          string
	Role           UserRole
	Status         UserStatus
	AvatarURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
