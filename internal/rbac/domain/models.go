package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Permission is one grant held by a user. A nil Subject applies to the
// action as a whole. Conditions name server-side predicates that must also
// hold for the grant to apply.
type Permission struct {
	Action     string   `json:"action"`
	Subject    *string  `json:"subject"`
	Conditions []string `json:"conditions"`
}

// Matches reports whether p grants the same action and subject as other.
func (p Permission) Matches(other Permission) bool {
	if p.Action != other.Action {
		return false
	}
	if p.Subject == nil || other.Subject == nil {
		return p.Subject == nil && other.Subject == nil
	}
	return *p.Subject == *other.Subject
}

// Subject is a convenience for building permissions literals.
func Subject(s string) *string {
	return &s
}

// AdminUser is an account allowed into the admin panel.
type AdminUser struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_admin_users_email" json:"email"`
	Firstname string       `gorm:"type:text" json:"firstname"`
	Lastname  string       `gorm:"type:text" json:"lastname"`
	IsActive  bool         `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (AdminUser) TableName() string { return "admin_users" }
