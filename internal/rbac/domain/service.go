package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	RoleSuperAdmin = "super-admin"
	RoleEditor     = "editor"
	RoleAuthor     = "author"
)

// Service owns roles, grants and admin users.
type Service interface {
	// AllPermissions returns every grant reachable from the user's roles.
	AllPermissions(ctx context.Context, userID snowflake.ID) ([]Permission, error)
	Roles(ctx context.Context, userID snowflake.ID) ([]string, error)
	AssignRoles(ctx context.Context, userID snowflake.ID, roles []string) error
	// Enforce answers whether the user's roles grant action on subject,
	// ignoring conditions.
	Enforce(ctx context.Context, userID snowflake.ID, action string, subject *string) (bool, error)

	CreateUser(ctx context.Context, req CreateUserRequest) (*AdminUser, error)
	GetUser(ctx context.Context, userID snowflake.ID) (*AdminUser, error)
}

type CreateUserRequest struct {
	Email     string   `json:"email"`
	Firstname string   `json:"firstname"`
	Lastname  string   `json:"lastname"`
	Roles     []string `json:"roles"`
}

type AssignRolesRequest struct {
	Roles []string `json:"roles"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, user *AdminUser) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AdminUser, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*AdminUser, error)
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrUnknownRole  = errors.New("unknown_role")
	ErrUserExists   = errors.New("user_exists")
	ErrNotFound     = errors.New("not_found")
)
