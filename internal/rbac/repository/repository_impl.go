package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() rbacdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, user *rbacdomain.AdminUser) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO admin_users (id, email, firstname, lastname, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.Firstname,
		user.Lastname,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*rbacdomain.AdminUser, error) {
	var user rbacdomain.AdminUser
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, firstname, lastname, is_active, created_at, updated_at
		 FROM admin_users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*rbacdomain.AdminUser, error) {
	var user rbacdomain.AdminUser
	err := db.WithContext(ctx).Raw(
		`SELECT id, email, firstname, lastname, is_active, created_at, updated_at
		 FROM admin_users WHERE email = ?`,
		email,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

// Migrate creates the admin user table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&rbacdomain.AdminUser{})
}
