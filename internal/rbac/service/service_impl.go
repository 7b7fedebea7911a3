package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     rbacdomain.Repository
	Enforcer *casbin.SyncedEnforcer
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     rbacdomain.Repository
	enforcer *casbin.SyncedEnforcer
}

func New(p Params) rbacdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("rbac.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		enforcer: p.Enforcer,
	}
}

func userSubject(userID snowflake.ID) string {
	return fmt.Sprintf("user:%s", userID.String())
}

func (s *Service) AllPermissions(ctx context.Context, userID snowflake.ID) ([]rbacdomain.Permission, error) {
	if userID == 0 {
		return nil, rbacdomain.ErrInvalidUser
	}

	rules, err := s.enforcer.GetImplicitPermissionsForUser(userSubject(userID))
	if err != nil {
		return nil, err
	}

	perms := make([]rbacdomain.Permission, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		perm, ok := decodeRule(rule)
		if !ok {
			continue
		}
		key := strings.Join(rule[1:], "\x00")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		perms = append(perms, perm)
	}
	return perms, nil
}

func (s *Service) Roles(ctx context.Context, userID snowflake.ID) ([]string, error) {
	if userID == 0 {
		return nil, rbacdomain.ErrInvalidUser
	}
	subjects, err := s.enforcer.GetRolesForUser(userSubject(userID))
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(subjects))
	for _, subject := range subjects {
		roles = append(roles, strings.TrimPrefix(subject, "role:"))
	}
	slices.Sort(roles)
	return roles, nil
}

func (s *Service) AssignRoles(ctx context.Context, userID snowflake.ID, roles []string) error {
	if userID == 0 {
		return rbacdomain.ErrInvalidUser
	}

	subjects, err := s.roleSubjects(roles)
	if err != nil {
		return err
	}

	user := userSubject(userID)
	if _, err := s.enforcer.DeleteRolesForUser(user); err != nil {
		return err
	}
	if len(subjects) > 0 {
		if _, err := s.enforcer.AddRolesForUser(user, subjects); err != nil {
			return err
		}
	}

	s.log.Info("roles assigned",
		zap.String("user_id", userID.String()),
		zap.Strings("roles", roles),
	)
	return nil
}

func (s *Service) roleSubjects(roles []string) ([]string, error) {
	known, err := s.enforcer.GetAllSubjects()
	if err != nil {
		return nil, err
	}

	subjects := make([]string, 0, len(roles))
	for _, role := range roles {
		if strings.TrimSpace(role) == "" {
			return nil, rbacdomain.ErrInvalidRole
		}
		subject := roleSubject(role)
		if !slices.Contains(known, subject) {
			return nil, fmt.Errorf("%w: %s", rbacdomain.ErrUnknownRole, role)
		}
		if !slices.Contains(subjects, subject) {
			subjects = append(subjects, subject)
		}
	}
	return subjects, nil
}

func (s *Service) Enforce(ctx context.Context, userID snowflake.ID, action string, subject *string) (bool, error) {
	if userID == 0 {
		return false, rbacdomain.ErrInvalidUser
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return false, nil
	}
	return s.enforcer.Enforce(userSubject(userID), action, objectFor(subject))
}

func (s *Service) CreateUser(ctx context.Context, req rbacdomain.CreateUserRequest) (*rbacdomain.AdminUser, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, rbacdomain.ErrInvalidEmail
	}
	if _, err := s.roleSubjects(req.Roles); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, rbacdomain.ErrUserExists
	}

	now := time.Now().UTC()
	user := &rbacdomain.AdminUser{
		ID:        s.genID.Generate(),
		Email:     email,
		Firstname: strings.TrimSpace(req.Firstname),
		Lastname:  strings.TrimSpace(req.Lastname),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, user); err != nil {
		return nil, err
	}

	if len(req.Roles) > 0 {
		if err := s.AssignRoles(ctx, user.ID, req.Roles); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, userID snowflake.ID) (*rbacdomain.AdminUser, error) {
	if userID == 0 {
		return nil, rbacdomain.ErrInvalidUser
	}
	user, err := s.repo.FindByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, rbacdomain.ErrNotFound
	}
	return user, nil
}
