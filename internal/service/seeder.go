package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
)

type seedPermissionRepository interface {
	FindByName(ctx context.Context, name string) (*models.Permission, error)
	Create(ctx context.Context, perm *models.Permission) error
}

type seedRoleRepository interface {
	FindByName(ctx context.Context, name string) (*models.Role, error)
	Create(ctx context.Context, role *models.Role, permissionIDs []string) error
	AddPermission(ctx context.Context, roleID, permissionID string) (bool, error)
}

type seedUserRepository interface {
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User, roleIDs []string) error
}

// SeedConfig optionally bootstraps an administrator account.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Seeder installs the built-in permissions, roles and admin account.
type Seeder struct {
	permissions seedPermissionRepository
	roles       seedRoleRepository
	users       seedUserRepository
	config      SeedConfig
	logger      *zap.Logger
}

// NewSeeder builds a seeder.
func NewSeeder(permissions seedPermissionRepository, roles seedRoleRepository, users seedUserRepository, config SeedConfig, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{permissions: permissions, roles: roles, users: users, config: config, logger: logger}
}

// EnsureDefaults creates whatever built-in records are missing. Running it twice is a no-op.
func (s *Seeder) EnsureDefaults(ctx context.Context) error {
	permIDs := make(map[string]string, len(authz.DefaultPermissions))
	for _, name := range sortedKeys(authz.DefaultPermissions) {
		perm, err := s.permissions.FindByName(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			perm = &models.Permission{Name: name, Description: authz.DefaultPermissions[name]}
			if err = s.permissions.Create(ctx, perm); err == nil {
				s.logger.Info("seeded permission", zap.String("name", name))
			}
		}
		if err != nil {
			return fmt.Errorf("seed permission %s: %w", name, err)
		}
		permIDs[name] = perm.ID
	}

	roleIDs := make(map[string]string, len(authz.DefaultRoles))
	for _, name := range sortedKeys(authz.DefaultRoles) {
		wanted := make([]string, 0, len(authz.DefaultRoles[name]))
		for _, perm := range authz.DefaultRoles[name] {
			wanted = append(wanted, permIDs[perm])
		}

		role, err := s.roles.FindByName(ctx, name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			role = &models.Role{Name: name, Description: "Built-in " + name + " role"}
			if err := s.roles.Create(ctx, role, wanted); err != nil {
				return fmt.Errorf("seed role %s: %w", name, err)
			}
			s.logger.Info("seeded role", zap.String("name", name), zap.Int("permissions", len(wanted)))
		case err != nil:
			return fmt.Errorf("load role %s: %w", name, err)
		default:
			for _, id := range wanted {
				if role.HasPermission(id) {
					continue
				}
				if _, err := s.roles.AddPermission(ctx, role.ID, id); err != nil {
					return fmt.Errorf("grant default permission to %s: %w", name, err)
				}
			}
		}
		roleIDs[name] = role.ID
	}

	return s.ensureAdmin(ctx, roleIDs[models.RoleAdmin])
}

func (s *Seeder) ensureAdmin(ctx context.Context, adminRoleID string) error {
	if s.config.AdminEmail == "" || s.config.AdminPassword == "" {
		return nil
	}
	email := normalizeEmail(s.config.AdminEmail)
	exists, err := s.users.ExistsByEmail(ctx, email, "")
	if err != nil {
		return fmt.Errorf("check admin user: %w", err)
	}
	if exists {
		return nil
	}
	hash, err := hashPassword(s.config.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{Name: "Administrator", Email: email, PasswordHash: hash, IsActive: true}
	if err := s.users.Create(ctx, admin, []string{adminRoleID}); err != nil {
		return fmt.Errorf("seed admin user: %w", err)
	}
	s.logger.Info("seeded admin user", zap.String("email", email))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
