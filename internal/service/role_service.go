package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type roleRepository interface {
	List(ctx context.Context, filter models.RoleFilter) ([]models.Role, int, error)
	FindByID(ctx context.Context, id string) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Role, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, role *models.Role, permissionIDs []string) error
	Update(ctx context.Context, role *models.Role, permissionIDs []string) error
	AddPermission(ctx context.Context, roleID, permissionID string) (bool, error)
	RemovePermission(ctx context.Context, roleID, permissionID string) error
	Delete(ctx context.Context, id string) error
	CountUsers(ctx context.Context, id string) (int, error)
}

type permissionLookup interface {
	FindByID(ctx context.Context, id string) (*models.Permission, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Permission, error)
}

// RoleRequest is the payload for creating or updating a role.
type RoleRequest struct {
	Name          string   `json:"name" validate:"required,max=60"`
	Description   string   `json:"description" validate:"max=255"`
	PermissionIDs []string `json:"permission_ids" validate:"dive,required"`
}

// RoleService enforces the role invariants: unique name and at least one permission.
type RoleService struct {
	repo        roleRepository
	permissions permissionLookup
	audit       auditWriter
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewRoleService creates a role service.
func NewRoleService(repo roleRepository, permissions permissionLookup, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *RoleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoleService{repo: repo, permissions: permissions, audit: audit, validator: validate, logger: logger}
}

// List returns paginated roles with their permissions.
func (s *RoleService) List(ctx context.Context, filter models.RoleFilter) ([]models.Role, *models.Pagination, error) {
	roles, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list roles")
	}
	return roles, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get loads a role by id.
func (s *RoleService) Get(ctx context.Context, id string) (*models.Role, error) {
	role, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("Role", id)
		}
		return nil, appErrors.Internal(err, "failed to load role")
	}
	return role, nil
}

// GetByName loads a role by its unique name.
func (s *RoleService) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role, err := s.repo.FindByName(ctx, normalizeAuthorityName(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("Role", name)
		}
		return nil, appErrors.Internal(err, "failed to load role")
	}
	return role, nil
}

// Create stores a role after checking name uniqueness and permission references.
func (s *RoleService) Create(ctx context.Context, req RoleRequest, actor *models.AuditActor) (*models.Role, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid role payload")
	}
	name := normalizeAuthorityName(req.Name)

	exists, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check role uniqueness")
	}
	if exists {
		return nil, appErrors.Conflict("Role '%s' already exists", name)
	}

	perms, err := s.resolvePermissions(ctx, name, req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role := &models.Role{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := s.repo.Create(ctx, role, permissionIDs(perms)); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Role '%s' already exists", name)
		}
		return nil, appErrors.Internal(err, "failed to create role")
	}
	role.Permissions = perms

	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoleCreate, "roles", role.ID, nil, role)
	return role, nil
}

// Update replaces name, description and permission set of a role.
func (s *RoleService) Update(ctx context.Context, id string, req RoleRequest, actor *models.AuditActor) (*models.Role, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid role payload")
	}
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *role
	name := normalizeAuthorityName(req.Name)

	exists, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check role uniqueness")
	}
	if exists {
		return nil, appErrors.Conflict("Role '%s' already exists", name)
	}

	perms, err := s.resolvePermissions(ctx, name, req.PermissionIDs)
	if err != nil {
		return nil, err
	}

	role.Name = name
	role.Description = strings.TrimSpace(req.Description)
	if err := s.repo.Update(ctx, role, permissionIDs(perms)); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Role '%s' already exists", name)
		}
		return nil, appErrors.Internal(err, "failed to update role")
	}
	role.Permissions = perms

	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoleUpdate, "roles", role.ID, before, role)
	return role, nil
}

// AddPermission grants a permission to a role. Granting an already held permission is a no-op.
func (s *RoleService) AddPermission(ctx context.Context, roleID, permissionID string, actor *models.AuditActor) (*models.Role, error) {
	role, err := s.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perm, err := s.findPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if role.HasPermission(perm.ID) {
		return role, nil
	}

	added, err := s.repo.AddPermission(ctx, role.ID, perm.ID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to add permission to role")
	}
	if added {
		role.Permissions = append(role.Permissions, *perm)
		writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoleUpdate, "roles", role.ID, nil, map[string]string{"added_permission": perm.Name})
	}
	return role, nil
}

// RemovePermission revokes a permission from a role, refusing to leave the role empty.
func (s *RoleService) RemovePermission(ctx context.Context, roleID, permissionID string, actor *models.AuditActor) (*models.Role, error) {
	role, err := s.Get(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perm, err := s.findPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}
	if !role.HasPermission(perm.ID) {
		return role, nil
	}

	if err := s.repo.RemovePermission(ctx, role.ID, perm.ID); err != nil {
		switch {
		case errors.Is(err, models.ErrLastPermission):
			return nil, appErrors.Business("Role '%s' must have at least one permission", role.Name)
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.NotFound("Role", roleID)
		}
		return nil, appErrors.Internal(err, "failed to remove permission from role")
	}
	if role, err = s.Get(ctx, role.ID); err != nil {
		return nil, err
	}

	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoleUpdate, "roles", role.ID, nil, map[string]string{"removed_permission": perm.Name})
	return role, nil
}

// Delete removes a role no user holds.
func (s *RoleService) Delete(ctx context.Context, id string, actor *models.AuditActor) error {
	role, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	users, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check role usage")
	}
	if users > 0 {
		return appErrors.Conflict("Role '%s' is assigned to %d user(s)", role.Name, users)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete role")
	}

	writeAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoleDelete, "roles", id, role, nil)
	return nil
}

func (s *RoleService) findPermission(ctx context.Context, id string) (*models.Permission, error) {
	perm, err := s.permissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("Permission", id)
		}
		return nil, appErrors.Internal(err, "failed to load permission")
	}
	return perm, nil
}

// resolvePermissions loads every referenced permission, reporting the first unknown id.
func (s *RoleService) resolvePermissions(ctx context.Context, roleName string, ids []string) ([]models.Permission, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, appErrors.Business("Role '%s' must have at least one permission", roleName)
	}
	perms, err := s.permissions.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load permissions")
	}
	found := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		found[p.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return nil, appErrors.NotFound("Permission", id)
		}
	}
	return perms, nil
}

func permissionIDs(perms []models.Permission) []string {
	ids := make([]string, 0, len(perms))
	for _, p := range perms {
		ids = append(ids, p.ID)
	}
	return ids
}

// uniqueIDs trims, drops blanks and de-duplicates while keeping order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
