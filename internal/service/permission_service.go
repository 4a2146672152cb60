package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type permissionRepository interface {
	List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, int, error)
	FindByID(ctx context.Context, id string) (*models.Permission, error)
	FindByName(ctx context.Context, name string) (*models.Permission, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, perm *models.Permission) error
	Update(ctx context.Context, perm *models.Permission) error
	Delete(ctx context.Context, id string) error
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// PermissionRequest is the payload for creating or updating a permission.
type PermissionRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	Description string `json:"description" validate:"max=255"`
}

// PermissionService manages permission records.
type PermissionService struct {
	repo      permissionRepository
	audit     auditWriter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPermissionService creates a permission service.
func NewPermissionService(repo permissionRepository, audit auditWriter, validate *validator.Validate, logger *zap.Logger) *PermissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns paginated permissions.
func (s *PermissionService) List(ctx context.Context, filter models.PermissionFilter) ([]models.Permission, *models.Pagination, error) {
	perms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list permissions")
	}
	return perms, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get loads a permission by id.
func (s *PermissionService) Get(ctx context.Context, id string) (*models.Permission, error) {
	perm, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("Permission", id)
		}
		return nil, appErrors.Internal(err, "failed to load permission")
	}
	return perm, nil
}

// Create stores a new permission with a unique name.
func (s *PermissionService) Create(ctx context.Context, req PermissionRequest, actor *models.AuditActor) (*models.Permission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid permission payload")
	}
	name := normalizeAuthorityName(req.Name)

	exists, err := s.repo.ExistsByName(ctx, name, "")
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check permission uniqueness")
	}
	if exists {
		return nil, appErrors.Conflict("Permission '%s' already exists", name)
	}

	perm := &models.Permission{Name: name, Description: strings.TrimSpace(req.Description)}
	if err := s.repo.Create(ctx, perm); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Permission '%s' already exists", name)
		}
		return nil, appErrors.Internal(err, "failed to create permission")
	}

	s.record(ctx, actor, models.AuditActionPermissionCreate, perm.ID, nil, perm)
	return perm, nil
}

// Update renames or re-describes a permission.
func (s *PermissionService) Update(ctx context.Context, id string, req PermissionRequest, actor *models.AuditActor) (*models.Permission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid permission payload")
	}
	perm, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *perm
	name := normalizeAuthorityName(req.Name)

	exists, err := s.repo.ExistsByName(ctx, name, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check permission uniqueness")
	}
	if exists {
		return nil, appErrors.Conflict("Permission '%s' already exists", name)
	}

	perm.Name = name
	perm.Description = strings.TrimSpace(req.Description)
	if err := s.repo.Update(ctx, perm); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Conflict("Permission '%s' already exists", name)
		}
		return nil, appErrors.Internal(err, "failed to update permission")
	}

	s.record(ctx, actor, models.AuditActionPermissionUpdate, perm.ID, before, perm)
	return perm, nil
}

// Delete removes a permission unless a role would be left without any permission.
func (s *PermissionService) Delete(ctx context.Context, id string, actor *models.AuditActor) error {
	perm, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, models.ErrPermissionInUse) {
			return appErrors.Conflict("Permission '%s' is the only permission of a role", perm.Name)
		}
		return appErrors.Internal(err, "failed to delete permission")
	}

	s.record(ctx, actor, models.AuditActionPermissionDelete, id, perm, nil)
	return nil
}

func (s *PermissionService) record(ctx context.Context, actor *models.AuditActor, action, resourceID string, before, after interface{}) {
	writeAudit(ctx, s.audit, s.logger, actor, action, "permissions", resourceID, before, after)
}

// normalizeAuthorityName upper-cases role and permission names so lookups stay exact.
func normalizeAuthorityName(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// writeAudit records a best effort audit row; failures are logged and swallowed.
func writeAudit(ctx context.Context, audit auditWriter, logger *zap.Logger, actor *models.AuditActor, action, resource, resourceID string, before, after interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if actor != nil {
		if actor.UserID != "" {
			userID := actor.UserID
			entry.UserID = &userID
		}
		entry.IPAddress = actor.IP
		entry.UserAgent = actor.UserAgent
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := audit.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
