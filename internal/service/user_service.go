package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, user *models.User, roleIDs []string) error
	Update(ctx context.Context, user *models.User, roleIDs []string) error
	RemoveRole(ctx context.Context, userID, roleID string) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type roleLookup interface {
	FindByID(ctx context.Context, id string) (*models.Role, error)
	FindByName(ctx context.Context, name string) (*models.Role, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.Role, error)
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Name     string   `json:"name" validate:"required,max=120"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	PhotoURL *string  `json:"photo_url" validate:"omitempty,url"`
	Active   *bool    `json:"is_active"`
	RoleIDs  []string `json:"role_ids" validate:"dive,required"`
}

// UpdateUserRequest payload for updating users. A blank password keeps the current one.
type UpdateUserRequest struct {
	Name     string   `json:"name" validate:"required,max=120"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"omitempty,min=6"`
	PhotoURL *string  `json:"photo_url" validate:"omitempty,url"`
	Active   *bool    `json:"is_active"`
	RoleIDs  []string `json:"role_ids" validate:"dive,required"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	roles     roleLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, roles roleLookup, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, roles: roles, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("User", id)
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Create adds a new user holding at least one role, every role carrying a permission.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actor *models.AuditActor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid create user payload")
	}
	email := normalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}
	roles, err := s.resolveRoles(ctx, email, req.RoleIDs)
	if err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
		PhotoURL:     req.PhotoURL,
		IsActive:     req.Active == nil || *req.Active,
	}
	if err := s.persist(ctx, user, roles, true); err != nil {
		return nil, err
	}

	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserCreate, "users", user.ID, nil, auditUser(user))
	return user, nil
}

// Register creates a self-service account holding only the named default role.
func (s *UserService) Register(ctx context.Context, name, email, rawPassword, defaultRoleName string) (*models.User, error) {
	email = normalizeEmail(email)
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	role, err := s.roles.FindByName(ctx, normalizeAuthorityName(defaultRoleName))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NotFound("Role", defaultRoleName)
		}
		return nil, appErrors.Internal(err, "failed to load default role")
	}
	if len(role.Permissions) == 0 {
		return nil, appErrors.Business("Role '%s' must have at least one permission", role.Name)
	}

	hash, err := hashPassword(rawPassword)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.persist(ctx, user, []models.Role{*role}, true); err != nil {
		return nil, err
	}
	return user, nil
}

// Update modifies the user attributes and role set; created_at never changes.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actor *models.AuditActor) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid update user payload")
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := auditUser(user)

	email := normalizeEmail(req.Email)
	if err := s.ensureEmailFree(ctx, email, id); err != nil {
		return nil, err
	}
	roles, err := s.resolveRoles(ctx, email, req.RoleIDs)
	if err != nil {
		return nil, err
	}

	user.Name = strings.TrimSpace(req.Name)
	user.Email = email
	user.PhotoURL = req.PhotoURL
	if req.Active != nil {
		user.IsActive = *req.Active
	}
	if req.Password != "" {
		hash, err := hashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if err := s.persist(ctx, user, roles, false); err != nil {
		return nil, err
	}

	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserUpdate, "users", user.ID, before, auditUser(user))
	return user, nil
}

// AddRole grants one more role to the user; an already held role is a no-op.
func (s *UserService) AddRole(ctx context.Context, userID, roleID string, actor *models.AuditActor) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, r := range user.Roles {
		if r.ID == roleID {
			return user, nil
		}
	}
	roles, err := s.resolveRoles(ctx, user.Email, append(user.RoleIDs(), roleID))
	if err != nil {
		return nil, err
	}
	before := auditUser(user)
	if err := s.persist(ctx, user, roles, false); err != nil {
		return nil, err
	}
	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserUpdate, "users", user.ID, before, auditUser(user))
	return user, nil
}

// RemoveRole revokes a role, refusing to leave the user without any role.
func (s *UserService) RemoveRole(ctx context.Context, userID, roleID string, actor *models.AuditActor) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := false
	for _, r := range user.Roles {
		if r.ID == roleID {
			held = true
			break
		}
	}
	if !held {
		if _, err := s.roles.FindByID(ctx, roleID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.NotFound("Role", roleID)
			}
			return nil, appErrors.Internal(err, "failed to load role")
		}
		return user, nil
	}
	before := auditUser(user)
	if err := s.repo.RemoveRole(ctx, user.ID, roleID); err != nil {
		switch {
		case errors.Is(err, models.ErrLastRole):
			return nil, appErrors.Business("User '%s' must have at least one role", user.Email)
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.NotFound("User", userID)
		}
		return nil, appErrors.Internal(err, "failed to remove role from user")
	}
	if user, err = s.Get(ctx, user.ID); err != nil {
		return nil, err
	}
	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserUpdate, "users", user.ID, before, auditUser(user))
	return user, nil
}

// Delete removes a user.
func (s *UserService) Delete(ctx context.Context, id string, actor *models.AuditActor) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Internal(err, "failed to delete user")
	}
	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserDelete, "users", id, auditUser(user), nil)
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Conflict("User with email '%s' already exists", email)
	}
	return nil
}

// resolveRoles loads the role set and checks it is non-empty and every role holds a permission.
func (s *UserService) resolveRoles(ctx context.Context, email string, ids []string) ([]models.Role, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, appErrors.Business("User '%s' must have at least one role", email)
	}
	roles, err := s.roles.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load roles")
	}
	byID := make(map[string]models.Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	ordered := make([]models.Role, 0, len(ids))
	for _, id := range ids {
		role, ok := byID[id]
		if !ok {
			return nil, appErrors.NotFound("Role", id)
		}
		if len(role.Permissions) == 0 {
			return nil, appErrors.Business("Role '%s' must have at least one permission", role.Name)
		}
		ordered = append(ordered, role)
	}
	return ordered, nil
}

func (s *UserService) persist(ctx context.Context, user *models.User, roles []models.Role, create bool) error {
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	var err error
	if create {
		err = s.repo.Create(ctx, user, ids)
	} else {
		err = s.repo.Update(ctx, user, ids)
	}
	if err != nil {
		if database.IsUniqueViolation(err) {
			return appErrors.Conflict("User with email '%s' already exists", user.Email)
		}
		if create {
			return appErrors.Internal(err, "failed to create user")
		}
		return appErrors.Internal(err, "failed to update user")
	}
	user.Roles = roles
	return nil
}

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

func hashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcryptCost)
	if err != nil {
		return "", appErrors.Internal(err, "failed to hash password")
	}
	return string(hash), nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func auditUser(u *models.User) map[string]interface{} {
	return map[string]interface{}{"id": u.ID, "email": u.Email, "name": u.Name, "active": u.IsActive, "roles": u.RoleNames()}
}
