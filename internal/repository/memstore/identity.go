package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/ctp-api/internal/models"
	"github.com/noah-isme/ctp-api/pkg/database"
)

// PermissionRepository implements permission persistence on the store.
type PermissionRepository struct{ s *Store }

// Permissions returns the permission repository view.
func (s *Store) Permissions() *PermissionRepository { return &PermissionRepository{s: s} }

func (r *PermissionRepository) List(_ context.Context, filter models.PermissionFilter) ([]models.Permission, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Permission
	for _, p := range r.s.permissions {
		if filter.Search == "" || containsFold(p.Name, filter.Search) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *PermissionRepository) FindByID(_ context.Context, id string) (*models.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.permissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &p, nil
}

func (r *PermissionRepository) FindByName(_ context.Context, name string) (*models.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.permissions {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *PermissionRepository) FindByIDs(_ context.Context, ids []string) ([]models.Permission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Permission, 0, len(ids))
	for id := range newIDSet(ids) {
		if p, ok := r.s.permissions[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *PermissionRepository) ExistsByName(_ context.Context, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.permissions {
		if p.Name == name && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *PermissionRepository) Create(_ context.Context, perm *models.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.permissions {
		if p.Name == perm.Name {
			return fmt.Errorf("create permission: %w", database.ErrDuplicate)
		}
	}
	if perm.ID == "" {
		perm.ID = uuid.NewString()
	}
	stamp(&perm.CreatedAt, &perm.UpdatedAt)
	r.s.permissions[perm.ID] = *perm
	return nil
}

func (r *PermissionRepository) Update(_ context.Context, perm *models.Permission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.permissions[perm.ID]
	if !ok {
		return nil
	}
	for _, p := range r.s.permissions {
		if p.Name == perm.Name && p.ID != perm.ID {
			return fmt.Errorf("update permission: %w", database.ErrDuplicate)
		}
	}
	stamp(nil, &perm.UpdatedAt)
	perm.CreatedAt = existing.CreatedAt
	r.s.permissions[perm.ID] = *perm
	return nil
}

func (r *PermissionRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var sole int
	for _, rec := range r.s.roles {
		if _, ok := rec.permissions[id]; ok && len(rec.permissions) == 1 {
			sole++
		}
	}
	if sole > 0 {
		return fmt.Errorf("%w: %d role(s)", models.ErrPermissionInUse, sole)
	}
	delete(r.s.permissions, id)
	for _, rec := range r.s.roles {
		delete(rec.permissions, id)
	}
	return nil
}

// RoleRepository implements role persistence on the store.
type RoleRepository struct{ s *Store }

// Roles returns the role repository view.
func (s *Store) Roles() *RoleRepository { return &RoleRepository{s: s} }

func (r *RoleRepository) List(_ context.Context, filter models.RoleFilter) ([]models.Role, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.Role
	for _, rec := range r.s.roles {
		if filter.Search == "" || containsFold(rec.role.Name, filter.Search) {
			out = append(out, r.s.hydrateRole(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func (r *RoleRepository) FindByID(_ context.Context, id string) (*models.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.roles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	role := r.s.hydrateRole(rec)
	return &role, nil
}

func (r *RoleRepository) FindByName(_ context.Context, name string) (*models.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rec := range r.s.roles {
		if rec.role.Name == name {
			role := r.s.hydrateRole(rec)
			return &role, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *RoleRepository) FindByIDs(_ context.Context, ids []string) ([]models.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]models.Role, 0, len(ids))
	for id := range newIDSet(ids) {
		if rec, ok := r.s.roles[id]; ok {
			out = append(out, r.s.hydrateRole(rec))
		}
	}
	return out, nil
}

func (r *RoleRepository) ExistsByName(_ context.Context, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, rec := range r.s.roles {
		if rec.role.Name == name && rec.role.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *RoleRepository) Create(_ context.Context, role *models.Role, permissionIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, rec := range r.s.roles {
		if rec.role.Name == role.Name {
			return fmt.Errorf("create role: %w", database.ErrDuplicate)
		}
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	stamp(&role.CreatedAt, &role.UpdatedAt)
	stored := *role
	stored.Permissions = nil
	r.s.roles[role.ID] = &roleRecord{role: stored, permissions: newIDSet(permissionIDs)}
	return nil
}

func (r *RoleRepository) Update(_ context.Context, role *models.Role, permissionIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.roles[role.ID]
	if !ok {
		return nil
	}
	for _, other := range r.s.roles {
		if other.role.Name == role.Name && other.role.ID != role.ID {
			return fmt.Errorf("update role: %w", database.ErrDuplicate)
		}
	}
	stamp(nil, &role.UpdatedAt)
	role.CreatedAt = rec.role.CreatedAt
	stored := *role
	stored.Permissions = nil
	rec.role = stored
	rec.permissions = newIDSet(permissionIDs)
	return nil
}

func (r *RoleRepository) AddPermission(_ context.Context, roleID, permissionID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.roles[roleID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if _, exists := rec.permissions[permissionID]; exists {
		return false, nil
	}
	rec.permissions[permissionID] = struct{}{}
	return true, nil
}

func (r *RoleRepository) RemovePermission(_ context.Context, roleID, permissionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.roles[roleID]
	if !ok {
		return sql.ErrNoRows
	}
	others := len(rec.permissions)
	if _, held := rec.permissions[permissionID]; held {
		others--
	}
	if others == 0 {
		return models.ErrLastPermission
	}
	delete(rec.permissions, permissionID)
	return nil
}

func (r *RoleRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.roles, id)
	return nil
}

func (r *RoleRepository) CountUsers(_ context.Context, id string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var count int
	for _, rec := range r.s.users {
		if _, ok := rec.roles[id]; ok {
			count++
		}
	}
	return count, nil
}

// UserRepository implements user, token and audit persistence on the store.
type UserRepository struct{ s *Store }

// Users returns the user repository view.
func (s *Store) Users() *UserRepository { return &UserRepository{s: s} }

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, rec := range r.s.users {
		if rec.user.Email == email {
			user := r.s.hydrateUser(rec)
			return &user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	user := r.s.hydrateUser(rec)
	return &user, nil
}

func (r *UserRepository) ExistsByEmail(_ context.Context, email, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	email = strings.ToLower(email)
	for _, rec := range r.s.users {
		if rec.user.Email == email && rec.user.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *UserRepository) List(_ context.Context, filter models.UserFilter) ([]models.User, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []models.User
	for _, rec := range r.s.users {
		if filter.Active != nil && rec.user.IsActive != *filter.Active {
			continue
		}
		if filter.Search != "" && !containsFold(rec.user.Email, filter.Search) && !containsFold(rec.user.Name, filter.Search) {
			continue
		}
		user := r.s.hydrateUser(rec)
		if filter.RoleName != "" && !hasRoleName(user.Roles, filter.RoleName) {
			continue
		}
		out = append(out, user)
	}
	asc := strings.EqualFold(filter.SortOrder, "asc")
	sort.SliceStable(out, func(i, j int) bool {
		a, b := userSortKey(out[i], filter.SortBy), userSortKey(out[j], filter.SortBy)
		if asc {
			return a < b
		}
		return a > b
	})
	return paginate(out, filter.Page, filter.PageSize), len(out), nil
}

func userSortKey(u models.User, sortBy string) string {
	switch sortBy {
	case "email":
		return u.Email
	case "name":
		return u.Name
	case "updated_at":
		return u.UpdatedAt.Format(time.RFC3339Nano)
	default:
		return u.CreatedAt.Format(time.RFC3339Nano)
	}
}

func hasRoleName(roles []models.Role, name string) bool {
	for _, role := range roles {
		if role.Name == name {
			return true
		}
	}
	return false
}

func (r *UserRepository) Create(_ context.Context, user *models.User, roleIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.Email = strings.ToLower(user.Email)
	for _, rec := range r.s.users {
		if rec.user.Email == user.Email {
			return fmt.Errorf("create user: %w", database.ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stamp(&user.CreatedAt, &user.UpdatedAt)
	stored := *user
	stored.Roles = nil
	r.s.users[user.ID] = &userRecord{user: stored, roles: newIDSet(roleIDs)}
	return nil
}

func (r *UserRepository) Update(_ context.Context, user *models.User, roleIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.users[user.ID]
	if !ok {
		return nil
	}
	user.Email = strings.ToLower(user.Email)
	for _, other := range r.s.users {
		if other.user.Email == user.Email && other.user.ID != user.ID {
			return fmt.Errorf("update user: %w", database.ErrDuplicate)
		}
	}
	stamp(nil, &user.UpdatedAt)
	user.CreatedAt = rec.user.CreatedAt
	if user.PasswordHash == "" {
		user.PasswordHash = rec.user.PasswordHash
	}
	stored := *user
	stored.Roles = nil
	rec.user = stored
	rec.roles = newIDSet(roleIDs)
	return nil
}

func (r *UserRepository) RemoveRole(_ context.Context, userID, roleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	others := len(rec.roles)
	if _, held := rec.roles[roleID]; held {
		others--
	}
	if others == 0 {
		return models.ErrLastRole
	}
	delete(rec.roles, roleID)
	return nil
}

func (r *UserRepository) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.users[id]; ok {
		rec.user.PasswordHash = passwordHash
		rec.user.UpdatedAt = updatedAt
	}
	return nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.users, id)
	for jti, token := range r.s.refreshTokens {
		if token.UserID == id {
			delete(r.s.refreshTokens, jti)
		}
	}
	delete(r.s.professors, id)
	if _, ok := r.s.students[id]; ok {
		r.s.deleteStudentLocked(id)
	}
	return nil
}

func (r *UserRepository) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	if _, exists := r.s.refreshTokens[token.ID]; exists {
		return fmt.Errorf("create refresh token: %w", database.ErrDuplicate)
	}
	r.s.refreshTokens[token.ID] = *token
	return nil
}

func (r *UserRepository) FindRefreshToken(_ context.Context, id string) (*models.RefreshToken, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	token, ok := r.s.refreshTokens[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &token, nil
}

func (r *UserRepository) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if token, ok := r.s.refreshTokens[id]; ok {
		token.Revoked = true
		token.RevokedAt = &revokedAt
		r.s.refreshTokens[id] = token
	}
	return nil
}

func (r *UserRepository) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	now := time.Now().UTC()
	for id, token := range r.s.refreshTokens {
		if token.UserID == userID && !token.Revoked {
			token.Revoked = true
			token.RevokedAt = &now
			r.s.refreshTokens[id] = token
		}
	}
	return nil
}

func (r *UserRepository) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	r.s.auditLogs = append(r.s.auditLogs, *log)
	return nil
}
