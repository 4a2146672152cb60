// Package memstore is an in-memory, id-keyed implementation of the repository contracts.
// Relationships are held as id sets and hydrated on read, mirroring the relational layout.
// It backs STORAGE_DRIVER=memory and end-to-end tests.
package memstore

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/ctp-api/internal/models"
)

type idSet map[string]struct{}

func newIDSet(ids []string) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

type roleRecord struct {
	role        models.Role
	permissions idSet
}

type userRecord struct {
	user  models.User
	roles idSet
}

// Store holds every entity behind a single lock.
type Store struct {
	mu sync.RWMutex

	permissions   map[string]models.Permission
	roles         map[string]*roleRecord
	users         map[string]*userRecord
	refreshTokens map[string]models.RefreshToken
	auditLogs     []models.AuditLog

	semesters   map[string]models.Semester
	groups      map[string]models.Group
	professors  map[string]time.Time
	students    map[string]models.Student
	activities  map[string]models.Activity
	exercises   map[string]models.Exercise
	resolutions map[string]models.Resolution
	// resolutionOrder keeps submission order for score aggregation.
	resolutionOrder []string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		permissions:   make(map[string]models.Permission),
		roles:         make(map[string]*roleRecord),
		users:         make(map[string]*userRecord),
		refreshTokens: make(map[string]models.RefreshToken),
		semesters:     make(map[string]models.Semester),
		groups:        make(map[string]models.Group),
		professors:    make(map[string]time.Time),
		students:      make(map[string]models.Student),
		activities:    make(map[string]models.Activity),
		exercises:     make(map[string]models.Exercise),
		resolutions:   make(map[string]models.Resolution),
	}
}

// AuditLogs returns a copy of recorded audit entries.
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditLog, len(s.auditLogs))
	copy(out, s.auditLogs)
	return out
}

func paginate[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func stamp(created *time.Time, updated *time.Time) {
	now := time.Now().UTC()
	if created != nil && created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
}

// hydrateRole must be called with the lock held.
func (s *Store) hydrateRole(rec *roleRecord) models.Role {
	role := rec.role
	role.Permissions = make([]models.Permission, 0, len(rec.permissions))
	for _, id := range rec.permissions.sorted() {
		if p, ok := s.permissions[id]; ok {
			role.Permissions = append(role.Permissions, p)
		}
	}
	sort.SliceStable(role.Permissions, func(i, j int) bool { return role.Permissions[i].Name < role.Permissions[j].Name })
	return role
}

// hydrateUser must be called with the lock held.
func (s *Store) hydrateUser(rec *userRecord) models.User {
	user := rec.user
	user.Roles = make([]models.Role, 0, len(rec.roles))
	for _, id := range rec.roles.sorted() {
		if r, ok := s.roles[id]; ok {
			user.Roles = append(user.Roles, s.hydrateRole(r))
		}
	}
	sort.SliceStable(user.Roles, func(i, j int) bool { return user.Roles[i].Name < user.Roles[j].Name })
	return user
}
