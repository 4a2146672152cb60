package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ctp-api/internal/authz"
	"github.com/noah-isme/ctp-api/internal/models"
	appErrors "github.com/noah-isme/ctp-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	FindRefreshToken(ctx context.Context, id string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type registrar interface {
	Register(ctx context.Context, name, email, rawPassword, defaultRoleName string) (*models.User, error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Issuer             string
	Audience           []string
	SingleSession      bool
	DefaultRole        string
}

// AuthService provides authentication use cases.
type AuthService struct {
	repo      authUserRepository
	users     registrar
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
	compare   func(hash, password []byte) error
	// decoyHash is compared against when the email is unknown so both failures cost a bcrypt round.
	decoyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authUserRepository, users registrar, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultRole == "" {
		config.DefaultRole = models.RoleStudent
	}
	decoy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		logger.Warn("failed to build login decoy hash", zap.Error(err))
	}
	return &AuthService{
		repo:      repo,
		users:     users,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
		compare:   bcrypt.CompareHashAndPassword,
		decoyHash: decoy,
	}
}

// Register creates an active account holding the configured default role.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid register payload")
	}

	user, err := s.users.Register(ctx, req.Name, req.Email, req.Password, s.config.DefaultRole)
	if err != nil {
		return nil, err
	}

	writeAudit(ctx, s.repo, s.logger, &models.AuditActor{UserID: user.ID, IP: req.IP, UserAgent: req.UserAgent},
		models.AuditActionRegister, "auth", user.ID, nil, map[string]string{"email": user.Email})

	info := userInfo(user)
	return &info, nil
}

// Login authenticates a user and returns issued tokens. Unknown email and wrong password
// produce the same error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.compare(s.decoyHash, []byte(req.Password))
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Internal(err, "failed to fetch user")
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !user.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	if s.config.SingleSession {
		if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
			s.logger.Warn("failed to revoke previous refresh tokens", zap.Error(err))
		}
	}

	issuedAt := s.now()
	access, refresh, err := s.issueTokens(ctx, user, issuedAt, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	writeAudit(ctx, s.repo, s.logger, &models.AuditActor{UserID: user.ID, IP: req.IP, UserAgent: req.UserAgent},
		models.AuditActionLogin, "auth", user.ID, nil, map[string]string{"status": "success"})

	return &models.LoginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		User:         userInfo(user),
		IssuedAt:     issuedAt,
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair, rotating the refresh token.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid refresh payload")
	}

	claims, err := s.parse(req.RefreshToken, models.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.FindRefreshToken(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not recognised")
		}
		return nil, appErrors.Internal(err, "failed to fetch refresh token")
	}
	if stored.Revoked || s.now().After(stored.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token is expired or revoked")
	}

	user, err := s.repo.FindByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "associated user no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "")
	}

	issuedAt := s.now()
	if err := s.repo.RevokeRefreshToken(ctx, stored.ID, issuedAt); err != nil {
		return nil, appErrors.Internal(err, "failed to rotate refresh token")
	}
	access, refresh, err := s.issueTokens(ctx, user, issuedAt, req.IP, req.UserAgent)
	if err != nil {
		return nil, err
	}

	return &models.RefreshTokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     issuedAt,
	}, nil
}

// Logout revokes the given refresh token, or every token of the user when none is given.
func (s *AuthService) Logout(ctx context.Context, principal *authz.Principal, refreshToken string, actor *models.AuditActor) error {
	if principal == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}

	if refreshToken == "" {
		if err := s.repo.RevokeUserRefreshTokens(ctx, principal.UserID); err != nil {
			return appErrors.Internal(err, "failed to revoke refresh tokens")
		}
	} else {
		claims, err := s.parse(refreshToken, models.TokenTypeRefresh)
		if err != nil {
			return err
		}
		stored, err := s.repo.FindRefreshToken(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not recognised")
			}
			return appErrors.Internal(err, "failed to load refresh token")
		}
		if stored.UserID != principal.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "token does not belong to user")
		}
		if err := s.repo.RevokeRefreshToken(ctx, stored.ID, s.now()); err != nil {
			return appErrors.Internal(err, "failed to revoke refresh token")
		}
	}

	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionLogout, "auth", principal.UserID, nil, map[string]string{"status": "logout"})
	return nil
}

// ChangePassword replaces the caller's password and revokes their refresh tokens.
func (s *AuthService) ChangePassword(ctx context.Context, principal *authz.Principal, req models.ChangePasswordRequest, actor *models.AuditActor) error {
	if principal == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid change password payload")
	}

	user, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.NotFound("User", principal.UserID)
		}
		return appErrors.Internal(err, "failed to load user")
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrForbidden, "old password does not match")
	}

	hash, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash, s.now()); err != nil {
		return appErrors.Internal(err, "failed to update password")
	}
	if err := s.repo.RevokeUserRefreshTokens(ctx, user.ID); err != nil {
		s.logger.Warn("failed to revoke refresh tokens after password change", zap.Error(err))
	}

	writeAudit(ctx, s.repo, s.logger, actor, models.AuditActionPasswordChange, "auth", user.ID, nil, map[string]string{"status": "changed"})
	return nil
}

// Me returns the current profile of the principal with freshly derived authorities.
func (s *AuthService) Me(ctx context.Context, principal *authz.Principal) (*models.UserInfo, error) {
	if principal == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "")
	}
	user, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	info := userInfo(user)
	return &info, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	return s.parse(tokenString, models.TokenTypeAccess)
}

func (s *AuthService) parse(tokenString, tokenType string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.TokenType != tokenType {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected token type")
	}
	return claims, nil
}

// issueTokens signs an access token and a persisted refresh token for the user.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User, issuedAt time.Time, ip, userAgent string) (string, string, error) {
	access, err := s.sign(user, models.TokenTypeAccess, uuid.NewString(), issuedAt, s.config.AccessTokenExpiry)
	if err != nil {
		return "", "", appErrors.Internal(err, "failed to create access token")
	}

	stored := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: issuedAt.Add(s.config.RefreshTokenExpiry),
		CreatedAt: issuedAt,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	refresh, err := s.sign(user, models.TokenTypeRefresh, stored.ID, issuedAt, s.config.RefreshTokenExpiry)
	if err != nil {
		return "", "", appErrors.Internal(err, "failed to create refresh token")
	}
	if err := s.repo.CreateRefreshToken(ctx, stored); err != nil {
		return "", "", appErrors.Internal(err, "failed to persist refresh token")
	}
	return access, refresh, nil
}

func (s *AuthService) sign(user *models.User, tokenType, jti string, issuedAt time.Time, ttl time.Duration) (string, error) {
	authorities := authz.Derive(user.Roles)
	claims := &models.JWTClaims{
		UserID:      user.ID,
		Email:       user.Email,
		Name:        user.Name,
		Roles:       authorities.Roles(),
		Permissions: authorities.Permissions(),
		TokenType:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.AccessTokenSecret))
}

func userInfo(user *models.User) models.UserInfo {
	authorities := authz.Derive(user.Roles)
	return models.UserInfo{
		ID:          user.ID,
		Name:        user.Name,
		Email:       user.Email,
		PhotoURL:    user.PhotoURL,
		Roles:       authorities.Roles(),
		Permissions: authorities.Permissions(),
	}
}
