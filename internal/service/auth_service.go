package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/snchs-registrar/enrollment-api/internal/models"
	apperrors "github.com/snchs-registrar/enrollment-api/pkg/errors"
)

type authUserRepository interface {
	Get(ctx context.Context, uid string) (*models.User, error)
	Ensure(ctx context.Context, principal models.Principal) (*models.User, error)
	SetRole(ctx context.Context, uid string, role models.UserRole) error
	List(ctx context.Context) ([]*models.User, error)
}

// AuthConfig defines configuration for token verification and issuance.
type AuthConfig struct {
	Secret            string
	Expiry            time.Duration
	Issuer            string
	AdminEmail        string
	AdminPasswordHash string
}

// AuthService verifies externally issued tokens, maintains user records, and
// handles the bootstrap admin login.
type AuthService struct {
	users     authUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs the service.
func NewAuthService(users authUserRepository, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{users: users, validator: validate, logger: logger, config: config}
}

// VerifyToken parses and validates an HS256 bearer token and extracts the
// principal. The role claim, if any, is ignored here.
func (s *AuthService) VerifyToken(tokenString string) (models.Principal, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrUnauthorized
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, apperrors.Clone(apperrors.ErrUnauthorized, "invalid or expired token")
	}
	uid := claims.UID
	if uid == "" {
		uid = claims.Subject
	}
	if uid == "" {
		return models.Principal{}, apperrors.Clone(apperrors.ErrUnauthorized, "token has no subject")
	}
	return models.Principal{
		UID:         uid,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		PhotoURL:    claims.PhotoURL,
	}, nil
}

// Authenticate verifies the token and resolves the stored user, creating a
// student record on first sight. The stored role is authoritative.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	principal, err := s.VerifyToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Ensure(ctx, principal)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to resolve user")
	}
	return user, nil
}

// Login authenticates the configured bootstrap admin and issues a token. Any
// mismatch answers with the same credential error.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrValidation.Code, apperrors.ErrValidation.Status, "invalid login payload")
	}
	if s.config.AdminEmail == "" || s.config.AdminPasswordHash == "" {
		return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "invalid email or password")
	}
	if req.Email != s.config.AdminEmail {
		return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(req.Password)); err != nil {
		return nil, apperrors.Clone(apperrors.ErrInvalidCredentials, "invalid email or password")
	}

	user, err := s.users.Ensure(ctx, models.Principal{
		UID:         "admin",
		Email:       s.config.AdminEmail,
		DisplayName: "Registrar",
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to resolve admin user")
	}
	if user.Role != models.RoleAdmin {
		if err := s.users.SetRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to promote admin user")
		}
		user.Role = models.RoleAdmin
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to create access token")
	}
	s.logger.Info("admin login", zap.String("email", req.Email))
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		User:        *user,
	}, nil
}

// SetRole changes a user's stored role.
func (s *AuthService) SetRole(ctx context.Context, uid string, role models.UserRole) error {
	if role != models.RoleAdmin && role != models.RoleStudent {
		return apperrors.Clone(apperrors.ErrValidation, "unknown role")
	}
	if _, err := s.users.Get(ctx, uid); err != nil {
		return mapReadErr(err, "user not found")
	}
	if err := s.users.SetRole(ctx, uid, role); err != nil {
		return apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to set role")
	}
	return nil
}

// ListUsers returns every user for the admin panel.
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrInternal.Code, apperrors.ErrInternal.Status, "failed to list users")
	}
	return users, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := time.Now().UTC()
	claims := models.JWTClaims{
		UID:         user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}
