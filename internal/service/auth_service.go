package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/npesaras/wolfie-rag/internal/pkg/errors"
	"github.com/npesaras/wolfie-rag/internal/pkg/jwt"
	"github.com/npesaras/wolfie-rag/internal/pkg/password"
)

const adminSubject = "admin"

// AuthService issues admin tokens for the mutating routes. There is one
// admin identity, configured as a bcrypt hash.
type AuthService struct {
	passwordHash string
	jwtSecret    []byte
	jwtTTL       time.Duration
}

func NewAuthService(passwordHash string, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{passwordHash: passwordHash, jwtSecret: secret, jwtTTL: ttl}
}

// Enabled reports whether admin routes are guarded at all.
func (s *AuthService) Enabled() bool {
	return len(s.jwtSecret) > 0
}

func (s *AuthService) Login(ctx context.Context, plainPassword string) (string, error) {
	if !s.Enabled() {
		return "", fmt.Errorf("admin auth is not configured: %w", appErr.ErrInvalid)
	}
	if err := password.Compare(s.passwordHash, plainPassword); err != nil {
		logutil.GetLogger(ctx).Warn("admin login rejected")
		return "", appErr.ErrUnauthorized
	}
	return s.IssueToken()
}

// IssueToken mints an admin token without a password check; the CLI uses it.
func (s *AuthService) IssueToken() (string, error) {
	token, err := jwt.GenerateToken(adminSubject, jwt.RoleAdmin, s.jwtSecret, s.jwtTTL)
	if err != nil {
		return "", err
	}
	logutil.GetLogger(context.Background()).Info("admin token issued", zap.Duration("ttl", s.jwtTTL))
	return token, nil
}
