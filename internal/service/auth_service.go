package service

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sla/internal/auth"
	"github.com/spec-kit/ticket-sla/internal/config"
	apperrors "github.com/spec-kit/ticket-sla/pkg/util"
)

type operator struct {
	role auth.Role
	hash string
}

// AuthService authenticates ops API operators configured through the
// environment.
type AuthService struct {
	operators  map[string]operator
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Operator  string
	Role      auth.Role
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service from configuration. Entries with an
// unknown role or a malformed password hash are skipped.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuthService{
		operators:  make(map[string]operator, len(cfg.Operators)),
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
	for _, op := range cfg.Operators {
		role := auth.Role(strings.ToLower(op.Role))
		if !role.Valid() {
			logger.Warn("skipping operator with unknown role", zap.String("operator", op.Name), zap.String("role", op.Role))
			continue
		}
		if err := auth.ValidateHash(op.PasswordHash); err != nil {
			logger.Warn("skipping operator with bad password hash", zap.String("operator", op.Name), zap.Error(err))
			continue
		}
		s.operators[op.Name] = operator{role: role, hash: op.PasswordHash}
	}
	return s
}

// Tokens exposes the token manager for the HTTP middleware.
func (s *AuthService) Tokens() *auth.TokenManager {
	return s.tokenMgr
}

// OperatorRole implements auth.OperatorLookup.
func (s *AuthService) OperatorRole(name string) (auth.Role, bool) {
	op, ok := s.operators[name]
	return op.role, ok
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(name, password string) (*LoginResult, error) {
	op, ok := s.operators[name]
	if !ok {
		// keep timing comparable to a known operator
		_ = auth.ComparePassword(s.fallbackHash(), password)
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(op.hash, password); err != nil {
		s.logger.Warn("operator login failed", zap.String("operator", name), zap.Error(err))
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(name, op.role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.logger.Info("operator logged in", zap.String("operator", name), zap.String("role", string(op.role)))
	return &LoginResult{Operator: name, Role: op.role, Token: token, ExpiresAt: exp}, nil
}

func (s *AuthService) fallbackHash() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword("fallback-password", s.bcryptCost)
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
