package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"habitflow/internal/model"
	"habitflow/internal/repository"
	"habitflow/pkg/util"
)

const (
	MinPasswordLength = 8
	MaxLoginFailures  = 5
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many failed logins, try again later")
)

type AuthService struct {
	users     repository.Users
	failures  *util.AttemptCounter
	jwtSecret string
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuthService builds the service. failures may be nil to disable login
// throttling.
func NewAuthService(users repository.Users, failures *util.AttemptCounter, jwtSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		users:     users,
		failures:  failures,
		jwtSecret: jwtSecret,
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if util.IsUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.Int64("user_id", u.ID))
	return u, nil
}

// Login checks user credentials and returns JWT.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)

	if s.failures != nil {
		count, err := s.failures.Get(ctx, email)
		if err != nil {
			s.logger.Warn("Login throttle check failed", zap.Error(err))
		} else if count >= MaxLoginFailures {
			return "", ErrTooManyAttempts
		}
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return "", err
		}
		s.recordFailure(ctx, email)
		return "", ErrInvalidCredentials
	}
	if !util.CheckPassword(password, u.PasswordHash) {
		s.recordFailure(ctx, email)
		return "", ErrInvalidCredentials
	}

	if s.failures != nil {
		if err := s.failures.Reset(ctx, email); err != nil {
			s.logger.Warn("Failed to reset login failures", zap.Error(err))
		}
	}
	return util.GenerateJWT(u.ID, s.jwtSecret, s.now())
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.failures == nil {
		return
	}
	if _, err := s.failures.Increment(ctx, email); err != nil {
		s.logger.Warn("Failed to count login failure", zap.Error(err))
	}
}

// Authenticate validates a bearer token and returns the user id.
func (s *AuthService) Authenticate(token string) (int64, error) {
	return util.ParseJWT(token, s.jwtSecret)
}
