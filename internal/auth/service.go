// Package auth registers users, checks passwords and issues and validates the
// signed bearer credentials used by every protected endpoint.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/internal/metrics"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

const DefaultTokenTTL = 24 * time.Hour

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Denylist holds revoked credential ids. Entries may be dropped once until passes.
type Denylist interface {
	Revoke(ctx context.Context, id string, until time.Time) error
	IsRevoked(ctx context.Context, id string) (bool, error)
}

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Service struct {
	users      UserStore
	secret     []byte
	ttl        time.Duration
	denylist   Denylist
	now        func() time.Time
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithDenylist(d Denylist) Option {
	return func(s *Service) { s.denylist = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBcryptCost lowers the hashing cost, mostly for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

func NewService(users UserStore, secret string, ttl time.Duration, opts ...Option) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &Service{
		users:      users,
		secret:     []byte(secret),
		ttl:        ttl,
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := models.Validate(req); err != nil {
		metrics.AuthEventsTotal.WithLabelValues("register", "invalid_input").Inc()
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if stderrors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %w", errors.ErrInvalidInput, errors.ErrInvalidPassword)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateEmail) {
			metrics.AuthEventsTotal.WithLabelValues("register", "duplicate_email").Inc()
		} else {
			metrics.AuthEventsTotal.WithLabelValues("register", "error").Inc()
		}
		return nil, err
	}

	metrics.AuthEventsTotal.WithLabelValues("register", "success").Inc()
	log := logger.Get()
	log.Info().Str("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login returns errors.ErrInvalidCredentials for an unknown email and for a
// wrong password alike. Both paths run one bcrypt comparison.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case stderrors.Is(err, errors.ErrUserNotFound):
		_ = bcrypt.CompareHashAndPassword(s.fakeHash(), []byte(password))
		metrics.AuthEventsTotal.WithLabelValues("login", "invalid_credentials").Inc()
		return "", nil, errors.ErrInvalidCredentials
	default:
		metrics.AuthEventsTotal.WithLabelValues("login", "error").Inc()
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		metrics.AuthEventsTotal.WithLabelValues("login", "invalid_credentials").Inc()
		return "", nil, errors.ErrInvalidCredentials
	}

	token, _, err := s.Issue(user)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("login", "error").Inc()
		return "", nil, err
	}
	metrics.AuthEventsTotal.WithLabelValues("login", "success").Inc()
	return token, user, nil
}

// Issue mints a credential for user, returning it with its expiry.
func (s *Service) Issue(user *models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate returns the user id bound to token. Every failure is
// errors.ErrUnauthenticated.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	claims, err := s.parse(token)
	if err != nil {
		metrics.AuthEventsTotal.WithLabelValues("validate", "unauthenticated").Inc()
		return "", err
	}

	if s.denylist != nil && claims.ID != "" {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return "", fmt.Errorf("check denylist: %w", err)
		}
		if revoked {
			metrics.AuthEventsTotal.WithLabelValues("validate", "unauthenticated").Inc()
			return "", errors.ErrUnauthenticated
		}
	}
	return claims.UserID, nil
}

// Revoke denylists token until its own expiry. Without a denylist it is a no-op
// and the credential stays usable until it expires.
func (s *Service) Revoke(ctx context.Context, token string) error {
	if s.denylist == nil {
		return nil
	}
	claims, err := s.parse(token)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return nil
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	metrics.AuthEventsTotal.WithLabelValues("revoke", "success").Inc()
	return nil
}

func (s *Service) User(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return nil, errors.ErrUnauthenticated
	}
	return user, err
}

func (s *Service) parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, errors.ErrUnauthenticated
	}
	return claims, nil
}

func (s *Service) fakeHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
	})
	return s.dummyHash
}
