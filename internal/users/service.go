package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/anamnesis/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,50}$`)

const (
	minPasswordLen = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordLen = 72
)

// Entry is one leaderboard row.
type Entry struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Rank     *int   `json:"rank"`
}

// Service manages accounts, profiles and the leaderboard.
type Service struct {
	users    store.UserRepo
	profiles store.ProfileRepo
	cache    RankCache
	logger   zerolog.Logger
	cost     int

	// OnUserCreated runs after every successful registration. New sets it
	// to create the user's profile.
	OnUserCreated func(ctx context.Context, u *store.User) error
}

// Option customizes a Service.
type Option func(*Service)

// WithCache sets the leaderboard cache.
func WithCache(c RankCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service.
func New(users store.UserRepo, profiles store.ProfileRepo, opts ...Option) *Service {
	s := &Service{
		users:    users,
		profiles: profiles,
		cache:    NoopCache{},
		logger:   zerolog.Nop(),
		cost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.OnUserCreated = s.createProfile
	return s
}

// Register creates an account and runs OnUserCreated.
func (s *Service) Register(ctx context.Context, username, email, password string) (*store.User, error) {
	if err := validateRegistration(username, email, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.Create(ctx, store.NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.OnUserCreated != nil {
		if err := s.OnUserCreated(ctx, u); err != nil {
			return nil, fmt.Errorf("user created hook: %w", err)
		}
	}

	s.logger.Info().Int64("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// Authenticate checks a username and password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// Profile returns the user with current points and rank.
func (s *Service) Profile(ctx context.Context, userID int64) (*store.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// TopUsers returns the n best ranked users, served from the cache when
// possible.
func (s *Service) TopUsers(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return []Entry{}, nil
	}

	if entries, ok := s.cache.Get(ctx, n); ok {
		return entries, nil
	}

	top, err := s.users.Top(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}
	entries := make([]Entry, len(top))
	for i, u := range top {
		entries[i] = Entry{ID: u.ID, Username: u.Username, Points: u.Points, Rank: u.Rank}
	}

	if err := s.cache.Set(ctx, n, entries); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache leaderboard")
	}
	return entries, nil
}

// RecomputeRanks reassigns every user's rank from points and drops the
// cached leaderboard.
func (s *Service) RecomputeRanks(ctx context.Context) error {
	if err := s.users.RecomputeRanks(ctx); err != nil {
		return fmt.Errorf("recompute ranks: %w", err)
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate leaderboard cache")
	}
	return nil
}

func (s *Service) createProfile(ctx context.Context, u *store.User) error {
	if _, err := s.profiles.Create(ctx, u.ID); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func validateRegistration(username, email, password string) error {
	if !usernamePattern.MatchString(username) {
		return fmt.Errorf("%w: username must be 3-50 letters, digits, '_', '.' or '-'", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordLen)
	}
	return nil
}
