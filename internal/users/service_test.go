package users

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/abhisek/anamnesis/internal/store"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "anamnesis.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	opts = append([]Option{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return New(s.UserRepo(), s.ProfileRepo(), opts...), s
}

// memCache is an in-process RankCache.
type memCache struct {
	entries     map[int][]Entry
	gets, hits  int
	invalidated int
}

func newMemCache() *memCache { return &memCache{entries: map[int][]Entry{}} }

func (m *memCache) Get(_ context.Context, n int) ([]Entry, bool) {
	m.gets++
	e, ok := m.entries[n]
	if ok {
		m.hits++
	}
	return e, ok
}

func (m *memCache) Set(_ context.Context, n int, entries []Entry) error {
	m.entries[n] = entries
	return nil
}

func (m *memCache) Invalidate(context.Context) error {
	m.invalidated++
	m.entries = map[int][]Entry{}
	return nil
}

func TestRegister_CreatesUserAndProfile(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "house", "house@example.com", "vicodin123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.PasswordHash == "vicodin123" || u.PasswordHash == "" {
		t.Fatalf("password not hashed: %q", u.PasswordHash)
	}
	if u.Points != 0 {
		t.Errorf("Points = %d, want 0", u.Points)
	}

	p, err := s.ProfileRepo().GetByUserID(ctx, u.ID)
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if p.UserID != u.ID {
		t.Errorf("profile.UserID = %d, want %d", p.UserID, u.ID)
	}
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "house", "house@example.com", "vicodin123"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, err := svc.Register(ctx, "house", "other@example.com", "vicodin456")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("err = %v, want ErrUsernameTaken", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name     string
		username string
		email    string
		password string
	}{
		{"short username", "ab", "a@example.com", "password1"},
		{"bad username chars", "dr house", "a@example.com", "password1"},
		{"bad email", "house", "not-an-email", "password1"},
		{"short password", "house", "a@example.com", "short"},
		{"long password", "house", "a@example.com", string(make([]byte, 73))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.email, tt.password)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestRegister_HookFailure(t *testing.T) {
	svc, _ := newTestService(t)
	hookErr := errors.New("boom")
	svc.OnUserCreated = func(context.Context, *store.User) error { return hookErr }

	_, err := svc.Register(context.Background(), "house", "house@example.com", "vicodin123")
	if !errors.Is(err, hookErr) {
		t.Fatalf("err = %v, want hook error", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "house", "house@example.com", "vicodin123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := svc.Authenticate(ctx, "house", "vicodin123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("ID = %d, want %d", got.ID, u.ID)
	}

	if _, err := svc.Authenticate(ctx, "house", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v", err)
	}
	if _, err := svc.Authenticate(ctx, "cuddy", "vicodin123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v", err)
	}
}

func TestProfile_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Profile(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// award credits points through a finished chat, the only path that
// changes them.
func award(t *testing.T, s *store.Store, userID int64, points int) {
	t.Helper()
	ctx := context.Background()
	chat, err := s.ChatRepo().Create(ctx, store.NewChat{
		DoctorID:    userID,
		PatientData: []byte(`{}`),
		Difficulty:  "easy",
		StartTime:   time.Now(),
	})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	token, err := s.ChatRepo().ClaimEvaluation(ctx, chat.ID, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.ChatRepo().Finish(ctx, chat.ID, token, store.FinishData{Score: points, EndTime: time.Now()}); err != nil {
		t.Fatalf("finish: %v", err)
	}
}

func TestLeaderboard(t *testing.T) {
	cache := newMemCache()
	svc, s := newTestService(t, WithCache(cache))
	ctx := context.Background()

	ids := map[string]int64{}
	for _, name := range []string{"house", "wilson", "cuddy"} {
		u, err := svc.Register(ctx, name, name+"@example.com", "password1")
		if err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
		ids[name] = u.ID
	}
	award(t, s, ids["wilson"], 3000)
	award(t, s, ids["cuddy"], 3000)
	award(t, s, ids["house"], 4500)

	if err := svc.RecomputeRanks(ctx); err != nil {
		t.Fatalf("RecomputeRanks: %v", err)
	}
	if cache.invalidated != 1 {
		t.Errorf("invalidated = %d, want 1", cache.invalidated)
	}

	top, err := svc.TopUsers(ctx, 2)
	if err != nil {
		t.Fatalf("TopUsers: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].Username != "house" || *top[0].Rank != 1 {
		t.Errorf("top[0] = %+v", top[0])
	}
	// Ties resolve by registration order.
	if top[1].Username != "wilson" || *top[1].Rank != 2 {
		t.Errorf("top[1] = %+v", top[1])
	}

	if _, err := svc.TopUsers(ctx, 2); err != nil {
		t.Fatalf("TopUsers again: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}

	p, err := svc.Profile(ctx, ids["cuddy"])
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Points != 3000 || p.Rank == nil || *p.Rank != 3 {
		t.Errorf("cuddy = points %d rank %v", p.Points, p.Rank)
	}
}

func TestTopUsers_NonPositive(t *testing.T) {
	svc, _ := newTestService(t)
	top, err := svc.TopUsers(context.Background(), 0)
	if err != nil || len(top) != 0 {
		t.Fatalf("TopUsers(0) = %v, %v", top, err)
	}
}

func TestRedisRankCache(t *testing.T) {
	url := os.Getenv("ANAMNESIS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ANAMNESIS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	c, err := NewRedisRankCache(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisRankCache: %v", err)
	}
	defer c.Close()
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}

	rank := 1
	want := []Entry{{ID: 7, Username: "house", Points: 4500, Rank: &rank}}
	if err := c.Set(ctx, 1, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok := c.Get(ctx, 1)
	if !ok || len(got) != 1 || got[0].Username != "house" || *got[0].Rank != 1 {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if _, ok := c.Get(ctx, 5); ok {
		t.Error("unexpected hit for n=5")
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok := c.Get(ctx, 1); ok {
		t.Error("entry survived invalidation")
	}
}
