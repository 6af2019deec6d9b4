package statsdb

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"

	"survival.io/internal/sim/world"
)

var _ world.StatsSink = (*Store)(nil)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "stats.sqlite"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RegisterAndAuthenticate(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "  alice ", "hunter2")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == 0 || u.Username != "alice" {
		t.Fatalf("user: %+v", u)
	}
	if _, err := s.Register(ctx, "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("duplicate: got %v want ErrUsernameTaken", err)
	}
	if _, err := s.Register(ctx, "", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty username: got %v", err)
	}

	got, err := s.Authenticate(ctx, "alice", "hunter2")
	if err != nil || got != u {
		t.Fatalf("Authenticate: got %+v, %v", got, err)
	}
	if _, err := s.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("wrong password: got %v", err)
	}
	if _, err := s.Authenticate(ctx, "bob", "hunter2"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: got %v", err)
	}

	st, err := s.Stats(ctx, u.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (Stats{UserID: u.ID}) {
		t.Fatalf("fresh stats: %+v", st)
	}
	if _, err := s.Stats(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("Stats unknown: got %v", err)
	}
}

func TestStore_RecordSessionAppliedBeforeClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.sqlite")
	s, err := Open(path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	u, err := s.Register(ctx, "p", "pw")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s.RecordSession(u.ID, world.StatsDelta{Kills: 2, Deaths: 1, ResourcesCollected: 15, GamesPlayed: 1, Score: 350})
	s.RecordSession(u.ID, world.StatsDelta{Kills: 1, GamesPlayed: 1, Score: 100})
	s.RecordSession(424242, world.StatsDelta{GamesPlayed: 1})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	s.RecordSession(u.ID, world.StatsDelta{Kills: 100})

	s2, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	st, err := s2.Stats(ctx, u.ID)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := Stats{UserID: u.ID, Kills: 3, Deaths: 1, ResourcesCollected: 15, GamesPlayed: 2, TotalScore: 450}
	if st != want {
		t.Fatalf("stats: got %+v want %+v", st, want)
	}
	if qs := s.QueueStats(); qs.AppliedTotal != 2 || qs.FailTotal != 1 {
		t.Fatalf("queue stats: %+v", qs)
	}
}

func TestStore_ApplyDeltaClampsAtZero(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	u, _ := s.Register(ctx, "p", "pw")

	if err := s.ApplyDelta(ctx, u.ID, world.StatsDelta{Kills: 3, Deaths: 2}); err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if err := s.ApplyDelta(ctx, u.ID, world.StatsDelta{Kills: -5, Deaths: -2}); err != nil {
		t.Fatalf("ApplyDelta negative: %v", err)
	}
	st, _ := s.Stats(ctx, u.ID)
	if st.Kills != 0 || st.Deaths != 0 {
		t.Fatalf("cleared stats: %+v", st)
	}
	if err := s.ApplyDelta(ctx, 777, world.StatsDelta{Kills: 1}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown account: got %v", err)
	}
}

func TestStore_LeaderboardOrder(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	scores := map[string]int{"low": 10, "high": 900, "mid": 300, "tie": 300}
	ids := map[string]int64{}
	for _, name := range []string{"low", "high", "mid", "tie"} {
		u, err := s.Register(ctx, name, "pw")
		if err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
		ids[name] = u.ID
		if err := s.ApplyDelta(ctx, u.ID, world.StatsDelta{Score: scores[name], GamesPlayed: 1}); err != nil {
			t.Fatalf("ApplyDelta: %v", err)
		}
	}

	lb, err := s.Leaderboard(ctx, 3)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	want := []string{"high", "mid", "tie"}
	if len(lb) != len(want) {
		t.Fatalf("entries: got %d want %d", len(lb), len(want))
	}
	for i, name := range want {
		if lb[i].Username != name || lb[i].UserID != ids[name] || lb[i].TotalScore != scores[name] {
			t.Fatalf("rank %d: got %+v want %s", i, lb[i], name)
		}
	}
}

func TestStore_QueueDropStats(t *testing.T) {
	s := &Store{ch: make(chan sessionDelta, 1), log: zap.NewNop()}
	s.RecordSession(1, world.StatsDelta{Kills: 1})
	s.RecordSession(2, world.StatsDelta{Kills: 1})
	s.RecordSession(3, world.StatsDelta{Kills: 1})

	st := s.QueueStats()
	if st.DropTotal != 2 {
		t.Fatalf("DropTotal=%d want=2", st.DropTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestStore_CatalogDigests(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if err := s.RecordCatalogDigests(ctx, map[string]string{"recipes": "abc", "tuning": "def", "empty": ""}); err != nil {
		t.Fatalf("RecordCatalogDigests: %v", err)
	}
	got, err := s.CatalogDigests(ctx)
	if err != nil {
		t.Fatalf("CatalogDigests: %v", err)
	}
	if len(got) != 2 || got["recipes"] != "abc" || got["tuning"] != "def" {
		t.Fatalf("digests: %v", got)
	}
}

func TestStore_ConcurrentRegisterSameName(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Register(ctx, "dup", "pw")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, taken := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || taken != n-1 {
		t.Fatalf("results: ok=%d taken=%d", ok, taken)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	if _, err := s.Register(ctx, "bob", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(username,password,created_at) VALUES('bob','x','now')`)
	if err == nil {
		t.Fatalf("duplicate insert succeeded")
	}
	if !isUniqueViolation(err) {
		t.Fatalf("not recognized as unique violation: %v", err)
	}
	if isUniqueViolation(errors.New("insert user: boom")) || isUniqueViolation(nil) {
		t.Fatalf("plain errors must not match")
	}
}
