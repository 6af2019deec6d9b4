package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"survival.io/internal/sim/world"
)

var (
	ErrUsernameTaken   = errors.New("username already taken")
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidInput    = errors.New("username and password are required")
)

const (
	maxUsernameLen = 24
	bcryptCost     = 10
)

// Store is the durable account and statistics store. Session deltas from the
// world arrive through RecordSession and are applied by one writer goroutine.
type Store struct {
	db  *sql.DB
	log *zap.Logger

	ch   chan sessionDelta
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTotal    atomic.Uint64
	appliedTotal atomic.Uint64
	failTotal    atomic.Uint64
}

type sessionDelta struct {
	AccountID int64
	Delta     world.StatsDelta
}

// Stats is one account's lifetime totals.
type Stats struct {
	UserID             int64 `json:"user_id"`
	Kills              int   `json:"kills"`
	Deaths             int   `json:"deaths"`
	ResourcesCollected int   `json:"resources_collected"`
	TimeSurvived       int   `json:"time_survived"`
	GamesPlayed        int   `json:"games_played"`
	TotalScore         int   `json:"total_score"`
}

type LeaderboardEntry struct {
	Username string `json:"username"`
	Stats
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// QueueStats reports writer backlog and losses.
type QueueStats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DropTotal     uint64 `json:"drop_total"`
	AppliedTotal  uint64 `json:"applied_total"`
	FailTotal     uint64 `json:"fail_total"`
}

func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:  db,
		log: logger.Named("statsdb"),
		ch:  make(chan sessionDelta, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS stats (
			user_id INTEGER PRIMARY KEY REFERENCES users(id),
			kills INTEGER NOT NULL DEFAULT 0,
			deaths INTEGER NOT NULL DEFAULT 0,
			resources_collected INTEGER NOT NULL DEFAULT 0,
			time_survived INTEGER NOT NULL DEFAULT 0,
			games_played INTEGER NOT NULL DEFAULT 0,
			total_score INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_stats_total_score ON stats(total_score DESC);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close drains pending deltas and closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Register creates an account with an empty stats row.
func (s *Store) Register(ctx context.Context, username, password string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" || len([]rune(username)) > maxUsernameLen {
		return User{}, ErrInvalidInput
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE username = ?`, username).Scan(&exists)
	if err != nil {
		return User{}, err
	}
	if exists > 0 {
		return User{}, ErrUsernameTaken
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO users(username,password,created_at) VALUES(?,?,?)`,
		username, string(hash), time.Now().UTC().Format(time.RFC3339Nano))
	if isUniqueViolation(err) {
		// Lost a race with another writer between the check and the insert.
		return User{}, ErrUsernameTaken
	}
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return User{}, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO stats(user_id) VALUES(?)`, id); err != nil {
		return User{}, fmt.Errorf("insert stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return User{}, err
	}
	s.log.Info("account registered", zap.Int64("account", id), zap.String("username", username))
	return User{ID: id, Username: username}, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

func (s *Store) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, username, password FROM users WHERE username = ?`,
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrInvalidPassword
	}
	return u, nil
}

func (s *Store) Stats(ctx context.Context, userID int64) (Stats, error) {
	st := Stats{UserID: userID}
	err := s.db.QueryRowContext(ctx, `SELECT kills, deaths, resources_collected, time_survived, games_played, total_score
		FROM stats WHERE user_id = ?`, userID).Scan(
		&st.Kills, &st.Deaths, &st.ResourcesCollected, &st.TimeSurvived, &st.GamesPlayed, &st.TotalScore)
	if errors.Is(err, sql.ErrNoRows) {
		return Stats{}, ErrUserNotFound
	}
	if err != nil {
		return Stats{}, err
	}
	return st, nil
}

// Leaderboard returns the top limit accounts by total score. Ties keep
// registration order.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `SELECT u.username, s.user_id, s.kills, s.deaths, s.resources_collected,
			s.time_survived, s.games_played, s.total_score
		FROM stats s JOIN users u ON s.user_id = u.id
		ORDER BY s.total_score DESC, s.user_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.UserID, &e.Kills, &e.Deaths, &e.ResourcesCollected,
			&e.TimeSurvived, &e.GamesPlayed, &e.TotalScore); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ApplyDelta adds d to the account's totals. Totals never go below zero.
func (s *Store) ApplyDelta(ctx context.Context, accountID int64, d world.StatsDelta) error {
	return applyDelta(ctx, s.db, accountID, d)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applyDelta(ctx context.Context, db execer, accountID int64, d world.StatsDelta) error {
	res, err := db.ExecContext(ctx, `UPDATE stats SET
			kills = MAX(0, kills + ?),
			deaths = MAX(0, deaths + ?),
			resources_collected = MAX(0, resources_collected + ?),
			games_played = MAX(0, games_played + ?),
			total_score = MAX(0, total_score + ?)
		WHERE user_id = ?`,
		d.Kills, d.Deaths, d.ResourcesCollected, d.GamesPlayed, d.Score, accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// RecordSession queues a delta for the writer goroutine. It never blocks:
// when the queue is full the delta is dropped and counted.
func (s *Store) RecordSession(accountID int64, d world.StatsDelta) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- sessionDelta{AccountID: accountID, Delta: d}:
	default:
		s.dropTotal.Add(1)
		s.log.Warn("stats queue full, dropping session delta", zap.Int64("account", accountID))
	}
}

func (s *Store) QueueStats() QueueStats {
	if s == nil {
		return QueueStats{}
	}
	return QueueStats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DropTotal:     s.dropTotal.Load(),
		AppliedTotal:  s.appliedTotal.Load(),
		FailTotal:     s.failTotal.Load(),
	}
}

// RecordCatalogDigests stores the digests the running server loaded so an
// operator can tell which configuration produced the totals.
func (s *Store) RecordCatalogDigests(ctx context.Context, digests map[string]string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,updated_at) VALUES(?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for name, digest := range digests {
		if name == "" || digest == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, name, digest, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) CatalogDigests(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, digest FROM catalogs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var name, digest string
		if err := rows.Scan(&name, &digest); err != nil {
			return nil, err
		}
		out[name] = digest
	}
	return out, rows.Err()
}

// loop applies queued deltas in small transactions. A failed delta is logged
// and skipped; it never stalls the queue.
func (s *Store) loop() {
	ctx := context.Background()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 64
		commitMaxWait = 500 * time.Millisecond
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.log.Warn("begin tx", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.log.Warn("commit stats batch", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for {
		var (
			r  sessionDelta
			ok bool
		)
		if tx == nil {
			r, ok = <-s.ch
		} else {
			select {
			case r, ok = <-s.ch:
			case <-time.After(commitMaxWait):
				commit()
				continue
			}
		}
		if !ok {
			break
		}

		begin()
		if tx == nil {
			s.failTotal.Add(1)
			continue
		}
		if err := applyDelta(ctx, tx, r.AccountID, r.Delta); err != nil {
			s.failTotal.Add(1)
			s.log.Warn("apply session delta", zap.Int64("account", r.AccountID), zap.Error(err))
		} else {
			s.appliedTotal.Add(1)
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}

	commit()
}
