package kicklog

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charleschow/penalty-lab/internal/telemetry"

	_ "modernc.org/sqlite"
)

// ErrDisabled is returned by every query on a nil *Store.
var ErrDisabled = errors.New("kick log disabled")

const (
	evictPct       float64 = 0.10 // evict oldest 10% of rows
	vacuumInterval         = 10   // incremental vacuum every N evictions
)

func round5(v float64) float64 {
	return math.Round(v*100000) / 100000
}

// Row is one resolved kick.
type Row struct {
	ID           int64     `json:"id"`
	Ts           time.Time `json:"ts"`
	SessionID    string    `json:"session_id"`
	Player       string    `json:"player"`
	PlayerKey    string    `json:"player_key"`
	KickNumber   int       `json:"kick_number"`
	Kick         string    `json:"kick"`
	Keeper       string    `json:"keeper"`
	ScoreProb    float64   `json:"score_prob"`
	Result       string    `json:"result"`
	PDiveLeft    float64   `json:"p_dive_left"`
	PDiveRight   float64   `json:"p_dive_right"`
	ObservedLeft float64   `json:"observed_left"`
	HistoryLen   int       `json:"history_len"`
}

// Summary aggregates every logged kick for one player.
type Summary struct {
	PlayerKey    string  `json:"player_key"`
	Sessions     int     `json:"sessions"`
	Kicks        int     `json:"kicks"`
	KickLeft     int     `json:"kick_left"`
	KickRight    int     `json:"kick_right"`
	LeftGoals    int     `json:"left_goals"`
	RightGoals   int     `json:"right_goals"`
	Goals        int     `json:"goals"`
	KeeperLeft   int     `json:"keeper_left"`
	KeeperRight  int     `json:"keeper_right"`
	KickLeftRate float64 `json:"kick_left_rate"`
	GoalRate     float64 `json:"goal_rate"`
}

// Store persists kicks in a FIFO SQLite database capped at maxRows.
// The oldest 10% of rows are evicted when the cap is exceeded.
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	maxRows      int64
	rowCount     int64
	evictCounter int
}

func OpenStore(path string, maxRows int) (*Store, error) {
	if maxRows <= 0 {
		return nil, fmt.Errorf("kick log: max rows must be positive, got %d", maxRows)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA auto_vacuum = INCREMENTAL`,
		`CREATE TABLE IF NOT EXISTS kicks (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			ts            TEXT    NOT NULL,
			session_id    TEXT    NOT NULL,
			player        TEXT,
			player_key    TEXT    NOT NULL,
			kick_number   INTEGER,
			kick          TEXT    NOT NULL,
			keeper        TEXT    NOT NULL,
			score_prob    REAL,
			result        TEXT    NOT NULL,
			p_dive_left   REAL,
			p_dive_right  REAL,
			observed_left REAL,
			history_len   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_kicks_player_key ON kicks(player_key)`,
		`CREATE INDEX IF NOT EXISTS idx_kicks_session_id ON kicks(session_id)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init schema (%s): %w", stmt, err)
		}
	}

	var count int64
	if err := db.QueryRow(`SELECT COUNT(*) FROM kicks`).Scan(&count); err != nil {
		db.Close()
		return nil, fmt.Errorf("read row count: %w", err)
	}

	telemetry.Infof("Started kick log db  path=%s  rows=%d  max_rows=%d", path, count, maxRows)

	return &Store{db: db, maxRows: int64(maxRows), rowCount: count}, nil
}

// Insert stores one kick and returns its row ID.
func (s *Store) Insert(row Row) (int64, error) {
	if s == nil {
		return 0, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`INSERT INTO kicks (
			ts, session_id, player, player_key, kick_number, kick, keeper,
			score_prob, result, p_dive_left, p_dive_right, observed_left, history_len
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		row.Ts.UTC().Format(time.RFC3339Nano),
		row.SessionID,
		row.Player,
		row.PlayerKey,
		row.KickNumber,
		row.Kick,
		row.Keeper,
		round5(row.ScoreProb),
		row.Result,
		round5(row.PDiveLeft),
		round5(row.PDiveRight),
		round5(row.ObservedLeft),
		row.HistoryLen,
	)
	if err != nil {
		return 0, fmt.Errorf("kick log insert: %w", err)
	}

	id, _ := res.LastInsertId()
	s.rowCount++
	if s.rowCount > s.maxRows {
		s.evict()
	}
	return id, nil
}

// evict deletes the oldest 10% of rows by count.
// Must be called with s.mu held.
func (s *Store) evict() {
	toDelete := int64(float64(s.rowCount) * evictPct)
	if toDelete < 1 {
		toDelete = 1
	}

	res, err := s.db.Exec(
		`DELETE FROM kicks WHERE id IN (
			SELECT id FROM kicks ORDER BY id ASC LIMIT ?
		)`, toDelete,
	)
	if err != nil {
		telemetry.Warnf("kick log evict: %v", err)
		return
	}

	deleted, _ := res.RowsAffected()
	s.rowCount -= deleted
	s.evictCounter++

	telemetry.Debugf("kick log: evicted %d rows (target %d)", deleted, toDelete)

	if s.evictCounter%vacuumInterval == 0 {
		s.db.Exec(`PRAGMA incremental_vacuum`)
	}
}

// Count returns the number of rows currently held.
func (s *Store) Count() (int64, error) {
	if s == nil {
		return 0, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowCount, nil
}

// Summary aggregates a player's logged kicks. A player with no kicks
// yields a zero Summary, not an error.
func (s *Store) Summary(playerKey string) (Summary, error) {
	if s == nil {
		return Summary{}, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := Summary{PlayerKey: playerKey}
	err := s.db.QueryRow(
		`SELECT
			COUNT(DISTINCT session_id),
			COUNT(*),
			COALESCE(SUM(kick = 'left'), 0),
			COALESCE(SUM(kick = 'right'), 0),
			COALESCE(SUM(kick = 'left'  AND result = 'Score'), 0),
			COALESCE(SUM(kick = 'right' AND result = 'Score'), 0),
			COALESCE(SUM(keeper = 'left'), 0),
			COALESCE(SUM(keeper = 'right'), 0)
		FROM kicks WHERE player_key = ?`, playerKey,
	).Scan(&sum.Sessions, &sum.Kicks, &sum.KickLeft, &sum.KickRight,
		&sum.LeftGoals, &sum.RightGoals, &sum.KeeperLeft, &sum.KeeperRight)
	if err != nil {
		return Summary{}, fmt.Errorf("kick log summary: %w", err)
	}

	sum.Goals = sum.LeftGoals + sum.RightGoals
	if sum.Kicks > 0 {
		sum.KickLeftRate = float64(sum.KickLeft) / float64(sum.Kicks)
		sum.GoalRate = float64(sum.Goals) / float64(sum.Kicks)
	}
	return sum, nil
}

// Recent returns up to n rows, newest first. An empty playerKey matches
// every player.
func (s *Store) Recent(n int, playerKey string) ([]Row, error) {
	if s == nil {
		return nil, ErrDisabled
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, ts, session_id, player, player_key, kick_number, kick, keeper,
			score_prob, result, p_dive_left, p_dive_right, observed_left, history_len
		FROM kicks
		WHERE ? = '' OR player_key = ?
		ORDER BY id DESC LIMIT ?`, playerKey, playerKey, n,
	)
	if err != nil {
		return nil, fmt.Errorf("kick log recent: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r  Row
			ts string
		)
		if err := rows.Scan(&r.ID, &ts, &r.SessionID, &r.Player, &r.PlayerKey, &r.KickNumber,
			&r.Kick, &r.Keeper, &r.ScoreProb, &r.Result, &r.PDiveLeft, &r.PDiveRight,
			&r.ObservedLeft, &r.HistoryLen); err != nil {
			return nil, fmt.Errorf("kick log scan: %w", err)
		}
		r.Ts, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
