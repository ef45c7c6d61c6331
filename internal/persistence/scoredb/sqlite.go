package scoredb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"countercraft.ai/internal/counters/score"
)

var ErrClosed = errors.New("scoredb: closed")

// DB is a score.Backend persisted in SQLite. Every objective and score is
// loaded into memory on open and served from there; writes are applied to
// memory immediately and persisted by a single writer goroutine.
type DB struct {
	db *sql.DB

	mu    sync.RWMutex
	cache *score.Memory

	sendMu sync.RWMutex
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	closed    atomic.Bool
	written   atomic.Uint64
	writeErrs atomic.Uint64
}

type reqKind int

const (
	reqObjective reqKind = iota + 1
	reqScore
	reqFlush
)

type req struct {
	kind reqKind

	objective score.Objective
	actorID   string
	value     int32
	at        string

	done chan struct{}
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	Written       uint64 `json:"written"`
	WriteErrors   uint64 `json:"write_errors"`
}

func OpenSQLite(path string) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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

	s := &DB{
		db:    db,
		cache: score.NewMemory(),
		ch:    make(chan req, 65536),
	}
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
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
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
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
		`CREATE TABLE IF NOT EXISTS objectives (
			id TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			objective TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			value INTEGER NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (objective, actor_id)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *DB) load() error {
	rows, err := s.db.Query(`SELECT id, display_name FROM objectives ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("load objectives: %w", err)
	}
	for rows.Next() {
		var o score.Objective
		if err := rows.Scan(&o.ID, &o.DisplayName); err != nil {
			rows.Close()
			return err
		}
		_ = s.cache.AddObjective(o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(`SELECT objective, actor_id, value FROM scores`)
	if err != nil {
		return fmt.Errorf("load scores: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var obj, actor string
		var v int64
		if err := rows.Scan(&obj, &actor, &v); err != nil {
			return err
		}
		_ = s.cache.SetScore(obj, actor, int32(v))
	}
	return rows.Err()
}

func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.sendMu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.sendMu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *DB) Objective(id string) (score.Objective, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Objective(id)
}

func (s *DB) AddObjective(o score.Objective) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	_, exists, _ := s.cache.Objective(o.ID)
	if !exists {
		_ = s.cache.AddObjective(o)
	}
	s.mu.Unlock()
	if exists {
		return nil
	}
	return s.enqueue(req{kind: reqObjective, objective: o, at: now()})
}

func (s *DB) Objectives() ([]score.Objective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Objectives()
}

func (s *DB) Score(objectiveID, actorID string) (int32, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Score(objectiveID, actorID)
}

// SetScore creates a missing objective with its id as display name.
func (s *DB) SetScore(objectiveID, actorID string, v int32) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.mu.Lock()
	_, exists, _ := s.cache.Objective(objectiveID)
	_ = s.cache.SetScore(objectiveID, actorID, v)
	s.mu.Unlock()

	at := now()
	write := req{kind: reqScore, objective: score.Objective{ID: objectiveID}, actorID: actorID, value: v, at: at}
	if !exists {
		return s.enqueue(req{kind: reqObjective, objective: score.Objective{ID: objectiveID, DisplayName: objectiveID}, at: at}, write)
	}
	return s.enqueue(write)
}

// enqueue blocks while the writer is behind; score writes are never dropped.
func (s *DB) enqueue(rs ...req) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	for _, r := range rs {
		s.ch <- r
	}
	return nil
}

// Standings returns the actors holding a score on objectiveID, highest first.
func (s *DB) Standings(objectiveID string) []score.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache.Standings(objectiveID)
}

// Flush blocks until every write queued before it is committed.
func (s *DB) Flush(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.send(ctx, req{kind: reqFlush, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DB) send(ctx context.Context, r req) error {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DB) Stats() Stats {
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		Written:       s.written.Load(),
		WriteErrors:   s.writeErrs.Load(),
	}
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }

func (s *DB) loop() {
	ctx := context.Background()

	insertObjective, _ := s.db.Prepare(`INSERT OR IGNORE INTO objectives(id,display_name,created_at) VALUES(?,?,?)`)
	upsertScore, _ := s.db.Prepare(`INSERT INTO scores(objective,actor_id,value,updated_at) VALUES(?,?,?,?)
		ON CONFLICT(objective,actor_id) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`)
	defer func() {
		if insertObjective != nil {
			_ = insertObjective.Close()
		}
		if upsertScore != nil {
			_ = upsertScore.Close()
		}
	}()

	var (
		tx          *sql.Tx
		opCount     int
		commitEvery = 500
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.writeErrs.Add(1)
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeErrs.Add(1)
		} else {
			s.written.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
	}
	exec := func(stmt *sql.Stmt, args ...any) {
		begin()
		if tx == nil || stmt == nil {
			s.writeErrs.Add(1)
			return
		}
		if _, err := tx.Stmt(stmt).Exec(args...); err != nil {
			s.writeErrs.Add(1)
			return
		}
		opCount++
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			switch r.kind {
			case reqObjective:
				exec(insertObjective, r.objective.ID, r.objective.DisplayName, r.at)
			case reqScore:
				exec(upsertScore, r.objective.ID, r.actorID, int64(r.value), r.at)
			case reqFlush:
				commit()
				close(r.done)
				continue
			}
			if opCount >= commitEvery {
				commit()
			}
		case <-ticker.C:
			commit()
		}
	}
}
