package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stress-client/internal/logger"
	"stress-client/internal/store"
)

// ErrSuspended は一時停止中のストアへの操作で返される
var ErrSuspended = errors.New("memstore: store is suspended")

// ErrInjected はFailNextで注入された障害
var ErrInjected = errors.New("memstore: injected failure")

// Status はストアの状態を表す
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

type table map[string]store.Row

// Store はインメモリのストア
type Store struct {
	id       string
	status   Status
	delay    time.Duration
	failNext int

	mu  sync.RWMutex
	dbs map[string]map[string]table
}

// Ensure Store implements store.Client
var _ store.Client = (*Store)(nil)

// New は新しいストアを作成する
func New(id string) *Store {
	return &Store{
		id:     id,
		status: StatusStopped,
		dbs:    make(map[string]map[string]table),
	}
}

// ID はストアIDを返す
func (s *Store) ID() string {
	return s.id
}

// CreateTable はデータベースとテーブルを作成する（既存なら何もしない）
func (s *Store) CreateTable(db, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables, ok := s.dbs[db]
	if !ok {
		tables = make(map[string]table)
		s.dbs[db] = tables
	}
	if _, ok := tables[name]; !ok {
		tables[name] = make(table)
	}
}

// Connect はストアを起動状態にする
func (s *Store) Connect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusStopped {
		return fmt.Errorf("memstore %s is already connected", s.id)
	}
	s.status = StatusRunning

	logger.Debug(s.id, "Memory store connected")
	return nil
}

// Close はストアを停止する
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == StatusStopped {
		return fmt.Errorf("memstore %s is already closed", s.id)
	}
	s.status = StatusStopped

	logger.Debug(s.id, "Memory store closed")
	return nil
}

// Status はストアの現在のステータスを返す
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Suspend はストアを一時停止する
func (s *Store) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusRunning {
		return fmt.Errorf("memstore %s is not running", s.id)
	}
	s.status = StatusSuspended
	logger.Info(s.id, "Memory store suspended")
	return nil
}

// Resume は一時停止中のストアを再開する
func (s *Store) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusSuspended {
		return fmt.Errorf("memstore %s is not suspended", s.id)
	}
	s.status = StatusRunning
	logger.Info(s.id, "Memory store resumed")
	return nil
}

// SetDelay はレスポンス遅延を設定する
func (s *Store) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// FailNext は次のn回の操作を失敗させる
func (s *Store) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// begin は遅延を適用し、操作可能かを確認する
func (s *Store) begin(ctx context.Context) error {
	s.mu.RLock()
	d := s.delay
	s.mu.RUnlock()

	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusStopped:
		return store.ErrNotConnected
	case StatusSuspended:
		return ErrSuspended
	}
	if s.failNext > 0 {
		s.failNext--
		return ErrInjected
	}
	return nil
}

// lookup はテーブルを返す（ロック保持中に呼ぶこと）
func (s *Store) lookup(db, name string) (table, error) {
	tables, ok := s.dbs[db]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDatabaseNotFound, db)
	}
	t, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", store.ErrTableNotFound, db, name)
	}
	return t, nil
}

// ListDatabases はデータベース名の一覧を返す
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.dbs))
	for name := range s.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListTables はテーブル名の一覧を返す
func (s *Store) ListTables(ctx context.Context, db string) ([]string, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tables, ok := s.dbs[db]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrDatabaseNotFound, db)
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Insert は行を挿入し、生成したキーを返す
func (s *Store) Insert(ctx context.Context, db, name string, rows []store.Row) ([]string, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(db, name)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(rows))
	for i, row := range rows {
		key := uuid.NewString()
		t[key] = row
		keys[i] = key
	}
	return keys, nil
}

// Get はキーに対応する行を取得する
func (s *Store) Get(ctx context.Context, db, name, key string) (*store.Row, error) {
	if err := s.begin(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.lookup(db, name)
	if err != nil {
		return nil, err
	}
	row, exists := t[key]
	if !exists {
		return nil, nil
	}
	return &row, nil
}

// Delete はキーを削除する
func (s *Store) Delete(ctx context.Context, db, name, key string) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.lookup(db, name)
	if err != nil {
		return err
	}
	delete(t, key)
	return nil
}

// Keys はテーブルの全てのキーを返す
func (s *Store) Keys(db, name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.lookup(db, name)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	return keys
}

// Size はテーブルの行数を返す
func (s *Store) Size(db, name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, err := s.lookup(db, name)
	if err != nil {
		return 0
	}
	return len(t)
}
