// Package sqlstore implements store.Client on SQLite files.
//
// Each database is a file named <name>.db inside a data directory and each
// table has the layout
//
//	CREATE TABLE <name> (id TEXT PRIMARY KEY, value INTEGER NOT NULL)
//
// Keys are UUIDs generated on insert.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	_ "github.com/mattn/go-sqlite3"

	"stress-client/internal/store"
)

const fileExt = ".db"

// Store はSQLiteファイル群をストアとして扱う
type Store struct {
	dir string

	mu        sync.Mutex
	connected bool
	handles   map[string]*sql.DB
}

// Ensure Store implements store.Client
var _ store.Client = (*Store)(nil)

// New は新しいStoreを作成する
func New(dir string) *Store {
	return &Store{
		dir:     dir,
		handles: make(map[string]*sql.DB),
	}
}

// Connect はデータディレクトリの存在を確認する
func (s *Store) Connect(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("failed to open data dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("data dir %s is not a directory", s.dir)
	}

	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

// handle はデータベースのハンドルを返す（必要なら開く）
func (s *Store) handle(db string) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, store.ErrNotConnected
	}
	if h, ok := s.handles[db]; ok {
		return h, nil
	}

	path := filepath.Join(s.dir, db+fileExt)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", store.ErrDatabaseNotFound, db)
	}
	h, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	s.handles[db] = h
	return h, nil
}

func dsn(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
}

// quoteIdent はSQL識別子をクォートする
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// CreateTable はデータベースファイルとテーブルを作成する
func (s *Store) CreateTable(ctx context.Context, db, table string) error {
	path := filepath.Join(s.dir, db+fileExt)
	h, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer h.Close()

	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, value INTEGER NOT NULL)",
		quoteIdent(table),
	)
	if _, err := h.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table %s.%s: %w", db, table, err)
	}
	return nil
}

// ListDatabases はデータディレクトリ内のデータベース名を返す
func (s *Store) ListDatabases(_ context.Context) ([]string, error) {
	s.mu.Lock()
	connected := s.connected
	s.mu.Unlock()
	if !connected {
		return nil, store.ErrNotConnected
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// ListTables はテーブル名の一覧を返す
func (s *Store) ListTables(ctx context.Context, db string) ([]string, error) {
	h, err := s.handle(db)
	if err != nil {
		return nil, err
	}

	rows, err := h.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Insert は1トランザクションで行を挿入する
func (s *Store) Insert(ctx context.Context, db, table string, rows []store.Row) ([]string, error) {
	h, err := s.handle(db)
	if err != nil {
		return nil, err
	}

	tx, err := h.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, value) VALUES (?, ?)", quoteIdent(table)))
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	keys := make([]string, len(rows))
	for i, row := range rows {
		key := uuid.NewString()
		if _, err := stmt.ExecContext(ctx, key, row.Value); err != nil {
			return nil, fmt.Errorf("failed to insert row: %w", err)
		}
		keys[i] = key
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit insert: %w", err)
	}
	return keys, nil
}

// Get はキーに対応する行を取得する
func (s *Store) Get(ctx context.Context, db, table, key string) (*store.Row, error) {
	h, err := s.handle(db)
	if err != nil {
		return nil, err
	}

	var row store.Row
	err = h.QueryRowContext(ctx,
		fmt.Sprintf("SELECT value FROM %s WHERE id = ?", quoteIdent(table)), key).Scan(&row.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return &row, nil
}

// Delete はキーを削除する
func (s *Store) Delete(ctx context.Context, db, table, key string) error {
	h, err := s.handle(db)
	if err != nil {
		return err
	}

	if _, err := h.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = ?", quoteIdent(table)), key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close は開いている全てのハンドルを閉じる
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *multierror.Error
	for name, h := range s.handles {
		if err := h.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close %s: %w", name, err))
		}
		delete(s.handles, name)
	}
	s.connected = false
	return result.ErrorOrNil()
}
