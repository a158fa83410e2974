// Package pgstore implements store.Client on PostgreSQL.
//
// The target table is expected to generate its own keys:
//
//	CREATE TABLE test (id uuid PRIMARY KEY DEFAULT gen_random_uuid(), value integer NOT NULL)
//
// Inserts are issued as a single multi-row INSERT ... RETURNING id so a
// batch costs one round trip. A batch larger than the 65535 bind parameters
// one statement can carry is split into several statements inside a single
// transaction, so it is still inserted all or nothing.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stress-client/internal/store"
)

// Config はPostgreSQL接続の設定
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	MaxConns int
}

// Store はPostgreSQLのテーブルをストアとして扱う
type Store struct {
	config Config
	pool   *pgxpool.Pool
}

// Ensure Store implements store.Client
var _ store.Client = (*Store)(nil)

// New は新しいStoreを作成する
func New(config Config) *Store {
	if config.MaxConns <= 0 {
		config.MaxConns = 2
	}
	return &Store{config: config}
}

// connString は接続文字列を組み立てる
func (s *Store) connString() string {
	parts := []string{
		fmt.Sprintf("host=%s", s.config.Host),
		fmt.Sprintf("port=%d", s.config.Port),
		fmt.Sprintf("dbname=%s", s.config.Database),
		fmt.Sprintf("pool_max_conns=%d", s.config.MaxConns),
	}
	if s.config.User != "" {
		parts = append(parts, fmt.Sprintf("user=%s", s.config.User))
	}
	if s.config.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", s.config.Password))
	}
	return strings.Join(parts, " ")
}

// Connect はコネクションプールを作成し、疎通を確認する
func (s *Store) Connect(ctx context.Context) error {
	if s.pool != nil {
		return fmt.Errorf("pgstore: already connected")
	}

	config, err := pgxpool.ParseConfig(s.connString())
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.pool = pool
	return nil
}

// ListDatabases はデータベース名の一覧を返す
func (s *Store) ListDatabases(ctx context.Context) ([]string, error) {
	if s.pool == nil {
		return nil, store.ErrNotConnected
	}

	rows, err := s.pool.Query(ctx,
		"SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname")
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListTables はテーブル名の一覧を返す
// 接続中のデータベース以外は空になる
func (s *Store) ListTables(ctx context.Context, db string) ([]string, error) {
	if s.pool == nil {
		return nil, store.ErrNotConnected
	}

	rows, err := s.pool.Query(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_catalog = $1 AND table_schema = 'public'
		ORDER BY table_name
	`, db)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// maxInsertRows は1文のINSERTに載せる行数の上限
// 1行に1パラメータを使うので、拡張プロトコルのパラメータ数上限と同じ
const maxInsertRows = 65535

// chunkRows はrowsをsize行ずつに分割する
func chunkRows(rows []store.Row, size int) [][]store.Row {
	chunks := make([][]store.Row, 0, (len(rows)+size-1)/size)
	for len(rows) > size {
		chunks = append(chunks, rows[:size])
		rows = rows[size:]
	}
	if len(rows) > 0 {
		chunks = append(chunks, rows)
	}
	return chunks
}

// insertQuery は複数行INSERTのクエリを組み立てる
func insertQuery(table string, n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgx.Identifier{table}.Sanitize())
	b.WriteString(" (value) VALUES ")
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "($%d)", i+1)
	}
	b.WriteString(" RETURNING id::text")
	return b.String()
}

// Insert は行を一括挿入し、生成されたキーを返す
// パラメータ数の上限を超える場合は1つのトランザクションの中で分割して挿入する
func (s *Store) Insert(ctx context.Context, db, table string, rows []store.Row) ([]string, error) {
	if s.pool == nil {
		return nil, store.ErrNotConnected
	}
	if db != s.config.Database {
		return nil, fmt.Errorf("%w: %s", store.ErrDatabaseNotFound, db)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	if len(rows) <= maxInsertRows {
		return insertChunk(ctx, s.pool, table, rows)
	}

	keys := make([]string, 0, len(rows))
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, chunk := range chunkRows(rows, maxInsertRows) {
			k, err := insertChunk(ctx, tx, table, chunk)
			if err != nil {
				return err
			}
			keys = append(keys, k...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// querier はpgxpool.Poolとpgx.Txに共通のQuery
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// insertChunk は1文のINSERTで行を挿入する
func insertChunk(ctx context.Context, q querier, table string, rows []store.Row) ([]string, error) {
	args := make([]any, len(rows))
	for i, row := range rows {
		args[i] = row.Value
	}

	result, err := q.Query(ctx, insertQuery(table, len(rows)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to insert: %w", err)
	}
	keys, err := pgx.CollectRows(result, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read generated keys: %w", err)
	}
	return keys, nil
}

// Get はキーに対応する行を取得する
func (s *Store) Get(ctx context.Context, db, table, key string) (*store.Row, error) {
	if s.pool == nil {
		return nil, store.ErrNotConnected
	}
	if db != s.config.Database {
		return nil, fmt.Errorf("%w: %s", store.ErrDatabaseNotFound, db)
	}

	query := fmt.Sprintf("SELECT value FROM %s WHERE id = $1", pgx.Identifier{table}.Sanitize())

	var row store.Row
	err := s.pool.QueryRow(ctx, query, key).Scan(&row.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return &row, nil
}

// Delete はキーを削除する
func (s *Store) Delete(ctx context.Context, db, table, key string) error {
	if s.pool == nil {
		return store.ErrNotConnected
	}
	if db != s.config.Database {
		return fmt.Errorf("%w: %s", store.ErrDatabaseNotFound, db)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", pgx.Identifier{table}.Sanitize())
	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close はコネクションプールを閉じる
func (s *Store) Close() error {
	if s.pool == nil {
		return nil
	}
	s.pool.Close()
	s.pool = nil
	return nil
}
