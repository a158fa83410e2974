// Package store defines the client used to talk to the store under test.
//
// The stress client only needs a handful of operations: list databases and
// tables to validate its target, insert a batch of rows and receive the
// store-generated keys, point reads and point deletes. Drivers live in the
// sub-packages memstore, sqlstore and pgstore.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNotConnected     = errors.New("store: not connected")
	ErrDatabaseNotFound = errors.New("store: database does not exist")
	ErrTableNotFound    = errors.New("store: table does not exist")
)

// Row はテーブルに書き込む1行
type Row struct {
	Value int `json:"value"`
}

// Client はストアへの接続を表すインターフェース
type Client interface {
	Connect(ctx context.Context) error
	ListDatabases(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, db string) ([]string, error)
	// Insert は行を一括で挿入し、ストアが生成したキーを返す
	Insert(ctx context.Context, db, table string, rows []Row) ([]string, error)
	// Get はキーの行を返す。存在しない場合は nil, nil
	Get(ctx context.Context, db, table, key string) (*Row, error)
	// Delete はキーを削除する。存在しない場合もエラーにしない
	Delete(ctx context.Context, db, table, key string) error
	Close() error
}

// Options はドライバ共通の接続パラメータ
type Options struct {
	Host     string
	Port     int
	Database string
	Table    string
	User     string
	Password string
	DataDir  string
}

// ValidateTarget はデータベースとテーブルが存在することを確認する
func ValidateTarget(ctx context.Context, c Client, db, table string) error {
	dbs, err := c.ListDatabases(ctx)
	if err != nil {
		return fmt.Errorf("failed to list databases: %w", err)
	}
	if !slices.Contains(dbs, db) {
		return fmt.Errorf("%w: %s", ErrDatabaseNotFound, db)
	}

	tables, err := c.ListTables(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to list tables of %s: %w", db, err)
	}
	if !slices.Contains(tables, table) {
		return fmt.Errorf("%w: %s.%s", ErrTableNotFound, db, table)
	}
	return nil
}
