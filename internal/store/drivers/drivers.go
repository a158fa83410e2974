// Package drivers opens a store.Client by driver name.
package drivers

import (
	"fmt"

	"stress-client/internal/store"
	"stress-client/internal/store/memstore"
	"stress-client/internal/store/pgstore"
	"stress-client/internal/store/sqlstore"
)

const (
	Postgres = "postgres"
	SQLite   = "sqlite"
	Memory   = "memory"
)

// Names は利用可能なドライバ名を返す
func Names() []string {
	return []string{Postgres, SQLite, Memory}
}

// Open はドライバ名に対応するクライアントを作成する
// memoryドライバは対象のdb.tableを作成済みの状態で返す
func Open(name string, opts store.Options) (store.Client, error) {
	switch name {
	case Postgres:
		return pgstore.New(pgstore.Config{
			Host:     opts.Host,
			Port:     opts.Port,
			Database: opts.Database,
			User:     opts.User,
			Password: opts.Password,
		}), nil
	case SQLite:
		return sqlstore.New(opts.DataDir), nil
	case Memory:
		s := memstore.New(fmt.Sprintf("mem-%s:%d", opts.Host, opts.Port))
		if opts.Database != "" && opts.Table != "" {
			s.CreateTable(opts.Database, opts.Table)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %q (available: %v)", name, Names())
	}
}
