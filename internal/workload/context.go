package workload

import (
	"math/rand/v2"
	"time"

	"stress-client/internal/keyset"
	"stress-client/internal/stats"
	"stress-client/internal/store"
)

// MaxValue は書き込む値の上限
const MaxValue = 10000

// ContextConfig はContextの設定
type ContextConfig struct {
	Store     store.Client
	Database  string
	Table     string
	Window    *stats.Window
	BatchSize int
	Rand      *rand.Rand
	Keys      *keyset.Set
}

// Context は1クライアントの可変状態をまとめる
// スケジューラのゴルーチンだけが触る
type Context struct {
	Store    store.Client
	Database string
	Table    string
	Window   *stats.Window
	Keys     *keyset.Set
	Rand     *rand.Rand

	batchSize int
	pending   []store.Row
}

// NewContext は新しいContextを作成する
func NewContext(config ContextConfig) *Context {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	rng := config.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	keys := config.Keys
	if keys == nil {
		keys = keyset.New()
	}
	return &Context{
		Store:     config.Store,
		Database:  config.Database,
		Table:     config.Table,
		Window:    config.Window,
		Keys:      keys,
		Rand:      rng,
		batchSize: batchSize,
		pending:   make([]store.Row, 0, batchSize),
	}
}

// BatchSize はバッチサイズを返す
func (c *Context) BatchSize() int {
	return c.batchSize
}

// Pending は未送信の書き込み数を返す
func (c *Context) Pending() int {
	return len(c.pending)
}
