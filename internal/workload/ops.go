package workload

import (
	"context"
	"fmt"

	"stress-client/internal/op"
	"stress-client/internal/store"
)

// Op はスケジューラが実行する操作
type Op interface {
	Kind() op.Kind
	Execute(ctx context.Context, c *Context) error
}

// ReadOp は既存キーを1件読み込む
type ReadOp struct{}

// WriteOp は書き込みをバッファし、バッチサイズに達したら一括挿入する
type WriteOp struct{}

// SindexReadOp はセカンダリインデックス読み込み（未実装のため何もしない）
type SindexReadOp struct{}

// DeleteOp は既存キーを1件削除する
type DeleteOp struct{}

var ops = [op.Count]Op{
	op.Read:       ReadOp{},
	op.Write:      WriteOp{},
	op.SindexRead: SindexReadOp{},
	op.Delete:     DeleteOp{},
}

// For は操作の種類に対応するOpを返す
func For(k op.Kind) Op {
	if k < 0 || int(k) >= len(ops) {
		return nil
	}
	return ops[k]
}

func (ReadOp) Kind() op.Kind       { return op.Read }
func (WriteOp) Kind() op.Kind      { return op.Write }
func (SindexReadOp) Kind() op.Kind { return op.SindexRead }
func (DeleteOp) Kind() op.Kind     { return op.Delete }

// Execute はランダムなキーを読み込み、結果は捨てる
func (ReadOp) Execute(ctx context.Context, c *Context) error {
	key, err := c.Keys.Sample(c.Rand)
	if err != nil {
		return fmt.Errorf("%w: read: %w", ErrInvariant, err)
	}
	if _, err := c.Store.Get(ctx, c.Database, c.Table, key); err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	c.Window.Add(op.Read, 1)
	return nil
}

// Execute は1件をバッファに積み、満杯ならバッチを送信する
// 前回の送信が失敗して満杯のままなら、先にそのバッチを再送する
func (WriteOp) Execute(ctx context.Context, c *Context) error {
	if len(c.pending) >= c.batchSize {
		if err := c.flushWrites(ctx); err != nil {
			return err
		}
	}

	c.pending = append(c.pending, store.Row{Value: c.Rand.IntN(MaxValue + 1)})
	if len(c.pending) < c.batchSize {
		return nil
	}
	return c.flushWrites(ctx)
}

// flushWrites はバッファを一括挿入し、生成されたキーを追跡対象に加える
func (c *Context) flushWrites(ctx context.Context) error {
	keys, err := c.Store.Insert(ctx, c.Database, c.Table, c.pending)
	if err != nil {
		return fmt.Errorf("insert batch of %d: %w", len(c.pending), err)
	}
	for _, key := range keys {
		c.Keys.Add(key)
	}
	c.Window.Add(op.Write, uint64(len(c.pending)))
	c.pending = c.pending[:0]
	return nil
}

// Execute は何もしない
func (SindexReadOp) Execute(context.Context, *Context) error {
	return nil
}

// Execute はランダムなキーを削除し、成功したら追跡対象から外す
func (DeleteOp) Execute(ctx context.Context, c *Context) error {
	key, err := c.Keys.Sample(c.Rand)
	if err != nil {
		return fmt.Errorf("%w: delete: %w", ErrInvariant, err)
	}
	if err := c.Store.Delete(ctx, c.Database, c.Table, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	c.Keys.Remove(key)
	c.Window.Add(op.Delete, 1)
	return nil
}
