// Package keyset tracks the keys known to exist in the target table.
//
// A Set is owned by a single goroutine and is not safe for concurrent use.
// Keys are kept in a slice with a reverse index so that Add, Remove and
// uniform Sample are all O(1).
package keyset

import (
	"errors"
	"math/rand/v2"
)

// ErrEmpty はキーが一つもない状態でSampleした時に返される
var ErrEmpty = errors.New("keyset: no keys to sample")

// Set は存在が確認されたキーの集合
type Set struct {
	keys  []string
	index map[string]int
}

// New は空の集合を作成する
func New() *Set {
	return &Set{
		index: make(map[string]int),
	}
}

// Add はキーを追加する。既に存在する場合はfalseを返す
func (s *Set) Add(key string) bool {
	if _, exists := s.index[key]; exists {
		return false
	}
	s.index[key] = len(s.keys)
	s.keys = append(s.keys, key)
	return true
}

// Remove はキーを削除する。存在しない場合はfalseを返す
func (s *Set) Remove(key string) bool {
	i, exists := s.index[key]
	if !exists {
		return false
	}

	last := len(s.keys) - 1
	if i != last {
		moved := s.keys[last]
		s.keys[i] = moved
		s.index[moved] = i
	}
	s.keys = s.keys[:last]
	delete(s.index, key)
	return true
}

// Contains はキーの有無を返す
func (s *Set) Contains(key string) bool {
	_, exists := s.index[key]
	return exists
}

// Len は要素数を返す
func (s *Set) Len() int {
	return len(s.keys)
}

// Empty は空かどうかを返す
func (s *Set) Empty() bool {
	return len(s.keys) == 0
}

// Sample は一様ランダムにキーを一つ選ぶ
func (s *Set) Sample(r *rand.Rand) (string, error) {
	if len(s.keys) == 0 {
		return "", ErrEmpty
	}
	return s.keys[r.IntN(len(s.keys))], nil
}

// Keys は全キーのコピーを返す
func (s *Set) Keys() []string {
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Clear は全てのキーを削除する
func (s *Set) Clear() {
	s.keys = s.keys[:0]
	clear(s.index)
}
