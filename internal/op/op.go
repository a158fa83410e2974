// Package op defines the operation kinds issued by the stress client.
//
// The order of the kinds is fixed: read, write, sindex_read, delete. It is
// used both by the weighted scheduler when walking the weight table and by
// the stats writer when laying out a record.
package op

import "fmt"

// Kind は操作の種類を表す
type Kind int

const (
	Read Kind = iota
	Write
	SindexRead
	Delete
)

// Count は操作の種類の数
const Count = 4

// All は固定順序で全ての操作を返す
var All = [Count]Kind{Read, Write, SindexRead, Delete}

func (k Kind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case SindexRead:
		return "sindex_read"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// Parse は名前から操作の種類を返す
func Parse(name string) (Kind, error) {
	for _, k := range All {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation: %q", name)
}
