package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stress-client/internal/op"
	"stress-client/internal/stats"
)

func rec(ts int64, read, write, sindex, del uint64) stats.Record {
	return stats.Record{Timestamp: ts, Counts: [op.Count]uint64{read, write, sindex, del}}
}

func writeStats(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadFile(t *testing.T) {
	path := writeStats(t, "1000,read,0,write,0,sindex_read,0,delete,0\n\n1001,read,5,write,3,sindex_read,0,delete,2\n")

	records, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []stats.Record{rec(1000, 0, 0, 0, 0), rec(1001, 5, 3, 0, 2)}, records)
}

func TestReadFileMalformed(t *testing.T) {
	path := writeStats(t, "1000,read,0,write,0,sindex_read,0,delete,0\n1001,read,x\n")

	_, err := ReadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":2:")
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestAggregateSumsPerTimestamp(t *testing.T) {
	a := []stats.Record{rec(1000, 0, 0, 0, 0), rec(1001, 4, 2, 0, 1), rec(1002, 1, 1, 0, 0)}
	b := []stats.Record{rec(1001, 6, 1, 0, 0), rec(1000, 0, 0, 0, 0), rec(1003, 0, 2, 0, 0)}

	r := Aggregate(a, b)

	assert.Equal(t, 2, r.Clients)
	assert.Equal(t, []stats.Record{
		rec(1000, 0, 0, 0, 0),
		rec(1001, 10, 3, 0, 1),
		rec(1002, 1, 1, 0, 0),
		rec(1003, 0, 2, 0, 0),
	}, r.Windows)
	assert.Equal(t, [op.Count]uint64{11, 6, 0, 1}, r.Totals)
	assert.Equal(t, uint64(18), r.Total())
	assert.Equal(t, int64(3), r.Seconds())
	assert.InDelta(t, 11.0/3, r.Rate(op.Read), 1e-9)
	assert.Equal(t, rec(1001, 10, 3, 0, 1), r.Peak())
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate()
	assert.Zero(t, r.Seconds())
	assert.Zero(t, r.Rate(op.Write))
	assert.Zero(t, r.Total())
	assert.NotEmpty(t, r.String())
}

func TestAggregateFiles(t *testing.T) {
	p1 := writeStats(t, "1000,read,0,write,0,sindex_read,0,delete,0\n1001,read,1,write,1,sindex_read,0,delete,1\n")
	p2 := writeStats(t, "1000,read,0,write,0,sindex_read,0,delete,0\n1001,read,2,write,0,sindex_read,0,delete,0\n")

	r, err := AggregateFiles(p1, p2)
	require.NoError(t, err)
	assert.Equal(t, [op.Count]uint64{3, 1, 0, 1}, r.Totals)

	_, err = AggregateFiles(p1, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestReportString(t *testing.T) {
	r := Aggregate([]stats.Record{rec(1000, 0, 0, 0, 0), rec(1001, 8, 4, 0, 2)})
	s := r.String()

	for _, want := range []string{"STRESS REPORT", "Clients:        1", "read:", "delete:", "total:", "(at 1001)"} {
		assert.True(t, strings.Contains(s, want), "report missing %q:\n%s", want, s)
	}
}
