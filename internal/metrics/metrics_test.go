package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAccumulatesPerOp(t *testing.T) {
	r := New()
	r.Record("thread-api/q")
	r.Record("thread-api/q")
	r.Record("thread-api/pull")

	snap := r.Snapshot()
	assert.Equal(t, int64(2), snap["thread-api/q"])
	assert.Equal(t, int64(1), snap["thread-api/pull"])
	assert.Equal(t, int64(3), r.Total())
}

func TestSnapshotIsACopy(t *testing.T) {
	r := New()
	r.Record("thread-api/q")
	snap := r.Snapshot()
	snap["thread-api/q"] = 999

	assert.Equal(t, int64(1), r.Snapshot()["thread-api/q"])
}

func TestEmptyRegistry(t *testing.T) {
	r := New()
	assert.Equal(t, int64(0), r.Total())
	assert.Empty(t, r.Snapshot())
}
