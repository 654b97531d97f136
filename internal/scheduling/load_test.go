package scheduling

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedCollection(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestLoadScheduler_RoundRobinForSmallCollections(t *testing.T) {
	workers := newWorkers(2, nil)
	s := NewLoadScheduler(Options{NumWorkers: 2})
	register(t, s, workers, []string{"a@x_1", "b", "c"})

	s.Schedule()

	assert.Equal(t, []int{0, 2}, workers[0].sent)
	assert.Equal(t, []int{1}, workers[1].sent)
	assert.True(t, workers[0].ShuttingDown())
	assert.True(t, workers[1].ShuttingDown())
}

func TestLoadScheduler_TopsUpQueues(t *testing.T) {
	workers := newWorkers(2, nil)
	s := NewLoadScheduler(Options{NumWorkers: 2})
	register(t, s, workers, numberedCollection(20))
	w0, w1 := workers[0], workers[1]

	s.Schedule()
	require.Equal(t, []int{0, 1}, w0.sent)
	require.Equal(t, []int{2, 3}, w1.sent)

	require.NoError(t, s.MarkComplete(w0, 0, 0))
	assert.Equal(t, []int{0, 1, 4, 5, 6}, w0.sent)
	assert.False(t, s.Finished())
}

func TestLoadScheduler_RemoveWorkerRedistributes(t *testing.T) {
	workers := newWorkers(2, nil)
	s := NewLoadScheduler(Options{NumWorkers: 2})
	register(t, s, workers, numberedCollection(20))
	w0, w1 := workers[0], workers[1]
	s.Schedule()
	require.NoError(t, s.MarkComplete(w0, 0, 0))

	crash, err := s.RemoveWorker(w0)
	require.NoError(t, err)
	assert.Equal(t, "t1", crash)
	assert.Len(t, s.inflight[w1], 8)
	assert.Contains(t, s.pending, 4)
	assert.NotContains(t, s.pending, 1)
}

func TestLoadScheduler_MaxSchedChunk(t *testing.T) {
	workers := newWorkers(1, nil)
	s := NewLoadScheduler(Options{NumWorkers: 1, MaxSchedChunk: 3})
	register(t, s, workers, numberedCollection(40))

	s.Schedule()
	assert.Equal(t, []int{0, 1, 2}, workers[0].sent)
}
