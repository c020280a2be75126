package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	Frame int64
	Zone  string
}

func TestQueue_PushAndGetAndEmpty(t *testing.T) {
	q := New[row]()
	require.NotNil(t, q)
	assert.True(t, q.Empty())

	q.Push(row{1, "a"})
	q.Push(row{2, "a"}, row{2, "b"})
	assert.Equal(t, 3, q.Len())

	got := q.GetAndEmpty()
	assert.Equal(t, []row{{1, "a"}, {2, "a"}, {2, "b"}}, got)
	assert.True(t, q.Empty())
	assert.Empty(t, q.GetAndEmpty())
}

func TestQueue_Requeue(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3)
	batch := q.GetAndEmpty()
	q.Push(4, 5)

	q.Requeue(batch)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, q.GetAndEmpty())

	q.Requeue(nil)
	assert.True(t, q.Empty())
}

func TestQueue_GetAndEmptyDoesNotAlias(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	first := q.GetAndEmpty()
	q.Push(9)
	assert.Equal(t, []int{1, 2}, first)
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[row]()
	var wg sync.WaitGroup
	drained := make(chan int, 10)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Push(row{Frame: int64(n)})
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			drained <- len(q.GetAndEmpty())
		}()
	}
	wg.Wait()
	close(drained)

	total := q.Len()
	for n := range drained {
		total += n
	}
	assert.Equal(t, 100, total)
}

func TestBounded_DropsOldest(t *testing.T) {
	q := NewBounded[int](3)
	q.Push(1, 2)
	q.Push(3, 4, 5)

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 2, q.TakeDropped())
	assert.Zero(t, q.TakeDropped())
	assert.Equal(t, []int{3, 4, 5}, q.GetAndEmpty())
}

func TestBounded_RequeueOverLimit(t *testing.T) {
	q := NewBounded[int](4)
	q.Push(1, 2, 3)
	batch := q.GetAndEmpty()
	q.Push(4, 5)

	q.Requeue(batch)
	assert.Equal(t, []int{2, 3, 4, 5}, q.GetAndEmpty())
	assert.Equal(t, 1, q.TakeDropped())
}

func TestNewBounded_NonPositiveIsUnbounded(t *testing.T) {
	for _, limit := range []int{0, -5} {
		q := NewBounded[int](limit)
		for i := 0; i < 1000; i++ {
			q.Push(i)
		}
		assert.Equal(t, 1000, q.Len())
		assert.Zero(t, q.TakeDropped())
	}
}
