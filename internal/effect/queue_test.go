package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{action: "a"})
	q.Enqueue(job{action: "b"})
	assert.Equal(t, 2, q.Len())

	j, ok := q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, "a", j.action)
	j, ok = q.TryDequeue()
	assert.True(t, ok)
	assert.Equal(t, "b", j.action)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestJobQueue_SignalCoalesces(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{action: "a"})
	q.Enqueue(job{action: "b"})

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signals must coalesce into one")
	default:
	}
}

func TestJobQueue_Close(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{action: "a"})
	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(job{action: "b"}))
	_, open := <-q.Wait()
	// buffered signal is delivered first, then the closed channel
	if open {
		_, open = <-q.Wait()
	}
	assert.False(t, open)

	j, ok := q.TryDequeue()
	assert.True(t, ok, "queued jobs survive Close")
	assert.Equal(t, "a", j.action)
}
