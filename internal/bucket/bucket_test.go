package bucket_test

import (
	"errors"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache/internal/bucket"
	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
)

func newConn(addr string, port int) *hostconn.Connection {
	return hostconn.New(hostconn.Endpoint{Address: addr, Port: port}, nil, time.Second, logging.Nop{})
}

func TestBucket_NextRoundRobin(t *testing.T) {
	b := bucket.New(3)
	c1, c2, c3 := newConn("a", 1), newConn("a", 2), newConn("a", 3)
	b.Add(c1)
	b.Add(c2)
	b.Add(c3)

	seen := []*hostconn.Connection{b.Next(), b.Next(), b.Next(), b.Next()}
	assert.Equal(t, c1, seen[0])
	assert.Equal(t, c2, seen[1])
	assert.Equal(t, c3, seen[2])
	assert.Equal(t, c1, seen[3])
}

func TestBucket_NextEmpty(t *testing.T) {
	b := bucket.New(1)
	assert.Nil(t, b.Next())
}

func TestBucket_TakeOfflineBringOnline(t *testing.T) {
	b := bucket.New(2)
	c1, c2 := newConn("a", 1), newConn("a", 2)
	b.Add(c1)
	b.Add(c2)

	assert.Equal(t, true, b.TakeOffline(c1))
	assert.Equal(t, false, b.TakeOffline(c1))
	assert.Equal(t, 1, len(b.Online()))
	assert.Equal(t, 1, len(b.Offline()))

	assert.Equal(t, true, b.BringOnline(c1))
	assert.Equal(t, false, b.BringOnline(c1))
	assert.Equal(t, 2, len(b.Online()))
	assert.Equal(t, 0, len(b.Offline()))
}

func TestBucket_Remove(t *testing.T) {
	b := bucket.New(2)
	c1, c2 := newConn("a", 1), newConn("a", 2)
	b.Add(c1)
	b.Add(c2)
	b.TakeOffline(c2)

	assert.Equal(t, true, b.Remove(c1))
	assert.Equal(t, true, b.Remove(c2))
	assert.Equal(t, false, b.Remove(c1))
	assert.Equal(t, false, b.Has(c1))
	assert.Equal(t, false, b.Has(c2))
}

var errBoom = errors.New("boom")

func TestBucket_ForAllStopsOnError(t *testing.T) {
	b := bucket.New(3)
	c1, c2, c3 := newConn("a", 1), newConn("a", 2), newConn("a", 3)
	b.Add(c1)
	b.Add(c2)
	b.Add(c3)

	var visited []*hostconn.Connection

	err := b.ForAll(func(c *hostconn.Connection) error {
		visited = append(visited, c)
		if c == c2 {
			return errBoom
		}

		return nil
	})

	assert.Equal(t, errBoom, err)
	assert.Equal(t, []*hostconn.Connection{c1, c2}, visited)
}

func TestBucket_Count(t *testing.T) {
	b := bucket.New(4)
	assert.Equal(t, 4, b.Count())
	assert.Equal(t, 0, b.Len())

	b.Add(newConn("a", 1))
	assert.Equal(t, 1, b.Len())
}
