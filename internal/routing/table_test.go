package routing_test

import (
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/routing"
)

func newConn(addr string, port int) *hostconn.Connection {
	return hostconn.New(hostconn.Endpoint{Address: addr, Port: port}, nil, time.Second, logging.Nop{})
}

func TestTable_AssembleIsDeterministic(t *testing.T) {
	conns := []*hostconn.Connection{
		newConn("10.0.0.3", 9000),
		newConn("10.0.0.1", 9000),
		newConn("10.0.0.2", 9000),
	}

	tbl1 := routing.NewTable(2, logging.Nop{})
	tbl1.Assemble(conns)

	tbl2 := routing.NewTable(2, logging.Nop{})
	// Same connections, reordered input: assembly sorts before bucketing.
	tbl2.Assemble([]*hostconn.Connection{conns[1], conns[2], conns[0]})

	b1 := tbl1.Buckets()
	b2 := tbl2.Buckets()

	assert.Equal(t, len(b1), len(b2))

	for i := range b1 {
		assert.Equal(t, len(b1[i].Online()), len(b2[i].Online()))

		for j, c := range b1[i].Online() {
			assert.Equal(t, c.Endpoint(), b2[i].Online()[j].Endpoint())
		}
	}
}

func TestTable_AssembleFillsShortFinalBucket(t *testing.T) {
	conns := []*hostconn.Connection{
		newConn("10.0.0.1", 9000),
		newConn("10.0.0.2", 9000),
		newConn("10.0.0.3", 9000),
	}

	tbl := routing.NewTable(2, logging.Nop{})
	tbl.Assemble(conns)

	buckets := tbl.Buckets()
	assert.Equal(t, 2, len(buckets))
	assert.Equal(t, 2, len(buckets[0].Online()))
	assert.Equal(t, 1, len(buckets[1].Online()))
}

func TestTable_LookupStableForSameRoutingString(t *testing.T) {
	conns := []*hostconn.Connection{
		newConn("10.0.0.1", 9000),
		newConn("10.0.0.2", 9000),
		newConn("10.0.0.3", 9000),
		newConn("10.0.0.4", 9000),
	}

	tbl := routing.NewTable(1, logging.Nop{})
	tbl.Assemble(conns)

	b1, err := tbl.Lookup("order-99")
	assert.Nil(t, err)

	b2, err := tbl.Lookup("order-99")
	assert.Nil(t, err)

	assert.Equal(t, b1, b2)
}

func TestTable_LookupEmptyTable(t *testing.T) {
	tbl := routing.NewTable(1, logging.Nop{})

	_, err := tbl.Lookup("anything")
	if err == nil {
		t.Fatal("expected an error looking up against an empty table")
	}
}

func TestTable_HandleDisconnectedSkipsOfflineBucket(t *testing.T) {
	c1 := newConn("10.0.0.1", 9000)
	c2 := newConn("10.0.0.2", 9000)

	tbl := routing.NewTable(1, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{c1, c2})

	buckets := tbl.Buckets()
	assert.Equal(t, 2, len(buckets))

	// Find which bucket owns c1 and take it offline via the Table's
	// reaction path (mirrors what a Connection's Disconnected event fires).
	var ownerIdx int

	for i, b := range buckets {
		if b.Has(c1) {
			ownerIdx = i
		}
	}

	tbl.HandleDisconnected(c1)

	offline := tbl.OfflineIndexSet()
	assert.Equal(t, true, offline[ownerIdx])

	// Reconnecting clears it.
	tbl.HandleReconnected(c1)
	offline = tbl.OfflineIndexSet()
	assert.Equal(t, false, offline[ownerIdx])
}

func TestTable_HandleDisconnectedIdempotent(t *testing.T) {
	c1 := newConn("10.0.0.1", 9000)

	tbl := routing.NewTable(1, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{c1})

	tbl.HandleDisconnected(c1)
	tbl.HandleDisconnected(c1)

	offline := tbl.OfflineIndexSet()
	assert.Equal(t, 1, len(offline))
}

func TestTable_AppendHostFillsLastShortBucketFirst(t *testing.T) {
	tbl := routing.NewTable(2, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{newConn("10.0.0.1", 9000)})

	assert.Equal(t, 1, len(tbl.Buckets()))
	assert.Equal(t, 1, len(tbl.Buckets()[0].Online()))

	tbl.AppendHost(newConn("10.0.0.2", 9000))
	assert.Equal(t, 1, len(tbl.Buckets()))
	assert.Equal(t, 2, len(tbl.Buckets()[0].Online()))

	tbl.AppendHost(newConn("10.0.0.3", 9000))
	assert.Equal(t, 2, len(tbl.Buckets()))
	assert.Equal(t, 1, len(tbl.Buckets()[1].Online()))
}

func TestTable_RemoveHostDropsMemberKeepsBucketIndex(t *testing.T) {
	c1 := newConn("10.0.0.1", 9000)

	tbl := routing.NewTable(1, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{c1})

	tbl.RemoveHost(c1)

	buckets := tbl.Buckets()
	assert.Equal(t, 1, len(buckets))
	assert.Equal(t, false, buckets[0].Has(c1))

	offline := tbl.OfflineIndexSet()
	assert.Equal(t, true, offline[0])
}

func TestTable_EventsFireOnDisconnectReconnect(t *testing.T) {
	c1 := newConn("10.0.0.1", 9000)

	tbl := routing.NewTable(1, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{c1})

	var gotDisconnected, gotReconnected routing.HostEvent

	tbl.OnHostDisconnected(func(e routing.HostEvent) { gotDisconnected = e })
	tbl.OnHostReconnected(func(e routing.HostEvent) { gotReconnected = e })

	tbl.HandleDisconnected(c1)
	assert.Equal(t, c1.Endpoint(), gotDisconnected.Endpoint)

	tbl.HandleReconnected(c1)
	assert.Equal(t, c1.Endpoint(), gotReconnected.Endpoint)
}
