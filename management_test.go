package dache

import (
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/routing"
)

func TestManagementServer_BucketsSnapshotReflectsTable(t *testing.T) {
	tbl := routing.NewTable(1, logging.Nop{})
	conn := hostconn.New(hostconn.Endpoint{Address: "10.0.0.1", Port: 9000}, nil, time.Second, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{conn})

	s := newManagementServer(tbl, logging.Nop{})

	snapshot := s.bucketsSnapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, []string{"10.0.0.1:9000"}, snapshot[0].Online)
	assert.Equal(t, false, snapshot[0].OfflineIndex)
}

func TestManagementServer_HostsSnapshotReflectsReachability(t *testing.T) {
	tbl := routing.NewTable(1, logging.Nop{})
	conn := hostconn.New(hostconn.Endpoint{Address: "10.0.0.1", Port: 9000}, nil, time.Second, logging.Nop{})
	tbl.Assemble([]*hostconn.Connection{conn})
	tbl.HandleDisconnected(conn)

	s := newManagementServer(tbl, logging.Nop{})

	hosts := s.hostsSnapshot()
	assert.Equal(t, 1, len(hosts))
	assert.Equal(t, "disconnected", hosts[0].State)
}
