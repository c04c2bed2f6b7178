package invalidation_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache/internal/hostconn"
	"github.com/hyp3rd/dache/internal/invalidation"
	"github.com/hyp3rd/dache/internal/logging"
	"github.com/hyp3rd/dache/internal/wireformat"
)

func frame(segments ...string) []byte {
	var out []byte

	for _, s := range segments {
		encoded := wireformat.EncodeUTF16LE(s)

		prefix := make([]byte, 4) //nolint:mnd
		binary.LittleEndian.PutUint32(prefix, uint32(len(encoded)))

		out = append(out, prefix...)
		out = append(out, encoded...)
	}

	return out
}

func TestListener_HandleDispatchesExpireEvents(t *testing.T) {
	l := invalidation.New(logging.Nop{})

	var got []string

	l.OnExpired(func(e invalidation.Event) { got = append(got, e.CacheKey) })

	conn := hostconn.New(hostconn.Endpoint{Address: "127.0.0.1", Port: 9000}, nil, time.Second, logging.Nop{})
	l.Handle(conn, frame("expire", "order-1", "order-2"))

	assert.Equal(t, []string{"order-1", "order-2"}, got)
}

func TestListener_HandleIgnoresUnknownCommand(t *testing.T) {
	l := invalidation.New(logging.Nop{})

	called := false
	l.OnExpired(func(invalidation.Event) { called = true })

	conn := hostconn.New(hostconn.Endpoint{Address: "127.0.0.1", Port: 9000}, nil, time.Second, logging.Nop{})
	l.Handle(conn, frame("helo", "order-1"))

	assert.Equal(t, false, called)
}

func TestListener_HandleMalformedFrameIsNoop(t *testing.T) {
	l := invalidation.New(logging.Nop{})

	called := false
	l.OnExpired(func(invalidation.Event) { called = true })

	conn := hostconn.New(hostconn.Endpoint{Address: "127.0.0.1", Port: 9000}, nil, time.Second, logging.Nop{})
	l.Handle(conn, []byte{0x01, 0x02})

	assert.Equal(t, false, called)
}
