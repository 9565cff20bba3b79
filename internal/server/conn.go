// conn.go implements the per-connection writer (C2): a goroutine that
// drains a bounded queue so a slow client can never block the reactor
// goroutine (spec §4.2 backpressure). The matching reader, which only
// forwards parsed commands to the reactor, is serveConn in server.go.
package server

import (
	"net"
	"sync"

	"github.com/kforslund/ubervisor/internal/wire"
)

// conn wraps one accepted connection. It implements eventbus.Sink so the
// reactor can hand it directly to Bus.Subscribe.
type conn struct {
	nc    net.Conn
	codec *wire.Codec

	writeCh chan writeJob
	stopCh  chan struct{}

	mu        sync.Mutex
	queued    int
	limit     int
	closed    bool
	closeOnce sync.Once
}

type writeJob struct {
	cid     uint16
	payload []byte
}

func newConn(nc net.Conn, maxMessage, queueLimit int) *conn {
	c := &conn{
		nc:      nc,
		codec:   wire.NewCodec(nc, nc, maxMessage),
		writeCh: make(chan writeJob, 256),
		stopCh:  make(chan struct{}),
		limit:   queueLimit,
	}
	go c.writeLoop()
	return c
}

// Send implements eventbus.Sink. It never blocks: if the queue is over its
// byte budget the connection is torn down instead (spec §4.2: "a client
// that cannot keep up with its subscribed events is disconnected, not
// slowed down for everyone else").
func (c *conn) Send(cid uint16, payload []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.limit > 0 && c.queued+len(payload) > c.limit {
		c.mu.Unlock()
		c.close()
		return nil
	}
	c.queued += len(payload)
	c.mu.Unlock()

	select {
	case c.writeCh <- writeJob{cid: cid, payload: payload}:
	case <-c.stopCh:
	default:
		c.close()
	}
	return nil
}

func (c *conn) writeLoop() {
	for {
		select {
		case job := <-c.writeCh:
			c.mu.Lock()
			c.queued -= len(job.payload)
			c.mu.Unlock()
			if err := c.codec.WriteFrame(job.cid, job.payload); err != nil {
				c.close()
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.nc.Close()
		close(c.stopCh)
	})
}
