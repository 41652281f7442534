package transport

import (
	"sync"

	"go.uber.org/zap"

	"github.com/CitroenGames/garden-framework-sub000/errors"
)

// unreliableQueueSize bounds the unreliable channel's backlog; once
// full, the oldest queued frame is dropped to approximate UDP loss
// semantics over the underlying reliable transport.
const unreliableQueueSize = 64

// Channel multiplexes reliable and unreliable sends onto one Conn.
// Reliable sends are written immediately and are never dropped by
// this layer. Unreliable sends go through a bounded queue that Flush
// drains on the calling goroutine; under backpressure the oldest queued
// frame is evicted to make room for the newest one.
type Channel struct {
	conn   Conn
	log    *zap.SugaredLogger

	writeMu sync.Mutex

	unreliableMu    sync.Mutex
	unreliableQueue [][]byte

	closed   bool
	closedMu sync.Mutex
}

// NewChannel wraps conn with reliable/unreliable send semantics.
func NewChannel(conn Conn, log *zap.SugaredLogger) *Channel {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Channel{conn: conn, log: log}
}

// Send writes payload over conn. Reliable sends happen synchronously
// and return any write error. Unreliable sends are queued and flushed
// by Flush; a full queue silently drops the oldest frame, not the new
// one, so the most recent state always has a chance to go out.
func (c *Channel) Send(payload []byte, reliable bool) error {
	if reliable {
		return c.writeNow(payload)
	}

	c.unreliableMu.Lock()
	if len(c.unreliableQueue) >= unreliableQueueSize {
		c.unreliableQueue = c.unreliableQueue[1:]
		c.log.Debugw("unreliable channel full, dropped oldest frame")
	}
	c.unreliableQueue = append(c.unreliableQueue, payload)
	c.unreliableMu.Unlock()
	return nil
}

func (c *Channel) writeNow(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(payload); err != nil {
		return errors.Wrap(err, "transport write failed")
	}
	return nil
}

// Flush drains the unreliable queue, writing each frame in order.
// Called once per tick after reliable sends.
func (c *Channel) Flush() error {
	c.unreliableMu.Lock()
	pending := c.unreliableQueue
	c.unreliableQueue = nil
	c.unreliableMu.Unlock()

	for _, payload := range pending {
		if err := c.writeNow(payload); err != nil {
			return err
		}
	}
	return nil
}

// Receive blocks for the next inbound frame.
func (c *Channel) Receive() ([]byte, error) {
	data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "transport read failed")
	}
	return data, nil
}

// Close closes the underlying connection. Safe to call more than once.
func (c *Channel) Close() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
