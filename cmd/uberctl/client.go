package main

import (
	"fmt"
	"net"
	"time"

	"github.com/kforslund/ubervisor/internal/wire"
)

const dialTimeout = 2 * time.Second

// rpcClient is a single-shot connection to ubervisord: dial, HELO
// handshake, exactly one framed request/reply round trip (or, for SUBS,
// a stream of event frames), then close. uberctl implements no policy of
// its own — it is a thin encoder/decoder of the wire protocol, the same
// role catherd plays against catherdd.
type rpcClient struct {
	nc    net.Conn
	codec *wire.Codec
}

func dial(socketPath string, maxMessage int) (*rpcClient, error) {
	nc, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", socketPath, err)
	}

	codec := wire.NewCodec(nc, nc, maxMessage)
	if err := codec.WriteFrame(0, wire.JoinCommand(wire.TagHelo, nil)); err != nil {
		nc.Close()
		return nil, fmt.Errorf("send HELO: %w", err)
	}
	if err := wire.ReadRawHELO(nc); err != nil {
		nc.Close()
		return nil, fmt.Errorf("HELO handshake: %w", err)
	}

	return &rpcClient{nc: nc, codec: codec}, nil
}

func (c *rpcClient) close() {
	c.nc.Close()
}

// call sends one framed command and returns the single reply frame's
// payload. Every tag except SUBS follows this one-shot shape.
func (c *rpcClient) call(tag string, body []byte) ([]byte, error) {
	if err := c.codec.WriteFrame(1, wire.JoinCommand(tag, body)); err != nil {
		return nil, fmt.Errorf("send %s: %w", tag, err)
	}
	f, err := c.codec.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", tag, err)
	}
	return f.Payload, nil
}

// subscribe sends SUBS and then feeds every subsequent frame to onEvent
// until the connection closes or onEvent returns an error.
func (c *rpcClient) subscribe(body []byte, onEvent func(payload []byte) error) error {
	if err := c.codec.WriteFrame(1, wire.JoinCommand(wire.TagSubs, body)); err != nil {
		return fmt.Errorf("send SUBS: %w", err)
	}
	f, err := c.codec.ReadFrame()
	if err != nil {
		return fmt.Errorf("read SUBS reply: %w", err)
	}
	if err := onEvent(f.Payload); err != nil {
		return err
	}
	for {
		f, err := c.codec.ReadFrame()
		if err != nil {
			return err
		}
		if err := onEvent(f.Payload); err != nil {
			return err
		}
	}
}
