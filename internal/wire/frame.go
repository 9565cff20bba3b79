// Package wire implements the ubervisor frame codec (spec §4.1): a
// length-prefixed, chunkable, correlation-id-tagged message used for every
// command, reply, and event on the control socket.
//
// Every frame on the wire is:
//
//	len:uint16 BE | cid:uint16 BE | payload[len & lenMask]
//
// The top bit of len is a continuation flag: when set, payload is one chunk
// of a larger message and the next frame with the same cid carries the next
// chunk (or the final, unflagged chunk). Maximum chunk size is lenMask
// (16383) bytes.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// contFlag marks a frame as a non-final chunk of a larger message.
	contFlag = 0x8000
	// lenMask extracts the chunk payload length from the length field.
	lenMask = 0x3FFF
	// MaxChunk is the largest payload a single frame can carry.
	MaxChunk = lenMask

	// headerSize is the fixed len+cid prefix every frame carries.
	headerSize = 4

	// DefaultMaxMessage is the recommended cap on a fully reassembled,
	// chunked message (spec §4.1: "recommended 16 MiB").
	DefaultMaxMessage = 16 << 20
)

// Frame is one length-prefixed unit read off or about to be written to the
// wire, after continuation-chunk reassembly.
type Frame struct {
	CID     uint16
	Payload []byte
}

// Codec reads and writes frames on a connection, reassembling chunked
// messages and enforcing a maximum reassembled-message size.
type Codec struct {
	r          *bufio.Reader
	w          io.Writer
	maxMessage int
}

// NewCodec wraps a connection's reader/writer halves in a frame codec.
// maxMessage <= 0 selects DefaultMaxMessage.
func NewCodec(r io.Reader, w io.Writer, maxMessage int) *Codec {
	if maxMessage <= 0 {
		maxMessage = DefaultMaxMessage
	}
	return &Codec{r: bufio.NewReader(r), w: w, maxMessage: maxMessage}
}

// ReadFrame reads one (possibly multi-chunk) logical message, returning its
// correlation id and fully reassembled payload.
func (c *Codec) ReadFrame() (Frame, error) {
	var cid uint16
	var payload []byte
	first := true

	for {
		hdr := make([]byte, headerSize)
		if _, err := io.ReadFull(c.r, hdr); err != nil {
			return Frame{}, err
		}
		lenField := binary.BigEndian.Uint16(hdr[0:2])
		chunkCID := binary.BigEndian.Uint16(hdr[2:4])
		more := lenField&contFlag != 0
		n := int(lenField & lenMask)

		if first {
			cid = chunkCID
			first = false
		} else if chunkCID != cid {
			return Frame{}, fmt.Errorf("wire: continuation cid mismatch: got %d, want %d", chunkCID, cid)
		}

		if n > 0 {
			chunk := make([]byte, n)
			if _, err := io.ReadFull(c.r, chunk); err != nil {
				return Frame{}, err
			}
			if len(payload)+n > c.maxMessage {
				return Frame{}, fmt.Errorf("wire: message exceeds %d byte cap", c.maxMessage)
			}
			payload = append(payload, chunk...)
		}

		if !more {
			break
		}
	}

	return Frame{CID: cid, Payload: payload}, nil
}

// WriteFrame writes payload as one or more chunked frames under cid.
func (c *Codec) WriteFrame(cid uint16, payload []byte) error {
	if len(payload) == 0 {
		hdr := make([]byte, headerSize)
		binary.BigEndian.PutUint16(hdr[2:4], cid)
		_, err := c.w.Write(hdr)
		return err
	}

	for off := 0; off < len(payload); {
		end := off + MaxChunk
		more := end < len(payload)
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[off:end]

		lenField := uint16(len(chunk))
		if more {
			lenField |= contFlag
		}

		hdr := make([]byte, headerSize)
		binary.BigEndian.PutUint16(hdr[0:2], lenField)
		binary.BigEndian.PutUint16(hdr[2:4], cid)

		if _, err := c.w.Write(hdr); err != nil {
			return err
		}
		if _, err := c.w.Write(chunk); err != nil {
			return err
		}
		off = end
	}
	return nil
}

// WriteRawHELO writes exactly 4 bytes without any frame header — the
// handshake reply quirk noted in spec §4.2/§9: the original protocol
// predates the framed loop, so the server's HELO reply is a bare 4-byte
// ASCII string with no length prefix, unlike every other frame on the wire.
func WriteRawHELO(w io.Writer) error {
	_, err := w.Write([]byte("HELO"))
	return err
}

// ReadRawHELO reads the bare 4-byte HELO reply written by WriteRawHELO.
func ReadRawHELO(r io.Reader) error {
	buf := make([]byte, 4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if string(buf) != "HELO" {
		return fmt.Errorf("wire: expected HELO handshake reply, got %q", buf)
	}
	return nil
}
