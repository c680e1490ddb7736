package smb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrConnectionClosed is returned when the stream ends while a
// response is still outstanding. No partial message is ever delivered.
var ErrConnectionClosed = errors.New("connection closed before a full message was received")

// frameReader reassembles length-delimited messages from a byte
// stream. Every message is prefixed with a 4-byte big-endian length of
// the payload that follows. The transport may split a message across
// reads or concatenate several messages into one read; both are
// handled losslessly by buffering.
type frameReader struct {
	r   io.Reader
	buf []byte
}

func newFrameReader(r io.Reader) *frameReader {
	return &frameReader{r: r}
}

// Next blocks until one complete message is available and returns its
// payload with the length prefix stripped. Any bytes beyond the first
// complete message are retained for subsequent calls.
func (fr *frameReader) Next() ([]byte, error) {
	chunk := make([]byte, 4096)
	for {
		if msg, ok := fr.extract(); ok {
			return msg, nil
		}
		n, err := fr.r.Read(chunk)
		if n > 0 {
			fr.buf = append(fr.buf, chunk[:n]...)
			continue
		}
		if err != nil {
			if err == io.EOF {
				return nil, ErrConnectionClosed
			}
			return nil, fmt.Errorf("transport read: %w", err)
		}
	}
}

func (fr *frameReader) extract() ([]byte, bool) {
	if len(fr.buf) < 4 {
		return nil, false
	}
	size := int(binary.BigEndian.Uint32(fr.buf[:4]))
	if len(fr.buf) < 4+size {
		return nil, false
	}
	msg := make([]byte, size)
	copy(msg, fr.buf[4:4+size])
	fr.buf = fr.buf[4+size:]
	return msg, true
}

// frame prepends the 4-byte big-endian length prefix to a payload.
func frame(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out
}
