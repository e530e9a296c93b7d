// Package wire implements size-declarative framing: every outbound
// message is preceded by its byte length as a little-endian uint32, and
// a single contiguous write per message prevents concurrent writers
// from interleaving frames. It is grounded in
// Beam/IO/SizeDeclarativeWriter.hpp (the writer side) and
// Beam/Network/TcpSocketReader.hpp (the reader side).
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// MaxFrameSize bounds a single frame to protect the reader from a
// corrupt or hostile length prefix.
const MaxFrameSize = 64 << 20 // 64 MiB

// Writer frames every payload passed to WriteFrame with a little-endian
// uint32 length prefix, issuing exactly one Write call per frame so that
// concurrent callers cannot interleave their frames on the underlying
// io.Writer.
type Writer struct {
	mu  sync.Mutex
	dst io.Writer
}

// NewWriter wraps dst.
func NewWriter(dst io.Writer) *Writer {
	return &Writer{dst: dst}
}

// WriteFrame writes payload as one length-prefixed frame.
func (w *Writer) WriteFrame(payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("wire: frame of %d bytes exceeds max %d", len(payload), MaxFrameSize)
	}
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := w.dst.Write(buf)
	return err
}

// Reader reads the length-prefixed frames written by Writer.
type Reader struct {
	src io.Reader
}

// NewReader wraps src.
func NewReader(src io.Reader) *Reader {
	return &Reader{src: src}
}

// ReadFrame reads and returns one frame's payload.
func (r *Reader) ReadFrame() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r.src, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", size, MaxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.src, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
