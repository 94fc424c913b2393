package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// MaxLogFrameDataSize is the maximum line size included in log events.
// Longer lines are truncated in the event.
const MaxLogFrameDataSize = 1024

// readChunkSize is the size of a single socket read.
const readChunkSize = 512

// ErrFrameTruncated indicates the stream ended in the middle of a line.
var ErrFrameTruncated = errors.New("frame truncated")

// FrameWriter writes encoded requests to an underlying writer.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// SetLogger configures logging for this writer.
// Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger log.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteRequest encodes req and writes it as a single line.
// Encoding errors are returned before anything is written.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteRequest(req wire.Request) error {
	data, err := wire.Encode(req)
	if err != nil {
		return err
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.connID, data, log.DirectionOut))
		fw.logger.Log(log.NewRequestMessage(fw.connID, req))
	}
	return nil
}

// FrameReader reads frames from an underlying reader.
//
// Bytes are accumulated across reads, so a frame split over any number of
// reads is decoded exactly as if it had arrived in one.
type FrameReader struct {
	r       io.Reader
	decoder *wire.Decoder
	buf     []byte
	chunk   []byte

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewFrameReader creates a frame reader with the default maximum line length.
func NewFrameReader(r io.Reader) *FrameReader {
	return NewFrameReaderWithMaxLength(r, wire.DefaultMaxLineLength)
}

// NewFrameReaderWithMaxLength creates a frame reader with a custom maximum
// line length.
func NewFrameReaderWithMaxLength(r io.Reader, maxLineLength int) *FrameReader {
	return &FrameReader{
		r:       r,
		decoder: wire.NewDecoderWithMaxLength(maxLineLength),
		chunk:   make([]byte, readChunkSize),
	}
}

// SetLogger configures logging for this reader.
// Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger log.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame returns the next frame from the stream.
//
// Unknown frames are returned like any other frame; the caller decides what
// to do with them. io.EOF is returned when the stream ends on a line
// boundary and ErrFrameTruncated when it ends inside a line.
func (fr *FrameReader) ReadFrame() (wire.Frame, error) {
	for {
		frame, consumed, err := fr.decoder.Decode(fr.buf)
		if consumed > 0 {
			if err == nil && fr.logger != nil {
				fr.logger.Log(makeFrameEvent(fr.connID, fr.buf[:consumed], log.DirectionIn))
			}
			fr.buf = fr.buf[consumed:]
		}
		switch {
		case err == nil:
			return frame, nil
		case !errors.Is(err, wire.ErrNeedMoreData):
			return wire.Frame{}, err
		}

		n, rerr := fr.r.Read(fr.chunk)
		if n > 0 {
			fr.buf = append(fr.buf, fr.chunk[:n]...)
		}
		if rerr != nil {
			if n > 0 {
				// Decode what arrived before reporting the error.
				continue
			}
			if errors.Is(rerr, io.EOF) && len(fr.buf) > 0 {
				return wire.Frame{}, ErrFrameTruncated
			}
			return wire.Frame{}, rerr
		}
	}
}

// Buffered returns the number of bytes received but not yet decoded.
func (fr *FrameReader) Buffered() int {
	return len(fr.buf)
}

func makeFrameEvent(connID string, data []byte, direction log.Direction) log.Event {
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      append([]byte(nil), frameData...),
			Truncated: truncated,
		},
	}
}
