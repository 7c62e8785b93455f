// Package transport owns the physical RS-485 serial port: opening and
// configuring it, extracting complete protocol frames from the raw byte
// stream, and the half-duplex "flush after write" discipline the bus
// protocol's token handshake depends on.
package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	goserial "github.com/tarm/serial"

	"github.com/econext/gm3-gateway/internal/protocol"
)

// queueDepth bounds how many parsed frames may sit unconsumed; once full,
// the oldest queued frame is dropped to make room for the newest — mirrors
// the reference protocol's _QUEUE_MAXSIZE=64 drop-oldest behavior.
const queueDepth = 64

// readChunkSize is the size of each individual port read.
const readChunkSize = 256

// Transport owns a single serial port and turns its raw byte stream into a
// channel of parsed Frames, plus a SendFrame call for the write side.
type Transport struct {
	Logger *log.Logger

	portName string
	baud     int

	mu     sync.Mutex // serializes port access: Close vs. the read/write goroutines
	port   *goserial.Port
	frames chan protocol.Frame
	done   chan struct{}

	closeOnce sync.Once
}

// Config describes how to open the serial port.
type Config struct {
	Port        string
	Baud        int
	ReadTimeout time.Duration
}

// Open configures and opens the serial port, and starts the background
// frame-extraction reader. Call Close when done.
func Open(cfg Config, logger *log.Logger) (*Transport, error) {
	if logger == nil {
		logger = log.Default()
	}
	sc := &goserial.Config{
		Name:        cfg.Port,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	}
	port, err := goserial.OpenPort(sc)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Port, err)
	}

	t := &Transport{
		Logger:   logger,
		portName: cfg.Port,
		baud:     cfg.Baud,
		port:     port,
		frames:   make(chan protocol.Frame, queueDepth),
		done:     make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Close shuts down the reader goroutine and closes the underlying port.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.mu.Lock()
		err = t.port.Close()
		t.mu.Unlock()
	})
	return err
}

// Frames returns the channel of successfully parsed, CRC-valid frames.
func (t *Transport) Frames() <-chan protocol.Frame {
	return t.frames
}

// SendFrame writes f to the port. When flushAfter is true, it approximates
// the "drain TX, then discard RX garbage" half-duplex discipline the token
// handshake requires: tarm/serial's Port exposes a single Flush() (TCIOFLUSH
// semantics) rather than distinct drain/discard primitives, so this sleeps
// for the frame's estimated wire time — matching the teacher's own
// sendCommand/readUntil write-then-sleep idiom in serial/com.go — before
// calling Flush() to clear whatever accumulated in the OS read buffer during
// transmission.
func (t *Transport) SendFrame(f protocol.Frame, flushAfter bool) error {
	wire := f.ToBytes()

	t.mu.Lock()
	_, err := t.port.Write(wire)
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}

	if flushAfter {
		time.Sleep(drainEstimate(len(wire), t.baud))
		t.mu.Lock()
		if ferr := t.port.Flush(); ferr != nil {
			t.Logger.Printf("transport: flush after write failed: %v", ferr)
		}
		t.mu.Unlock()
	}
	return nil
}

// drainEstimate returns a conservative estimate of how long n bytes take to
// leave the wire at baud bps, assuming an 8N1 frame (10 bit-times per byte).
func drainEstimate(n, baud int) time.Duration {
	if baud <= 0 {
		baud = 9600
	}
	seconds := float64(n*10) / float64(baud)
	return time.Duration(seconds*float64(time.Second)) + 5*time.Millisecond
}

// ResetRx discards frames already queued but not yet consumed. Bytes the
// read loop holds toward a still-incomplete frame are kept. The correlator
// calls it right after sending a request.
func (t *Transport) ResetRx() {
	for {
		select {
		case <-t.frames:
		default:
			return
		}
	}
}

// readLoop continuously reads raw bytes from the port, extracts complete
// frames, and publishes them to frames, dropping the oldest queued frame
// when full.
func (t *Transport) readLoop() {
	buf := make([]byte, 0, protocol.FrameMaxLen*2)
	tmp := make([]byte, readChunkSize)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		t.mu.Lock()
		n, err := t.port.Read(tmp)
		t.mu.Unlock()
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			buf = t.extractFrames(buf)
		}
		if err != nil {
			select {
			case <-t.done:
				return
			default:
			}
			t.Logger.Printf("transport: read error: %v", err)
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// extractFrames pulls as many complete, valid frames as possible from the
// front of buf, publishing each to t.frames, and returns the unconsumed
// remainder. Garbage (missing BEGIN, bad length, bad END, bad CRC) is
// discarded one byte at a time, mirroring the reference parser's
// _extract_frame.
func (t *Transport) extractFrames(buf []byte) []byte {
	for {
		idx := indexByte(buf, protocol.BeginFrame)
		if idx == -1 {
			return buf[:0]
		}
		if idx > 0 {
			buf = buf[idx:]
		}
		if len(buf) < protocol.FrameMinLen {
			return buf
		}

		f, n, err := protocol.ParseFrame(buf)
		if err != nil {
			// Not yet enough bytes for a full frame; wait for more unless
			// the error is unrecoverable (bad begin was already handled by
			// the index search above, so this is either "incomplete" or a
			// genuine framing defect at this BEGIN byte).
			if len(buf) < protocol.FrameMaxLen && isIncomplete(err) {
				return buf
			}
			buf = buf[1:]
			continue
		}

		t.publish(f)
		buf = buf[n:]
	}
}

func (t *Transport) publish(f protocol.Frame) {
	select {
	case t.frames <- f:
		return
	default:
	}
	// Queue full: drop the oldest frame to make room for the newest.
	select {
	case <-t.frames:
	default:
	}
	select {
	case t.frames <- f:
	default:
	}
}

func indexByte(buf []byte, b byte) int {
	for i, v := range buf {
		if v == b {
			return i
		}
	}
	return -1
}

// isIncomplete reports whether err from ParseFrame indicates the buffer
// simply doesn't yet hold enough bytes, as opposed to a structural defect
// that warrants discarding the BEGIN byte and resyncing.
func isIncomplete(err error) bool {
	msg := err.Error()
	return contains(msg, "incomplete frame")
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// WaitForFrame blocks until a frame arrives, ctx is canceled, or timeout
// elapses (if positive).
func WaitForFrame(ctx context.Context, frames <-chan protocol.Frame, timeout time.Duration) (protocol.Frame, bool) {
	var timer *time.Timer
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case f := <-frames:
		return f, true
	case <-timeoutCh:
		return protocol.Frame{}, false
	case <-ctx.Done():
		return protocol.Frame{}, false
	}
}
