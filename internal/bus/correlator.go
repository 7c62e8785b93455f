package bus

import (
	"context"
	"time"

	"github.com/econext/gm3-gateway/internal/protocol"
	"github.com/econext/gm3-gateway/internal/transport"
)

// maxSilence is how many consecutive empty 0.2s reads exchange tolerates
// before giving up — 10*0.2s = 2s patience per request, matching
// handler.py:send_and_receive's NOT_CONNECTED_0_BYTES_GM3=10 /
// PORT_TIMEOUT=0.2 constants.
const maxSilence = 10

const perReadTimeout = 200 * time.Millisecond

// turnaroundDelay is the RS-485 bus settle time observed before every
// transmission.
const turnaroundDelay = 20 * time.Millisecond

// exchange sends one request frame and waits for a matching response,
// filtering out everything that isn't it: frames not addressed to us,
// panel handshake frames (fed to handlePanelFrame instead), frames from
// the wrong source, and — unless their command is in alsoAccept — frames
// with the wrong command or that fail validate. Returns (nil, nil) on a
// clean timeout; a non-nil error means the request could not be written or
// ctx was done while waiting for the reply.
// Grounded on handler.py:send_and_receive.
func (h *Handler) exchange(
	ctx context.Context,
	command protocol.Command,
	payload []byte,
	expectedResponse protocol.Command,
	alsoAccept []protocol.Command,
	validate func(protocol.Frame) bool,
	destination *uint16,
) (*protocol.Frame, error) {
	dest := h.cfg.Destination
	if destination != nil {
		dest = *destination
	}

	request := protocol.Frame{
		Destination: dest,
		Source:      protocol.SourceAddress,
		Command:     command,
		Payload:     payload,
	}

	time.Sleep(turnaroundDelay)

	if err := h.transport.SendFrame(request, true); err != nil {
		return nil, err
	}
	h.transport.ResetRx()

	accept := make(map[protocol.Command]bool, len(alsoAccept))
	for _, c := range alsoAccept {
		accept[c] = true
	}

	skipped := 0
	silence := 0

	for silence < maxSilence {
		f, ok := transport.WaitForFrame(ctx, h.transport.Frames(), perReadTimeout)
		if !ok {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			silence++
			continue
		}
		silence = 0

		if !protocol.AddressedTo(f.Destination, protocol.SourceAddress) {
			skipped++
			continue
		}

		if f.Source == protocol.PanelAddress && (f.Command == protocol.IdentifyCmd || f.Command == protocol.ServiceCmd) {
			h.handlePanelFrame(f)
			skipped++
			continue
		}

		if f.Source != dest && dest != protocol.BroadcastAddress {
			skipped++
			continue
		}

		if accept[f.Command] {
			return &f, nil
		}

		if f.Command != expectedResponse {
			skipped++
			continue
		}

		if validate != nil && !validate(f) {
			skipped++
			continue
		}

		return &f, nil
	}

	if skipped > 0 {
		h.Logger.Printf("bus: no matching response for command 0x%02x (skipped %d frames)", command, skipped)
	}
	return nil, nil
}
