package bus

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/econext/gm3-gateway/internal/protocol"
	"github.com/econext/gm3-gateway/internal/transport"
)

// handlePanelFrame answers IDENTIFY probes from the panel and notices
// SERVICE frames that grant us the bus token. Grounded on
// handler.py:_handle_panel_frame.
func (h *Handler) handlePanelFrame(f protocol.Frame) {
	switch f.Command {
	case protocol.IdentifyCmd:
		// 20ms RS-485 bus turnaround before answering.
		time.Sleep(20 * time.Millisecond)
		response := protocol.Frame{
			Destination: protocol.PanelAddress,
			Source:      protocol.SourceAddress,
			Command:     protocol.IdentifyAns,
			Payload:     protocol.IdentifyResponseData,
		}
		if err := h.transport.SendFrame(response, true); err != nil {
			h.Logger.Printf("bus: failed to answer IDENTIFY: %v", err)
			return
		}
		h.Logger.Printf("bus: responded to IDENTIFY from panel")

	case protocol.ServiceCmd:
		var funcCode uint16
		if len(f.Payload) >= 2 {
			funcCode = binary.LittleEndian.Uint16(f.Payload[:2])
		}
		h.Logger.Printf("bus: SERVICE frame dest=%d func=0x%04x", f.Destination, funcCode)
		if funcCode == protocol.GetTokenFunc {
			h.hasToken = true
			h.Logger.Printf("bus: token received from master panel")
		}
	}
}

// returnToken hands the bus token back to the panel after a transaction
// completes. Grounded on handler.py:_return_token.
func (h *Handler) returnToken() {
	frame := protocol.Frame{
		Destination: protocol.PanelAddress,
		Source:      protocol.SourceAddress,
		Command:     protocol.ServiceCmd,
		Payload:     protocol.GiveBackTokenData,
	}
	if err := h.transport.SendFrame(frame, false); err != nil {
		h.Logger.Printf("bus: failed to return token: %v", err)
	}
	h.hasToken = false
	h.Logger.Printf("bus: token returned to master panel")
}

// waitForToken listens passively on the bus, answering IDENTIFY probes and
// watching for a SERVICE/GET_TOKEN grant. When cfg.TokenRequired is true it
// waits indefinitely (the panel eventually grants it — the bus never times
// out the token on its own); otherwise it gives up after cfg.TokenTimeout
// and proceeds without the token. Grounded on handler.py:_wait_for_token.
func (h *Handler) waitForToken(ctx context.Context) error {
	if !h.cfg.TokenRequired && h.cfg.TokenTimeout <= 0 {
		return nil
	}

	var deadline time.Time
	hasDeadline := !h.cfg.TokenRequired
	if hasDeadline {
		deadline = time.Now().Add(h.cfg.TokenTimeout)
	}

	const pollInterval = 500 * time.Millisecond

	for {
		if hasDeadline {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				h.Logger.Printf("bus: token wait timed out after %s, proceeding without token", h.cfg.TokenTimeout)
				return nil
			}
		}

		readTimeout := pollInterval
		if hasDeadline {
			if remaining := time.Until(deadline); remaining < readTimeout {
				readTimeout = remaining
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, ok := transport.WaitForFrame(ctx, h.transport.Frames(), readTimeout)
		if !ok {
			continue
		}

		if !protocol.AddressedTo(f.Destination, protocol.SourceAddress) {
			continue
		}

		if f.Source == protocol.PanelAddress {
			h.handlePanelFrame(f)
			if h.hasToken {
				return nil
			}
		}
	}
}
