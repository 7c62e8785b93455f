package bus

import (
	"context"

	"github.com/econext/gm3-gateway/internal/protocol"
)

// SendGetSettings sends GET_SETTINGS to the broadcast address as the first
// request of a session, matching the original firmware's own behavior of
// priming the connection with the controller right after a token grant. The
// response (if any) carries session configuration this gateway doesn't need
// to parse; a missing response is non-critical and not treated as an error.
// Grounded on handler.py:_send_get_settings.
func (h *Handler) SendGetSettings(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.waitForToken(ctx); err != nil {
		return err
	}
	defer func() {
		if h.hasToken {
			h.returnToken()
		}
	}()

	broadcast := protocol.BroadcastAddress
	_, err := h.exchange(ctx, protocol.GetSettings, nil, protocol.GetSettingsResponse, nil, nil, &broadcast)
	return err
}
