// Package bus implements the GM3 field-bus engine: the token/handshake
// state machine, the request/response correlator, discovery, polling,
// writes, and alarm reading. It orchestrates a single internal/transport
// connection on behalf of internal/supervisor.
package bus

import (
	"log"
	"sync"
	"time"

	"github.com/econext/gm3-gateway/internal/cache"
	"github.com/econext/gm3-gateway/internal/catalog"
	"github.com/econext/gm3-gateway/internal/model"
	"github.com/econext/gm3-gateway/internal/protocol"
)

// Transport is the subset of *internal/transport.Transport the bus engine
// needs. Defined here (rather than depended on concretely) so tests can
// drive the handler against an in-memory fake instead of a real serial
// port.
type Transport interface {
	SendFrame(f protocol.Frame, flushAfter bool) error
	Frames() <-chan protocol.Frame
	ResetRx()
}

// Config carries the handler's tunables, taken from internal/config at
// startup.
type Config struct {
	Destination      uint16
	RequestTimeout   time.Duration
	ParamsPerRequest int
	TokenTimeout     time.Duration
	TokenRequired    bool
}

// RetryAttempts is how many times poll retries a single batch before
// skipping past it. Grounded on handler.py's RETRY_ATTEMPTS.
const RetryAttempts = 3

// AlarmPollInterval is how many poll cycles elapse between alarm scans.
const AlarmPollInterval = 5

// Handler orchestrates one controller+panel conversation over a single
// transport: token handshake, request/response correlation, discovery,
// polling, writes, and alarm reads.
type Handler struct {
	Logger *log.Logger

	transport Transport
	cache     *cache.ParameterCache
	catalog   *catalog.StructCatalog
	cfg       Config

	// mu serializes bus transactions: only one request/response exchange
	// (and the token it requires) may be in flight at a time, matching the
	// reference handler's single asyncio.Lock guarding every bus-owning
	// operation (_send_get_settings/discover_params/poll_all_params/
	// write_param/read_alarms).
	mu       sync.Mutex
	hasToken bool

	alarmsMu sync.RWMutex
	alarms   []model.Alarm
}

// New constructs a Handler over an already-open transport.
func New(t Transport, c *cache.ParameterCache, cat *catalog.StructCatalog, cfg Config, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Destination == 0 {
		cfg.Destination = 1
	}
	if cfg.ParamsPerRequest <= 0 {
		cfg.ParamsPerRequest = 100
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 1500 * time.Millisecond
	}
	return &Handler{
		Logger:    logger,
		transport: t,
		cache:     c,
		catalog:   cat,
		cfg:       cfg,
	}
}

// Alarms returns a snapshot of the most recently read alarm list.
func (h *Handler) Alarms() []model.Alarm {
	h.alarmsMu.RLock()
	defer h.alarmsMu.RUnlock()
	out := make([]model.Alarm, len(h.alarms))
	copy(out, h.alarms)
	return out
}

func (h *Handler) setAlarms(alarms []model.Alarm) {
	h.alarmsMu.Lock()
	h.alarms = alarms
	h.alarmsMu.Unlock()
}
