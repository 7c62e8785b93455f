// Package supervisor runs the reconnect/discovery/poll/alarm cycle around a
// bus.Handler and reports connection status for the HTTP surface. Grounded
// on handler.py's _poll_loop, generalized out of the protocol handler into
// its own type since spec.md treats it as a separate component.
package supervisor

import (
	"context"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/econext/gm3-gateway/internal/bus"
	"github.com/econext/gm3-gateway/internal/cache"
	"github.com/econext/gm3-gateway/internal/catalog"
	"github.com/econext/gm3-gateway/internal/model"
	"gonum.org/v1/gonum/stat"
)

// maxLoggedConsecutiveErrors caps how many consecutive poll failures get a
// log line each cycle before going quiet, matching handler.py's
// `consecutive_errors <= 3` guard.
const maxLoggedConsecutiveErrors = 3

// Config carries the supervisor's own tunables (poll cadence) on top of the
// bus.Handler it drives.
type Config struct {
	PollInterval time.Duration
}

// Status is a point-in-time snapshot of the supervisor's state, surfaced
// via the HTTP /health endpoint and the WebSocket health broadcast.
type Status struct {
	Connected             bool
	ParametersCount       int
	LastUpdate            time.Time
	AlarmCount            int
	MeanIntervalSeconds   float64
	StddevIntervalSeconds float64
}

// Supervisor owns the poll loop: it tracks whether the bus was connected on
// the previous cycle, re-discovers after a reconnect, and periodically
// rescans alarms.
type Supervisor struct {
	Logger *log.Logger

	handler *bus.Handler
	cache   *cache.ParameterCache
	catalog *catalog.StructCatalog
	cfg     Config

	connected func() bool

	mu                sync.RWMutex
	wasConnected      bool
	alarmIntervalMean float64
	alarmIntervalStd  float64
}

// New constructs a Supervisor around an already-wired bus.Handler.
// connected reports whether the underlying transport is currently up; the
// caller supplies it because bus.Handler has no notion of link state of its
// own (transport.Transport only fails an individual SendFrame/exchange).
func New(h *bus.Handler, c *cache.ParameterCache, cat *catalog.StructCatalog, cfg Config, connected func() bool, logger *log.Logger) *Supervisor {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	return &Supervisor{
		Logger:    logger,
		handler:   h,
		cache:     c,
		catalog:   cat,
		cfg:       cfg,
		connected: connected,
	}
}

// Run executes the poll loop until ctx is cancelled. Grounded on
// handler.py:_poll_loop.
func (s *Supervisor) Run(ctx context.Context) {
	consecutiveErrors := 0
	s.mu.Lock()
	s.wasConnected = s.connected()
	s.mu.Unlock()
	pollCount := 0

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.runCycle(ctx, &consecutiveErrors, &pollCount)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx, &consecutiveErrors, &pollCount)
		}
	}
}

func (s *Supervisor) runCycle(ctx context.Context, consecutiveErrors *int, pollCount *int) {
	connected := s.connected()

	s.mu.Lock()
	wasConnected := s.wasConnected
	s.mu.Unlock()

	if !connected {
		if wasConnected {
			s.Logger.Printf("supervisor: connection lost, waiting for reconnection")
			s.mu.Lock()
			s.wasConnected = false
			s.mu.Unlock()
		}
		return
	}

	if !wasConnected {
		s.Logger.Printf("supervisor: connection restored, re-discovering parameters")
		s.mu.Lock()
		s.wasConnected = true
		s.mu.Unlock()
		s.discoverAndScanAlarms(ctx)
	}

	if s.catalog.Count() == 0 {
		s.discoverAndScanAlarms(ctx)
	}

	if _, err := s.handler.PollAllParams(ctx); err != nil {
		*consecutiveErrors++
		if *consecutiveErrors <= maxLoggedConsecutiveErrors {
			s.Logger.Printf("supervisor: poll error: %v", err)
		}
		return
	}
	*consecutiveErrors = 0
	*pollCount++

	if *pollCount%bus.AlarmPollInterval == 0 {
		s.scanAlarms(ctx)
	}
}

func (s *Supervisor) discoverAndScanAlarms(ctx context.Context) {
	if err := s.handler.SendGetSettings(ctx); err != nil {
		s.Logger.Printf("supervisor: GET_SETTINGS probe failed: %v", err)
	}
	if _, err := s.handler.DiscoverParams(ctx); err != nil {
		s.Logger.Printf("supervisor: discovery error: %v", err)
	}
	s.scanAlarms(ctx)
}

func (s *Supervisor) scanAlarms(ctx context.Context) {
	alarms, err := s.handler.ReadAlarms(ctx)
	if err != nil {
		s.Logger.Printf("supervisor: alarm read error: %v", err)
		return
	}
	mean, stddev := alarmIntervalStats(alarms)
	s.mu.Lock()
	s.alarmIntervalMean = mean
	s.alarmIntervalStd = stddev
	s.mu.Unlock()
}

// alarmIntervalStats computes the mean and standard deviation of the
// intervals (in seconds) between consecutive alarm from_dates, using
// gonum/stat. Supplements the alarm reader per SPEC_FULL.md §3; returns
// (0, 0) when fewer than two alarms are present.
func alarmIntervalStats(alarms []model.Alarm) (mean, stddev float64) {
	if len(alarms) < 2 {
		return 0, 0
	}

	times := make([]float64, len(alarms))
	for i, a := range alarms {
		times[i] = alarmDateSeconds(a.FromDate)
	}
	sort.Float64s(times)

	intervals := make([]float64, 0, len(times)-1)
	for i := 1; i < len(times); i++ {
		intervals = append(intervals, times[i]-times[i-1])
	}

	if len(intervals) == 1 {
		return intervals[0], 0
	}

	mean, variance := stat.MeanVariance(intervals, nil)
	return mean, math.Sqrt(variance)
}

// alarmDateSeconds converts an AlarmDate to a rough seconds-since-epoch
// value sufficient for relative interval math (not calendar-exact: months
// are all treated as 30 days, which is adequate for comparing the spacing
// between controller alarm events).
func alarmDateSeconds(d model.AlarmDate) float64 {
	const daysPerYear = 365.25
	const daysPerMonth = 30.0
	days := float64(d.Year)*daysPerYear + float64(d.Month-1)*daysPerMonth + float64(d.Day-1)
	seconds := days*86400 + float64(d.Hour)*3600 + float64(d.Minute)*60 + float64(d.Second)
	return seconds
}

// Status reports the supervisor's current connection/cache/alarm state.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alarms := s.handler.Alarms()

	return Status{
		Connected:             s.connected(),
		ParametersCount:       s.catalog.Count(),
		LastUpdate:            s.cache.LastUpdate(),
		AlarmCount:            len(alarms),
		MeanIntervalSeconds:   s.alarmIntervalMean,
		StddevIntervalSeconds: s.alarmIntervalStd,
	}
}
