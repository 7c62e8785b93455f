// Command gm3-gateway runs the RS-485 field-bus gateway: it owns the serial
// port to the heat-pump controller and display panel, polls and caches
// their parameters, and exposes the result over HTTP + WebSocket.
//
// Configuration is layered CLI flags > GM3_* environment variables >
// hardcoded defaults; see internal/config. There is no -open/browser
// behavior here: this gateway has no UI of its own to launch, only a JSON
// + WebSocket API consumed by cmd/monitor or an external panel.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/econext/gm3-gateway/internal/bus"
	"github.com/econext/gm3-gateway/internal/cache"
	"github.com/econext/gm3-gateway/internal/catalog"
	"github.com/econext/gm3-gateway/internal/config"
	"github.com/econext/gm3-gateway/internal/server"
	"github.com/econext/gm3-gateway/internal/supervisor"
	"github.com/econext/gm3-gateway/internal/transport"
)

func main() {
	logger := log.New(os.Stderr, "gm3-gateway: ", log.LstdFlags)

	cfg, err := config.Load(flag.NewFlagSet("gm3-gateway", flag.ExitOnError), os.Args[1:])
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	tr, err := transport.Open(transport.Config{
		Port:        cfg.SerialPort,
		Baud:        cfg.SerialBaud,
		ReadTimeout: cfg.RequestTimeout,
	}, logger)
	if err != nil {
		if candidates := transport.ListPorts(); len(candidates) > 0 {
			logger.Printf("available serial ports: %v", candidates)
		}
		logger.Fatalf("failed to open serial port %s: %v", cfg.SerialPort, err)
	}
	defer tr.Close()

	paramCache := cache.New()
	cat := catalog.New()

	handler := bus.New(tr, paramCache, cat, bus.Config{
		Destination:      cfg.DestinationAddress,
		RequestTimeout:   cfg.RequestTimeout,
		ParamsPerRequest: cfg.ParamsPerRequest,
		TokenTimeout:     cfg.TokenTimeout,
		TokenRequired:    cfg.TokenRequired,
	}, logger)

	// The serial port stays open for the process lifetime, so the supervisor
	// is told the link is always up; bus-level failures show up as poll,
	// discovery and alarm errors instead.
	sup := supervisor.New(handler, paramCache, cat, supervisor.Config{
		PollInterval: cfg.PollInterval,
	}, func() bool { return true }, logger)

	srv := server.New(paramCache, handler, sup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)
	go broadcastHealth(ctx, srv, sup, cfg.PollInterval)

	addr := cfg.APIHost + ":" + strconv.Itoa(cfg.APIPort)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("serving on http://%s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("http server: %v", err)
	}
}

// broadcastHealth pushes a health snapshot to every connected WebSocket
// client once per poll interval, so a panel UI or cmd/monitor can display
// connection status without polling GET /health itself. Parameter updates
// are pushed separately by internal/server after a successful write or
// refresh (handleWriteParameter, handleRefreshParameter); poll results and
// alarm lists are not pushed.
func broadcastHealth(ctx context.Context, srv *server.Server, sup *supervisor.Supervisor, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			srv.Hub().Broadcast(server.WSMessage{Type: "health", Data: sup.Status()})
		}
	}
}
