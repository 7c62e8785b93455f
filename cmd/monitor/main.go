// Command gm3-monitor is an interactive terminal status viewer for a
// running gm3-gateway instance. It polls the gateway's own HTTP surface
// (internal/monitorclient) and redraws a status screen, taking single-key
// commands the way the teacher's interactive calibration wizard did
// (ui.StartKeyEvents/DrainKeys, Y/N/retry-style prompts) — generalized here
// to a refresh/alarms/quit command set instead of a calibration sequence.
package main

import (
	"flag"
	"fmt"
	"sort"
	"time"

	"github.com/econext/gm3-gateway/internal/monitorclient"
	"github.com/econext/gm3-gateway/internal/tui"
)

func main() {
	var (
		addr    = flag.String("addr", "http://127.0.0.1:8000", "gateway base URL")
		refresh = flag.Duration("refresh", 2*time.Second, "auto-refresh interval")
	)
	flag.Parse()

	client := monitorclient.New(*addr)

	tui.Greenf("gm3-monitor connected to %s\n", *addr)
	tui.Greenf("Commands: [A] show alarms  [R] force refresh  [Q] quit  (auto-refreshing every %s)\n\n", *refresh)
	time.Sleep(800 * time.Millisecond)

	keys := tui.StartKeyEvents()
	ticker := time.NewTicker(*refresh)
	defer ticker.Stop()

	drawStatus(client)
	for {
		select {
		case k := <-keys:
			switch k {
			case 'Q', 'q', 27:
				return
			case 'A', 'a':
				drawAlarms(client)
			case 'R', 'r':
				forceRefresh(client)
			}
		case <-ticker.C:
			drawStatus(client)
		}
	}
}

// forceRefresh bypasses the gateway's regular poll cycle for every
// currently-known parameter, one at a time, then redraws the status
// screen with whatever came back.
func forceRefresh(c *monitorclient.Client) {
	params, err := c.GetParameters()
	if err != nil {
		tui.Redf("parameters request failed: %v\n", err)
		return
	}

	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	sort.Strings(names)

	tui.Warningf("refreshing %d parameters...\n", len(names))
	for _, name := range names {
		if _, err := c.RefreshParameter(name); err != nil {
			tui.Redf("refresh %s failed: %v\n", name, err)
		}
	}

	drawStatus(c)
}

func drawStatus(c *monitorclient.Client) {
	tui.ClearScreen()

	h, err := c.GetHealth()
	if err != nil {
		tui.Redf("health request failed: %v\n", err)
		return
	}
	switch h.Status {
	case "healthy":
		tui.Greenf("status: %s  (parameters: %d)\n\n", h.Status, h.ParametersCount)
	default:
		tui.Warningf("status: %s  (parameters: %d)\n\n", h.Status, h.ParametersCount)
	}

	params, err := c.GetParameters()
	if err != nil {
		tui.Redf("parameters request failed: %v\n", err)
		return
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		p := params[name]
		fmt.Printf("  %-24s %12v %s\n", p.Name, p.Value, p.Unit)
	}

	tui.Greenf("\n[A] alarms  [Q] quit\n")
}

func drawAlarms(c *monitorclient.Client) {
	tui.ClearScreen()

	alarms, err := c.GetAlarms()
	if err != nil {
		tui.Redf("alarms request failed: %v\n", err)
		return
	}
	if len(alarms) == 0 {
		tui.Greenf("no alarms\n")
	}
	for _, a := range alarms {
		to := "active"
		if a.ToDate != nil {
			to = *a.ToDate
		}
		fmt.Printf("  code=%d  from=%s  to=%s\n", a.Code, a.FromDate, to)
	}

	tui.Greenf("\nPress any key to return to status view.\n")
	tui.DrainKeys()
	<-tui.StartKeyEvents()
}
