// Package diag renders a live terminal dashboard over a running connection
// manager, the operator-facing replacement for the old in-browser debug
// monitor pages.
package diag

import (
	"fmt"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/Xhand98/skillswap-realtime/internal/client"
	"github.com/Xhand98/skillswap-realtime/internal/health"
)

const maxEventRows = 12

// Dashboard visualizes connection state and the health record, and exposes
// the operator recovery actions (force reconnect, reset error state, toggle).
type Dashboard struct {
	client  *client.Client
	monitor *health.Monitor

	events []string
}

func NewDashboard(c *client.Client, m *health.Monitor) *Dashboard {
	return &Dashboard{client: c, monitor: m}
}

// Run blocks until the operator quits with q or Ctrl-C.
func (d *Dashboard) Run() error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("diag: terminal init: %w", err)
	}
	defer ui.Close()

	status := widgets.NewParagraph()
	status.Title = "Connection"
	status.SetRect(0, 0, 40, 7)

	counters := widgets.NewParagraph()
	counters.Title = "Health"
	counters.SetRect(40, 0, 80, 7)

	attempts := widgets.NewGauge()
	attempts.Title = "Reconnect cycle"
	attempts.SetRect(0, 7, 80, 10)

	eventLog := widgets.NewList()
	eventLog.Title = "Events (q quit, r reconnect, x reset errors, e toggle)"
	eventLog.Rows = []string{}
	eventLog.SetRect(0, 10, 80, 10+maxEventRows+2)

	render := func() {
		snap := d.monitor.Snapshot()
		state := d.client.State()

		status.Text = fmt.Sprintf("state: %s\nloop: %v\nlast activity: %s\nlast error: %s",
			state, snap.IsInErrorLoop,
			formatClock(d.client.LastActivity()), truncate(snap.LastError, 34))
		if snap.IsInErrorLoop {
			status.BorderStyle = ui.NewStyle(ui.ColorRed)
		} else {
			status.BorderStyle = ui.NewStyle(ui.ColorGreen)
		}

		counters.Text = fmt.Sprintf("attempts: %d\nok: %d  failed: %d\nempty errors: %d",
			snap.TotalConnections, snap.SuccessfulConnections,
			snap.FailedConnections, snap.EmptyErrors)

		attempts.Percent = clampPercent(snap.ReconnectAttempts * 20)
		attempts.Label = fmt.Sprintf("%d/5", snap.ReconnectAttempts)

		eventLog.Rows = d.events
		ui.Render(status, counters, attempts, eventLog)
	}
	render()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	uiEvents := ui.PollEvents()

	for {
		select {
		case e := <-uiEvents:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "r":
				d.client.Reconnect()
				d.record("operator: force reconnect")
			case "x":
				d.monitor.ResetErrorState()
				d.record("operator: error state reset")
			case "e":
				d.client.ToggleEnabled(nil)
				d.record("operator: toggled enabled")
			}
			render()

		case ev := <-d.client.Events():
			d.record(fmt.Sprintf("%s %s", ev.Timestamp.Format("15:04:05"), ev.Type))
			render()

		case sc := <-d.client.States():
			d.record(fmt.Sprintf("state %s -> %s", sc.Old, sc.New))
			render()

		case <-ticker.C:
			render()
		}
	}
}

func (d *Dashboard) record(line string) {
	d.events = append(d.events, line)
	if len(d.events) > maxEventRows {
		d.events = d.events[len(d.events)-maxEventRows:]
	}
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("15:04:05")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func clampPercent(p int) int {
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}
