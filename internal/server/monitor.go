package server

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// monitorStyles holds the lipgloss styles for the operator view.
type monitorStyles struct {
	Title  lipgloss.Style
	Header lipgloss.Style
	Row    lipgloss.Style
	Live   lipgloss.Style
	Idle   lipgloss.Style
}

func defaultMonitorStyles() monitorStyles {
	return monitorStyles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Header: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Row:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Live:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Idle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// RoomMonitor periodically renders a table of live rooms for the operator
// terminal. It reads only registry snapshots, never room internals.
type RoomMonitor struct {
	registry *Registry
	out      io.Writer
	interval time.Duration
	styles   monitorStyles
	stop     chan struct{}
	done     chan struct{}
}

// NewRoomMonitor creates a monitor writing to out every interval.
func NewRoomMonitor(registry *Registry, out io.Writer, interval time.Duration) *RoomMonitor {
	return &RoomMonitor{
		registry: registry,
		out:      out,
		interval: interval,
		styles:   defaultMonitorStyles(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the render loop until Stop is called.
func (m *RoomMonitor) Start() {
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fmt.Fprintln(m.out, m.Render())
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop halts the render loop.
func (m *RoomMonitor) Stop() {
	close(m.stop)
	<-m.done
}

// Render returns the current room table as styled text.
func (m *RoomMonitor) Render() string {
	infos := m.registry.RoomInfos()

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(fmt.Sprintf("Liap Tui: %d room(s)", len(infos))))
	b.WriteString("\n")
	b.WriteString(m.styles.Header.Render(fmt.Sprintf("%-8s %-12s %-10s %-8s", "ROOM", "HOST", "OCCUPANTS", "STATE")))
	b.WriteString("\n")

	for _, info := range infos {
		state := m.styles.Idle.Render("lobby")
		if info.Started {
			state = m.styles.Live.Render("playing")
		}
		b.WriteString(m.styles.Row.Render(
			fmt.Sprintf("%-8s %-12s %-10d ", info.RoomID, info.Host, info.Occupants)))
		b.WriteString(state)
		b.WriteString("\n")
	}
	if len(infos) == 0 {
		b.WriteString(m.styles.Idle.Render("no rooms"))
		b.WriteString("\n")
	}
	return b.String()
}
