// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ember Works

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ember-works/pyrostat/internal/bridge"
	"github.com/ember-works/pyrostat/internal/safety"
	"github.com/ember-works/pyrostat/internal/session"
	"github.com/ember-works/pyrostat/pkg/tison"
)

const maxWatchLogEntries = 12

// Messages
type snapshotMsg bridge.Snapshot
type cmdResultMsg struct {
	cmd tison.Command
	err error
}

type watchLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// watchModel is the TUI state for the watch command.
type watchModel struct {
	deviceID  string
	transport string
	loop      *bridge.Bridge

	spin     spinner.Model
	snap     *bridge.Snapshot
	eventLog []watchLogEntry
	width    int
	height   int
	quitting bool
}

func initialWatchModel(deviceID, transport string, loop *bridge.Bridge) watchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	return watchModel{
		deviceID:  deviceID,
		transport: transport,
		loop:      loop,
		spin:      s,
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.spin.Tick
}

// submit dispatches one command through the loop off the UI goroutine.
func (m watchModel) submit(cmd tison.Command) tea.Cmd {
	loop := m.loop
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return cmdResultMsg{cmd: cmd, err: loop.Submit(ctx, cmd)}
	}
}

// currentLevel returns the last observed power level, or 0 when unknown.
func (m watchModel) currentLevel() int {
	if m.snap == nil || m.snap.Status == nil || m.snap.Status.Partial {
		return 0
	}
	return m.snap.Status.Level
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case snapshotMsg:
		snap := bridge.Snapshot(msg)
		m.snap = &snap
		if snap.Status == nil && snap.Reason != "" {
			m.addLogEntry("unavailable: "+snap.Reason, true)
		}
		return m, nil

	case cmdResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s refused: %v", msg.cmd, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s accepted", msg.cmd), false)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "s":
			return m, m.submit(tison.StartStop(true))
		case "x":
			return m, m.submit(tison.StartStop(false))
		case "+", "=":
			if lvl := m.currentLevel(); lvl > 0 && lvl < tison.MaxLevel {
				return m, m.submit(tison.SetLevel(lvl + 1))
			}
		case "-":
			if lvl := m.currentLevel(); lvl > tison.MinLevel {
				return m, m.submit(tison.SetLevel(lvl - 1))
			}
		case "m":
			if m.snap != nil && m.snap.Status != nil {
				next := tison.ModeTemperature
				if m.snap.Status.Mode == tison.ModeTemperature {
					next = tison.ModeLevel
				}
				return m, m.submit(tison.SetMode(next))
			}
		}
	}
	return m, nil
}

func (m *watchModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, watchLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxWatchLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxWatchLogEntries:]
	}
}

func (m watchModel) View() string {
	if m.quitting {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Width(14)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))
	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)
	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))
	dimStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Pyrostat - %s (%s)", m.deviceID, m.transport)))
	b.WriteString("\n\n")

	b.WriteString(boxStyle.Render(m.statusPanel(labelStyle, valueStyle, errorStyle, warningStyle)))
	b.WriteString("\n")

	if len(m.eventLog) > 0 {
		var log strings.Builder
		for i, e := range m.eventLog {
			if i > 0 {
				log.WriteString("\n")
			}
			line := fmt.Sprintf("%s %s", e.timestamp.Format("15:04:05"), e.message)
			if e.isError {
				log.WriteString(errorStyle.Render(line))
			} else {
				log.WriteString(dimStyle.Render(line))
			}
		}
		b.WriteString(boxStyle.Render(log.String()))
		b.WriteString("\n")
	}

	b.WriteString(dimStyle.Render("s start  x stop  +/- level  m mode  q quit"))
	b.WriteString("\n")
	return b.String()
}

// statusPanel renders the live status block, or the reconnect spinner when
// no reading is available.
func (m watchModel) statusPanel(label, value, errStyle, warnStyle lipgloss.Style) string {
	if m.snap == nil {
		return m.spin.View() + " connecting..."
	}
	if m.snap.Status == nil {
		reason := m.snap.Reason
		if reason == "" {
			reason = "waiting for status"
		}
		return m.spin.View() + " " + reason
	}

	st := m.snap.Status
	var b strings.Builder

	running := "stopped"
	if st.Running {
		running = "running"
	}
	fmt.Fprintf(&b, "%s%s\n", label.Render("State"), value.Render(fmt.Sprintf("%s (%s)", running, st.Step)))

	if st.Faulted() {
		fmt.Fprintf(&b, "%s%s\n", label.Render("Fault"), errStyle.Render(st.ErrorText()))
	}

	fmt.Fprintf(&b, "%s%s\n", label.Render("Heater temp"), value.Render(fmt.Sprintf("%d°C", st.CaseTemp)))
	fmt.Fprintf(&b, "%s%s\n", label.Render("Room temp"), value.Render(fmt.Sprintf("%d°C", st.CabinTemp)))

	if !st.Partial {
		switch st.Mode {
		case tison.ModeTemperature:
			fmt.Fprintf(&b, "%s%s\n", label.Render("Mode"), value.Render(fmt.Sprintf("%s, target %d°C", st.Mode, st.TargetTemp)))
		default:
			fmt.Fprintf(&b, "%s%s\n", label.Render("Mode"), value.Render(st.Mode.String()))
		}
		fmt.Fprintf(&b, "%s%s\n", label.Render("Level"), value.Render(fmt.Sprintf("%d", st.Level)))
		fmt.Fprintf(&b, "%s%s\n", label.Render("Supply"), value.Render(fmt.Sprintf("%.1fV", st.Voltage)))
		fmt.Fprintf(&b, "%s%s\n", label.Render("Altitude"), value.Render(fmt.Sprintf("%dm", st.Altitude)))
	}

	switch m.snap.Safety.Kind {
	case safety.LockedOut:
		fmt.Fprintf(&b, "%s%s\n", label.Render("Safety"),
			errStyle.Render(fmt.Sprintf("LOCKOUT until %s", m.snap.Safety.Until.Format("15:04:05"))))
	case safety.Limited:
		fmt.Fprintf(&b, "%s%s\n", label.Render("Safety"),
			warnStyle.Render(fmt.Sprintf("limited to level %d", m.snap.Safety.Ceiling)))
	default:
		fmt.Fprintf(&b, "%s%s\n", label.Render("Safety"), value.Render("normal"))
	}

	link := m.snap.Link.String()
	if m.snap.Link != session.Ready {
		fmt.Fprintf(&b, "%s%s", label.Render("Link"), warnStyle.Render(link))
	} else {
		fmt.Fprintf(&b, "%s%s", label.Render("Link"), value.Render(link))
	}
	return b.String()
}
