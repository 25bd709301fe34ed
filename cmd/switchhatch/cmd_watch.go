package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"switchhatch/internal/journal"
	"switchhatch/internal/sequencer"
)

const watchHistory = 8

func watchCmd(gf *globalFlags) *cobra.Command {
	var (
		addr string
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard fed by the daemon's status feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var o FlagOverrides
			if cmd.Flags().Changed("monitor") {
				o.MonitorListen = &addr
			}
			cfg, err := loadConfig(gf, o)
			if err != nil {
				return err
			}
			if cfg.Monitor.Listen == "" {
				return fmt.Errorf("status feed is disabled (monitor.listen is empty)")
			}

			u := url.URL{Scheme: "ws", Host: cfg.Monitor.Listen, Path: cfg.Monitor.Path}
			d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
			conn, _, err := d.Dial(u.String(), nil)
			if err != nil {
				return fmt.Errorf("connect to %s: %w", u.String(), err)
			}
			defer conn.Close()

			if raw {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return dumpFeed(ctx, conn, cmd.OutOrStdout())
			}

			frames := make(chan tea.Msg, 16)
			go readFeed(conn, frames)

			p := tea.NewProgram(newWatchModel(u.String(), frames), tea.WithAltScreen())
			_, err = p.Run()
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "monitor", "", "Status feed address (overrides config)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print frames as indented JSON instead of the dashboard")
	return cmd
}

// dumpFeed prints every frame until ctx is canceled or the feed closes.
func dumpFeed(ctx context.Context, conn *websocket.Conn, out io.Writer) error {
	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		if mt != websocket.TextMessage {
			fmt.Fprintf(out, "[BINARY] %d bytes\n", len(msg))
			continue
		}
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, msg, "", "  "); err != nil {
			fmt.Fprintf(out, "%s\n", msg)
			continue
		}
		fmt.Fprintf(out, "%s\n", pretty.Bytes())
	}
}

// feedFrameMsg carries one decoded status feed frame.
type feedFrameMsg inboundEnvelope

// feedClosedMsg means the feed connection ended.
type feedClosedMsg struct{ err error }

// readFeed decodes frames until the connection fails, then closes out.
func readFeed(conn *websocket.Conn, out chan<- tea.Msg) {
	defer close(out)
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				err = nil
			}
			out <- feedClosedMsg{err: err}
			return
		}
		var env inboundEnvelope
		if err := json.Unmarshal(msg, &env); err != nil {
			continue
		}
		out <- feedFrameMsg(env)
	}
}

func waitForFrame(frames <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-frames
		if !ok {
			return feedClosedMsg{}
		}
		return msg
	}
}

type watchModel struct {
	url     string
	frames  <-chan tea.Msg
	spinner spinner.Model

	status   StatusSnapshot
	haveInit bool
	history  []wsPhaseChangedData
	lastSeen time.Time

	closed bool
	err    error
}

func newWatchModel(url string, frames <-chan tea.Msg) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF"))
	return watchModel{url: url, frames: frames, spinner: sp}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForFrame(m.frames))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case feedClosedMsg:
		m.closed = true
		m.err = msg.err
		return m, nil

	case feedFrameMsg:
		m.apply(inboundEnvelope(msg))
		return m, waitForFrame(m.frames)
	}
	return m, nil
}

// apply folds one frame into the model. Undecodable payloads are ignored.
func (m *watchModel) apply(env inboundEnvelope) {
	if env.Ts != nil {
		m.lastSeen = *env.Ts
	}

	switch env.Type {
	case "state_init", "run_finished":
		var s StatusSnapshot
		if json.Unmarshal(env.Data, &s) == nil {
			m.status = s
			m.haveInit = true
		}

	case "progress":
		var p wsProgressData
		if json.Unmarshal(env.Data, &p) == nil {
			m.status.Phase = p.Phase
			m.status.Counters = p.Counters
			m.status.Ticks = p.Ticks
			m.status.PhaseTicks = p.PhaseTicks
		}

	case "phase_changed":
		var pc wsPhaseChangedData
		if json.Unmarshal(env.Data, &pc) == nil {
			m.status.Phase = pc.To
			m.status.Counters = pc.Counters
			m.status.Transitions++
			m.history = append(m.history, pc)
			if len(m.history) > watchHistory {
				m.history = m.history[len(m.history)-watchHistory:]
			}
			if pc.To == sequencer.PhaseDone {
				m.status.Status = journal.OutcomeDone
			}
		}
	}
}

var (
	watchBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5B8DEF")).
			Padding(0, 1)
	watchTitle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	watchLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(12)
	watchDim   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	watchGood  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3FB950"))
	watchBad   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F85149"))
)

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(watchTitle.Render("switchhatch") + " " + watchDim.Render(m.url) + "\n\n")

	if !m.haveInit && !m.closed {
		b.WriteString(m.spinner.View() + " waiting for status…\n")
		return watchBox.Render(b.String())
	}

	s := m.status
	row := func(label, value string) {
		b.WriteString(watchLabel.Render(label) + value + "\n")
	}

	state := s.Status
	switch s.Status {
	case journal.OutcomeRunning:
		state = m.spinner.View() + " running"
	case journal.OutcomeDone:
		state = watchGood.Render("done")
	case journal.OutcomeFailed:
		state = watchBad.Render("failed")
	}
	row("status", state)
	row("phase", s.Phase.String())
	row("boxes left", fmt.Sprintf("%d of %d", s.Counters.ContainersRemaining, s.Containers))
	row("eggs left", fmt.Sprintf("%d", s.Counters.ItemsRemaining))
	row("group", fmt.Sprintf("%d", s.Counters.GroupSelector))
	row("ticks", fmt.Sprintf("%d (%d phase)", s.Ticks, s.PhaseTicks))
	if s.Error != "" {
		row("error", watchBad.Render(s.Error))
	}

	if len(m.history) > 0 {
		b.WriteString("\n" + watchTitle.Render("recent transitions") + "\n")
		for i := len(m.history) - 1; i >= 0; i-- {
			h := m.history[i]
			b.WriteString(watchDim.Render(fmt.Sprintf("%10d ", h.Tick)) +
				fmt.Sprintf("%s → %s\n", h.From, h.To))
		}
	}

	if m.closed {
		msg := "feed closed"
		if m.err != nil {
			msg += ": " + m.err.Error()
		}
		b.WriteString("\n" + watchBad.Render(msg) + "\n")
	}
	b.WriteString("\n" + watchDim.Render("q to quit"))

	return watchBox.Render(b.String())
}
