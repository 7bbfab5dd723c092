package dashboard

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/betbot/aviatorbot/internal/domain"
	"github.com/betbot/aviatorbot/internal/gates"
	"github.com/betbot/aviatorbot/internal/strategy"
	"github.com/betbot/aviatorbot/internal/tracker"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sys/unix"
)

const historyShown = 20

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	hotStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 1)
)

type updateMsg struct {
	snapshot tracker.Snapshot
	closed   bool
}

type tickMsg time.Time

type actionMsg struct{ err error }

type model struct {
	ctx      context.Context
	title    string
	src      Source
	updateCh <-chan tracker.Snapshot
	snapshot tracker.Snapshot
	flash    string
	width    int
	height   int

	// interrupt Ctrl+C / q 时通知主程序，测试里替换
	interrupt func()
}

func newModel(ctx context.Context, title string, src Source, updates <-chan tracker.Snapshot) model {
	return model{
		ctx:      ctx,
		title:    title,
		src:      src,
		updateCh: updates,
		snapshot: src.Snapshot(),
		interrupt: func() {
			// Bubble Tea 会拦截 Ctrl+C，主动给自己发 SIGINT 走统一的优雅退出
			_ = unix.Kill(os.Getpid(), unix.SIGINT)
		},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.waitForUpdate(), m.tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case updateMsg:
		if msg.closed {
			return m, nil
		}
		m.snapshot = msg.snapshot
		return m, m.waitForUpdate()
	case actionMsg:
		if msg.err != nil {
			m.flash = badStyle.Render(msg.err.Error())
		}
		return m, nil
	case tickMsg:
		return m, m.tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	snap := m.snapshot
	switch msg.String() {
	case "ctrl+c", "q":
		if m.interrupt != nil {
			m.interrupt()
		}
		return m, tea.Quit
	case "s":
		m.flash = fmt.Sprintf("sniper -> %v", !snap.SniperArmed)
		return m, m.action(func() error { return m.src.SetSniper(m.ctx, !snap.SniperArmed) })
	case "a":
		m.flash = fmt.Sprintf("anti-AFK -> %v", !snap.AntiAFK)
		return m, m.action(func() error { return m.src.SetAntiAFK(m.ctx, !snap.AntiAFK) })
	case "h":
		if snap.Halted {
			m.flash = "resume"
			return m, m.action(func() error { m.src.Resume(); return nil })
		}
		m.flash = "halt"
		return m, m.action(func() error { m.src.Halt(); return nil })
	}
	return m, nil
}

func (m model) action(fn func() error) tea.Cmd {
	return func() tea.Msg { return actionMsg{err: fn()} }
}

// waitForUpdate 合并积压的快照，只渲染最新一帧
func (m model) waitForUpdate() tea.Cmd {
	ch := m.updateCh
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return updateMsg{closed: true}
		}
		for {
			select {
			case latest, ok := <-ch:
				if !ok {
					return updateMsg{snapshot: snap}
				}
				snap = latest
			default:
				return updateMsg{snapshot: snap}
			}
		}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) View() string {
	snap := m.snapshot
	width := m.width - 4
	if width < 80 {
		width = 80
	}
	half := width/2 - 1

	left := panelStyle.Width(half).Render(strings.Join([]string{
		renderRounds(snap.Rounds, half),
		"",
		renderTrace(snap.Trace, half),
	}, "\n"))
	right := panelStyle.Width(half).Render(strings.Join([]string{
		renderStrategy(snap, half),
		"",
		renderLedger(snap, half),
		"",
		renderSwitches(snap, half),
	}, "\n"))

	footer := dimStyle.Render("[s] sniper  [a] anti-AFK  [h] halt/resume  [q] quit")
	if m.flash != "" {
		footer += "  " + m.flash
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(snap),
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
		footer,
	)
}

func (m model) renderHeader(snap tracker.Snapshot) string {
	status := okStyle.Render("RUNNING")
	if snap.Halted {
		status = badStyle.Render("HALTED " + snap.HaltReason)
	}
	last := "-"
	if !snap.LastActivity.IsZero() {
		last = formatDuration(time.Since(snap.LastActivity)) + " ago"
	}
	return headerStyle.Render(fmt.Sprintf("%s | Session #%d | Last round: %s | %s | %s",
		m.title, snap.Session, last, time.Now().Format("15:04:05"), status))
}

func section(title string, width int) []string {
	return []string{titleStyle.Render(title), strings.Repeat("─", max(width-4, 1))}
}

func renderRounds(h domain.History, width int) string {
	lines := section("Rounds (newest first)", width)
	if len(h) == 0 {
		return strings.Join(append(lines, dimStyle.Render("waiting for OCR...")), "\n")
	}
	var cells []string
	for i, r := range h {
		if i >= historyShown {
			break
		}
		cells = append(cells, styleMultiplier(r).Render(fmt.Sprintf("%.2fx", r.Multiplier)))
	}
	// 每行 5 个，对应过滤器窗口
	for i := 0; i < len(cells); i += 5 {
		lines = append(lines, strings.Join(cells[i:min(i+5, len(cells))], " "))
	}
	return strings.Join(lines, "\n")
}

func styleMultiplier(r domain.RoundOutcome) lipgloss.Style {
	switch {
	case r.Outcome == domain.OutcomeWin:
		return okStyle
	case r.Outcome == domain.OutcomeLoss:
		return badStyle
	case r.Multiplier >= 10:
		return hotStyle
	}
	return lipgloss.NewStyle()
}

func renderTrace(tr *gates.FilterTrace, width int) string {
	lines := section("Filter", width)
	if tr == nil {
		return strings.Join(append(lines, "-"), "\n")
	}
	decision := badStyle.Render("NO")
	if tr.Decision {
		decision = okStyle.Render("YES")
	}
	lines = append(lines, fmt.Sprintf("Decision: %s  Stage: %s  Rounds: %d", decision, tr.Stage, tr.Rounds))
	var marks []string
	for _, name := range gates.FilterOrder {
		passed, seen := tr.Filters[name]
		switch {
		case !seen:
			marks = append(marks, dimStyle.Render(name))
		case passed:
			marks = append(marks, okStyle.Render(name))
		default:
			marks = append(marks, badStyle.Render(name))
		}
	}
	lines = append(lines, strings.Join(marks, " "))
	if tr.Reason != "" {
		lines = append(lines, dimStyle.Render(truncate(tr.Reason, width-4)))
	}
	return strings.Join(lines, "\n")
}

func renderStrategy(snap tracker.Snapshot, width int) string {
	lines := section("Strategy", width)
	st := snap.Strategy
	if st.Active == strategy.KindNone || st.Active == "" {
		lines = append(lines, dimStyle.Render("none active"))
	} else {
		lines = append(lines, hotStyle.Render(string(st.Active)))
		if v, ok := st.States[st.Active]; ok {
			lines = append(lines, fmt.Sprintf("Bet:%.2f LossStreak:%d WinStreak:%d Pos:%d",
				v.CurrentBet, v.LossStreak, v.WinStreak, v.Position))
			if st.Active == strategy.KindHighRisk {
				lines = append(lines, fmt.Sprintf("Bankroll:%.2f / %.2f Loss:%.1f%%",
					v.Bankroll, v.InitialBankroll, v.LossPercent))
			}
		}
	}
	if st.LastStop != nil {
		lines = append(lines, badStyle.Render(fmt.Sprintf("stopped %s: %s", st.LastStop.Kind, st.LastStop.Reason)))
	}
	if p := snap.Pending; p != nil {
		for _, b := range p.Legs() {
			lines = append(lines, fmt.Sprintf("Pending: %.2f @ %.2fx", b.Amount, b.Target))
		}
	}
	return strings.Join(lines, "\n")
}

func renderLedger(snap tracker.Snapshot, width int) string {
	lines := section("Session", width)
	s := snap.Ledger
	pnl := okStyle
	if s.PnL < 0 {
		pnl = badStyle
	}
	lines = append(lines,
		fmt.Sprintf("Balance:%.2f Start:%.2f PnL:%s", s.Balance, s.Starting, pnl.Render(fmt.Sprintf("%+.2f", s.PnL))),
		fmt.Sprintf("Bets:%d W:%d L:%d WinRate:%.1f%% ROI:%.1f%%", s.Bets, s.Wins, s.Losses, s.WinRate, s.ROI),
		fmt.Sprintf("MaxDD:%.2f", s.MaxDrawdown),
	)
	for _, st := range snap.LastSettled {
		lines = append(lines, fmt.Sprintf("Last: %s %.2f @ %.2fx -> %+.2f", st.Outcome, st.Amount, st.Target, st.PnL))
	}
	return strings.Join(lines, "\n")
}

func renderSwitches(snap tracker.Snapshot, width int) string {
	lines := section("Switches", width)
	lines = append(lines,
		"Sniper:   "+onOff(snap.SniperArmed),
		fmt.Sprintf("Anti-AFK: %s (%d/%d)", onOff(snap.AntiAFK), snap.RoundsSinceBet, snap.AFKThreshold),
	)
	return strings.Join(lines, "\n")
}

func onOff(v bool) string {
	if v {
		return okStyle.Render("ON")
	}
	return dimStyle.Render("OFF")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
