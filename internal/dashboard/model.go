package dashboard

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/betbot/copytrade/internal/copytrade"
	"github.com/betbot/copytrade/internal/ports"
)

const recentRows = 12

// Source 看板读取的数据源（编排器）
type Source interface {
	Status() copytrade.Status
	Recent(ctx context.Context, limit int) ([]ports.RecordSummary, error)
	SetEnabled(enabled bool)
	Enabled() bool
}

type tickMsg time.Time

type dataMsg struct {
	status copytrade.Status
	recent []ports.RecordSummary
	err    error
}

type model struct {
	src      Source
	interval time.Duration
	status   copytrade.Status
	recent   []ports.RecordSummary
	err      error
	width    int
	// quit 退出时的动作；默认给自己发 SIGINT 走统一的退出链路
	quit func()
}

func newModel(src Source, interval time.Duration) model {
	return model{
		src:      src,
		interval: interval,
		quit:     func() { _ = syscall.Kill(os.Getpid(), syscall.SIGINT) },
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) fetch() tea.Cmd {
	src := m.src
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		recent, err := src.Recent(ctx, recentRows)
		return dataMsg{status: src.Status(), recent: recent, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// bubbletea 会拦截 Ctrl+C，主动发 SIGINT 让主程序收到退出信号
			if m.quit != nil {
				m.quit()
			}
			return m, tea.Quit
		case "e":
			m.src.SetEnabled(!m.src.Enabled())
			return m, m.fetch()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())
	case dataMsg:
		m.status = msg.status
		m.recent = msg.recent
		m.err = msg.err
		return m, nil
	}
	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 1)
)

func (m model) View() string {
	width := m.width - 4
	if width < 60 {
		width = 60
	}
	half := width/2 - 1

	header := headerStyle.Render(fmt.Sprintf("Copytrade | %s | %s", m.status.Strategy, time.Now().Format("15:04:05")))
	top := lipgloss.JoinHorizontal(lipgloss.Top,
		boxStyle.Width(half).Render(m.renderState(half)),
		"  ",
		boxStyle.Width(half).Render(m.renderCounters(half)),
	)
	bottom := boxStyle.Width(width).Render(m.renderRecent(width))
	help := mutedStyle.Render("e: 切换复制开关  q: 退出")
	return lipgloss.JoinVertical(lipgloss.Left, header, top, bottom, help)
}

func (m model) renderState(width int) string {
	st := m.status
	lines := []string{titleStyle.Render("State"), strings.Repeat("─", max(width-4, 1))}

	state := badStyle.Render(string(st.State))
	if st.Running {
		state = okStyle.Render(string(st.State))
	}
	enabled := badStyle.Render("paused")
	if st.Enabled {
		enabled = okStyle.Render("on")
	}
	lines = append(lines,
		"Monitor:    "+state,
		"Copying:    "+enabled,
		fmt.Sprintf("Multiplier: %s", st.Multiplier),
		fmt.Sprintf("Accounts:   %d (%s)", len(st.Accounts), strings.Join(st.Accounts, ", ")),
		fmt.Sprintf("Open:       %d", st.OpenOrders),
		"Last poll:  "+fmtTime(st.LastPollAt),
		"Last event: "+fmtTime(st.LastEventAt),
	)
	if m.err != nil {
		lines = append(lines, badStyle.Render("ledger: "+m.err.Error()))
	}
	return strings.Join(lines, "\n")
}

func (m model) renderCounters(width int) string {
	s := m.status.Stats
	lines := []string{titleStyle.Render("Counters"), strings.Repeat("─", max(width-4, 1))}
	lines = append(lines,
		fmt.Sprintf("Placed:    %d", s.Placed),
		fmt.Sprintf("Modified:  %d", s.Modified),
		fmt.Sprintf("Cancelled: %d", s.Cancelled),
		fmt.Sprintf("Rejected:  %d", s.Rejected),
		fmt.Sprintf("Skipped:   %d", s.Skipped),
		okStyle.Render(fmt.Sprintf("Account OK:   %d", s.AccountSuccesses)),
		badStyle.Render(fmt.Sprintf("Account FAIL: %d", s.AccountFailures)),
	)
	return strings.Join(lines, "\n")
}

func (m model) renderRecent(width int) string {
	lines := []string{titleStyle.Render("Recent replications"), strings.Repeat("─", max(width-4, 1))}
	if len(m.recent) == 0 {
		lines = append(lines, mutedStyle.Render("暂无记录"))
		return strings.Join(lines, "\n")
	}
	lines = append(lines, fmt.Sprintf("%-8s %-7s %-22s %-12s %-5s %-10s %s", "TIME", "ACTION", "PRIMARY", "SYMBOL", "SIDE", "QTY", "RESULT"))
	for _, r := range m.recent {
		result := fmt.Sprintf("%d/%d", r.SuccessCount, r.Total)
		if r.SuccessCount == r.Total {
			result = okStyle.Render(result)
		} else {
			result = badStyle.Render(result)
		}
		lines = append(lines, fmt.Sprintf("%-8s %-7s %-22s %-12s %-5s %-10s %s",
			r.CreatedAt.Local().Format("15:04:05"), r.Action, truncate(r.PrimaryOrderID, 22), r.Symbol, r.Side, r.Quantity, result))
	}
	return strings.Join(lines, "\n")
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("15:04:05")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
