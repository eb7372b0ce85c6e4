package dashboard

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "dashboard")

// Run 运行终端看板直到用户退出或 ctx 结束；每 interval 刷新一次状态
func Run(ctx context.Context, src Source, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	p := tea.NewProgram(newModel(src, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	log.Infof("📺 [看板] 启动")
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}
