//go:build unix

package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"framekit/internal/runtime/supervisor"
	logx "framekit/pkg/logx"
)

// watchSignals maps SIGUSR1/SIGUSR2 to hiding/showing the frame output so
// visibility handling can be driven from outside (kill -USR1 <pid>).
func (a *App) watchSignals(sup *supervisor.Supervisor) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGUSR1, syscall.SIGUSR2)
	sup.Go0("signals.visibility", func(ctx context.Context) {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				hidden := sig == syscall.SIGUSR1
				if !a.host.SetHidden(hidden) {
					return
				}
				a.log.Info("visibility changed", logx.Bool("hidden", hidden), logx.String("signal", sig.String()))
			}
		}
	})
}
