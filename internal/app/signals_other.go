//go:build !unix

package app

import "framekit/internal/runtime/supervisor"

func (a *App) watchSignals(*supervisor.Supervisor) {}
