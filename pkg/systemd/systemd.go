// Package systemd wraps the sd_notify protocol for Type=notify units.
// Every call is a no-op when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notify sends state to the service manager. sent is false when
// NOTIFY_SOCKET is unset.
func Notify(state string) (sent bool, err error) {
	return daemon.SdNotify(false, state)
}

func Ready() (bool, error)    { return Notify(daemon.SdNotifyReady) }
func Stopping() (bool, error) { return Notify(daemon.SdNotifyStopping) }
func Reloading() (bool, error) {
	return Notify(daemon.SdNotifyReloading)
}

// Status publishes a free-form status line shown by systemctl status.
func Status(msg string) (bool, error) { return Notify("STATUS=" + msg) }

// WatchdogInterval returns the keep-alive period to use, or 0 when the
// unit has no WatchdogSec. It pings at half the configured timeout.
func WatchdogInterval() (time.Duration, error) {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0, err
	}
	return d / 2, nil
}

// Watchdog pings the service manager every interval until ctx is done.
// alive is consulted before each ping; a false result skips it so a stuck
// process is restarted.
func Watchdog(ctx context.Context, interval time.Duration, alive func() bool) error {
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if alive != nil && !alive() {
				continue
			}
			if _, err := Notify(daemon.SdNotifyWatchdog); err != nil {
				return err
			}
		}
	}
}
