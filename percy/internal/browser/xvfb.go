package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// x11SocketDir is where an X server listening on display :N creates XN.
var x11SocketDir = "/tmp/.X11-unix"

const (
	xvfbReadyTimeout = 5 * time.Second
	xvfbPollInterval = 50 * time.Millisecond
)

// displayNumber parses the N of an X display name such as ":99" or ":99.0".
func displayNumber(display string) (int, error) {
	_, rest, ok := strings.Cut(display, ":")
	if !ok {
		return 0, fmt.Errorf("display %q: missing ':'", display)
	}
	rest, _, _ = strings.Cut(rest, ".")
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("display %q: bad number", display)
	}
	return n, nil
}

// displaySocket is the unix socket a local X server for display opens.
func displaySocket(display string) (string, error) {
	n, err := displayNumber(display)
	if err != nil {
		return "", err
	}
	return filepath.Join(x11SocketDir, "X"+strconv.Itoa(n)), nil
}

// waitForSocket polls until path exists, exited reports the server died,
// or ctx is done.
func waitForSocket(ctx context.Context, path string, exited <-chan error) error {
	t := time.NewTicker(xvfbPollInterval)
	defer t.Stop()
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", path, ctx.Err())
		case err := <-exited:
			if err == nil {
				err = errors.New("exited")
			}
			return fmt.Errorf("xvfb stopped before opening %s: %w", path, err)
		case <-t.C:
		}
	}
}

// startXvfb launches an Xvfb display sized to the viewport and waits until
// it accepts connections. A display already served by another X server is
// reused as is.
func (m *Manager) startXvfb(ctx context.Context) error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	socket, err := displaySocket(display)
	if err != nil {
		return err
	}
	if _, err := os.Stat(socket); err == nil {
		m.cfg.Logger.Info("browser: reusing running X display", "display", display)
		return nil
	}
	bin, err := exec.LookPath("Xvfb")
	if err != nil {
		return fmt.Errorf("headful mode needs Xvfb: %w", err)
	}

	screen := fmt.Sprintf("%dx%dx24", m.cfg.Width, m.cfg.Height)
	cmd := exec.Command(bin, display, "-screen", "0", screen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	readyCtx, cancel := context.WithTimeout(ctx, xvfbReadyTimeout)
	defer cancel()
	if err := waitForSocket(readyCtx, socket, exited); err != nil {
		cmd.Process.Kill()
		return err
	}

	m.xvfb = cmd
	m.xvfbExited = exited
	m.cfg.Logger.Info("browser: xvfb started", "display", display, "screen", screen, "pid", cmd.Process.Pid)
	return nil
}

// stopXvfb kills the Xvfb process this manager started, if any.
func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	m.xvfb.Process.Kill()
	<-m.xvfbExited
	m.cfg.Logger.Info("browser: xvfb stopped")
	m.xvfb = nil
	m.xvfbExited = nil
}
