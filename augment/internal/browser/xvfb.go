package browser

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	xvfbScreen  = "1920x1080x24"
	xvfbTimeout = 5 * time.Second
)

// xvfbSocket returns the X11 socket path served for display, e.g. ":99"
// or ":99.0" -> /tmp/.X11-unix/X99.
func xvfbSocket(display string) (string, error) {
	num, ok := strings.CutPrefix(display, ":")
	if !ok {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	num, _, _ = strings.Cut(num, ".")
	if _, err := strconv.Atoi(num); err != nil {
		return "", fmt.Errorf("display %q: want :N", display)
	}
	return filepath.Join("/tmp/.X11-unix", "X"+num), nil
}

// startXvfb runs a virtual display for a headful Chrome and waits until its
// socket accepts Chrome.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	sock, err := xvfbSocket(display)
	if err != nil {
		return err
	}

	cmd := exec.Command("Xvfb", display, "-screen", "0", xvfbScreen, "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	deadline := time.Now().Add(xvfbTimeout)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			m.stopXvfb()
			return fmt.Errorf("xvfb on %s: no socket after %v", display, xvfbTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}

	m.cfg.Logger.Info("browser: xvfb ready", "display", display, "screen", xvfbScreen, "pid", cmd.Process.Pid)
	return nil
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if p := m.xvfb.Process; p != nil {
		p.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}
