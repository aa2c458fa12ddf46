// Copyright 2026 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package igv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const (
	firstDisplay   = 99
	displayRange   = 100
	virtualScreen  = "1920x1080x24"
	xvfbStartLimit = 10 * time.Second
)

var errNoDisplay = errors.New("no free X display")

func lockFile(display int) string {
	return fmt.Sprintf("/tmp/.X%d-lock", display)
}

// freeDisplay returns the first display in [first, first+count) that locked
// reports as unused.
func freeDisplay(first, count int, locked func(int) bool) (int, error) {
	for display := first; display < first+count; display++ {
		if !locked(display) {
			return display, nil
		}
	}
	return 0, fmt.Errorf("%w in %d-%d", errNoDisplay, first, first+count-1)
}

func lockExists(display int) bool {
	_, err := os.Stat(lockFile(display))
	return err == nil
}

func (r *Renderer) startXvfb(ctx context.Context) error {
	xvfb, err := exec.LookPath("Xvfb")
	if err != nil {
		return err
	}
	display, err := freeDisplay(firstDisplay, displayRange, lockExists)
	if err != nil {
		return err
	}

	cmd := exec.Command(xvfb, fmt.Sprintf(":%d", display), "-screen", "0", virtualScreen)
	if err := cmd.Start(); err != nil {
		return err
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	deadline := time.NewTimer(xvfbStartLimit)
	defer deadline.Stop()
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for !lockExists(display) {
		select {
		case err := <-exited:
			return fmt.Errorf("Xvfb exited: %v", err)
		case <-deadline.C:
			cmd.Process.Kill()
			return fmt.Errorf("Xvfb did not create %s within %v", lockFile(display), xvfbStartLimit)
		case <-ctx.Done():
			cmd.Process.Kill()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	r.xvfb = cmd
	r.xvfbExited = exited
	r.display = fmt.Sprintf(":%d", display)
	slog.Debug("Started Xvfb", "display", r.display, "pid", cmd.Process.Pid)
	return nil
}

func stopXvfb(cmd *exec.Cmd, exited <-chan error) error {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-exited:
	case <-time.After(xvfbStartLimit):
		return cmd.Process.Kill()
	}
	return nil
}
