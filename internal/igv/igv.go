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

// Package igv renders preview assets with the IGV desktop application and
// writes igv.js sessions and regional BAM bundles for the review site.
package igv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/googlegenomics/paraviewer/internal/bundle"
	"github.com/googlegenomics/paraviewer/internal/render"
	"github.com/googlegenomics/paraviewer/internal/report"
)

// Options configures a Renderer.
type Options struct {
	// Root is the site output directory that request paths are relative to.
	Root string
	// Executable is the IGV launcher, resolved through PATH.
	Executable string
	// Display is an existing X display.  When empty on Linux, Xvfb is
	// started on a free display.
	Display string
	// SkipImages disables IGV entirely; only bundles and sessions are written.
	SkipImages bool
}

// Renderer implements render.Renderer.  IGV runs as a single instance, so
// snapshots are taken one at a time while bundles and sessions are written
// concurrently.
type Renderer struct {
	opts Options

	executable string
	display    string
	xvfb       *exec.Cmd
	xvfbExited <-chan error
	work       string

	// instance holds a token while IGV is running.
	instance chan struct{}
}

var _ render.Renderer = (*Renderer)(nil)

// New returns a Renderer that must be started before use.
func New(opts Options) *Renderer {
	return &Renderer{opts: opts, instance: make(chan struct{}, 1)}
}

func unavailable(subject, context string, err error) error {
	return report.NewRendererUnavailableError(subject, context, fmt.Errorf("%w: %v", render.ErrUnavailable, err))
}

// Start resolves the IGV executable and prepares a display for it.  Failures
// are RendererUnavailable errors.
func (r *Renderer) Start(ctx context.Context) error {
	if r.opts.SkipImages {
		slog.Info("Static images disabled; writing sessions and bundles only")
		return nil
	}

	executable, err := exec.LookPath(r.opts.Executable)
	if err != nil {
		return unavailable(r.opts.Executable, "resolving the IGV executable", err)
	}
	r.executable = executable

	work, err := os.MkdirTemp("", "paraviewer-igv-")
	if err != nil {
		return unavailable(os.TempDir(), "creating the IGV work directory", err)
	}
	r.work = work

	r.display = r.opts.Display
	if r.display == "" && runtime.GOOS == "linux" {
		if err := r.startXvfb(ctx); err != nil {
			return unavailable("Xvfb", "starting a virtual display", err)
		}
	}
	slog.Info("Started IGV renderer", "executable", r.executable, "display", r.display)
	return nil
}

// Close stops the virtual display, if one was started, and removes the work
// directory.
func (r *Renderer) Close() error {
	var errs []error
	if r.xvfb != nil {
		if err := stopXvfb(r.xvfb, r.xvfbExited); err != nil {
			errs = append(errs, fmt.Errorf("stopping Xvfb: %w", err))
		}
		r.xvfb = nil
	}
	if r.work != "" {
		if err := os.RemoveAll(r.work); err != nil {
			errs = append(errs, fmt.Errorf("removing work directory: %w", err))
		}
		r.work = ""
	}
	return errors.Join(errs...)
}

// Render writes the bundle, the session and the image of one entity.  Asset
// failures are recorded in the result; the returned error is reserved for
// cancellation and for a renderer that stopped working.
func (r *Renderer) Render(ctx context.Context, req render.Request) (render.Assets, error) {
	var assets render.Assets

	if req.BundlePath != "" {
		if err := r.writeBundle(ctx, req); err != nil {
			assets.Fail(render.Bundle, err)
		} else {
			assets.Bundles = []string{req.BundlePath}
		}
	} else {
		for _, track := range req.Tracks {
			if _, err := os.Stat(r.local(track.Bundle)); err != nil {
				assets.Fail(render.Bundle, fmt.Errorf("bundle for %s: %w", track.Sample, err))
				continue
			}
			assets.Bundles = append(assets.Bundles, track.Bundle)
		}
	}
	if err := ctx.Err(); err != nil {
		return assets, err
	}

	if err := writeSession(r.local(req.SessionPath), req); err != nil {
		assets.Fail(render.Session, err)
	} else {
		assets.Session = req.SessionPath
	}

	if r.opts.SkipImages {
		return assets, nil
	}
	if err := r.snapshot(ctx, req); err != nil {
		if errors.Is(err, render.ErrUnavailable) {
			return assets, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return assets, ctxErr
		}
		assets.Fail(render.Image, err)
	} else {
		assets.Image = req.ImagePath
	}
	return assets, nil
}

func (r *Renderer) local(rel string) string {
	return filepath.Join(r.opts.Root, filepath.FromSlash(rel))
}

func (r *Renderer) writeBundle(ctx context.Context, req render.Request) error {
	if len(req.Tracks) != 1 {
		return fmt.Errorf("bundle needs exactly one track, got %d", len(req.Tracks))
	}
	track := req.Tracks[0]
	out := r.local(req.BundlePath)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}
	stats, err := bundle.SliceFile(ctx, track.BAM, track.BAI, req.Interval, req.MaxReads, out)
	if err != nil {
		return err
	}
	slog.Debug("Wrote bundle", "entity", req.EntityKey, "path", req.BundlePath, "bytes", stats.Bytes, "reads", stats.Reads, "capped", stats.Capped)
	return nil
}

func (r *Renderer) snapshot(ctx context.Context, req render.Request) error {
	select {
	case r.instance <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-r.instance }()

	image := r.local(req.ImagePath)
	if err := os.MkdirAll(filepath.Dir(image), 0o755); err != nil {
		return fmt.Errorf("creating image directory: %w", err)
	}
	if err := os.Remove(image); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing stale image: %w", err)
	}

	batch := filepath.Join(r.work, "batch.txt")
	if err := os.WriteFile(batch, []byte(batchScript(req, r.opts.Root, image)), 0o644); err != nil {
		return fmt.Errorf("writing batch script: %w", err)
	}
	prefs := filepath.Join(r.work, "prefs.properties")
	if err := os.WriteFile(prefs, []byte(preferences(req)), 0o644); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.executable, "-b", batch, "--preferences", prefs)
	if r.display != "" {
		cmd.Env = append(os.Environ(), "DISPLAY="+r.display)
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return unavailable(r.executable, "running IGV", err)
		}
		return fmt.Errorf("running IGV: %w: %s", err, lastLine(output.String()))
	}
	slog.Debug("IGV finished", "entity", req.EntityKey, "output", output.String())

	if _, err := os.Stat(image); err != nil {
		return fmt.Errorf("IGV wrote no snapshot: %w", err)
	}
	return nil
}

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return lines[len(lines)-1]
}
