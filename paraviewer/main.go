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

// This binary builds a static review site from Paraphase or PureTarget
// carrier panel output.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/profile"

	"github.com/googlegenomics/paraviewer/internal/config"
	"github.com/googlegenomics/paraviewer/internal/pipeline"
)

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("paraviewer failed: %v", err)
	}
}

// run builds the site described by cfg and prints its summary to w.  The
// profile, if any, is written before run returns.
func run(ctx context.Context, cfg config.Config, w io.Writer) error {
	switch cfg.Profile {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	}

	res, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}
	if err := res.Summary.Write(w); err != nil {
		return fmt.Errorf("printing summary: %w", err)
	}
	fmt.Fprintf(w, "Review site with %d rows written to %s\n", len(res.Dataset.Rows), cfg.OutDir)
	return nil
}
