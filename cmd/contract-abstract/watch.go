// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yangzq12/contract-abstract/internal/uilog"
	"github.com/yangzq12/contract-abstract/pkg/config"
)

const watchDebounce = 500 * time.Millisecond

// runWatch re-runs runOnce every time cfg.IRPath changes on disk,
// debounced so a burst of writes from one save only triggers a single
// re-analysis.
func runWatch(cfg *config.Config, logger *slog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		uilog.Errorf("watch: starting fsnotify: %v", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(cfg.IRPath); err != nil {
		uilog.Errorf("watch: watching %s: %v", cfg.IRPath, err)
		return
	}

	runAndReport(cfg, logger)

	var debounceTimer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(watchDebounce)
			timerCh = debounceTimer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			uilog.Errorf("watch: %v", err)
		case <-timerCh:
			timerCh = nil
			runAndReport(cfg, logger)
		}
	}
}

func runAndReport(cfg *config.Config, logger *slog.Logger) {
	if err := runOnce(cfg, logger); err != nil {
		uilog.Errorf("analysis failed: %v", err)
		return
	}
	logger.Info("watch.reanalyzed", "ir_path", cfg.IRPath)
}
