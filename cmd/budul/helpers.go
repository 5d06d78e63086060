// Copyright (C) 2025 Budul AI (engineering@budul.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"log/slog"

	"github.com/BudulAI/BudulGo/cmd/budul/config"
	"github.com/BudulAI/BudulGo/pkg/api"
	"github.com/BudulAI/BudulGo/pkg/history"
	"github.com/BudulAI/BudulGo/pkg/logging"
)

// slogger returns the process logger, falling back to a discard logger
// when PersistentPreRun has not run (unit tests, mostly).
func slogger() *slog.Logger {
	if appLogger == nil {
		return logging.Discard()
	}
	return appLogger.Slog()
}

// newAPIClient builds a transport client from the loaded configuration.
// The health strategy follows backend.optimistic_health; per-command
// flags that force optimism construct their own client instead.
func newAPIClient(cfg config.BudulConfig) *api.Client {
	strategy := api.HealthStrategy(api.RealHealthCheck{})
	if cfg.Backend.OptimisticHealth {
		strategy = api.OptimisticHealthCheck{}
	}
	return api.NewClient(api.Config{
		BaseURL:        cfg.Backend.BaseURL,
		AuthToken:      cfg.Backend.AuthToken,
		ChatTimeout:    cfg.Backend.ChatTimeout(),
		MetaTimeout:    cfg.Backend.MetaTimeout(),
		HealthStrategy: strategy,
		Logger:         slogger(),
	})
}

// openHistoryStore opens the local BadgerDB transcript store at the
// configured path. Callers own the returned store and must Close it.
func openHistoryStore(cfg config.BudulConfig) (*history.Store, error) {
	storeCfg := history.DefaultConfig(logging.ExpandPath(cfg.History.Path))
	storeCfg.Logger = slogger()
	return history.Open(storeCfg)
}
