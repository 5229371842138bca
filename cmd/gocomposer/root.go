/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"gocomposer/internal/config"
	applog "gocomposer/internal/log"
	"gocomposer/internal/notify"
)

var (
	appCfg   config.AppConfig
	genToken string
	webhook  *notify.Webhook
)

var rootCmd = &cobra.Command{
	Use:           "gocomposer",
	Short:         "Edit canvas projects and timeline compositions",
	Long:          "gocomposer creates, inspects and edits visual compositions, replays edit scripts and inserts generated content.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default per-user config.yaml)")
	rootCmd.PersistentFlags().String("driver", "", "storage driver: file, sqlite or postgres")
	rootCmd.PersistentFlags().String("dir", "", "document directory for file and sqlite storage")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
}

func setup(cmd *cobra.Command) error {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if err := os.Setenv(config.EnvConfigPath, abs); err != nil {
			return err
		}
	}
	cfg, tok, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if d, _ := cmd.Flags().GetString("driver"); d != "" {
		cfg.Storage.Driver = d
	}
	if d, _ := cmd.Flags().GetString("dir"); d != "" {
		cfg.Storage.Dir = d
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	appCfg, genToken = cfg, tok

	logOpts := cfg.LogOptions()
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		logOpts.Level = "debug"
	}
	applog.Init(logOpts)

	webhook = notify.NewWebhook(cfg.NotifyOptions())
	notify.SetDefault(webhook)
	crashSession.Upload = cfg.General.CrashReports
	if dir, err := cfg.StorageDir(); err == nil {
		crashSession.Dir = filepath.Join(dir, "crash")
	}
	applog.WithComponent("cli").Debug("start", slog.String("cmd", cmd.CommandPath()), slog.String("driver", cfg.Storage.Driver))
	return nil
}

// teardown delivers queued notifications before the process exits.
func teardown() {
	if webhook == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	webhook.Flush(ctx)
	webhook.Close()
}
