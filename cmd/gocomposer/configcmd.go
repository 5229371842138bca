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
	"bufio"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gocomposer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the user configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration and its environment overrides",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if p, err := config.ConfigPath(); err == nil {
			fmt.Fprintf(out, "# file: %s\n", p)
		}
		shown := appCfg
		if u, err := url.Parse(shown.Storage.DSN); err == nil && shown.Storage.DSN != "" {
			shown.Storage.DSN = u.Redacted()
		}
		b, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		if _, err := out.Write(b); err != nil {
			return err
		}
		for _, key := range config.OverridableKeys() {
			if env, ok := config.EnvOverrideFor(key); ok {
				fmt.Fprintf(out, "# %s overridden by %s\n", key, env)
			}
		}
		if genToken != "" {
			fmt.Fprintln(out, "# generation token: set")
		}
		return nil
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Save(appCfg, "")
	},
}

var configTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store the generation service token in the OS keyring (read from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(line) == "" && err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		return config.SetToken(line)
	},
}

var configForgetCmd = &cobra.Command{
	Use:   "forget-token",
	Short: "Remove the generation service token from the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.ForgetToken()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSaveCmd, configTokenCmd, configForgetCmd)
	rootCmd.AddCommand(configCmd)
}
