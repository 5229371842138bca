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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"gocomposer/internal/domain"
	"gocomposer/internal/editor"
	applog "gocomposer/internal/log"
	"gocomposer/internal/script"
	"gocomposer/internal/storage"
)

var applyCmd = &cobra.Command{
	Use:   "apply <id> <script.yaml>",
	Short: "Replay a YAML edit script against a document and save the result",
	Args:  cobra.ExactArgs(2),
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().Bool("dry-run", false, "replay without saving")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "apply")
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	sc, err := script.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", args[1], err)
	}
	store, err := openStore(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	doc, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	var (
		res   script.Result
		final domain.Document
	)
	switch d := doc.(type) {
	case domain.Project:
		final, err = replay(store, d, sc, script.RunProject, &res)
	case domain.Composition:
		final, err = replay(store, d, sc, script.RunComposition, &res)
	default:
		return fmt.Errorf("%s: %w", args[0], storage.ErrInvalidDocument)
	}
	if err != nil {
		return err
	}
	l.Info("script replayed", slog.String("doc", final.DocID()), slog.Int("applied", res.Applied), slog.Int("undone", res.Undone), slog.Int("redone", res.Redone))
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d, undone %d, redone %d, skipped %d\n", res.Applied, res.Undone, res.Redone, res.Skipped)
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		describe(cmd, final)
		return nil
	}
	return store.Save(cmd.Context(), final)
}

func replay[D editor.Document[D]](store storage.Store, doc D, sc script.Script, runFn func(script.Session[D], script.Script) (script.Result, error), res *script.Result) (domain.Document, error) {
	final, err := withEditor(store, doc, func(ed *editor.Editor[D]) error {
		r, err := runFn(ed, sc)
		*res = r
		return err
	})
	return final, err
}
