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
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <id>",
	Short: "List the recorded history checkpoints of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		cs, ok := store.(checkpointStore)
		if !ok {
			return errNoCheckpoints
		}
		if keep, _ := cmd.Flags().GetInt("prune"); keep > 0 {
			n, err := cs.PruneCheckpoints(cmd.Context(), args[0], keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pruned %d checkpoints\n", n)
		}
		limit, _ := cmd.Flags().GetInt("limit")
		list, err := cs.ListCheckpoints(cmd.Context(), args[0], limit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEQ\tLABEL\tREV\tAT")
		for _, c := range list {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", c.Seq, c.Label, c.Doc.Revision(), c.TS.Local().Format("2006-01-02 15:04:05"))
		}
		return tw.Flush()
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <id> <seq>",
	Short: "Replace a document with one of its history checkpoints",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var seq int64
		if _, err := fmt.Sscan(args[1], &seq); err != nil {
			return fmt.Errorf("seq %q: %w", args[1], err)
		}
		store, err := openStore(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		cs, ok := store.(checkpointStore)
		if !ok {
			return errNoCheckpoints
		}
		list, err := cs.ListCheckpoints(cmd.Context(), args[0], 1000)
		if err != nil {
			return err
		}
		for _, c := range list {
			if c.Seq == seq {
				if err := store.Save(cmd.Context(), c.Doc); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "restored %s to checkpoint %d (%s)\n", args[0], seq, c.Label)
				return nil
			}
		}
		return fmt.Errorf("checkpoint %d of %s not found", seq, args[0])
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "maximum number of checkpoints to show")
	historyCmd.Flags().Int("prune", 0, "keep only the newest N checkpoints before listing")
	rootCmd.AddCommand(historyCmd, restoreCmd)
}
