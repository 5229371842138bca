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

	"gocomposer/internal/domain"
	"gocomposer/internal/storage"
	"gocomposer/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// Skip config and store setup.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create an empty project or composition",
}

var newProjectCmd = &cobra.Command{
	Use:   "project <name>",
	Short: "Create an empty canvas project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _ := cmd.Flags().GetFloat64("width")
		h, _ := cmd.Flags().GetFloat64("height")
		if w <= 0 {
			w = appCfg.Canvas.Width
		}
		if h <= 0 {
			h = appCfg.Canvas.Height
		}
		p := domain.NewProject(args[0], w, h)
		p.Background = appCfg.Canvas.Background
		return create(cmd, p)
	},
}

var newCompositionCmd = &cobra.Command{
	Use:   "composition <title>",
	Short: "Create an empty timeline composition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, _ := cmd.Flags().GetInt("width")
		h, _ := cmd.Flags().GetInt("height")
		if w <= 0 {
			w = appCfg.Canvas.VideoWidth
		}
		if h <= 0 {
			h = appCfg.Canvas.VideoHeight
		}
		return create(cmd, domain.NewComposition(args[0], domain.Resolution{Width: w, Height: h}))
	},
}

func create(cmd *cobra.Command, doc domain.Document) error {
	store, err := openStore(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Save(cmd.Context(), doc); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), doc.DocID())
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		list, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tTITLE\tREV\tUPDATED")
		for _, s := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Type, s.Title, s.Revision, s.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Describe a stored document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		doc, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		describe(cmd, doc)
		return nil
	},
}

func describe(cmd *cobra.Command, doc domain.Document) {
	out := cmd.OutOrStdout()
	sum := storage.Summarize(doc)
	fmt.Fprintf(out, "%s %s %q (revision %d)\n", sum.Type, sum.ID, sum.Title, sum.Revision)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer func() { _ = tw.Flush() }()
	switch d := doc.(type) {
	case domain.Project:
		fmt.Fprintf(out, "canvas %gx%g background %s, %d entities (back to front)\n", d.Width, d.Height, d.Background, len(d.LayerOrder))
		for i, e := range d.Ordered() {
			g := e.Geometry
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%g,%g %gx%g\n", i, e.ID, e.Kind, e.Name, g.X, g.Y, g.Width, g.Height)
		}
	case domain.Composition:
		fmt.Fprintf(out, "resolution %dx%d, %d clips on %d tracks, %gs\n", d.Resolution.Width, d.Resolution.Height, len(d.Clips), d.TrackCount(), d.TotalDuration())
		for _, c := range d.Sorted() {
			fmt.Fprintf(tw, "  %s\t%s\ttrack %d\t%g..%g\t%s\n", c.ID, c.Kind, c.Track, c.StartTime, c.End(), c.Name)
		}
	}
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored document and its checkpoints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context(), appCfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		return store.Delete(cmd.Context(), args[0])
	},
}

func init() {
	newProjectCmd.Flags().Float64("width", 0, "canvas width (default from config)")
	newProjectCmd.Flags().Float64("height", 0, "canvas height (default from config)")
	newCompositionCmd.Flags().Int("width", 0, "video width (default from config)")
	newCompositionCmd.Flags().Int("height", 0, "video height (default from config)")
	newCmd.AddCommand(newProjectCmd, newCompositionCmd)
	rootCmd.AddCommand(versionCmd, newCmd, listCmd, infoCmd, deleteCmd)
}
