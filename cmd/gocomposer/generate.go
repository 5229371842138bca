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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"gocomposer/internal/backend"
	"gocomposer/internal/bridge"
	"gocomposer/internal/crash"
	"gocomposer/internal/domain"
	"gocomposer/internal/editor"
	applog "gocomposer/internal/log"
	"gocomposer/internal/notify"
	"gocomposer/internal/storage"
)

var generateCmd = &cobra.Command{
	Use:   "generate <id> <prompt> [prompt...]",
	Short: "Generate content for each prompt and insert it into a document",
	Long: "generate sends every prompt to the generation service concurrently. Each result is " +
		"inserted into the document as it arrives, as its own undoable step, and the document is saved " +
		"once all requests finished. Failed generations leave the document untouched.",
	Args: cobra.MinimumNArgs(2),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("media", "", "media kind for compositions: image, video or audio")
	generateCmd.Flags().Int("track", 0, "timeline track for compositions")
	generateCmd.Flags().Int("width", 0, "requested width in pixels")
	generateCmd.Flags().Int("height", 0, "requested height in pixels")
	rootCmd.AddCommand(generateCmd)
}

// outcomes collects bridge results from the request goroutines.
type outcomes struct {
	mu       sync.Mutex
	inserted int
	errs     []error
}

func (o *outcomes) add(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.errs = append(o.errs, err)
		return
	}
	o.inserted++
}

func runGenerate(cmd *cobra.Command, args []string) error {
	l := applog.WithOperation(applog.WithComponent("cli"), "generate")
	media, _ := cmd.Flags().GetString("media")
	track, _ := cmd.Flags().GetInt("track")
	w, _ := cmd.Flags().GetInt("width")
	h, _ := cmd.Flags().GetInt("height")

	client := backend.NewGenClient(appCfg.Generation.BaseURL, genToken, appCfg.Generation.Timeout())
	client.FetchAssets = appCfg.Generation.FetchAssets

	store, err := openStore(cmd.Context(), appCfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	doc, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	reqs := make([]bridge.GenerateRequest, 0, len(args)-1)
	for _, p := range args[1:] {
		reqs = append(reqs, bridge.GenerateRequest{Prompt: strings.TrimSpace(p), Media: media, Width: w, Height: h, Track: track})
	}
	var out outcomes
	var final domain.Document
	switch d := doc.(type) {
	case domain.Project:
		final, err = generateInto(cmd, store, d, client, bridge.PlaceImage, reqs, &out)
	case domain.Composition:
		final, err = generateInto(cmd, store, d, client, bridge.PlaceClip, reqs, &out)
	default:
		return fmt.Errorf("%s: %w", args[0], storage.ErrInvalidDocument)
	}
	if err != nil {
		return err
	}
	for _, e := range out.errs {
		fmt.Fprintln(cmd.ErrOrStderr(), "generation failed:", e)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "inserted %d of %d\n", out.inserted, len(reqs))
	if out.inserted == 0 {
		return errors.Join(out.errs...)
	}
	l.Info("generation finished", slog.String("doc", final.DocID()), slog.Int("inserted", out.inserted), slog.Int("failed", len(out.errs)))
	return store.Save(cmd.Context(), final)
}

func generateInto[D editor.Document[D]](cmd *cobra.Command, store storage.Store, doc D, client bridge.GenerationClient, place bridge.Placer[D], reqs []bridge.GenerateRequest, out *outcomes) (domain.Document, error) {
	final, err := withEditor(store, doc, func(ed *editor.Editor[D]) error {
		b := bridge.New[D](ed, client, place, bridge.Options[D]{
			MaxInFlight: appCfg.Generation.MaxInFlight,
			Timeout:     appCfg.Generation.Timeout(),
			Notifier:    notify.Multi{notify.LogNotifier{}, webhook},
			OnDone:      func(o bridge.Outcome[D]) { out.add(o.Err) },
			OnPanic:     func(v any) { crash.Fatal(crashSession, v) },
		})
		for _, req := range reqs {
			_, err := b.Request(cmd.Context(), req)
			if errors.Is(err, bridge.ErrBusy) {
				// Drain the running batch, then retry.
				b.Wait()
				_, err = b.Request(cmd.Context(), req)
			}
			if err != nil {
				out.add(fmt.Errorf("%q: %w", req.Prompt, err))
			}
		}
		b.Wait()
		return nil
	})
	return final, err
}
