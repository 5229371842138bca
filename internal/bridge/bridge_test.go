/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package bridge

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"gocomposer/internal/domain"
	"gocomposer/internal/editor"
	"gocomposer/internal/geom"
	"gocomposer/internal/mutate"
	"gocomposer/internal/notify"
)

type reply struct {
	res GenerateResult
	err error
}

// gatedClient blocks every Generate call until the test releases its prompt.
type gatedClient struct {
	mu    sync.Mutex
	gates map[string]chan reply
}

func (g *gatedClient) gate(prompt string) chan reply {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gates == nil {
		g.gates = map[string]chan reply{}
	}
	ch, ok := g.gates[prompt]
	if !ok {
		ch = make(chan reply, 1)
		g.gates[prompt] = ch
	}
	return ch
}

func (g *gatedClient) release(prompt string, res GenerateResult, err error) {
	g.gate(prompt) <- reply{res: res, err: err}
}

func (g *gatedClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	select {
	case r := <-g.gate(req.Prompt):
		return r.res, r.err
	case <-ctx.Done():
		return GenerateResult{}, ctx.Err()
	}
}

type harness struct {
	ed     *editor.Editor[domain.Project]
	client *gatedClient
	rec    *notify.Recorder
	done   chan Outcome[domain.Project]
	b      *Bridge[domain.Project]
}

func newHarness(t *testing.T, maxInFlight int) *harness {
	t.Helper()
	ed, err := editor.New(domain.NewProject("p", 1080, 1080), editor.Options{})
	require.NoError(t, err)
	h := &harness{ed: ed, client: &gatedClient{}, rec: &notify.Recorder{}, done: make(chan Outcome[domain.Project], 8)}
	h.b = New[domain.Project](ed, h.client, PlaceImage, Options[domain.Project]{
		MaxInFlight: maxInFlight,
		Timeout:     5 * time.Second,
		Notifier:    h.rec,
		OnDone:      func(o Outcome[domain.Project]) { h.done <- o },
	})
	t.Cleanup(h.b.Wait)
	return h
}

func (h *harness) next(t *testing.T) Outcome[domain.Project] {
	t.Helper()
	select {
	case o := <-h.done:
		return o
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a generation outcome")
		return Outcome[domain.Project]{}
	}
}

func img(url string) GenerateResult { return GenerateResult{URL: url, Width: 400, Height: 300} }

func TestOutOfOrderCompletionAppliesToCurrent(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()
	t1, err := h.b.Request(ctx, GenerateRequest{Prompt: "one", Media: "image"})
	require.NoError(t, err)
	t2, err := h.b.Request(ctx, GenerateRequest{Prompt: "two", Media: "image"})
	require.NoError(t, err)

	manual, err := h.ed.Dispatch(mutate.AddEntity{Kind: domain.KindShape, Geometry: geom.Box(0, 0, 10, 10)})
	require.NoError(t, err)
	require.Equal(t, 1, h.ed.Stats().Cursor)

	h.client.release("two", img("https://cdn.example/two.png"), nil)
	o := h.next(t)
	require.NoError(t, o.Err)
	assert.Equal(t, t2.ID, o.Ticket.ID)
	assert.Equal(t, 2, h.ed.Stats().Cursor)

	h.client.release("one", img("https://cdn.example/one.png"), nil)
	o = h.next(t)
	require.NoError(t, o.Err)
	assert.Equal(t, t1.ID, o.Ticket.ID)
	assert.Equal(t, 3, h.ed.Stats().Cursor)

	doc := h.ed.Current()
	require.NoError(t, doc.CheckInvariants())
	require.Len(t, doc.LayerOrder, 3)
	assert.Equal(t, manual.LayerOrder[0], doc.LayerOrder[0])
	assert.Equal(t, "https://cdn.example/two.png", doc.Entities[doc.LayerOrder[1]].Properties.(domain.ImageProps).Src)
	assert.Equal(t, "https://cdn.example/one.png", doc.Entities[doc.LayerOrder[2]].Properties.(domain.ImageProps).Src)

	h.b.Wait()
	assert.Empty(t, h.b.InFlight())
}

func TestFailedGenerationCommitsNothing(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.b.Request(context.Background(), GenerateRequest{Prompt: "boom"})
	require.NoError(t, err)
	h.client.release("boom", GenerateResult{}, errors.New("upstream 503"))

	o := h.next(t)
	assert.True(t, errors.Is(o.Err, ErrExternalService))
	assert.Len(t, h.ed.Entries(), 1)
	h.b.Wait()
	assert.Equal(t, []notify.Kind{notify.GenerationStarted, notify.GenerationFailed}, h.rec.Kinds())
}

func TestUnplaceableResultCommitsNothing(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.b.Request(context.Background(), GenerateRequest{Prompt: "nourl"})
	require.NoError(t, err)
	h.client.release("nourl", GenerateResult{}, nil)

	o := h.next(t)
	assert.True(t, errors.Is(o.Err, mutate.ErrValidation))
	assert.Len(t, h.ed.Entries(), 1)
}

func TestResultAfterReloadIsDiscarded(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.b.Request(context.Background(), GenerateRequest{Prompt: "late"})
	require.NoError(t, err)
	reloaded := domain.NewProject("other", 500, 500)
	require.NoError(t, h.ed.Load(reloaded))

	h.client.release("late", img("https://cdn.example/late.png"), nil)
	o := h.next(t)
	assert.True(t, errors.Is(o.Err, ErrStaleRequest))
	assert.Equal(t, reloaded.ID, h.ed.Current().ID)
	assert.Empty(t, h.ed.Current().LayerOrder)
	h.b.Wait()
	assert.Contains(t, h.rec.Kinds(), notify.GenerationDiscarded)
}

func TestResultAfterCloseIsDiscarded(t *testing.T) {
	h := newHarness(t, 2)
	_, err := h.b.Request(context.Background(), GenerateRequest{Prompt: "late"})
	require.NoError(t, err)
	h.ed.Close()
	h.client.release("late", img("https://cdn.example/late.png"), nil)
	o := h.next(t)
	assert.True(t, errors.Is(o.Err, ErrStaleRequest))
	assert.Len(t, h.ed.Entries(), 1)
}

func TestInFlightLimit(t *testing.T) {
	h := newHarness(t, 1)
	_, err := h.b.Request(context.Background(), GenerateRequest{Prompt: "first"})
	require.NoError(t, err)
	_, err = h.b.Request(context.Background(), GenerateRequest{Prompt: "second"})
	assert.ErrorIs(t, err, ErrBusy)
	assert.Len(t, h.b.InFlight(), 1)

	h.client.release("first", img("https://cdn.example/first.png"), nil)
	require.NoError(t, h.next(t).Err)
	h.b.Wait()
	_, err = h.b.Request(context.Background(), GenerateRequest{Prompt: "third"})
	require.NoError(t, err)
	h.client.release("third", img("https://cdn.example/third.png"), nil)
	require.NoError(t, h.next(t).Err)
}

func encode(t *testing.T, w, h int, enc func(*bytes.Buffer, image.Image) error) []byte {
	t.Helper()
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	m.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, enc(&buf, m))
	return buf.Bytes()
}

func TestImageSize(t *testing.T) {
	w, h, err := ImageSize(encode(t, 30, 20, func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) }))
	require.NoError(t, err)
	assert.Equal(t, [2]int{30, 20}, [2]int{w, h})

	w, h, err = ImageSize(encode(t, 7, 9, func(b *bytes.Buffer, m image.Image) error { return png.Encode(b, m) }))
	require.NoError(t, err)
	assert.Equal(t, [2]int{7, 9}, [2]int{w, h})

	_, _, err = ImageSize([]byte("not an image"))
	assert.Error(t, err)
}

func TestPlaceImage(t *testing.T) {
	p := domain.NewProject("p", 1080, 1080)
	cmd, err := PlaceImage(p, GenerateRequest{Prompt: "a  wide\nbanner"}, GenerateResult{URL: "u", Width: 2160, Height: 1080})
	require.NoError(t, err)
	add := cmd.(mutate.AddEntity)
	assert.Equal(t, geom.Box(0, 270, 1080, 540), add.Geometry)
	assert.Equal(t, "a wide banner", add.DisplayName)

	data := encode(t, 100, 50, func(b *bytes.Buffer, m image.Image) error { return bmp.Encode(b, m) })
	cmd, err = PlaceImage(p, GenerateRequest{}, GenerateResult{URL: "u", Data: data})
	require.NoError(t, err)
	assert.Equal(t, geom.Box(490, 515, 100, 50), cmd.(mutate.AddEntity).Geometry)

	cmd, err = PlaceImage(p, GenerateRequest{}, GenerateResult{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, geom.Box(284, 284, 512, 512), cmd.(mutate.AddEntity).Geometry)

	_, err = PlaceImage(p, GenerateRequest{}, GenerateResult{})
	assert.ErrorIs(t, err, mutate.ErrValidation)
}

func TestPlaceClip(t *testing.T) {
	c := domain.NewComposition("c", domain.Resolution{Width: 1920, Height: 1080})
	c, err := mutate.Apply(c, mutate.CompositionCommand(mutate.AddClip{ID: "x", Kind: domain.ClipVideo, Duration: 5}))
	require.NoError(t, err)

	cmd, err := PlaceClip(c, GenerateRequest{Media: "video", Track: 2}, GenerateResult{URL: "u", Duration: 3})
	require.NoError(t, err)
	next, err := mutate.Apply(c, cmd)
	require.NoError(t, err)
	assert.Equal(t, 8.0, next.TotalDuration())
	assert.Equal(t, 3, next.TrackCount())

	cmd, err = PlaceClip(c, GenerateRequest{}, GenerateResult{URL: "u"})
	require.NoError(t, err)
	assert.Equal(t, domain.ClipImage, cmd.(mutate.AddClip).Kind)
	assert.Equal(t, 5.0, cmd.(mutate.AddClip).Duration)

	_, err = PlaceClip(c, GenerateRequest{Media: "hologram"}, GenerateResult{URL: "u"})
	assert.ErrorIs(t, err, mutate.ErrValidation)
}

func TestPanicOnRequestGoroutineReachesOnPanic(t *testing.T) {
	ed, err := editor.New(domain.NewProject("p", 1080, 1080), editor.Options{})
	require.NoError(t, err)
	client := &gatedClient{}
	panics := make(chan any, 1)
	boom := func(domain.Project, GenerateRequest, GenerateResult) (mutate.ProjectCommand, error) {
		panic("placer exploded")
	}
	b := New[domain.Project](ed, client, boom, Options[domain.Project]{
		Timeout: 5 * time.Second,
		OnPanic: func(v any) { panics <- v },
	})

	_, err = b.Request(context.Background(), GenerateRequest{Prompt: "p", Media: "image"})
	require.NoError(t, err)
	client.release("p", img("https://cdn.example/p.png"), nil)
	b.Wait()

	select {
	case v := <-panics:
		assert.Equal(t, "placer exploded", v)
	default:
		t.Fatalf("panic was not handed to OnPanic")
	}
	assert.Empty(t, b.InFlight())
	// The editor lock was released while unwinding.
	_, err = ed.Dispatch(mutate.AddEntity{Kind: domain.KindShape, Geometry: geom.Box(0, 0, 10, 10)})
	assert.NoError(t, err)
}
