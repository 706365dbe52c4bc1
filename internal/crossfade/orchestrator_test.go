package crossfade

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/engine"
	"github.com/evenfall/drift/internal/fade"
	"github.com/evenfall/drift/internal/host"
)

func testCache() *cache.Cache {
	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		buf := audio.NewBuffer(2, 10*44100, 44100)
		return buf, audio.Track{URI: uri, Title: uri}.WithFormat(buf), nil
	}
	return cache.New(loader, cache.Options{})
}

// harness: engine playing "current.wav" on slot A, "next.wav" loaded in
// slot B, orchestrator collecting progress.
type harness struct {
	eng   *engine.Engine
	graph *host.MockGraph
	orch  *Orchestrator

	mu       sync.Mutex
	progress []Progress
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	g := host.NewMockGraph()
	e := engine.New(g, testCache())
	t.Cleanup(e.Close)
	if err := e.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	h := &harness{eng: e, graph: g, orch: New(e)}
	h.orch.SetProgressFunc(func(p Progress) {
		h.mu.Lock()
		h.progress = append(h.progress, p)
		h.mu.Unlock()
	})

	ctx := context.Background()
	if _, err := e.LoadIntoSlot(ctx, e.ActiveSlot(), audio.Track{URI: "current.wav"}); err != nil {
		t.Fatalf("LoadIntoSlot: %v", err)
	}
	if err := e.ScheduleActive(0, fade.Linear); err != nil {
		t.Fatalf("ScheduleActive: %v", err)
	}
	if _, err := e.LoadIntoSlot(ctx, e.ActiveSlot().Other(), audio.Track{URI: "next.wav"}); err != nil {
		t.Fatalf("LoadIntoSlot: %v", err)
	}
	return h
}

func (h *harness) phases() []Phase {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Phase
	for _, p := range h.progress {
		if len(out) == 0 || out[len(out)-1] != p.Phase {
			out = append(out, p.Phase)
		}
	}
	return out
}

func TestStartCrossfade_FullCycle(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(0.8)

	res, err := h.orch.StartCrossfade(context.Background(), 200*time.Millisecond, fade.EqualPower, AutomaticLoop)
	if err != nil {
		t.Fatalf("StartCrossfade: %v", err)
	}
	if res != Completed {
		t.Fatalf("result = %v, want Completed", res)
	}

	if h.eng.ActiveSlot() != engine.SlotB {
		t.Error("active slot should have flipped to B")
	}
	track, _ := h.eng.ActiveTrack()
	if track.URI != "next.wav" {
		t.Errorf("active track = %q, want next.wav", track.URI)
	}
	// Invariant: inactive silenced and stopped after cleanup.
	if v := h.graph.MockMixer(host.NodeSlotA).Volume(); v != 0 {
		t.Errorf("old slot mixer = %v, want 0", v)
	}
	if h.graph.MockPlayer(host.NodeSlotA).IsPlaying() {
		t.Error("old slot player should be stopped")
	}
	if v := h.graph.MockMixer(host.NodeSlotB).Volume(); math.Abs(v-0.8) > 1e-9 {
		t.Errorf("new active mixer = %v, want 0.8", v)
	}
	if h.orch.Active() {
		t.Error("orchestrator still marked active after completion")
	}

	want := []Phase{PhasePreparing, PhaseFading, PhaseSwitching, PhaseCleanup, PhaseIdle}
	got := h.phases()
	if len(got) != len(want) {
		t.Fatalf("phases = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("phases = %v, want %v", got, want)
		}
	}
}

func TestStartCrossfade_RefusesReentry(t *testing.T) {
	h := newHarness(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.orch.StartCrossfade(context.Background(), 500*time.Millisecond, fade.Linear, ManualChange)
	}()
	time.Sleep(100 * time.Millisecond)

	_, err := h.orch.StartCrossfade(context.Background(), time.Second, fade.Linear, ManualChange)
	if err != ErrTransitionActive {
		t.Errorf("err = %v, want ErrTransitionActive", err)
	}
	<-done
}

func TestStartCrossfade_RequiresPlayingActive(t *testing.T) {
	h := newHarness(t)
	h.eng.Pause()

	res, err := h.orch.StartCrossfade(context.Background(), time.Second, fade.Linear, ManualChange)
	if err != ErrNotPlaying {
		t.Errorf("err = %v, want ErrNotPlaying", err)
	}
	if res != Cancelled {
		t.Errorf("result = %v, want Cancelled", res)
	}
	if h.orch.Active() {
		t.Error("crossfade window should be closed after refusal")
	}
}

func TestPauseDuringFade_SnapshotAndResume(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(1)

	results := make(chan Result, 1)
	go func() {
		res, _ := h.orch.StartCrossfade(context.Background(), 600*time.Millisecond, fade.Linear, ManualChange)
		results <- res
	}()
	time.Sleep(250 * time.Millisecond)

	if !h.orch.PauseCurrent() {
		t.Fatal("PauseCurrent found no fading crossfade")
	}
	if res := <-results; res != Paused {
		t.Fatalf("result = %v, want Paused", res)
	}

	snap, ok := h.orch.PausedSnapshot()
	if !ok {
		t.Fatal("no snapshot after pause")
	}
	if snap.ActiveVolume <= 0 || snap.ActiveVolume >= 1 {
		t.Errorf("snapshot active volume = %v, want mid-fade", snap.ActiveVolume)
	}
	if snap.Remaining <= 0 || snap.Remaining >= 600*time.Millisecond {
		t.Errorf("snapshot remaining = %v, want in (0, 600ms)", snap.Remaining)
	}
	if h.graph.MockPlayer(host.NodeSlotA).IsPlaying() || h.graph.MockPlayer(host.NodeSlotB).IsPlaying() {
		t.Error("both players should be paused")
	}

	// Resume: continues to (0, target) and switches.
	res, ok := h.orch.ResumeCrossfade(context.Background())
	if !ok {
		t.Fatal("ResumeCrossfade found no snapshot")
	}
	if res != Completed {
		t.Fatalf("resume result = %v, want Completed", res)
	}
	if h.eng.ActiveSlot() != engine.SlotB {
		t.Error("active slot should have flipped after resumed crossfade")
	}
	if v := h.graph.MockMixer(host.NodeSlotB).Volume(); v != 1 {
		t.Errorf("new active mixer = %v, want 1", v)
	}
	if h.orch.HasPausedCrossfade() {
		t.Error("snapshot should be cleared after resume")
	}
}

func TestResumeCrossfade_WithoutSnapshot(t *testing.T) {
	h := newHarness(t)
	if _, ok := h.orch.ResumeCrossfade(context.Background()); ok {
		t.Error("resume without snapshot should report false")
	}
}

func TestRollbackCurrent_MidFade(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(0.9)

	results := make(chan Result, 1)
	go func() {
		res, _ := h.orch.StartCrossfade(context.Background(), time.Second, fade.Linear, ManualChange)
		results <- res
	}()
	time.Sleep(200 * time.Millisecond)

	pre := h.orch.RollbackCurrent(100 * time.Millisecond)
	if res := <-results; res != Cancelled {
		t.Fatalf("result = %v, want Cancelled", res)
	}
	if pre <= 0 || pre >= 0.9 {
		t.Errorf("pre-rollback volume = %v, want mid-fade", pre)
	}

	// Outgoing restored, incoming silenced, no slot switch.
	if h.eng.ActiveSlot() != engine.SlotA {
		t.Error("rollback must not switch slots")
	}
	waitFor(t, time.Second, func() bool {
		return h.graph.MockMixer(host.NodeSlotA).Volume() == 0.9 &&
			h.graph.MockMixer(host.NodeSlotB).Volume() == 0
	})
	if h.orch.HasPausedCrossfade() {
		t.Error("snapshot should be cleared by rollback")
	}
}

func TestFastForward_MidFade(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(0.5)

	results := make(chan Result, 1)
	go func() {
		res, _ := h.orch.StartCrossfade(context.Background(), time.Second, fade.Linear, ManualChange)
		results <- res
	}()
	time.Sleep(200 * time.Millisecond)

	h.orch.FastForward(80 * time.Millisecond)
	if res := <-results; res != Cancelled {
		t.Fatalf("result = %v, want Cancelled", res)
	}
	if h.eng.ActiveSlot() != engine.SlotB {
		t.Error("fast-forward should switch to the incoming slot")
	}
	waitFor(t, time.Second, func() bool {
		return h.graph.MockMixer(host.NodeSlotB).Volume() == 0.5
	})
}

func TestRollback_FromPausedSnapshot(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(1)

	results := make(chan Result, 1)
	go func() {
		res, _ := h.orch.StartCrossfade(context.Background(), 600*time.Millisecond, fade.Linear, ManualChange)
		results <- res
	}()
	time.Sleep(200 * time.Millisecond)
	h.orch.PauseCurrent()
	<-results

	h.orch.RollbackCurrent(50 * time.Millisecond)
	if h.orch.HasPausedCrossfade() {
		t.Error("snapshot should be gone")
	}
	if h.orch.Active() {
		t.Error("crossfade window should be closed")
	}
	waitFor(t, time.Second, func() bool {
		return h.graph.MockMixer(host.NodeSlotA).Volume() == 1 &&
			h.graph.MockMixer(host.NodeSlotB).Volume() == 0
	})
}

func TestPerformFadeSeekFade(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(0.7)

	err := h.orch.PerformFadeSeekFade(context.Background(), 5*time.Second, 50*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("PerformFadeSeekFade: %v", err)
	}
	if pos := h.eng.Position(); pos != 5*time.Second {
		t.Errorf("position = %v, want 5s", pos)
	}
	if v := h.graph.MockMixer(host.NodeSlotA).Volume(); math.Abs(v-0.7) > 1e-9 {
		t.Errorf("active mixer = %v, want restored 0.7", v)
	}
}

func TestSimpleFadeOutIn(t *testing.T) {
	h := newHarness(t)
	h.eng.SetVolume(0.6)

	if err := h.orch.PerformSimpleFadeOut(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("fade out: %v", err)
	}
	if v := h.graph.MockMixer(host.NodeSlotA).Volume(); v != 0 {
		t.Errorf("mixer = %v, want 0 after fade out", v)
	}
	if err := h.orch.PerformSimpleFadeIn(context.Background(), 50*time.Millisecond); err != nil {
		t.Fatalf("fade in: %v", err)
	}
	if v := h.graph.MockMixer(host.NodeSlotA).Volume(); math.Abs(v-0.6) > 1e-9 {
		t.Errorf("mixer = %v, want 0.6 after fade in", v)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
