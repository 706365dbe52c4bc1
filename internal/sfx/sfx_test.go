package sfx

import (
	"context"
	"testing"
	"time"

	"github.com/evenfall/drift/internal/audio"
	"github.com/evenfall/drift/internal/cache"
	"github.com/evenfall/drift/internal/host"
)

func testCache() *cache.Cache {
	loader := func(uri string) (*audio.Buffer, audio.Track, error) {
		buf := audio.NewBuffer(1, 4410, 44100)
		return buf, audio.Track{URI: uri}.WithFormat(buf), nil
	}
	return cache.New(loader, cache.Options{MaxEntries: DefaultCacheSize})
}

func newPlayer() (*Player, *host.MockPlayer, *host.MockMixer) {
	mp := host.NewMockPlayer()
	mm := host.NewMockMixer()
	return New(mp, mm, testCache()), mp, mm
}

func TestPlay_ImmediateVolume(t *testing.T) {
	p, mp, mm := newPlayer()
	if err := p.Play(context.Background(), Effect{URI: "chime.wav", Volume: 0.5}, 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !mp.IsPlaying() {
		t.Error("player should be playing")
	}
	if v := mm.Volume(); v != 0.5 {
		t.Errorf("mixer = %v, want intrinsic 0.5 * master 1", v)
	}
	if uri, ok := p.Playing(); !ok || uri != "chime.wav" {
		t.Errorf("Playing() = %q, %v", uri, ok)
	}
}

func TestPlay_MasterScalesIntrinsic(t *testing.T) {
	p, _, mm := newPlayer()
	p.SetMasterVolume(0.5)
	if err := p.Play(context.Background(), Effect{URI: "chime.wav", Volume: 0.8}, 0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if v := mm.Volume(); v != 0.4 {
		t.Errorf("mixer = %v, want 0.5*0.8", v)
	}
}

func TestPlay_ReplacesCurrentEffect(t *testing.T) {
	p, mp, _ := newPlayer()
	ctx := context.Background()
	p.Play(ctx, Effect{URI: "one.wav"}, 0)
	stops := mp.StopCalls()
	p.Play(ctx, Effect{URI: "two.wav"}, 0)

	if mp.StopCalls() != stops+1 {
		t.Error("second Play should stop the first effect")
	}
	if uri, _ := p.Playing(); uri != "two.wav" {
		t.Errorf("playing = %q, want two.wav", uri)
	}
}

func TestPlay_FadeInReachesTarget(t *testing.T) {
	p, _, mm := newPlayer()
	if err := p.Play(context.Background(), Effect{URI: "swell.wav"}, 60*time.Millisecond); err != nil {
		t.Fatalf("Play: %v", err)
	}
	deadline := time.After(time.Second)
	for mm.Volume() != 1 {
		select {
		case <-deadline:
			t.Fatalf("fade-in stalled at %v", mm.Volume())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStop_FadesAndSilences(t *testing.T) {
	p, mp, mm := newPlayer()
	p.Play(context.Background(), Effect{URI: "chime.wav"}, 0)

	p.Stop(30 * time.Millisecond)
	if mp.IsPlaying() {
		t.Error("player still playing after Stop")
	}
	if v := mm.Volume(); v != 0 {
		t.Errorf("mixer = %v, want 0", v)
	}
	if _, ok := p.Playing(); ok {
		t.Error("Playing() still true after Stop")
	}
}

func TestStop_NoopWhenIdle(t *testing.T) {
	p, mp, _ := newPlayer()
	p.Stop(0)
	if mp.StopCalls() != 0 {
		t.Error("Stop on idle player touched the node")
	}
}

func TestSetMasterVolume_RescalesLive(t *testing.T) {
	p, _, mm := newPlayer()
	p.Play(context.Background(), Effect{URI: "chime.wav", Volume: 0.8}, 0)

	p.SetMasterVolume(0.5)
	if v := mm.Volume(); v != 0.4 {
		t.Errorf("mixer = %v, want 0.8*0.5", v)
	}
}

func TestUnload_StopsActiveEffect(t *testing.T) {
	p, mp, _ := newPlayer()
	p.Play(context.Background(), Effect{URI: "chime.wav"}, 0)

	p.Unload("chime.wav")
	if mp.IsPlaying() {
		t.Error("unloading the active effect should stop it")
	}
	if _, ok := p.Playing(); ok {
		t.Error("still marked playing after unload")
	}
}

func TestPreload_WarmsCache(t *testing.T) {
	c := testCache()
	p := New(host.NewMockPlayer(), host.NewMockMixer(), c)
	p.Preload("a.wav", "b.wav")

	deadline := time.After(time.Second)
	for !(c.Contains("a.wav") && c.Contains("b.wav")) {
		select {
		case <-deadline:
			t.Fatal("preload never landed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
