package session

import (
	"errors"
	"testing"
	"time"

	"github.com/evenfall/drift/internal/host"
)

func waitSignal(t *testing.T, c *Coordinator, timeout time.Duration) (Signal, bool) {
	t.Helper()
	select {
	case s := <-c.Signals():
		return s, true
	case <-time.After(timeout):
		return Signal{}, false
	}
}

func TestConfigure_ManagedSetsUpSession(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	err := c.Configure(Config{Mode: ModeManaged}, false)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if s.Category() != host.CategoryPlayback {
		t.Errorf("category = %v, want playback", s.Category())
	}
	if !s.IsActive() {
		t.Error("session should be active")
	}
	if s.PreferredSampleRate() != 44100 {
		t.Errorf("preferred rate = %v, want 44100", s.PreferredSampleRate())
	}
	if s.PreferredIOBufferDuration() != 20*time.Millisecond {
		t.Errorf("preferred IO buffer = %v, want 20ms", s.PreferredIOBufferDuration())
	}
}

func TestConfigure_ActivatesExactlyOnce(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	for i := 0; i < 3; i++ {
		if err := c.Configure(Config{Mode: ModeManaged}, false); err != nil {
			t.Fatalf("Configure #%d: %v", i, err)
		}
	}
	if s.ActiveCalls() != 1 {
		t.Errorf("SetActive ran %d times, want 1", s.ActiveCalls())
	}
	if s.CategoryCalls() != 1 {
		t.Errorf("SetCategory ran %d times, want 1 (first configuration wins)", s.CategoryCalls())
	}
}

func TestConfigure_ForceReapplies(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	c.Configure(Config{Mode: ModeManaged}, false)
	if err := c.Configure(Config{Mode: ModeManaged}, true); err != nil {
		t.Fatalf("forced Configure: %v", err)
	}
	if s.CategoryCalls() != 2 {
		t.Errorf("SetCategory ran %d times, want 2 after force", s.CategoryCalls())
	}
}

func TestConfigure_ActivationFailure(t *testing.T) {
	s := host.NewMockSession()
	s.FailActivation(errors.New("device in use"))
	c := New(s)
	defer c.Close()

	err := c.Configure(Config{Mode: ModeManaged}, false)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigurationError", err)
	}
}

func TestConfigure_ExternalNeverMutates(t *testing.T) {
	s := host.NewMockSession()
	s.SetCategoryDirect(host.CategoryPlayback)
	s.SetActiveDirect(true)
	c := New(s)
	defer c.Close()

	if err := c.Configure(Config{Mode: ModeExternal}, false); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if s.CategoryCalls() != 0 || s.ActiveCalls() != 0 {
		t.Error("external mode must not mutate the session")
	}
}

func TestConfigure_ExternalIncompatibleCategory(t *testing.T) {
	s := host.NewMockSession()
	s.SetCategoryDirect(host.CategoryAmbient)
	c := New(s)
	defer c.Close()

	err := c.Configure(Config{Mode: ModeExternal}, false)
	var ce *ConfigurationError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *ConfigurationError", err)
	}
	if ce.Category != host.CategoryAmbient {
		t.Errorf("error category = %v, want ambient", ce.Category)
	}
}

func TestValidate_Warnings(t *testing.T) {
	s := host.NewMockSession()
	s.SetCategoryDirect(host.CategoryPlayAndRecord)
	c := New(s)
	defer c.Close()

	v := c.Validate()
	if v.Result != ValidationValid {
		t.Fatalf("result = %v, want valid", v.Result)
	}
	// Inactive, no bluetooth, playAndRecord without speaker default.
	if len(v.Warnings) != 3 {
		t.Errorf("warnings = %v, want 3", v.Warnings)
	}
}

func TestInterruption_PauseAndConditionalResume(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	s.Emit(host.Event{Kind: host.EventInterruptionBegan})
	sig, ok := waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalPause {
		t.Fatalf("signal = %+v, want pause", sig)
	}

	// End without should-resume: Siri-style, no auto resume.
	s.Emit(host.Event{Kind: host.EventInterruptionEnded, ShouldResume: false})
	if sig, ok := waitSignal(t, c, 100*time.Millisecond); ok {
		t.Fatalf("unexpected signal %+v after non-resumable interruption end", sig)
	}

	s.Emit(host.Event{Kind: host.EventInterruptionEnded, ShouldResume: true})
	sig, ok = waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalResume {
		t.Fatalf("signal = %+v, want resume", sig)
	}
}

func TestRouteChange_UnplugPausesImmediately(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	start := time.Now()
	s.Emit(host.Event{Kind: host.EventRouteChange, RouteReason: host.RouteReasonOldDeviceUnavailable})
	sig, ok := waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalPause {
		t.Fatalf("signal = %+v, want pause", sig)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("unplug pause took %v, want < 50ms", elapsed)
	}
}

func TestRouteChange_NewDeviceDebounced(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	s.Emit(host.Event{Kind: host.EventRouteChange, RouteReason: host.RouteReasonNewDeviceAvailable})
	if sig, ok := waitSignal(t, c, 150*time.Millisecond); ok {
		t.Fatalf("signal %+v arrived before the 300ms debounce", sig)
	}
	sig, ok := waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalRouteChanged {
		t.Fatalf("signal = %+v, want routeChanged after debounce", sig)
	}
}

func TestRouteChange_CategoryChangeValidatesAndPauses(t *testing.T) {
	s := host.NewMockSession()
	s.SetCategoryDirect(host.CategoryPlayback)
	s.SetActiveDirect(true)
	c := New(s)
	defer c.Close()
	c.Configure(Config{Mode: ModeExternal}, false)

	s.SetCategoryDirect(host.CategoryRecord)
	s.Emit(host.Event{Kind: host.EventRouteChange, RouteReason: host.RouteReasonCategoryChange})

	sig, ok := waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalPause {
		t.Fatalf("first signal = %+v, want pause", sig)
	}
	sig, ok = waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalCategoryChanged {
		t.Fatalf("second signal = %+v, want categoryChanged", sig)
	}
	if sig.Validation.Current != host.CategoryRecord {
		t.Errorf("validation current = %v, want record", sig.Validation.Current)
	}
}

func TestMediaServicesReset_EmitsRecover(t *testing.T) {
	s := host.NewMockSession()
	c := New(s)
	defer c.Close()

	s.Emit(host.Event{Kind: host.EventMediaServicesReset})
	sig, ok := waitSignal(t, c, time.Second)
	if !ok || sig.Kind != SignalRecover {
		t.Fatalf("signal = %+v, want recover", sig)
	}
}
