package fade

import (
	"math"
	"testing"
)

func TestCurve_Endpoints(t *testing.T) {
	curves := []Curve{Linear, EasePower, EaseIn, EaseOut, EqualPower}
	for _, c := range curves {
		if got := c.Apply(0); got != 0 {
			t.Errorf("%v.Apply(0) = %v, want 0", c, got)
		}
		if got := c.Apply(1); got != 1 {
			t.Errorf("%v.Apply(1) = %v, want 1", c, got)
		}
		if got := c.Inverse(0); got != 1 {
			t.Errorf("%v.Inverse(0) = %v, want 1", c, got)
		}
		if got := c.Inverse(1); got != 0 {
			t.Errorf("%v.Inverse(1) = %v, want 0", c, got)
		}
	}
}

func TestCurve_Monotonic(t *testing.T) {
	curves := []Curve{Linear, EasePower, EaseIn, EaseOut, EqualPower}
	for _, c := range curves {
		prev := -1.0
		for i := 0; i <= 100; i++ {
			p := float64(i) / 100
			v := c.Apply(p)
			if v < prev {
				t.Fatalf("%v not monotonic at p=%v: %v < %v", c, p, v, prev)
			}
			if v < 0 || v > 1 {
				t.Fatalf("%v out of range at p=%v: %v", c, p, v)
			}
			prev = v
		}
	}
}

func TestEqualPower_ConstantPower(t *testing.T) {
	for i := 0; i <= 20; i++ {
		p := float64(i) / 20
		in := EqualPower.Apply(p)
		out := EqualPower.Inverse(p)
		total := in*in + out*out
		if math.Abs(total-1) > 1e-9 {
			t.Errorf("power at p=%v: %v, want 1", p, total)
		}
	}
}

func TestCurve_ClampsOutOfRange(t *testing.T) {
	if got := EaseIn.Apply(-0.5); got != 0 {
		t.Errorf("Apply(-0.5) = %v, want 0", got)
	}
	if got := EaseIn.Apply(1.5); got != 1 {
		t.Errorf("Apply(1.5) = %v, want 1", got)
	}
}

func TestParseCurve(t *testing.T) {
	tests := []struct {
		in   string
		want Curve
		ok   bool
	}{
		{"linear", Linear, true},
		{"", Linear, true},
		{"equalPower", EqualPower, true},
		{"equal_power", EqualPower, true},
		{"easeIn", EaseIn, true},
		{"easeOut", EaseOut, true},
		{"easePower", EasePower, true},
		{"bogus", Linear, false},
	}
	for _, tt := range tests {
		got, ok := ParseCurve(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseCurve(%q) = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
