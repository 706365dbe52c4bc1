package session

import (
	"fmt"

	"github.com/evenfall/drift/internal/host"
	"github.com/evenfall/drift/internal/logger"
	"go.uber.org/zap"
)

// ValidationResult is the outcome of an external-session check.
type ValidationResult int

const (
	ValidationValid ValidationResult = iota
	ValidationCategoryChanged
)

// Validation describes an external session's compatibility.
type Validation struct {
	Result   ValidationResult
	Current  host.Category
	Expected host.Category
	Warnings []string
}

// compatibleCategories are the externally-managed categories the engine
// can play under.
var compatibleCategories = map[host.Category]bool{
	host.CategoryPlayback:      true,
	host.CategoryPlayAndRecord: true,
	host.CategoryMultiRoute:    true,
}

// validateExternalLocked inspects the session without mutating it. The
// engine never touches category or activation in external mode.
func (c *Coordinator) validateExternalLocked() Validation {
	v := Validation{
		Result:   ValidationValid,
		Current:  c.session.Category(),
		Expected: host.CategoryPlayback,
	}

	if !compatibleCategories[v.Current] {
		v.Result = ValidationCategoryChanged
		return v
	}

	opts := c.session.CategoryOptions()
	if !opts.AllowBluetoothA2DP {
		v.Warnings = append(v.Warnings, "bluetooth output not enabled; A2DP routes will fall back")
	}
	if v.Current == host.CategoryPlayAndRecord && !opts.DefaultToSpeaker {
		v.Warnings = append(v.Warnings, "playAndRecord without defaultToSpeaker routes to the receiver")
	}
	if !c.session.IsActive() {
		v.Warnings = append(v.Warnings, "session is not active")
	}

	for _, w := range v.Warnings {
		logger.Warn("session validation", zap.String("warning", w))
	}
	return v
}

// Describe renders the validation for delegate callbacks and logs.
func (v Validation) Describe() string {
	if v.Result == ValidationCategoryChanged {
		return fmt.Sprintf("category changed to %q (expected %q)", v.Current, v.Expected)
	}
	return "valid"
}
