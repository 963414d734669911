package privilege

import "testing"

func TestNewDropperReturnsUsableDropper(t *testing.T) {
	d := NewDropper()
	if d == nil {
		t.Fatal("NewDropper returned nil")
	}

	// An unknown capability name must fail regardless of platform or
	// privilege level: the error paths differ (unrecognized name on
	// Linux, unsupported-platform on others), but both are errors.
	if err := d.Drop("cap_does_not_exist"); err == nil {
		t.Error("Drop(unknown capability) = nil error, want non-nil")
	}
}
