package alerting

import (
	"errors"
	"testing"
)

func TestParseLatchMode(t *testing.T) {
	mode, err := ParseLatchMode("")
	if err != nil || mode != LatchModeCompareAndSet {
		t.Fatalf("expected cas default, got %q err=%v", mode, err)
	}
	mode, err = ParseLatchMode("notify-then-set")
	if err != nil || mode != LatchModeNotifyThenSet {
		t.Fatalf("expected notify-then-set, got %q err=%v", mode, err)
	}
	if _, err := ParseLatchMode("eventually"); !errors.Is(err, ErrInvalidLatchMode) {
		t.Fatalf("expected ErrInvalidLatchMode, got %v", err)
	}
}
