package pipeline

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testRun(observers ...Observer) *Run {
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return newRun(log, func() time.Time { return fixedNow }, observers)
}

func TestRun_AdvanceInOrder(t *testing.T) {
	var seen []State
	run := testRun(func(e Event) { seen = append(seen, e.State) })

	for _, s := range order[1:] {
		if err := run.advance(s); err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
	}

	if run.State() != StateCompleted {
		t.Errorf("expected completed, got %s", run.State())
	}
	if len(seen) != len(order)-1 {
		t.Errorf("expected %d events, got %d", len(order)-1, len(seen))
	}
}

func TestRun_RejectsSkippedState(t *testing.T) {
	run := testRun()

	if err := run.advance(StateGemini1); err == nil {
		t.Error("expected error skipping from idle to gemini_1")
	}
	if run.State() != StateIdle {
		t.Errorf("expected state unchanged, got %s", run.State())
	}
}

func TestRun_TerminalIsFinal(t *testing.T) {
	var events []Event
	run := testRun(func(e Event) { events = append(events, e) })

	_ = run.advance(StateExtractingText1)
	run.end(StateFailed, errors.New("bad image"))
	run.end(StateCancelled, errors.New("late"))

	if run.State() != StateFailed {
		t.Errorf("expected failed to stick, got %s", run.State())
	}
	if err := run.advance(StateExtractingText2); err == nil {
		t.Error("expected advance after failure to be rejected")
	}
	if run.Err() == nil || run.Err().Error() != "bad image" {
		t.Errorf("expected original error kept, got %v", run.Err())
	}

	last := events[len(events)-1]
	if last.State != StateFailed || last.Error != "bad image" || last.Status != "Failed" {
		t.Errorf("unexpected failure event %+v", last)
	}
}

func TestRun_Statuses(t *testing.T) {
	run := testRun()
	_ = run.advance(StateExtractingText1)
	_ = run.advance(StateExtractingText2)

	statuses := run.Statuses()
	want := []string{
		"Extracting text from first certificate...",
		"Extracting text from second certificate...",
	}
	if len(statuses) != len(want) {
		t.Fatalf("expected %d statuses, got %v", len(want), statuses)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("status %d: expected %q, got %q", i, want[i], statuses[i])
		}
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StateCompleted, StateFailed, StateCancelled} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range order[:len(order)-1] {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
