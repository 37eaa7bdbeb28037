package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is a verification run's position in the state machine
type State string

const (
	StateIdle            State = "idle"
	StateExtractingText1 State = "extracting_text_1"
	StateExtractingText2 State = "extracting_text_2"
	StateGemini1         State = "gemini_1"
	StateGemini2         State = "gemini_2"
	StateComparingText   State = "comparing_text"
	StateVisualCompare   State = "visual_compare"
	StateAggregating     State = "aggregating"
	StateCompleted       State = "completed"
	StateFailed          State = "failed"
	StateCancelled       State = "cancelled"
)

// order is the linear sequence of non-terminal states followed by completed
var order = []State{
	StateIdle,
	StateExtractingText1,
	StateExtractingText2,
	StateGemini1,
	StateGemini2,
	StateComparingText,
	StateVisualCompare,
	StateAggregating,
	StateCompleted,
}

var statusText = map[State]string{
	StateIdle:            "",
	StateExtractingText1: "Extracting text from first certificate...",
	StateExtractingText2: "Extracting text from second certificate...",
	StateGemini1:         "Sending first certificate text to Gemini...",
	StateGemini2:         "Sending second certificate text to Gemini...",
	StateComparingText:   "Comparing extracted fields...",
	StateVisualCompare:   "Text comparison done. Performing visual comparison...",
	StateAggregating:     "Aggregating visual comparison results...",
	StateCompleted:       "Completed",
	StateFailed:          "Failed",
	StateCancelled:       "Cancelled",
}

// Status returns the human-readable progress text for the state
func (s State) Status() string {
	return statusText[s]
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

func (s State) rank() int {
	for i, st := range order {
		if st == s {
			return i
		}
	}
	return -1
}

// Event is emitted on every state transition
type Event struct {
	RunID  string    `json:"run_id"`
	State  State     `json:"state"`
	Status string    `json:"status"`
	Error  string    `json:"error,omitempty"` // Set on failed and cancelled
	At     time.Time `json:"at"`
}

// Observer receives transition events. Observers are called synchronously
// from the orchestrating goroutine and must not block for long.
type Observer func(Event)

// Run owns the state of one verification run
type Run struct {
	ID string

	mu        sync.Mutex
	state     State
	statuses  []string
	err       error
	observers []Observer
	log       *slog.Logger
	now       func() time.Time
}

func newRun(log *slog.Logger, now func() time.Time, observers []Observer) *Run {
	return &Run{
		ID:        uuid.NewString(),
		state:     StateIdle,
		observers: observers,
		log:       log,
		now:       now,
	}
}

// State returns the current state
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err returns the error that ended the run, if any
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Statuses returns the status text emitted so far, in order
func (r *Run) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.statuses))
	copy(out, r.statuses)
	return out
}

// advance moves the run forward along the linear sequence. Skipping ahead is
// not allowed: the next state must be the immediate successor.
func (r *Run) advance(to State) error {
	r.mu.Lock()
	from := r.state
	if from.Terminal() {
		r.mu.Unlock()
		return fmt.Errorf("run %s already %s", r.ID, from)
	}
	if to.rank() != from.rank()+1 {
		r.mu.Unlock()
		return fmt.Errorf("illegal transition %s -> %s", from, to)
	}
	r.state = to
	r.statuses = append(r.statuses, to.Status())
	r.mu.Unlock()

	r.log.Info("pipeline transition", "run_id", r.ID, "from", string(from), "to", string(to))
	r.emit(to, nil)
	return nil
}

// end moves the run into failed or cancelled, which are reachable from any non-terminal state
func (r *Run) end(to State, err error) {
	r.mu.Lock()
	from := r.state
	if from.Terminal() {
		r.mu.Unlock()
		return
	}
	r.state = to
	r.err = err
	r.statuses = append(r.statuses, to.Status())
	r.mu.Unlock()

	r.log.Warn("pipeline stopped", "run_id", r.ID, "from", string(from), "to", string(to), "error", err)
	r.emit(to, err)
}

func (r *Run) emit(state State, err error) {
	event := Event{
		RunID:  r.ID,
		State:  state,
		Status: state.Status(),
		At:     r.now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	for _, observe := range r.observers {
		observe(event)
	}
}
