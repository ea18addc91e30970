package social

import "fmt"

// BatchStatus is the state of one fan-out batch.
type BatchStatus string

const (
	BatchWorking  BatchStatus = "working"
	BatchComplete BatchStatus = "complete"
	BatchFailed   BatchStatus = "failed"
)

// BatchEvent reports a fan-out batch changing state.
type BatchEvent struct {
	Batch      int
	Recipients int
	Status     BatchStatus
	Message    string
}

// ProgressReporter emits batch events through a buffered channel.
type ProgressReporter struct {
	ch chan BatchEvent
}

// NewProgressReporter creates a ProgressReporter with a buffered channel of
// size 64.
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{ch: make(chan BatchEvent, 64)}
}

// Emit sends an event without blocking. If the channel is full, the event is
// dropped. A nil reporter ignores events.
func (pr *ProgressReporter) Emit(event BatchEvent) {
	if pr == nil {
		return
	}
	select {
	case pr.ch <- event:
	default:
	}
}

// Subscribe returns a read-only channel for consuming events.
func (pr *ProgressReporter) Subscribe() <-chan BatchEvent {
	return pr.ch
}

// Close closes the event channel.
func (pr *ProgressReporter) Close() {
	close(pr.ch)
}

// FormatProgress formats an event as a human-readable status line.
func FormatProgress(event BatchEvent) string {
	switch event.Status {
	case BatchWorking:
		return fmt.Sprintf("  ● batch %d (%d recipients)...", event.Batch, event.Recipients)
	case BatchComplete:
		return fmt.Sprintf("  ✓ batch %d complete", event.Batch)
	case BatchFailed:
		return fmt.Sprintf("  ✗ batch %d failed: %s", event.Batch, event.Message)
	default:
		return fmt.Sprintf("  ? batch %d (unknown status)", event.Batch)
	}
}
