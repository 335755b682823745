package device

// Progress accumulates the byte counts of a long-running operation and publishes
// them as ProgressEvent notifications.
//
// Maximum may be adjusted while the operation runs, for example when the total
// amount of work is discovered incrementally. Adjust it before calling Advance
// so both values are published together.
type Progress struct {
	Current uint32
	Maximum uint32

	events EventFunc
}

// NewProgress creates a progress tracker bound to the given event sink and
// publishes the initial zero position. A nil events function disables
// publishing but still tracks the counts.
func NewProgress(events EventFunc, maximum uint32) *Progress {
	p := &Progress{Maximum: maximum, events: events}
	p.Emit()

	return p
}

// Advance adds n bytes to the current position and publishes the new state.
func (p *Progress) Advance(n uint32) {
	p.Current += n
	p.Emit()
}

// Emit publishes the current state without changing it.
func (p *Progress) Emit() {
	if p.events != nil {
		p.events(ProgressEvent{Current: p.Current, Maximum: p.Maximum})
	}
}
