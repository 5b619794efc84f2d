package reward

import "sync"

// Inbox holds delivered fight results until they are presented to the player.
// It is safe for concurrent use.
type Inbox struct {
	mu      sync.Mutex
	pending []*Result
	hook    func(*Result)
}

// NewInbox returns an empty Inbox. onDeliver, if non-nil, observes every delivery.
func NewInbox(onDeliver func(*Result)) *Inbox {
	return &Inbox{hook: onDeliver}
}

// Deliver appends r to the inbox.
//
// Precondition: r must be non-nil.
func (in *Inbox) Deliver(r *Result) {
	in.mu.Lock()
	in.pending = append(in.pending, r)
	hook := in.hook
	in.mu.Unlock()
	if hook != nil {
		hook(r)
	}
}

// Pending returns the number of undrained results.
func (in *Inbox) Pending() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.pending)
}

// Drain removes and returns every pending result in delivery order.
func (in *Inbox) Drain() []*Result {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := in.pending
	in.pending = nil
	return out
}
