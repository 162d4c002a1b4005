package registry

import "log"

// Subscribe registers a live event consumer. The returned channel is
// buffered; slow consumers drop events rather than blocking writers.
func (r *Registry) Subscribe() chan Event {
	ch := make(chan Event, 64)
	r.subMu.Lock()
	r.subs[ch] = true
	r.subMu.Unlock()
	return ch
}

// Unsubscribe removes a consumer and closes its channel
func (r *Registry) Unsubscribe(ch chan Event) {
	r.subMu.Lock()
	if r.subs[ch] {
		delete(r.subs, ch)
		close(ch)
	}
	r.subMu.Unlock()
}

func (r *Registry) publish(ev Event) {
	r.subMu.Lock()
	for ch := range r.subs {
		select {
		case ch <- ev:
		default:
			// Consumer is not keeping up; drop rather than block the
			// mutation path.
		}
	}
	r.subMu.Unlock()
}

func logPersistFailure(runID string, err error) {
	log.Printf("Warning: persisting run %s: %v", runID, err)
}
