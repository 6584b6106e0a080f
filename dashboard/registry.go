package dashboard

import (
	"sort"
	"sync"
)

// Handle records that a dashboard is active in a channel and owns its task.
type Handle struct {
	MessageId int
	task      Task
	gen       uint64
}

type entry struct {
	handle  Handle
	pending bool
}

// Registry holds at most one handle per channel. Every method takes the one
// mutex; callers never hold it across network calls.
type Registry struct {
	mu      sync.Mutex
	entries map[int64]*entry
	nextGen uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[int64]*entry)}
}

// Reserve claims channel for a registration in progress. It fails if the
// channel already has a handle or another reservation. The returned
// generation identifies the reservation in Commit and Release.
func (r *Registry) Reserve(channel int64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[channel]; ok {
		return 0, false
	}
	r.nextGen++
	r.entries[channel] = &entry{pending: true, handle: Handle{gen: r.nextGen}}
	return r.nextGen, true
}

// Commit turns a reservation into an active handle.
func (r *Registry) Commit(channel int64, gen uint64, messageId int, task Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[channel]
	if !ok || !e.pending || e.handle.gen != gen {
		return false
	}
	e.pending = false
	e.handle.MessageId = messageId
	e.handle.task = task
	return true
}

// Release drops a reservation that was never committed.
func (r *Registry) Release(channel int64, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[channel]
	if ok && e.pending && e.handle.gen == gen {
		delete(r.entries, channel)
	}
}

// Get returns the active handle for channel. Reservations are not visible.
func (r *Registry) Get(channel int64) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[channel]
	if !ok || e.pending {
		return Handle{}, false
	}
	return e.handle, true
}

// Has reports whether channel has a handle or a reservation.
func (r *Registry) Has(channel int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[channel]
	return ok
}

// SetMessage points the active handle at a new message.
func (r *Registry) SetMessage(channel int64, gen uint64, messageId int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[channel]
	if !ok || e.pending || e.handle.gen != gen {
		return false
	}
	e.handle.MessageId = messageId
	return true
}

// Remove deletes the active handle for channel and cancels its task.
func (r *Registry) Remove(channel int64) (Handle, bool) {
	return r.remove(channel, func(Handle) bool { return true })
}

// RemoveIf deletes the active handle only if it is still generation gen, so a
// stale task cannot remove a handle that replaced it.
func (r *Registry) RemoveIf(channel int64, gen uint64) (Handle, bool) {
	return r.remove(channel, func(h Handle) bool { return h.gen == gen })
}

// RemoveIfMessage is RemoveIf that also requires the handle to still point at
// messageId. A relocation keeps the generation but moves the message.
func (r *Registry) RemoveIfMessage(channel int64, gen uint64, messageId int) (Handle, bool) {
	return r.remove(channel, func(h Handle) bool { return h.gen == gen && h.MessageId == messageId })
}

func (r *Registry) remove(channel int64, match func(Handle) bool) (Handle, bool) {
	r.mu.Lock()
	e, ok := r.entries[channel]
	if !ok || e.pending || !match(e.handle) {
		r.mu.Unlock()
		return Handle{}, false
	}
	delete(r.entries, channel)
	r.mu.Unlock()
	if e.handle.task != nil {
		e.handle.task.Cancel()
	}
	return e.handle, true
}

// Channels lists channels with an active handle in ascending order.
func (r *Registry) Channels() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	channels := make([]int64, 0, len(r.entries))
	for channel, e := range r.entries {
		if !e.pending {
			channels = append(channels, channel)
		}
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })
	return channels
}

func (r *Registry) Len() int {
	return len(r.Channels())
}
