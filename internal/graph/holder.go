package graph

import (
	"sync"
	"sync/atomic"
)

// Holder publishes the live snapshot. Readers call Current and keep the
// pointer for the duration of their work; builds are exclusive.
type Holder struct {
	current  atomic.Pointer[Snapshot]
	building sync.Mutex
}

func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// TryBeginBuild claims the build slot. ok is false while another build runs.
func (h *Holder) TryBeginBuild() (release func(), ok bool) {
	if !h.building.TryLock() {
		return nil, false
	}
	return h.building.Unlock, true
}

// NextVersion is only meaningful while the build slot is held.
func (h *Holder) NextVersion() int64 {
	if cur := h.current.Load(); cur != nil {
		return cur.Version + 1
	}
	return 1
}

func (h *Holder) Publish(s *Snapshot) {
	h.current.Store(s)
}
