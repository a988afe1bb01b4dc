package hostio

import (
	"time"

	"github.com/kapitanov/chip8vm/internal/vm"
)

// Holds turns key presses from a terminal, which reports no releases, into
// press and release pairs. A key counts as held until no repeat of it has
// arrived for the hold interval.
type Holds struct {
	hold  time.Duration
	until map[vm.Key]time.Time
}

func NewHolds(hold time.Duration) *Holds {
	return &Holds{
		hold:  hold,
		until: make(map[vm.Key]time.Time),
	}
}

// Press records a press at now and reports whether the key was up before.
func (h *Holds) Press(key vm.Key, now time.Time) bool {
	_, held := h.until[key]
	h.until[key] = now.Add(h.hold)
	return !held
}

// Expire returns the keys whose hold ran out at now, in key order, and
// forgets them.
func (h *Holds) Expire(now time.Time) []vm.Key {
	var released []vm.Key
	for key := vm.Key(0); key < vm.KeyCount; key++ {
		until, ok := h.until[key]
		if ok && !now.Before(until) {
			delete(h.until, key)
			released = append(released, key)
		}
	}
	return released
}

// Reset forgets every held key.
func (h *Holds) Reset() {
	clear(h.until)
}
