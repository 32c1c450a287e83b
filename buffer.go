package sprite

import (
	"runtime"
	"sync/atomic"
)

// DefaultCapacity is the initial slot count of a command buffer.
const DefaultCapacity = 1024

// slab is one fixed-size generation of a CommandBuffer's storage.
//
// Slot i of a slab is written by the single producer that claimed index i.
// written counts finished writes below len(cmds), including the slots
// copied in from the previous slab.
type slab struct {
	cmds    []DrawCommand
	written atomic.Int64
	sealed  atomic.Bool
}

// SlotHandle refers to a pushed command. It is invalidated by Reset.
type SlotHandle struct {
	epoch uint32
	index uint32
}

// Index returns the slot index, which equals the push position.
func (h SlotHandle) Index() int { return int(h.index) }

// CommandBuffer is an append-only sequence of DrawCommands that any number
// of goroutines can push to concurrently.
//
// A push claims its slot with one atomic add and writes it in place. When
// the slab is full, the first producer to notice seals it, waits for all
// claimed slots to be written, copies them into a slab of twice the size and
// publishes it. Producers that overflowed concurrently wait for the new slab
// and write their already claimed index there.
//
// Drain and Reset are consumer operations and must not run concurrently
// with Push. Layer arranges this with double buffering.
type CommandBuffer struct {
	next  atomic.Int64 // next index to claim
	slab  atomic.Pointer[slab]
	epoch atomic.Uint32
	grows atomic.Uint64

	max  int    // largest allowed capacity, 0 for no limit
	name string // for log records
}

// NewCommandBuffer creates a buffer with the given initial capacity.
// maxCapacity bounds growth; pushes beyond it fail with ErrCapacityExceeded.
// A maxCapacity of zero means unbounded.
func NewCommandBuffer(capacity, maxCapacity int) *CommandBuffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if maxCapacity > 0 && capacity > maxCapacity {
		capacity = maxCapacity
	}
	b := &CommandBuffer{max: maxCapacity}
	b.slab.Store(&slab{cmds: make([]DrawCommand, capacity)})
	return b
}

// Push appends cmd. It is safe for concurrent use and only blocks while
// the buffer grows.
func (b *CommandBuffer) Push(cmd DrawCommand) (SlotHandle, error) {
	s := b.slab.Load()
	i := b.next.Add(1) - 1
	h := SlotHandle{epoch: b.epoch.Load(), index: uint32(i)}
	if i < int64(len(s.cmds)) {
		s.cmds[i] = cmd
		s.written.Add(1)
		return h, nil
	}
	return h, b.pushSlow(i, cmd)
}

// pushSlow writes cmd at the claimed index i once a slab large enough
// exists, growing the buffer if this producer is the first to need it.
func (b *CommandBuffer) pushSlow(i int64, cmd DrawCommand) error {
	if b.max > 0 && i >= int64(b.max) {
		return &CapacityError{Layer: b.name, Cap: b.max}
	}
	for {
		s := b.slab.Load()
		if i < int64(len(s.cmds)) {
			s.cmds[i] = cmd
			s.written.Add(1)
			return nil
		}
		if s.sealed.CompareAndSwap(false, true) {
			b.grow(s, i)
			continue
		}
		for b.slab.Load() == s {
			runtime.Gosched()
		}
	}
}

// grow replaces the sealed slab s with one that can hold index i.
func (b *CommandBuffer) grow(s *slab, i int64) {
	n := int64(len(s.cmds))
	size := n * 2
	for size <= i {
		size *= 2
	}
	if b.max > 0 && size > int64(b.max) {
		size = int64(b.max)
	}

	// Every index below n has been claimed; wait for the writes to land.
	for s.written.Load() < n {
		runtime.Gosched()
	}

	ns := &slab{cmds: make([]DrawCommand, size)}
	copy(ns.cmds, s.cmds)
	ns.written.Store(n)
	b.slab.Store(ns)
	b.grows.Add(1)

	Logger().Debug("sprite: command buffer grown",
		"layer", b.name, "from", n, "to", size)
}

// Len returns the number of claimed slots, capped at the capacity.
func (b *CommandBuffer) Len() int {
	n := b.next.Load()
	if c := int64(len(b.slab.Load().cmds)); n > c {
		n = c
	}
	return int(n)
}

// Cap returns the current capacity.
func (b *CommandBuffer) Cap() int {
	return len(b.slab.Load().cmds)
}

// Grows returns how many times the buffer has grown.
func (b *CommandBuffer) Grows() uint64 {
	return b.grows.Load()
}

// Drain returns the committed commands in slot order. The returned slice
// aliases the buffer and is valid until the next Reset.
func (b *CommandBuffer) Drain() []DrawCommand {
	s := b.slab.Load()
	n := b.next.Load()
	if n > int64(len(s.cmds)) {
		n = int64(len(s.cmds))
	}
	for s.written.Load() < n {
		runtime.Gosched()
	}
	return s.cmds[:n:n]
}

// Reset empties the buffer, keeping its capacity, and invalidates all
// outstanding handles.
func (b *CommandBuffer) Reset() {
	s := b.slab.Load()
	b.next.Store(0)
	s.written.Store(0)
	s.sealed.Store(false)
	b.epoch.Add(1)
}

// At returns the command behind h, if h is still valid.
func (b *CommandBuffer) At(h SlotHandle) (DrawCommand, bool) {
	if h.epoch != b.epoch.Load() || int(h.index) >= b.Len() {
		return DrawCommand{}, false
	}
	return b.slab.Load().cmds[h.index], true
}
