// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Instruction Queue Pair - Hardware Reference Model
// ───────────────────────────────────────────────────────────────────────────────────────────────
//
// This Go implementation models the opcode-routed dual instruction queue of the
// crypto accelerator controller. All functions are written to directly translate
// to SystemVerilog combinational/sequential logic.
//
// STRUCTURE:
// ──────────
// Two independent 16-entry circular buffers (one per function lane) fed by a
// single producer interface. The low opcode bit selects the lane at enqueue
// time:
//
//	opcode[0] = 0 → AES lane
//	opcode[0] = 1 → SHA lane
//
// Each lane is a classic synchronous FIFO: a 16-entry RAM addressed by the low
// four bits of a pair of 5-bit pointers. The extra pointer bit disambiguates
// full from empty after wraparound:
//
//	empty: rd == wr
//	full:  (wr - rd) mod 32 == 16
//
// The producer samples the lane's ready (not-full) flag in the same cycle it
// asserts intent to write; a write into a full lane is rejected and dropped,
// never queued or retried. The consumer side is peek-then-commit: the oldest
// entry and its valid flag are continuously visible, and a one-cycle accept
// pulse commits the pop.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package queue

const (
	// AddrWidth is the width of every address field in an instruction.
	AddrWidth = 24

	// AddrMask masks a value to AddrWidth bits.
	AddrMask = (1 << AddrWidth) - 1

	// LaneCapacity is the depth of each instruction lane.
	//
	// Hardware: 16-entry RAM per lane, 74 bits per entry
	// (2-bit opcode + three 24-bit addresses).
	LaneCapacity = 16

	// ptrMask wraps the 5-bit read/write pointers.
	ptrMask = 2*LaneCapacity - 1

	// slotMask extracts the RAM index from a pointer.
	slotMask = LaneCapacity - 1
)

// LaneID names one of the two instruction lanes.
type LaneID uint8

const (
	LaneAES LaneID = 0
	LaneSHA LaneID = 1
)

func (id LaneID) String() string {
	if id == LaneAES {
		return "AES"
	}
	return "SHA"
}

// Instruction is one opcode-tagged work request.
// Size: 74 bits in hardware (2 + 3×24).
//
// Immutable once enqueued; consumed exactly once by the matching resource
// controller. KeyAddr is meaningful for the AES lane only. Opcode bits above
// the routing bit are opaque payload (mode bits) and are carried through the
// pipeline unvalidated.
type Instruction struct {
	Opcode   uint8  // 2 bits - bit 0 routes, bit 1 is opaque mode
	KeyAddr  uint32 // 24 bits - key location (AES only)
	TextAddr uint32 // 24 bits - input text location
	DestAddr uint32 // 24 bits - result destination
}

// Lane returns the queue lane this instruction routes to.
//
// Verilog equivalent:
//
//	wire lane_sel = opcode[0];
//
// The routing decision is made once, here, at the producer boundary and is
// never re-evaluated after enqueue.
func (in Instruction) Lane() LaneID {
	return LaneID(in.Opcode & 1)
}

// Mode returns the opaque opcode payload above the routing bit.
func (in Instruction) Mode() uint8 {
	return in.Opcode >> 1
}

// Lane is one 16-entry instruction FIFO.
//
// Hardware: dual-port RAM (one write port, one read port) plus two 5-bit
// pointer registers. The zero value is an empty lane; no constructor needed.
//
// FIFO ordering (first accepted, first popped) holds across all interleavings
// of push and pop, including pointer wraparound at the capacity boundary.
// A simultaneous push and pop in one cycle advance both pointers
// independently and leave net occupancy unchanged.
type Lane struct {
	slots [LaneCapacity]Instruction
	rd    uint8 // 5 bits - read pointer, one wrap bit
	wr    uint8 // 5 bits - write pointer, one wrap bit
}

// Len returns the current occupancy (0..16).
//
// Verilog equivalent:
//
//	wire [4:0] occupancy = wr_ptr - rd_ptr;  // mod-32 subtraction
func (l *Lane) Len() int {
	return int((l.wr - l.rd) & ptrMask)
}

// Ready reports whether the lane can accept a push this cycle. It is low
// exactly when occupancy equals LaneCapacity.
func (l *Lane) Ready() bool {
	return l.Len() < LaneCapacity
}

// Push attempts to enqueue one instruction. It returns false, without
// altering occupancy or contents, when the lane is full.
//
// One call is one enqueue attempt (edge-triggered intake): the producer is
// expected to sample Ready in the same cycle and treat a false return as a
// drop, not a retry.
func (l *Lane) Push(in Instruction) bool {
	if !l.Ready() {
		return false
	}
	l.slots[l.wr&slotMask] = in
	l.wr = (l.wr + 1) & ptrMask
	return true
}

// Front exposes the oldest unconsumed entry without committing a pop.
// The second return is the valid flag; when it is false the Instruction is
// the zero value and no pointer has moved.
//
// Hardware: the RAM read port is addressed by rd_ptr continuously; valid is
// the not-empty flag.
func (l *Lane) Front() (Instruction, bool) {
	if l.Len() == 0 {
		return Instruction{}, false
	}
	return l.slots[l.rd&slotMask], true
}

// Pop commits the consumption of the front entry. Popping an empty lane
// yields not-valid and moves no pointer.
func (l *Lane) Pop() (Instruction, bool) {
	in, ok := l.Front()
	if !ok {
		return Instruction{}, false
	}
	l.rd = (l.rd + 1) & ptrMask
	return in, true
}

// Reset returns the lane to the power-on empty state.
//
// Synchronous in the modeled RTL: both pointers clear on the same edge.
// Slot contents are don't-care once the pointers collapse.
func (l *Lane) Reset() {
	l.rd = 0
	l.wr = 0
}

// Pair is the dual instruction queue: one lane per function behind a single
// producer interface that routes by opcode.
type Pair struct {
	lanes [2]Lane
}

// Push routes the instruction by its low opcode bit and enqueues it into the
// selected lane. The accept result is the selected lane's, independent of
// the other lane's occupancy.
func (p *Pair) Push(in Instruction) bool {
	return p.lanes[in.Lane()].Push(in)
}

// Ready reports the not-full status of one lane. The producer samples this
// in the cycle it asserts intent to write.
func (p *Pair) Ready(id LaneID) bool {
	return p.lanes[id&1].Ready()
}

// Front peeks at the oldest entry of one lane.
func (p *Pair) Front(id LaneID) (Instruction, bool) {
	return p.lanes[id&1].Front()
}

// Pop commits a pop on one lane.
func (p *Pair) Pop(id LaneID) (Instruction, bool) {
	return p.lanes[id&1].Pop()
}

// Len returns the occupancy of one lane.
func (p *Pair) Len(id LaneID) int {
	return p.lanes[id&1].Len()
}

// Reset clears both lanes.
func (p *Pair) Reset() {
	p.lanes[0].Reset()
	p.lanes[1].Reset()
}

// CompletionSlot is the single-entry handshake buffer that holds a finished
// transaction's destination address until the output consumer accepts it.
//
// Hardware: one 24-bit register plus a full flag. The slot never overflows
// because the producing controller holds its COMPLETE state until the write
// is accepted; Write while full is therefore rejected, not queued.
type CompletionSlot struct {
	dest uint32
	full bool
}

// Write stores a completion record. Succeeds only when the slot is empty.
func (s *CompletionSlot) Write(dest uint32) bool {
	if s.full {
		return false
	}
	s.dest = dest & AddrMask
	s.full = true
	return true
}

// Valid reports whether an unconsumed record is pending.
func (s *CompletionSlot) Valid() bool {
	return s.full
}

// Data exposes the pending record's destination address. Zero when empty.
func (s *CompletionSlot) Data() uint32 {
	if !s.full {
		return 0
	}
	return s.dest
}

// Read clears the slot and returns the record on the same cycle the consumer
// asserts acceptance. Reading an empty slot yields not-valid.
func (s *CompletionSlot) Read() (uint32, bool) {
	if !s.full {
		return 0, false
	}
	s.full = false
	return s.dest, true
}

// Reset empties the slot.
func (s *CompletionSlot) Reset() {
	s.full = false
	s.dest = 0
}
