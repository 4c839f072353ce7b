// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Bus Bench - Responder Environment Model
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// Bench stands in for everything on the far side of the shared byte bus:
// the memory port and the two accelerator datapaths. It reassembles the
// byte-serial stream into 32-bit words, decodes the control byte, records
// the transaction, and answers with an acknowledgement carrying the
// responder identity the control byte names.
//
// An acknowledgement is issued no earlier than the cycle after a word's
// final byte is accepted; the configured latency adds on top of that. The
// bench can also withhold bus_ready through a caller-supplied stall
// pattern to exercise the backpressure paths.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package controlgroup

import "github.com/UW-ASIC/control-group/proto/fsm"

// Transaction is one decoded bus word as the responders saw it.
type Transaction struct {
	Op        uint8  // operation tag from the control byte
	Addr      uint32 // 24-bit address field
	Control   uint8  // the raw control byte
	Responder uint8  // identity the acknowledgement was issued with
}

// Bench is the bus-sink and responder model used by the integration tests.
// The zero value responds with a one-cycle acknowledgement latency and no
// stalls.
type Bench struct {
	// AckLatency is the number of extra cycles between a word's final byte
	// and its acknowledgement. The floor of one cycle always applies.
	AckLatency int

	// Stall, when non-nil, is consulted every cycle; returning true
	// withholds bus_ready for that cycle.
	Stall func() bool

	// Transactions is every decoded word, in bus order.
	Transactions []Transaction

	bytes   []uint8
	pending []pendingAck

	// The core samples bus_ready one cycle after the bench drives it, so a
	// byte presented this cycle was accepted under LAST cycle's readiness.
	// stalled registers the complement of the readiness returned last cycle;
	// the zero value means ready, matching power-on.
	stalled bool
}

type pendingAck struct {
	countdown int
	responder uint8
}

// Tick advances the bench one cycle. It samples the bus byte the core drove
// this cycle and returns the bus_ready and acknowledgement signals the core
// should sample next cycle.
func (b *Bench) Tick(data uint8, valid bool) (busReady bool, ack fsm.Ack) {
	// Mature pending acknowledgements before accepting new bytes, so a word
	// completed this cycle cannot be acknowledged before the next.
	for i := range b.pending {
		b.pending[i].countdown--
	}
	if len(b.pending) > 0 && b.pending[0].countdown <= 0 {
		ack = fsm.Ack{Valid: true, Responder: b.pending[0].responder}
		b.pending = b.pending[1:]
	}

	// Capture under the readiness the core sampled for this byte, which is
	// the value returned last cycle, not this cycle's stall decision.
	if valid && !b.stalled {
		b.bytes = append(b.bytes, data)
		if len(b.bytes) == 4 {
			b.complete()
		}
	}

	busReady = b.Stall == nil || !b.Stall()
	b.stalled = !busReady
	return busReady, ack
}

// complete decodes the reassembled word and schedules its acknowledgement.
func (b *Bench) complete() {
	var word uint32
	for i := 3; i >= 0; i-- {
		word = word<<8 | uint32(b.bytes[i])
	}
	b.bytes = b.bytes[:0]

	ctrl := fsm.WordControl(word)
	responder := fsm.ControlMem(ctrl)
	if fsm.ControlOp(ctrl) == fsm.OpCompute {
		responder = fsm.ControlAccel(ctrl)
	}

	b.Transactions = append(b.Transactions, Transaction{
		Op:        fsm.ControlOp(ctrl),
		Addr:      fsm.WordAddr(word),
		Control:   ctrl,
		Responder: responder,
	})

	latency := b.AckLatency
	if latency < 1 {
		latency = 1
	}
	b.pending = append(b.pending, pendingAck{countdown: latency, responder: responder})
}

// Reset discards partial words, pending acknowledgements and the recorded
// transaction history.
func (b *Bench) Reset() {
	b.bytes = b.bytes[:0]
	b.pending = nil
	b.Transactions = nil
	b.stalled = false
}
