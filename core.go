// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Control Group - Integrated Dispatch Core
// ═══════════════════════════════════════════════════════════════════════════════════════════════
//
// The request-dispatch core of a dual-function cryptographic accelerator:
//
//	producer ──► queue.Pair ──► fsm.Controller (AES) ──┐
//	                       └──► fsm.Controller (SHA) ──┤
//	                                                   ▼
//	                                          arbiter.Arbiter ──► 8-bit bus
//	                                                   ▲
//	                              acknowledgements ────┘ (steered)
//
//	controller COMPLETE ──► queue.CompletionSlot ──► external consumer
//
// Instructions enter through a single opcode-routed interface and fan out
// into two independent lanes. Each lane feeds one resource controller, which
// sequences the lane's transactions phase by phase over the shared byte bus.
// The arbiter multiplexes the two controllers onto the bus one 32-bit word
// at a time. Finished transactions land in per-lane single-slot completion
// queues drained by the external consumer.
//
// WIRING DISCIPLINE:
// ──────────────────
// Inter-stage signals follow flip-flop wiring: a controller's bus request
// raised on cycle N reaches the arbiter on cycle N+1. Completion slot
// contents are presented registered: a record written on cycle N is visible
// to the consumer on cycle N+1.
//
// A grant reaches its controller as a one-cycle pulse on the arbitration
// cycle. The arbiter's grant line stays high for the remaining beats of the
// transfer, but those beats belong to the word already latched; re-delivering
// the held line would let a controller that has advanced to its next active
// phase mistake the tail of the old grant for acceptance of its new request.
//
// ACKNOWLEDGEMENT STEERING:
// ─────────────────────────
// Accelerator acknowledgements carry the accelerator's identity and are
// delivered to both controllers; responder matching inside the controller
// selects the right one. Memory acknowledgements all carry the one memory
// identity, so the core keeps a ledger of completed memory-bound transfers
// in bus order and delivers each memory acknowledgement only to the
// controller at the ledger's head. Without the ledger a single memory
// acknowledgement would advance both controllers whenever both sit in a
// memory-wait phase.
//
// An acknowledgement arrives no earlier than the cycle after its word's
// final byte: a responder cannot decode a word before holding all four
// bytes. Bench models this with a minimum latency of one cycle.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package controlgroup

import (
	"github.com/UW-ASIC/control-group/proto/arbiter"
	"github.com/UW-ASIC/control-group/proto/fsm"
	"github.com/UW-ASIC/control-group/proto/queue"
)

// Inputs are the core's sampled external signals for one clock edge.
type Inputs struct {
	Valid bool              // producer asserts intent to enqueue
	Instr queue.Instruction // the instruction, routed by its opcode

	BusReady bool    // downstream bus sink readiness
	Ack      fsm.Ack // acknowledgement bus from the responders

	AESCompleteReady bool // consumer drains the AES completion slot
	SHACompleteReady bool // consumer drains the SHA completion slot

	Reset bool // synchronous reset, dominates everything
}

// Outputs are the core's external signals after one clock edge.
type Outputs struct {
	AESReady bool // AES lane can accept an instruction next cycle
	SHAReady bool // SHA lane can accept an instruction next cycle
	Accepted bool // this cycle's enqueue attempt was accepted

	BusData  uint8 // current byte on the shared bus
	BusValid bool

	AESCompleteValid bool
	AESCompleteData  uint32
	SHACompleteValid bool
	SHACompleteData  uint32
}

// Core is the integrated dispatch core. Use New.
type Core struct {
	queues queue.Pair
	ctrl   [2]*fsm.Controller
	arb    *arbiter.Arbiter
	slots  [2]queue.CompletionSlot

	// Registered controller outputs; what the arbiter sees this cycle is
	// what the controllers drove last cycle.
	ctrlOut [2]fsm.Outputs

	// The word and owner of the transfer currently on the bus, latched on
	// the arbitration cycle.
	busWord  uint32
	busOwner queue.LaneID

	// Owners of completed memory-bound transfers, in bus order. The head is
	// the controller the next memory acknowledgement answers.
	memWait []queue.LaneID
}

// New returns a core in its power-on state.
func New() *Core {
	return &Core{
		ctrl: [2]*fsm.Controller{
			fsm.New(fsm.FuncAES),
			fsm.New(fsm.FuncSHA),
		},
		arb: arbiter.New(),
	}
}

// Reset restores the power-on state: both lanes empty, both controllers in
// READY, no bus transfer in flight, both completion slots cleared.
func (c *Core) Reset() {
	c.queues.Reset()
	c.ctrl[0].Reset()
	c.ctrl[1].Reset()
	c.arb.Reset()
	c.slots[0].Reset()
	c.slots[1].Reset()
	c.ctrlOut = [2]fsm.Outputs{}
	c.busWord = 0
	c.busOwner = queue.LaneAES
	c.memWait = nil
}

// ControllerState exposes the phase of one controller, for observation.
func (c *Core) ControllerState(id queue.LaneID) fsm.State {
	return c.ctrl[id&1].State()
}

// QueueLen exposes the occupancy of one lane, for observation.
func (c *Core) QueueLen(id queue.LaneID) int {
	return c.queues.Len(id)
}

// Tick advances the whole core by one clock edge.
func (c *Core) Tick(in Inputs) Outputs {
	if in.Reset {
		c.Reset()
		return Outputs{AESReady: true, SHAReady: true}
	}

	var out Outputs

	// Intake: one call is one enqueue attempt; a push into a full lane is
	// dropped, reflected in Accepted.
	if in.Valid {
		out.Accepted = c.queues.Push(in.Instr)
	}
	out.AESReady = c.queues.Ready(queue.LaneAES)
	out.SHAReady = c.queues.Ready(queue.LaneSHA)

	// Completion drain: the consumer sees the slot contents registered and
	// its ready pulse empties the slot on the same edge.
	out.AESCompleteValid = c.slots[0].Valid()
	out.AESCompleteData = c.slots[0].Data()
	out.SHACompleteValid = c.slots[1].Valid()
	out.SHACompleteData = c.slots[1].Data()
	if in.AESCompleteReady {
		c.slots[0].Read()
	}
	if in.SHACompleteReady {
		c.slots[1].Read()
	}

	// Bus arbitration over last cycle's controller requests.
	arbIn := arbiter.Inputs{
		AESReq:   c.ctrlOut[0].BusReq,
		AESData:  c.ctrlOut[0].BusData,
		SHAReq:   c.ctrlOut[1].BusReq,
		SHAData:  c.ctrlOut[1].BusData,
		BusReady: in.BusReady,
	}
	wasBusy := c.arb.Busy()
	arbOut := c.arb.Tick(arbIn)
	out.BusData = arbOut.Data
	out.BusValid = arbOut.Valid

	granted := arbOut.AESGrant || arbOut.SHAGrant

	// A fresh arbitration latches the winner's word; the grant pulse below
	// fires on this cycle only.
	grantPulse := !wasBusy && granted
	if grantPulse {
		if arbOut.AESGrant {
			c.busOwner, c.busWord = queue.LaneAES, arbIn.AESData
		} else {
			c.busOwner, c.busWord = queue.LaneSHA, arbIn.SHAData
		}
	}

	// On the completing beat, record who the next memory acknowledgement
	// belongs to. Compute words are answered by an accelerator and carry its
	// identity, so they need no ledger entry.
	if granted && !c.arb.Busy() {
		if fsm.ControlOp(fsm.WordControl(c.busWord)) != fsm.OpCompute {
			c.memWait = append(c.memWait, c.busOwner)
		}
	}

	// Steer this cycle's acknowledgement. A memory acknowledgement answers
	// the ledger head alone; one with no outstanding transfer is dropped.
	memAckTo := -1
	if in.Ack.Valid && in.Ack.Responder == fsm.ResponderMem && len(c.memWait) > 0 {
		memAckTo = int(c.memWait[0])
		c.memWait = c.memWait[1:]
	}

	// Controllers: pop the lane front on accept, deliver the grant pulse and
	// the steered acknowledgement, and cascade completion backpressure from
	// the slot.
	for i, id := range [2]queue.LaneID{queue.LaneAES, queue.LaneSHA} {
		var fin fsm.Inputs

		if c.ctrl[i].State() == fsm.StateReady {
			if instr, ok := c.queues.Front(id); ok {
				c.queues.Pop(id)
				fin.ReqValid = true
				fin.Req = instr
			}
		}

		fin.Grant = grantPulse && id == c.busOwner

		if in.Ack.Valid && in.Ack.Responder == fsm.ResponderMem {
			if i == memAckTo {
				fin.Ack = in.Ack
			}
		} else {
			fin.Ack = in.Ack
		}

		if c.ctrlOut[i].CompleteValid && c.slots[i].Write(c.ctrlOut[i].CompleteData) {
			fin.CompleteReady = true
		}

		c.ctrlOut[i] = c.ctrl[i].Tick(fin)
	}

	return out
}
