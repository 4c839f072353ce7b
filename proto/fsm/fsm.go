// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Resource Controller - Hardware Reference Model
// ───────────────────────────────────────────────────────────────────────────────────────────────
//
// One finite state machine per accelerator function, sequencing the fixed
// transaction walk of the dispatch core:
//
//	AES: READY → RDKEY → WAIT_RDKEY → RDTEXT → WAIT_RDTXT → HASHOP →
//	     WAIT_HASHOP → MEMWR → WAIT_MEMWR → COMPLETE → READY
//	SHA: READY → RDTEXT → WAIT_RDTXT → HASHOP → WAIT_HASHOP → MEMWR →
//	     WAIT_MEMWR → COMPLETE → READY          (no key-read phase)
//
// Both walks are one parameterized Controller type; the function parameter
// selects the first active phase and the accelerator responder identity.
// The transition table is total: every (state, input-condition) pair is
// mapped, with no implicit fallthrough.
//
// PHASE PROTOCOL:
// ───────────────
// Each active phase (RDKEY, RDTEXT, HASHOP, MEMWR) re-asserts its bus
// request with the phase's address/control word every cycle until the
// arbiter grants; the request never drops or desynchronizes under arbiter
// backpressure. On grant the controller advances to the matching WAIT_*
// phase and waits for an acknowledgement carrying the expected responder
// identity (memory for the reads and the write, the function's accelerator
// for HASHOP). A wrong-responder acknowledgement is ignored, not reported;
// the controller waits indefinitely and only a synchronous reset aborts.
//
// After the write acknowledgement the controller holds COMPLETE, asserting
// completion-valid with the destination address, until the completion
// consumer asserts readiness; only then does it return to READY.
//
// Hardware: 4-bit state register, 74-bit instruction latch, one 32-bit
// output mux.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package fsm

import "github.com/UW-ASIC/control-group/proto/queue"

// Responder identities carried in acknowledgements and control words.
//
// Verilog equivalent:
//
//	localparam MEM_ID       = 2'b00;
//	localparam SHA_ACCEL_ID = 2'b01;
//	localparam AES_ACCEL_ID = 2'b10;
const (
	ResponderMem uint8 = 0b00
	ResponderSHA uint8 = 0b01
	ResponderAES uint8 = 0b10
)

// Operation tags packed into bits 7:6 of the control byte.
const (
	OpReadKey  uint8 = 0b00
	OpReadText uint8 = 0b01
	OpCompute  uint8 = 0b10
	OpWrite    uint8 = 0b11
)

// Word composes a bus transaction word: {address[23:0], control[7:0]}.
func Word(addr uint32, ctrl uint8) uint32 {
	return (addr&queue.AddrMask)<<8 | uint32(ctrl)
}

// WordAddr extracts the address field of a bus transaction word.
func WordAddr(w uint32) uint32 {
	return (w >> 8) & queue.AddrMask
}

// WordControl extracts the control byte of a bus transaction word.
func WordControl(w uint32) uint8 {
	return uint8(w)
}

// Control byte layout: {op[1:0], accel_id[1:0], mem_id[1:0], mode[1:0]}.
func ControlOp(ctrl uint8) uint8    { return ctrl >> 6 }
func ControlAccel(ctrl uint8) uint8 { return (ctrl >> 4) & 0b11 }
func ControlMem(ctrl uint8) uint8   { return (ctrl >> 2) & 0b11 }
func ControlMode(ctrl uint8) uint8  { return ctrl & 0b11 }

// Ack is the single-cycle acknowledgement bus: {valid, responder_id[1:0]}.
type Ack struct {
	Valid     bool
	Responder uint8
}

// Function selects which accelerator a controller sequences for.
type Function uint8

const (
	FuncAES Function = iota
	FuncSHA
)

func (f Function) String() string {
	if f == FuncAES {
		return "AES"
	}
	return "SHA"
}

// AccelID returns the responder identity of this function's accelerator.
func (f Function) AccelID() uint8 {
	if f == FuncAES {
		return ResponderAES
	}
	return ResponderSHA
}

// State enumerates the controller phases. The SHA walk never enters the
// key-read states; the enumeration is shared so the transition table is
// written once.
type State uint8

const (
	StateReady State = iota
	StateReadKey
	StateWaitReadKey
	StateReadText
	StateWaitReadText
	StateHashOp
	StateWaitHashOp
	StateMemWrite
	StateWaitMemWrite
	StateComplete
)

var stateNames = [...]string{
	"READY", "RDKEY", "WAIT_RDKEY", "RDTEXT", "WAIT_RDTXT",
	"HASHOP", "WAIT_HASHOP", "MEMWR", "WAIT_MEMWR", "COMPLETE",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// Inputs are the controller's sampled signals for one clock edge.
type Inputs struct {
	ReqValid      bool              // instruction available at the queue front
	Req           queue.Instruction // the instruction, latched on accept
	Grant         bool              // arbiter grant for this controller
	Ack           Ack               // acknowledgement delivered to this controller
	CompleteReady bool              // completion consumer readiness
}

// Outputs are the controller's outputs for the cycle after the edge.
type Outputs struct {
	ReqReady      bool   // controller sits in READY and will accept
	BusReq        bool   // arbiter request, held through active phases
	BusData       uint32 // {address, control}, meaningful while BusReq
	CompleteValid bool   // completion record pending
	CompleteData  uint32 // 24-bit destination address
}

// Controller is one resource controller instance.
type Controller struct {
	fn    Function
	state State
	instr queue.Instruction // latched for the transaction duration
}

// New returns a controller for the given function, in READY.
func New(fn Function) *Controller {
	return &Controller{fn: fn}
}

// Function returns the function this controller sequences for.
func (c *Controller) Function() Function {
	return c.fn
}

// State returns the current phase.
func (c *Controller) State() State {
	return c.state
}

// Reset synchronously forces READY from any state, deasserts any
// outstanding bus request and discards the in-flight instruction context.
// The interrupted transaction is not resumed or reported.
func (c *Controller) Reset() {
	c.state = StateReady
	c.instr = queue.Instruction{}
}

// firstActive is the entry phase of a transaction: only AES reads a key.
func (c *Controller) firstActive() State {
	if c.fn == FuncAES {
		return StateReadKey
	}
	return StateReadText
}

// Tick advances the controller by one clock edge and returns the outputs of
// the state it lands in.
func (c *Controller) Tick(in Inputs) Outputs {
	switch c.state {
	case StateReady:
		if in.ReqValid {
			c.instr = in.Req
			c.state = c.firstActive()
		}

	case StateReadKey:
		if in.Grant {
			c.state = StateWaitReadKey
		}
	case StateWaitReadKey:
		if in.Ack.Valid && in.Ack.Responder == ResponderMem {
			c.state = StateReadText
		}

	case StateReadText:
		if in.Grant {
			c.state = StateWaitReadText
		}
	case StateWaitReadText:
		if in.Ack.Valid && in.Ack.Responder == ResponderMem {
			c.state = StateHashOp
		}

	case StateHashOp:
		if in.Grant {
			c.state = StateWaitHashOp
		}
	case StateWaitHashOp:
		if in.Ack.Valid && in.Ack.Responder == c.fn.AccelID() {
			c.state = StateMemWrite
		}

	case StateMemWrite:
		if in.Grant {
			c.state = StateWaitMemWrite
		}
	case StateWaitMemWrite:
		if in.Ack.Valid && in.Ack.Responder == ResponderMem {
			c.state = StateComplete
		}

	case StateComplete:
		if in.CompleteReady {
			c.state = StateReady
		}
	}

	return c.outputs()
}

// outputs derives the phase outputs from the current state and latch.
func (c *Controller) outputs() Outputs {
	var out Outputs
	switch c.state {
	case StateReady:
		out.ReqReady = true
	case StateReadKey:
		out.BusReq = true
		out.BusData = Word(c.instr.KeyAddr, c.control(OpReadKey))
	case StateReadText:
		out.BusReq = true
		out.BusData = Word(c.instr.TextAddr, c.control(OpReadText))
	case StateHashOp:
		// The compute invocation carries no memory address; the mode bits
		// in the control byte parameterize the accelerator.
		out.BusReq = true
		out.BusData = Word(0, c.control(OpCompute))
	case StateMemWrite:
		out.BusReq = true
		out.BusData = Word(c.instr.DestAddr, c.control(OpWrite))
	case StateComplete:
		out.CompleteValid = true
		out.CompleteData = c.instr.DestAddr & queue.AddrMask
	}
	return out
}

// control composes the control byte for one operation. The instruction's
// opaque mode bits ride in the low bits, unvalidated.
func (c *Controller) control(op uint8) uint8 {
	return op<<6 | c.fn.AccelID()<<4 | ResponderMem<<2 | c.instr.Mode()&0b11
}
