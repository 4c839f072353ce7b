package controlgroup_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	controlgroup "github.com/UW-ASIC/control-group"
	"github.com/UW-ASIC/control-group/proto/fsm"
	"github.com/UW-ASIC/control-group/proto/queue"
)

// harness closes the loop between the core and the bench: the bench consumes
// the bus byte the core drove this cycle and its bus_ready/acknowledgement
// outputs feed the core's next cycle, one register stage in each direction.
type harness struct {
	core  *controlgroup.Core
	bench *controlgroup.Bench

	busReady bool
	ack      fsm.Ack

	drainAES bool
	drainSHA bool

	aesDone []uint32
	shaDone []uint32
}

func newHarness() *harness {
	return &harness{
		core:     controlgroup.New(),
		bench:    &controlgroup.Bench{},
		busReady: true,
		drainAES: true,
		drainSHA: true,
	}
}

func (h *harness) cycle(in controlgroup.Inputs) controlgroup.Outputs {
	in.BusReady = h.busReady
	in.Ack = h.ack
	in.AESCompleteReady = h.drainAES
	in.SHACompleteReady = h.drainSHA

	out := h.core.Tick(in)
	h.busReady, h.ack = h.bench.Tick(out.BusData, out.BusValid)

	if out.AESCompleteValid && h.drainAES {
		h.aesDone = append(h.aesDone, out.AESCompleteData)
	}
	if out.SHACompleteValid && h.drainSHA {
		h.shaDone = append(h.shaDone, out.SHACompleteData)
	}
	return out
}

func (h *harness) push(in queue.Instruction) controlgroup.Outputs {
	return h.cycle(controlgroup.Inputs{Valid: true, Instr: in})
}

func (h *harness) run(cycles int) {
	for i := 0; i < cycles; i++ {
		h.cycle(controlgroup.Inputs{})
	}
}

func ops(txns []controlgroup.Transaction) []uint8 {
	var out []uint8
	for _, t := range txns {
		out = append(out, t.Op)
	}
	return out
}

// byFunction splits recorded transactions by the issuing controller, using
// the accelerator identity every controller packs into its control bytes.
func byFunction(txns []controlgroup.Transaction) (aes, sha []controlgroup.Transaction) {
	for _, t := range txns {
		if fsm.ControlAccel(t.Control) == fsm.ResponderAES {
			aes = append(aes, t)
		} else {
			sha = append(sha, t)
		}
	}
	return aes, sha
}

var _ = Describe("Core", func() {
	var h *harness

	aes := queue.Instruction{Opcode: 0b00, KeyAddr: 0x001000, TextAddr: 0x002000, DestAddr: 0x003000}
	sha := queue.Instruction{Opcode: 0b01, TextAddr: 0x004000, DestAddr: 0x005000}

	BeforeEach(func() {
		h = newHarness()
	})

	It("accepts instructions and reports lane readiness", func() {
		out := h.push(aes)
		Expect(out.Accepted).To(BeTrue())
		Expect(out.AESReady).To(BeTrue())
		Expect(out.SHAReady).To(BeTrue())
	})

	It("completes an AES transaction end to end", func() {
		h.push(aes)
		h.run(100)

		Expect(h.aesDone).To(Equal([]uint32{aes.DestAddr}))
		Expect(h.shaDone).To(BeEmpty())

		txns := h.bench.Transactions
		Expect(ops(txns)).To(Equal([]uint8{
			fsm.OpReadKey, fsm.OpReadText, fsm.OpCompute, fsm.OpWrite,
		}))
		Expect(txns[0].Addr).To(Equal(aes.KeyAddr))
		Expect(txns[1].Addr).To(Equal(aes.TextAddr))
		Expect(txns[3].Addr).To(Equal(aes.DestAddr))

		Expect(txns[0].Responder).To(Equal(fsm.ResponderMem))
		Expect(txns[2].Responder).To(Equal(fsm.ResponderAES))
		Expect(txns[3].Responder).To(Equal(fsm.ResponderMem))
	})

	It("completes a SHA transaction without a key phase", func() {
		h.push(sha)
		h.run(100)

		Expect(h.shaDone).To(Equal([]uint32{sha.DestAddr}))

		txns := h.bench.Transactions
		Expect(ops(txns)).To(Equal([]uint8{
			fsm.OpReadText, fsm.OpCompute, fsm.OpWrite,
		}))
		Expect(txns[0].Addr).To(Equal(sha.TextAddr))
		Expect(txns[1].Responder).To(Equal(fsm.ResponderSHA))
	})

	It("answers each controller's memory reads independently", func() {
		// Both controllers sit in memory-wait phases at the same time here;
		// a memory acknowledgement must advance only the controller whose
		// word the bus actually carried.
		h.push(aes)
		h.push(sha)
		h.run(400)

		Expect(h.aesDone).To(Equal([]uint32{aes.DestAddr}))
		Expect(h.shaDone).To(Equal([]uint32{sha.DestAddr}))

		aesTxns, shaTxns := byFunction(h.bench.Transactions)
		Expect(ops(aesTxns)).To(Equal([]uint8{
			fsm.OpReadKey, fsm.OpReadText, fsm.OpCompute, fsm.OpWrite,
		}))
		Expect(ops(shaTxns)).To(Equal([]uint8{
			fsm.OpReadText, fsm.OpCompute, fsm.OpWrite,
		}))
		Expect(aesTxns[2].Responder).To(Equal(fsm.ResponderAES))
		Expect(shaTxns[1].Responder).To(Equal(fsm.ResponderSHA))
	})

	It("preserves per-lane FIFO completion order", func() {
		var wantAES, wantSHA []uint32
		for n := uint32(1); n <= 4; n++ {
			a := aes
			a.DestAddr = n * 0x000100
			s := sha
			s.DestAddr = n * 0x010000
			h.push(a)
			h.push(s)
			wantAES = append(wantAES, a.DestAddr)
			wantSHA = append(wantSHA, s.DestAddr)
		}

		h.run(1000)

		Expect(h.aesDone).To(Equal(wantAES))
		Expect(h.shaDone).To(Equal(wantSHA))
	})

	It("services both lanes under sustained contention", func() {
		for i := 0; i < 3; i++ {
			h.push(aes)
			h.push(sha)
		}
		h.run(800)

		Expect(h.aesDone).To(HaveLen(3))
		Expect(h.shaDone).To(HaveLen(3))
	})

	It("tolerates bus stalls without corrupting transactions", func() {
		n := 0
		h.bench.Stall = func() bool {
			n++
			return n%3 == 0
		}

		h.push(aes)
		h.push(sha)
		h.run(600)

		Expect(h.aesDone).To(Equal([]uint32{aes.DestAddr}))
		Expect(h.shaDone).To(Equal([]uint32{sha.DestAddr}))

		// The words on the bus, not just the completion addresses, must
		// survive the stalls intact.
		aesTxns, shaTxns := byFunction(h.bench.Transactions)
		Expect(ops(aesTxns)).To(Equal([]uint8{
			fsm.OpReadKey, fsm.OpReadText, fsm.OpCompute, fsm.OpWrite,
		}))
		Expect(ops(shaTxns)).To(Equal([]uint8{
			fsm.OpReadText, fsm.OpCompute, fsm.OpWrite,
		}))
		Expect(aesTxns[0].Addr).To(Equal(aes.KeyAddr))
		Expect(aesTxns[1].Addr).To(Equal(aes.TextAddr))
		Expect(aesTxns[3].Addr).To(Equal(aes.DestAddr))
		Expect(shaTxns[0].Addr).To(Equal(sha.TextAddr))
		Expect(shaTxns[2].Addr).To(Equal(sha.DestAddr))
	})

	It("rejects pushes into a full lane and drops them", func() {
		// A permanent stall parks the AES controller in its first phase, so
		// pushed instructions pile up behind the one it already popped.
		h.bench.Stall = func() bool { return true }

		accepted := 0
		for i := 0; i < 20; i++ {
			in := aes
			in.DestAddr = uint32(i)
			out := h.push(in)
			if out.Accepted {
				accepted++
			}
		}

		// One in the controller plus a full lane behind it.
		Expect(accepted).To(Equal(queue.LaneCapacity + 1))
		Expect(h.core.QueueLen(queue.LaneAES)).To(Equal(queue.LaneCapacity))

		// Release the bus: every accepted instruction, and only those,
		// completes.
		h.bench.Stall = nil
		h.run(2500)
		Expect(h.aesDone).To(HaveLen(queue.LaneCapacity + 1))
	})

	It("holds a completion record under consumer backpressure", func() {
		h.drainAES = false
		h.push(aes)
		h.run(60)

		for i := 0; i < 10; i++ {
			out := h.cycle(controlgroup.Inputs{})
			Expect(out.AESCompleteValid).To(BeTrue())
			Expect(out.AESCompleteData).To(Equal(aes.DestAddr))
		}

		h.drainAES = true
		h.run(2)
		Expect(h.aesDone).To(Equal([]uint32{aes.DestAddr}))

		out := h.cycle(controlgroup.Inputs{})
		Expect(out.AESCompleteValid).To(BeFalse())
	})

	It("recovers from a synchronous reset", func() {
		for i := 0; i < 3; i++ {
			h.push(aes)
			h.push(sha)
		}
		h.run(10)

		out := h.cycle(controlgroup.Inputs{Reset: true})
		h.bench.Reset()
		h.ack = fsm.Ack{}
		h.busReady = true
		h.aesDone = nil
		h.shaDone = nil

		Expect(out.AESReady).To(BeTrue())
		Expect(out.SHAReady).To(BeTrue())
		Expect(h.core.QueueLen(queue.LaneAES)).To(BeZero())
		Expect(h.core.QueueLen(queue.LaneSHA)).To(BeZero())
		Expect(h.core.ControllerState(queue.LaneAES)).To(Equal(fsm.StateReady))
		Expect(h.core.ControllerState(queue.LaneSHA)).To(Equal(fsm.StateReady))

		// The core is fully usable after reset.
		h.push(sha)
		h.run(100)
		Expect(h.shaDone).To(Equal([]uint32{sha.DestAddr}))
	})
})

var _ = Describe("Bench", func() {
	It("names the responder the control byte asks for", func() {
		b := &controlgroup.Bench{}

		send := func(word uint32) {
			for i := 0; i < 4; i++ {
				b.Tick(uint8(word>>(8*i)), true)
			}
		}

		ctrl := fsm.OpCompute<<6 | fsm.ResponderSHA<<4 | fsm.ResponderMem<<2
		send(fsm.Word(0, ctrl))
		Expect(b.Transactions).To(HaveLen(1))
		Expect(b.Transactions[0].Responder).To(Equal(fsm.ResponderSHA))

		ctrl = fsm.OpWrite<<6 | fsm.ResponderSHA<<4 | fsm.ResponderMem<<2
		send(fsm.Word(0x123456, ctrl))
		Expect(b.Transactions[1].Responder).To(Equal(fsm.ResponderMem))
		Expect(b.Transactions[1].Addr).To(Equal(uint32(0x123456)))
	})

	It("reassembles bytes under the readiness it granted the cycle before", func() {
		// The core samples bus_ready one cycle after the bench drives it, so
		// a byte on the bus this cycle was accepted under LAST cycle's
		// readiness. The bench must capture under that same value or its
		// reassembly drifts whenever the ready line toggles mid-word.
		b := &controlgroup.Bench{}
		stall := false
		b.Stall = func() bool {
			stall = !stall
			return stall
		}

		ctrl := fsm.OpWrite<<6 | fsm.ResponderAES<<4 | fsm.ResponderMem<<2
		word := fsm.Word(0xA5C3F0, ctrl)

		ready := true
		i := 0
		for cycles := 0; i < 4 && cycles < 64; cycles++ {
			accepted := ready
			ready, _ = b.Tick(uint8(word>>(8*i)), true)
			if accepted {
				i++
			}
		}

		Expect(b.Transactions).To(HaveLen(1))
		Expect(b.Transactions[0].Addr).To(Equal(uint32(0xA5C3F0)))
		Expect(b.Transactions[0].Op).To(Equal(fsm.OpWrite))
	})

	It("acknowledges no earlier than the cycle after the final byte", func() {
		b := &controlgroup.Bench{}
		ctrl := fsm.OpReadText<<6 | fsm.ResponderAES<<4 | fsm.ResponderMem<<2
		word := fsm.Word(0x002000, ctrl)

		var ack fsm.Ack
		for i := 0; i < 4; i++ {
			_, ack = b.Tick(uint8(word>>(8*i)), true)
			Expect(ack.Valid).To(BeFalse())
		}

		_, ack = b.Tick(0, false)
		Expect(ack.Valid).To(BeTrue())
		Expect(ack.Responder).To(Equal(fsm.ResponderMem))
	})
})
