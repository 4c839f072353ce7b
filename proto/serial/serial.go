// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Serial Front End - Hardware Reference Model
// ───────────────────────────────────────────────────────────────────────────────────────────────
//
// Bit-level host interface of the dispatch core. Two independent shift
// registers:
//
//	Deserializer  host → core   74-bit instruction frame, MSB first
//	Serializer    core → host   24-bit completion address, MSB first
//
// INSTRUCTION FRAME:
// ──────────────────
// The frame packs the opcode above the three addresses, most significant
// bit shifted first:
//
//	{opcode[1:0], key_addr[23:0], text_addr[23:0], dest_addr[23:0]}
//
// bit 73 arrives first, bit 0 last. One call to ShiftIn is one shift tick;
// on the 74th bit of a frame the decoded instruction is returned and the
// register clears for the next frame. There is no framing recovery beyond
// Reset: the bit count is the only frame delimiter.
//
// RESULT STREAM:
// ──────────────
// The serializer loads one 24-bit destination address at a time and emits
// it MSB first, one bit per shift tick. It is busy (ready low) for exactly
// 24 shift ticks per load; a load attempt while busy is rejected.
//
// Hardware: 74-bit and 24-bit shift registers, 7-bit and 5-bit counters.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package serial

import "github.com/UW-ASIC/control-group/proto/queue"

const (
	// OpcodeBits is the width of the opcode field at the top of the frame.
	OpcodeBits = 2

	// FrameBits is the instruction frame width in shift ticks.
	FrameBits = OpcodeBits + 3*queue.AddrWidth

	// ResultBits is the result frame width in shift ticks.
	ResultBits = queue.AddrWidth
)

// Deserializer recovers instruction frames from a serial bit stream. The
// zero value is an empty register ready for the first frame.
type Deserializer struct {
	// The 74-bit shift register, split across two words. hi holds the ten
	// most recently shifted of the upper bits; lo the lower 64.
	hi, lo uint64
	count  uint8
}

// Pending returns the number of bits accumulated toward the current frame.
func (d *Deserializer) Pending() int {
	return int(d.count)
}

// Reset discards any partial frame.
func (d *Deserializer) Reset() {
	d.hi, d.lo, d.count = 0, 0, 0
}

// ShiftIn clocks one bit (LSB of b) into the register. On the final bit of
// a frame it returns the decoded instruction with ok set and clears the
// register; otherwise ok is false.
func (d *Deserializer) ShiftIn(b uint8) (queue.Instruction, bool) {
	d.hi = d.hi<<1 | d.lo>>63
	d.lo = d.lo<<1 | uint64(b&1)
	d.count++
	if d.count < FrameBits {
		return queue.Instruction{}, false
	}

	// Frame complete. Bits 73:64 sit in hi, bits 63:0 in lo.
	in := queue.Instruction{
		Opcode:   uint8(d.hi>>8) & 0b11,
		KeyAddr:  uint32(d.hi&0xFF)<<16 | uint32(d.lo>>48),
		TextAddr: uint32(d.lo>>24) & queue.AddrMask,
		DestAddr: uint32(d.lo) & queue.AddrMask,
	}
	d.Reset()
	return in, true
}

// Serializer shifts completion addresses out to the host. The zero value is
// idle and ready to load.
type Serializer struct {
	shreg     uint32
	remaining uint8
}

// Ready reports whether a new result can be loaded.
func (s *Serializer) Ready() bool {
	return s.remaining == 0
}

// Load latches a 24-bit destination address for transmission. It is
// rejected while a previous result is still shifting.
func (s *Serializer) Load(dest uint32) bool {
	if !s.Ready() {
		return false
	}
	s.shreg = dest & queue.AddrMask
	s.remaining = ResultBits
	return true
}

// ShiftOut clocks one bit off the register, MSB first. ok is false when the
// register is empty.
func (s *Serializer) ShiftOut() (bit uint8, ok bool) {
	if s.remaining == 0 {
		return 0, false
	}
	s.remaining--
	return uint8(s.shreg>>s.remaining) & 1, true
}

// Reset aborts any in-flight result.
func (s *Serializer) Reset() {
	s.shreg, s.remaining = 0, 0
}
