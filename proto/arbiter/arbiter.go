// ═══════════════════════════════════════════════════════════════════════════════════════════════
// Bus Arbiter - Hardware Reference Model
// ───────────────────────────────────────────────────────────────────────────────────────────────
//
// Grants exclusive, atomic ownership of the shared 8-bit transfer bus to one
// of two requesters (AES, SHA) per multi-cycle transaction, and serializes
// the granted 32-bit word into four little-endian bytes.
//
// ARBITRATION POLICY:
// ───────────────────
// Round-robin with explicit alternation. If only one side requests, it is
// granted. If both request on the same cycle, the side that was NOT last
// serviced wins: fairness, not arrival order, breaks the tie (arrival is
// simultaneous at this bus's granularity). Out of reset the priority token
// names SHA as last serviced, so an initial tie goes to AES.
//
// TRANSFER:
// ─────────
// On grant the requester's word is latched into a holding register and its
// four bytes are emitted least-significant first, one per cycle, gated by
// the downstream bus_ready signal. While bus_ready is low the byte counter
// holds: no byte is skipped or repeated. The grant is not released until all
// four bytes are accepted, even if the requester lowers its request line
// early; the arbiter completes the word it latched. The priority token is
// updated only when a transaction completes, so it always names exactly one
// requester and persists across idle cycles.
//
// Hardware: 32-bit holding register, 2-bit byte counter, 1-bit token,
// 2-bit owner register. One 4:1 byte mux onto the bus.
//
// ═══════════════════════════════════════════════════════════════════════════════════════════════

package arbiter

// WordBytes is the number of bus beats per granted transaction.
const WordBytes = 4

// Requester identifies one of the two bus requesters.
type Requester uint8

const (
	RequesterAES Requester = iota
	RequesterSHA

	// requesterNone marks the idle owner register.
	requesterNone
)

func (r Requester) String() string {
	switch r {
	case RequesterAES:
		return "AES"
	case RequesterSHA:
		return "SHA"
	}
	return "none"
}

// Inputs are the arbiter's sampled signals for one clock edge.
type Inputs struct {
	AESReq   bool
	AESData  uint32
	SHAReq   bool
	SHAData  uint32
	BusReady bool // downstream readiness; gates the byte counter
}

// Outputs are the arbiter's registered outputs after one clock edge.
type Outputs struct {
	AESGrant bool
	SHAGrant bool
	Data     uint8 // current byte on the bus, meaningful while Valid
	Valid    bool
}

// Arbiter is the round-robin bus arbiter. The zero value is mid-construction;
// use New (the priority token must start naming SHA).
type Arbiter struct {
	owner        Requester // requesterNone when idle
	word         uint32    // latched data word of the current transaction
	byteIdx      uint8     // 0..3, index of the byte currently presented
	lastServiced Requester // priority token; loser of the next tie
}

// New returns an arbiter in its power-on state.
func New() *Arbiter {
	a := &Arbiter{}
	a.Reset()
	return a
}

// Reset restores the power-on state: no grant, no transfer in flight, and
// the priority token back to its initial value (AES wins the first tie).
func (a *Arbiter) Reset() {
	a.owner = requesterNone
	a.word = 0
	a.byteIdx = 0
	a.lastServiced = RequesterSHA
}

// Busy reports whether a transaction is in flight.
func (a *Arbiter) Busy() bool {
	return a.owner != requesterNone
}

// LastServiced returns the priority token: the requester that completed the
// most recent transaction, and therefore loses the next simultaneous tie.
func (a *Arbiter) LastServiced() Requester {
	return a.lastServiced
}

// Tick advances the arbiter by one clock edge and returns its outputs for
// that cycle.
//
// The byte handshake follows the standard valid/ready convention: a byte is
// accepted on any cycle where Valid and the sampled BusReady are both high.
// While BusReady is low the counter holds and the same byte stays on the
// bus. The grant drops on the cycle after the fourth byte is accepted.
func (a *Arbiter) Tick(in Inputs) Outputs {
	if a.owner == requesterNone {
		if !in.AESReq && !in.SHAReq {
			return Outputs{}
		}

		// Arbitrate. Tie goes against the priority token.
		winner := RequesterAES
		switch {
		case in.AESReq && in.SHAReq:
			if a.lastServiced == RequesterAES {
				winner = RequesterSHA
			}
		case in.SHAReq:
			winner = RequesterSHA
		}

		a.owner = winner
		a.byteIdx = 0
		if winner == RequesterAES {
			a.word = in.AESData
		} else {
			a.word = in.SHAData
		}
	}

	out := a.present()

	// Acceptance: valid is implied while a transfer is in flight.
	if in.BusReady {
		a.byteIdx++
		if a.byteIdx == WordBytes {
			// Word fully accepted: release the grant and flip the token.
			a.lastServiced = a.owner
			a.owner = requesterNone
			a.byteIdx = 0
		}
	}
	return out
}

// present builds the outputs for the in-flight transaction.
//
// Verilog equivalent:
//
//	assign data_out  = word[8*byte_idx +: 8];   // little-endian byte mux
//	assign valid_out = (owner != NONE);
func (a *Arbiter) present() Outputs {
	return Outputs{
		AESGrant: a.owner == RequesterAES,
		SHAGrant: a.owner == RequesterSHA,
		Data:     uint8(a.word >> (8 * a.byteIdx)),
		Valid:    true,
	}
}
