// Package fsm implements the two state machines named in spec.md §4.3:
// the per-connection handshake FSM and the per-channel command FSM.
// Grounded on original_source/amqproto/fsm.py's Transition/Machine
// shape, translated from a regex-matching dynamic machine into Go's
// natural static map-of-transitions form (no FSM library exists in the
// example pack, and the teacher itself inlines its phase transitions
// rather than factoring out a reusable FSM type).
package fsm

import "fmt"

// ConnState is a phase of the connection-level FSM (spec.md §3's
// Connection state `phase` field).
type ConnState int

const (
	ConnInitial ConnState = iota
	ConnHeaderSent
	ConnStarted
	ConnTuningSent
	ConnOpenSent
	ConnOpen
	ConnClosing
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnInitial:
		return "INITIAL"
	case ConnHeaderSent:
		return "HEADER_SENT"
	case ConnStarted:
		return "STARTED"
	case ConnTuningSent:
		return "TUNING_SENT"
	case ConnOpenSent:
		return "OPEN_SENT"
	case ConnOpen:
		return "OPEN"
	case ConnClosing:
		return "CLOSING"
	case ConnClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnEvent names a transition trigger on the connection FSM.
type ConnEvent int

const (
	EvSendProtoHeader ConnEvent = iota
	EvRecvStart
	EvSendStartOk
	EvRecvSecure
	EvSendSecureOk
	EvRecvTune
	EvSendTuneOk
	EvSendOpen
	EvRecvOpenOk
	EvSendClose
	EvRecvClose
	EvSendCloseOk
	EvRecvCloseOk
	EvFatal
)

// UnexpectedFrame is the hard protocol error (reply code 505) raised
// when a frame arrives that is illegal in the current state (spec.md
// §4.3).
type UnexpectedFrame struct {
	State interface{}
	Event interface{}
}

func (e *UnexpectedFrame) Error() string {
	return fmt.Sprintf("amqp: unexpected frame: event %v illegal in state %v", e.Event, e.State)
}

var connTransitions = map[ConnState]map[ConnEvent]ConnState{
	ConnInitial: {
		EvSendProtoHeader: ConnHeaderSent,
	},
	ConnHeaderSent: {
		EvRecvStart: ConnStarted,
		EvFatal:     ConnClosed,
	},
	ConnStarted: {
		EvSendStartOk: ConnStarted,
		EvRecvSecure:  ConnStarted,
		EvSendSecureOk: ConnStarted,
		EvRecvTune:    ConnTuningSent,
		EvFatal:       ConnClosed,
	},
	ConnTuningSent: {
		EvSendTuneOk: ConnTuningSent,
		EvSendOpen:   ConnOpenSent,
	},
	ConnOpenSent: {
		EvRecvOpenOk: ConnOpen,
	},
	ConnOpen: {
		EvSendClose: ConnClosing,
		EvRecvClose: ConnClosing,
	},
	ConnClosing: {
		EvRecvCloseOk: ConnClosed,
		EvSendCloseOk: ConnClosed,
	},
}

// Connection is the connection-level FSM instance.
type Connection struct {
	state ConnState
}

// NewConnection returns a Connection FSM in its initial state.
func NewConnection() *Connection {
	return &Connection{state: ConnInitial}
}

// State returns the current phase.
func (c *Connection) State() ConnState { return c.state }

// Trigger attempts the transition for ev from the current state. It
// returns *UnexpectedFrame if the transition is illegal.
func (c *Connection) Trigger(ev ConnEvent) error {
	next, ok := connTransitions[c.state][ev]
	if !ok {
		return &UnexpectedFrame{State: c.state, Event: ev}
	}
	c.state = next
	return nil
}

// Force sets the state unconditionally, used for the "any -> CLOSED"
// fatal transition (bad protocol header, transport loss) which is legal
// from every state rather than the specific ones enumerated above.
func (c *Connection) Force(s ConnState) { c.state = s }

// ---- channel FSM -----------------------------------------------------

// ChanState is a phase of the per-channel FSM (spec.md §3's Channel
// state `phase` field).
type ChanState int

const (
	ChanInitial ChanState = iota
	ChanOpening
	ChanOpen
	ChanClosing
	ChanClosed
)

func (s ChanState) String() string {
	switch s {
	case ChanInitial:
		return "INITIAL"
	case ChanOpening:
		return "OPENING"
	case ChanOpen:
		return "OPEN"
	case ChanClosing:
		return "CLOSING"
	case ChanClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ChanEvent names a transition trigger on the channel FSM.
type ChanEvent int

const (
	EvChanSendOpen ChanEvent = iota
	EvChanRecvOpenOk
	EvChanFunctional
	EvChanSendClose
	EvChanRecvClose
	EvChanSendCloseOk
	EvChanRecvCloseOk
)

var chanTransitions = map[ChanState]map[ChanEvent]ChanState{
	ChanInitial: {
		EvChanSendOpen: ChanOpening,
	},
	ChanOpening: {
		EvChanRecvOpenOk: ChanOpen,
	},
	ChanOpen: {
		EvChanFunctional:  ChanOpen,
		EvChanSendClose:   ChanClosing,
		EvChanRecvClose:   ChanClosing,
	},
	ChanClosing: {
		EvChanRecvCloseOk: ChanClosed,
		EvChanSendCloseOk: ChanClosed,
	},
}

// Channel is the per-channel FSM instance.
type Channel struct {
	state ChanState
}

// NewChannel returns a Channel FSM in its initial state.
func NewChannel() *Channel {
	return &Channel{state: ChanInitial}
}

// State returns the current phase.
func (c *Channel) State() ChanState { return c.state }

// Trigger attempts the transition for ev from the current state.
func (c *Channel) Trigger(ev ChanEvent) error {
	next, ok := chanTransitions[c.state][ev]
	if !ok {
		return &UnexpectedFrame{State: c.state, Event: ev}
	}
	c.state = next
	return nil
}

// Force sets the state unconditionally (used when a sibling error tears
// the channel down without going through the normal close handshake).
func (c *Channel) Force(s ChanState) { c.state = s }

// ContentPhase tracks the "awaiting header / awaiting body" sub-state
// overlaid on ChanOpen while a content-bearing method's payload is being
// assembled (spec.md §4.3).
type ContentPhase int

const (
	ContentNone ContentPhase = iota
	ContentAwaitingHeader
	ContentAwaitingBody
)
