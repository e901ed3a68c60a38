package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/debug"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
	"github.com/malinoff/amqproto-sub000/internal/frames"
	"github.com/malinoff/amqproto-sub000/internal/fsm"
	"github.com/malinoff/amqproto-sub000/internal/methods"
	"github.com/malinoff/amqproto-sub000/internal/queue"
)

// Connection is the connection engine of spec.md §4.5: a sans-I/O state
// machine that turns inbound bytes into Events and method calls into
// outbound bytes. It never performs I/O and never spawns a goroutine;
// Feed/DataToSend are the only points where bytes cross the boundary,
// matching the push_bytes/pull_bytes shape of spec.md §5.
type Connection struct {
	cfg *connConfig

	state *fsm.Connection
	out   *queue.Queue[[]byte]
	in    []byte

	channels      map[uint16]*Channel
	channelOrder  []uint16
	nextChannelID uint16

	channelMax uint16
	frameMax   uint32
	heartbeat  time.Duration

	serverProps encoding.Table

	lastSend time.Time
	lastRecv time.Time

	openWaiter  *Waiter[struct{}]
	closeWaiter *Waiter[struct{}]
	closeErr    *Error
	closed      bool
}

// NewConnection builds a Connection in its initial phase. Call Open to
// begin the handshake.
func NewConnection(opts ...ConnOption) (*Connection, error) {
	cfg := defaultConnConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &Connection{
		cfg:           cfg,
		state:         fsm.NewConnection(),
		out:           queue.New[[]byte](8),
		channels:      make(map[uint16]*Channel),
		nextChannelID: 1,
		channelMax:    cfg.channelMax,
		frameMax:      cfg.frameMax,
		heartbeat:     cfg.heartbeat,
	}, nil
}

// State returns the current handshake/lifecycle phase.
func (c *Connection) State() fsm.ConnState { return c.state.State() }

// NegotiatedChannelMax, NegotiatedFrameMax, and NegotiatedHeartbeat
// report the values agreed during Connection.Tune (spec.md §4.5 step
// 5). Before the handshake completes they report the client's proposal.
func (c *Connection) NegotiatedChannelMax() uint16    { return c.channelMax }
func (c *Connection) NegotiatedFrameMax() uint32      { return c.frameMax }
func (c *Connection) NegotiatedHeartbeat() time.Duration { return c.heartbeat }

// ServerProperties returns the peer-properties table received in
// Connection.Start (spec.md §3's Connection state).
func (c *Connection) ServerProperties() encoding.Table { return c.serverProps }

// CloseReason returns the reason the connection closed, or nil if it is
// still open or closed cleanly without a peer-supplied reason.
func (c *Connection) CloseReason() *Error { return c.closeErr }

// Open begins the handshake by queuing the protocol header preamble
// (spec.md §4.5 step 1). The handshake completes asynchronously as the
// peer's Start/Tune/Open-Ok frames are fed in.
func (c *Connection) Open() error {
	if err := c.state.Trigger(fsm.EvSendProtoHeader); err != nil {
		return err
	}
	hdr := frames.ProtocolHeaderFor(0, 9, 1)
	c.enqueue(hdr[:])
	c.openWaiter = NewWaiter[struct{}]()
	debug.Log(context.Background(), slog.LevelDebug, "amqp: sent protocol header")
	return nil
}

// Wait blocks (via the Waiter that Open creates) until the handshake
// completes or fails. The host is free to ignore this and instead poll
// State()/Feed's events.
func (c *Connection) Wait() error {
	if c.openWaiter == nil {
		return newErr("amqp: Open was never called")
	}
	_, err := c.openWaiter.Wait()
	return err
}

func (c *Connection) enqueue(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	c.out.Enqueue(cp)
}

// DataToSend drains everything queued for the wire: connection-level
// frames first, then each channel's outbound queue in the order the
// channels were created (spec.md §5's per-channel ordering guarantee; channels never
// interleave their own frames, though the host is free to write
// whatever DataToSend returns across multiple channels in one flush).
func (c *Connection) DataToSend() []byte {
	var out []byte
	for b := c.out.Dequeue(); b != nil; b = c.out.Dequeue() {
		out = append(out, (*b)...)
	}
	for _, id := range c.channelOrder {
		ch := c.channels[id]
		for b := ch.out.Dequeue(); b != nil; b = ch.out.Dequeue() {
			out = append(out, (*b)...)
		}
	}
	if len(out) > 0 {
		c.lastSend = time.Now()
	}
	return out
}

// Channel returns the channel for id, lazily opening one with the next
// free id if id == 0 (spec.md §3's "Lifecycle" and §4.5's allocation
// rule). The returned channel's Open has already been requested; wait
// on the returned Waiter for Channel.Open-Ok.
func (c *Connection) Channel(id uint16, opts ...ChannelOption) (*Channel, *Waiter[methods.Method], error) {
	if id != 0 {
		if ch, ok := c.channels[id]; ok {
			return ch, nil, nil
		}
	} else {
		id = c.nextChannelID
	}
	if c.channelMax != 0 && id > c.channelMax {
		return nil, nil, &Error{Code: ReplyResourceError, Text: "channel_max exceeded"}
	}
	cfg := defaultChannelConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, nil, err
		}
	}
	ch := newChannel(id, c, cfg)
	c.channels[id] = ch
	c.channelOrder = append(c.channelOrder, id)
	if id >= c.nextChannelID {
		c.nextChannelID = id + 1
	}
	w, err := ch.open()
	return ch, w, err
}

// Close initiates a client-side Connection.Close (spec.md §4.5's "Close"
// paragraph).
func (c *Connection) Close(code ReplyCode, text string) (*Waiter[struct{}], error) {
	if c.state.State() == fsm.ConnClosed {
		w := NewWaiter[struct{}]()
		w.Set(struct{}{})
		return w, nil
	}
	if err := c.state.Trigger(fsm.EvSendClose); err != nil {
		return nil, err
	}
	m, _ := methods.New(methods.ClassConnection, 50, map[string]interface{}{
		"reply-code": uint16(code),
		"reply-text": text,
	})
	if err := c.send(0, m); err != nil {
		return nil, err
	}
	c.closeWaiter = NewWaiter[struct{}]()
	return c.closeWaiter, nil
}

func (c *Connection) send(channelID uint16, m methods.Method) error {
	var w buffer.Buffer
	if err := methods.Encode(&w, m); err != nil {
		return err
	}
	f, err := frames.Encode(frames.Frame{Type: frames.TypeMethod, ChannelID: channelID, Payload: w.Bytes()})
	if err != nil {
		return err
	}
	c.enqueue(f)
	return nil
}

// Feed supplies inbound bytes received from the transport and returns
// every Event produced while decoding them (spec.md §6's
// connection.feed(bytes) -> events). It never blocks.
func (c *Connection) Feed(data []byte) ([]Event, error) {
	c.in = append(c.in, data...)
	var events []Event
	for {
		f, n, result, err := frames.Decode(c.in)
		if err != nil {
			c.fail(ReplyFrameError, err.Error(), 0, 0)
			events = append(events, ConnectionClosed{Reason: c.closeErr})
			c.in = nil
			return events, err
		}
		if result == frames.Incomplete {
			break
		}
		c.in = c.in[n:]
		c.lastRecv = time.Now()
		if err := c.handleFrame(f, &events); err != nil {
			events = append(events, ConnectionClosed{Reason: c.closeErr})
			return events, err
		}
		if c.closed {
			break
		}
	}
	c.drainChannelEvents(&events)
	return events, nil
}

func (c *Connection) drainChannelEvents(events *[]Event) {
	for _, id := range c.channelOrder {
		ch := c.channels[id]
		for _, tag := range ch.consumerOrder {
			cons, ok := ch.consumers[tag]
			if !ok {
				continue
			}
			for d := cons.queue.Dequeue(); d != nil; d = cons.queue.Dequeue() {
				*events = append(*events, *d)
			}
		}
		for e := ch.events.Dequeue(); e != nil; e = ch.events.Dequeue() {
			*events = append(*events, *e)
		}
	}
}

func (c *Connection) handleFrame(f frames.Frame, events *[]Event) error {
	if f.ChannelID != 0 {
		ch, ok := c.channels[f.ChannelID]
		if !ok {
			return c.fail(ReplyCommandInvalid, "frame for unknown channel", 0, 0)
		}
		return ch.handleFrame(f)
	}

	switch f.Type {
	case frames.TypeHeartbeat:
		return nil
	case frames.TypeMethod:
		m, err := methods.Decode(f.Payload)
		if err != nil {
			return c.fail(ReplyCommandInvalid, err.Error(), 0, 0)
		}
		return c.handleMethod(m, events)
	default:
		return c.fail(ReplyUnexpectedFrame, "non-method frame on channel 0", 0, 0)
	}
}

func (c *Connection) handleMethod(m methods.Method, events *[]Event) error {
	switch m.Key {
	case methods.Key{ClassID: methods.ClassConnection, MethodID: 10}: // start
		if err := c.state.Trigger(fsm.EvRecvStart); err != nil {
			return c.fail(ReplyUnexpectedFrame, err.Error(), 10, 10)
		}
		c.serverProps = m.Table("server-properties")
		return c.sendStartOk()
	case methods.Key{ClassID: methods.ClassConnection, MethodID: 20}: // secure
		if err := c.state.Trigger(fsm.EvRecvSecure); err != nil {
			return c.fail(ReplyUnexpectedFrame, err.Error(), 10, 20)
		}
		resp, err := c.cfg.auth.HandleChallenge([]byte(m.Str("challenge")))
		if err != nil {
			return c.fail(ReplyNotAllowed, err.Error(), 10, 20)
		}
		ok, _ := methods.New(methods.ClassConnection, 21, map[string]interface{}{"response": string(resp)})
		if err := c.state.Trigger(fsm.EvSendSecureOk); err != nil {
			return c.fail(ReplyUnexpectedFrame, err.Error(), 10, 21)
		}
		return c.send(0, ok)
	case methods.Key{ClassID: methods.ClassConnection, MethodID: 30}: // tune
		if err := c.state.Trigger(fsm.EvRecvTune); err != nil {
			return c.fail(ReplyUnexpectedFrame, err.Error(), 10, 30)
		}
		c.negotiate(m.Uint16("channel-max"), m.Uint32("frame-max"), m.Uint16("heartbeat"))
		return c.sendTuneOkAndOpen()
	case methods.Key{ClassID: methods.ClassConnection, MethodID: 41}: // open-ok
		if err := c.state.Trigger(fsm.EvRecvOpenOk); err != nil {
			return c.fail(ReplyUnexpectedFrame, err.Error(), 10, 41)
		}
		if c.openWaiter != nil {
			c.openWaiter.Set(struct{}{})
		}
		return nil
	case methods.Key{ClassID: methods.ClassConnection, MethodID: 50}: // close (server-initiated)
		reason := &Error{
			Code: ReplyCode(m.Uint16("reply-code")), Text: m.Str("reply-text"),
			ClassID: m.Uint16("class-id"), MethodID: m.Uint16("method-id"),
		}
		ok, _ := methods.New(methods.ClassConnection, 51, nil)
		_ = c.send(0, ok)
		c.closeErr = reason
		c.closed = true
		c.state.Force(fsm.ConnClosed)
		c.failAllChannels(reason)
		*events = append(*events, ConnectionClosed{Reason: reason})
		return nil
	case methods.Key{ClassID: methods.ClassConnection, MethodID: 51}: // close-ok (ack of client-initiated close)
		if err := c.state.Trigger(fsm.EvRecvCloseOk); err != nil {
			return c.fail(ReplyUnexpectedFrame, err.Error(), 10, 51)
		}
		c.closed = true
		if c.closeWaiter != nil {
			c.closeWaiter.Set(struct{}{})
		}
		*events = append(*events, ConnectionClosed{Reason: nil})
		return nil
	default:
		return c.fail(ReplyCommandInvalid, "unexpected connection method "+m.String(), m.Key.ClassID, m.Key.MethodID)
	}
}

func (c *Connection) sendStartOk() error {
	resp, err := c.cfg.auth.InitialResponse()
	if err != nil {
		return err
	}
	props := encoding.NewTable(c.cfg.clientProps)
	m, _ := methods.New(methods.ClassConnection, 11, map[string]interface{}{
		"client-properties": props,
		"mechanism":         c.cfg.auth.Name(),
		"response":          string(resp),
		"locale":            c.cfg.locale,
	})
	if err := c.state.Trigger(fsm.EvSendStartOk); err != nil {
		return err
	}
	return c.send(0, m)
}

// negotiate applies spec.md §4.5 step 5's negotiation arithmetic.
func (c *Connection) negotiate(serverChannelMax uint16, serverFrameMax uint32, serverHeartbeat uint16) {
	c.channelMax = negotiateU16(c.channelMax, serverChannelMax)
	c.frameMax = negotiateU32(c.frameMax, serverFrameMax)
	hb := minNonzeroU16(uint16(c.heartbeat/time.Second), serverHeartbeat)
	c.heartbeat = time.Duration(hb) * time.Second
}

func negotiateU16(client, server uint16) uint16 {
	var v uint16
	if client == 0 || server == 0 {
		if client > server {
			v = client
		} else {
			v = server
		}
	} else if client < server {
		v = client
	} else {
		v = server
	}
	if v == 0 {
		v = 0xFFFF
	}
	return v
}

func negotiateU32(client, server uint32) uint32 {
	var v uint32
	if client == 0 || server == 0 {
		if client > server {
			v = client
		} else {
			v = server
		}
	} else if client < server {
		v = client
	} else {
		v = server
	}
	if v == 0 {
		v = 0xFFFFFFFF
	}
	return v
}

func minNonzeroU16(a, b uint16) uint16 {
	if a == 0 {
		return b
	}
	if b == 0 {
		return a
	}
	if a < b {
		return a
	}
	return b
}

func (c *Connection) sendTuneOkAndOpen() error {
	tuneOk, _ := methods.New(methods.ClassConnection, 31, map[string]interface{}{
		"channel-max": c.channelMax,
		"frame-max":   c.frameMax,
		"heartbeat":   uint16(c.heartbeat / time.Second),
	})
	if err := c.state.Trigger(fsm.EvSendTuneOk); err != nil {
		return err
	}
	if err := c.send(0, tuneOk); err != nil {
		return err
	}
	open, _ := methods.New(methods.ClassConnection, 40, map[string]interface{}{
		"virtual-host": c.cfg.vhost,
	})
	if err := c.state.Trigger(fsm.EvSendOpen); err != nil {
		return err
	}
	return c.send(0, open)
}

// fail tears the connection down with a hard error (spec.md §7): enqueue
// Close if we have not already sent/received one, transition CLOSED, and
// fail every channel.
func (c *Connection) fail(code ReplyCode, text string, classID, methodID uint16) error {
	reason := &Error{Code: code, Text: text, ClassID: classID, MethodID: methodID}
	if st := c.state.State(); st != fsm.ConnInitial && st != fsm.ConnClosing && st != fsm.ConnClosed {
		m, _ := methods.New(methods.ClassConnection, 50, map[string]interface{}{
			"reply-code": uint16(code), "reply-text": text,
			"class-id": classID, "method-id": methodID,
		})
		_ = c.send(0, m)
	}
	c.closeErr = reason
	c.closed = true
	c.state.Force(fsm.ConnClosed)
	c.failAllChannels(reason)
	debug.Log(context.Background(), slog.LevelError, "amqp: connection failed", "code", code, "text", text)
	if c.openWaiter != nil {
		c.openWaiter.Fail(&ConnectionError{Reason: reason})
	}
	if c.closeWaiter != nil {
		c.closeWaiter.Fail(&ConnectionError{Reason: reason})
	}
	return &ConnectionError{Reason: reason}
}

func (c *Connection) failAllChannels(reason *Error) {
	for _, id := range c.channelOrder {
		c.channels[id].failWith(reason)
	}
}

// Abort signals transport loss (spec.md §7's "Transport loss"): every
// pending operation fails with ErrTransportLost.
func (c *Connection) Abort() {
	if c.closed {
		return
	}
	c.closed = true
	c.state.Force(fsm.ConnClosed)
	c.failAllChannels(ErrTransportLost)
	if c.openWaiter != nil {
		c.openWaiter.Fail(&ConnectionError{Reason: ErrTransportLost})
	}
	if c.closeWaiter != nil {
		c.closeWaiter.Fail(&ConnectionError{Reason: ErrTransportLost})
	}
}

// CheckHeartbeats raises a hard error if the peer has been silent for
// 2x the negotiated heartbeat interval (spec.md §4.5). now is supplied
// by the host; the last-receive time it is compared against is stamped
// with time.Now() by Feed whenever a frame arrives.
func (c *Connection) CheckHeartbeats(now time.Time) error {
	if c.heartbeat <= 0 || c.lastRecv.IsZero() {
		return nil
	}
	if now.Sub(c.lastRecv) >= 2*c.heartbeat {
		return c.fail(ReplyConnectionForced, "missed heartbeats", 0, 0)
	}
	return nil
}

// SendHeartbeatIfDue enqueues an empty heartbeat frame if half the
// negotiated interval has elapsed since the last send (spec.md §4.5).
func (c *Connection) SendHeartbeatIfDue(now time.Time) {
	if c.heartbeat <= 0 {
		return
	}
	if c.lastSend.IsZero() || now.Sub(c.lastSend) >= c.heartbeat/2 {
		f, err := frames.Encode(frames.Frame{Type: frames.TypeHeartbeat, ChannelID: 0, Payload: nil})
		if err != nil {
			return
		}
		c.enqueue(f)
		c.lastSend = now
	}
}
