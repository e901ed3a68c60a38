package amqp

import (
	"github.com/google/uuid"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
	"github.com/malinoff/amqproto-sub000/internal/frames"
	"github.com/malinoff/amqproto-sub000/internal/fsm"
	"github.com/malinoff/amqproto-sub000/internal/methods"
	"github.com/malinoff/amqproto-sub000/internal/queue"
)

// consumer is a registered Basic.Consume subscription. Its deliveries
// are buffered in a queue so Connection.Feed can drain them into the
// events slice it returns, the "pending-delivery queue" named in
// internal/queue's package doc.
type consumer struct {
	tag   string
	noAck bool
	queue *queue.Queue[Delivered]
}

type pendingSync struct {
	replies map[methods.Key]bool
	waiter  *Waiter[methods.Method]
}

// Channel is the channel engine of spec.md §4.4: per-channel state plus
// every AMQP command verb. All operations enqueue frames to out and
// return immediately; a non-nil Waiter resolves once the broker's reply
// frame arrives, or fails once the channel or connection closes.
type Channel struct {
	id   uint16
	conn *Connection
	cfg  *channelConfig

	fsm          *fsm.Channel
	contentPhase fsm.ContentPhase

	out    *queue.Queue[[]byte]
	events *queue.Queue[Event]

	pendingSync *pendingSync
	pendingGet  *Waiter[GetResult]
	drainWaiter *Waiter[struct{}]

	consumers     map[string]*consumer
	consumerOrder []string

	partial *partialContent

	confirmMode      bool
	nextPublishSeqNo uint64
	unconfirmed      []uint64

	closeErr *Error
}

func newChannel(id uint16, conn *Connection, cfg *channelConfig) *Channel {
	return &Channel{
		id:        id,
		conn:      conn,
		cfg:       cfg,
		fsm:       fsm.NewChannel(),
		out:       queue.New[[]byte](8),
		events:    queue.New[Event](8),
		consumers: make(map[string]*consumer),
	}
}

// ID returns the channel's AMQP channel number.
func (ch *Channel) ID() uint16 { return ch.id }

func (ch *Channel) enqueue(f []byte) {
	cp := make([]byte, len(f))
	copy(cp, f)
	ch.out.Enqueue(cp)
}

func (ch *Channel) send(m methods.Method) error {
	var w buffer.Buffer
	if err := methods.Encode(&w, m); err != nil {
		return err
	}
	f, err := frames.Encode(frames.Frame{Type: frames.TypeMethod, ChannelID: ch.id, Payload: w.Bytes()})
	if err != nil {
		return err
	}
	ch.enqueue(f)
	return nil
}

// sendSync enqueues m and registers a pending synchronous call awaiting
// one of replies (spec.md §3's invariant: at most one pending_sync per
// channel).
func (ch *Channel) sendSync(m methods.Method, replies ...methods.Key) (*Waiter[methods.Method], error) {
	if ch.pendingSync != nil {
		return nil, newErr("amqp: a synchronous call is already pending on this channel")
	}
	if err := ch.send(m); err != nil {
		return nil, err
	}
	w := NewWaiter[methods.Method]()
	set := make(map[methods.Key]bool, len(replies))
	for _, k := range replies {
		set[k] = true
	}
	ch.pendingSync = &pendingSync{replies: set, waiter: w}
	return w, nil
}

func (ch *Channel) open() (*Waiter[methods.Method], error) {
	if err := ch.fsm.Trigger(fsm.EvChanSendOpen); err != nil {
		return nil, err
	}
	m, _ := methods.New(methods.ClassChannel, 10, nil)
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassChannel, MethodID: 11})
}

// Close initiates a client-side Channel.Close.
func (ch *Channel) Close(code ReplyCode, text string, classID, methodID uint16) (*Waiter[methods.Method], error) {
	if ch.fsm.State() == fsm.ChanClosed {
		w := NewWaiter[methods.Method]()
		w.Set(methods.Method{})
		return w, nil
	}
	if err := ch.fsm.Trigger(fsm.EvChanSendClose); err != nil {
		return nil, err
	}
	m, _ := methods.New(methods.ClassChannel, 40, map[string]interface{}{
		"reply-code": uint16(code), "reply-text": text,
		"class-id": classID, "method-id": methodID,
	})
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassChannel, MethodID: 41})
}

// Flow requests the broker pause or resume delivery on this channel.
func (ch *Channel) Flow(active bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassChannel, 20, map[string]interface{}{"active": active})
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassChannel, MethodID: 21})
}

// ExchangeDeclare implements spec.md §4.4's exchange_declare.
func (ch *Channel) ExchangeDeclare(name, kind string, passive, durable, autoDelete, internal, noWait bool, args map[string]interface{}) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassExchange, 10, map[string]interface{}{
		"exchange": name, "type": kind, "passive": passive, "durable": durable,
		"auto-delete": autoDelete, "internal": internal, "no-wait": noWait,
		"arguments": encoding.NewTable(args),
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassExchange, MethodID: 11})
}

// ExchangeDelete implements spec.md §4.4's exchange_delete.
func (ch *Channel) ExchangeDelete(name string, ifUnused, noWait bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassExchange, 20, map[string]interface{}{
		"exchange": name, "if-unused": ifUnused, "no-wait": noWait,
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassExchange, MethodID: 21})
}

// ExchangeBind implements spec.md §4.4's exchange_bind.
func (ch *Channel) ExchangeBind(dest, source, routingKey string, noWait bool, args map[string]interface{}) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassExchange, 30, map[string]interface{}{
		"destination": dest, "source": source, "routing-key": routingKey,
		"no-wait": noWait, "arguments": encoding.NewTable(args),
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassExchange, MethodID: 31})
}

// ExchangeUnbind implements spec.md §4.4's exchange_unbind.
func (ch *Channel) ExchangeUnbind(dest, source, routingKey string, noWait bool, args map[string]interface{}) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassExchange, 40, map[string]interface{}{
		"destination": dest, "source": source, "routing-key": routingKey,
		"no-wait": noWait, "arguments": encoding.NewTable(args),
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassExchange, MethodID: 51})
}

// QueueDeclare implements spec.md §4.4's queue_declare.
func (ch *Channel) QueueDeclare(name string, passive, durable, exclusive, autoDelete, noWait bool, args map[string]interface{}) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassQueue, 10, map[string]interface{}{
		"queue": name, "passive": passive, "durable": durable, "exclusive": exclusive,
		"auto-delete": autoDelete, "no-wait": noWait, "arguments": encoding.NewTable(args),
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassQueue, MethodID: 11})
}

// QueueBind implements spec.md §4.4's queue_bind.
func (ch *Channel) QueueBind(queueName, exchange, routingKey string, noWait bool, args map[string]interface{}) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassQueue, 20, map[string]interface{}{
		"queue": queueName, "exchange": exchange, "routing-key": routingKey,
		"no-wait": noWait, "arguments": encoding.NewTable(args),
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassQueue, MethodID: 21})
}

// QueueUnbind implements spec.md §4.4's queue_unbind. Unlike the other
// binds, unbind has no no_wait field (spec.md's table note).
func (ch *Channel) QueueUnbind(queueName, exchange, routingKey string, args map[string]interface{}) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassQueue, 50, map[string]interface{}{
		"queue": queueName, "exchange": exchange, "routing-key": routingKey,
		"arguments": encoding.NewTable(args),
	})
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassQueue, MethodID: 51})
}

// QueuePurge implements spec.md §4.4's queue_purge.
func (ch *Channel) QueuePurge(queueName string, noWait bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassQueue, 30, map[string]interface{}{"queue": queueName, "no-wait": noWait})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassQueue, MethodID: 31})
}

// QueueDelete implements spec.md §4.4's queue_delete.
func (ch *Channel) QueueDelete(queueName string, ifUnused, ifEmpty, noWait bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassQueue, 40, map[string]interface{}{
		"queue": queueName, "if-unused": ifUnused, "if-empty": ifEmpty, "no-wait": noWait,
	})
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassQueue, MethodID: 41})
}

// BasicQos implements spec.md §4.4's basic_qos.
func (ch *Channel) BasicQos(prefetchSize uint32, prefetchCount uint16, global bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassBasic, 10, map[string]interface{}{
		"prefetch-size": prefetchSize, "prefetch-count": prefetchCount, "global": global,
	})
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassBasic, MethodID: 11})
}

// BasicConsume implements spec.md §4.4's basic_consume. If tag is blank,
// a unique one is generated (spec.md's table note).
func (ch *Channel) BasicConsume(queueName, tag string, noLocal, noAck, exclusive, noWait bool, args map[string]interface{}) (string, *Waiter[methods.Method], error) {
	if tag == "" {
		tag = uuid.New().String()
	}
	m, _ := methods.New(methods.ClassBasic, 20, map[string]interface{}{
		"queue": queueName, "consumer-tag": tag, "no-local": noLocal, "no-ack": noAck,
		"exclusive": exclusive, "no-wait": noWait, "arguments": encoding.NewTable(args),
	})
	ch.registerConsumer(tag, noAck)
	if noWait {
		return tag, nil, ch.send(m)
	}
	w, err := ch.sendSync(m, methods.Key{ClassID: methods.ClassBasic, MethodID: 21})
	return tag, w, err
}

func (ch *Channel) registerConsumer(tag string, noAck bool) {
	if _, ok := ch.consumers[tag]; ok {
		return
	}
	ch.consumers[tag] = &consumer{tag: tag, noAck: noAck, queue: queue.New[Delivered](8)}
	ch.consumerOrder = append(ch.consumerOrder, tag)
}

// BasicCancel implements spec.md §4.4's basic_cancel.
func (ch *Channel) BasicCancel(tag string, noWait bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassBasic, 30, map[string]interface{}{"consumer-tag": tag, "no-wait": noWait})
	delete(ch.consumers, tag)
	ch.consumerOrder = removeString(ch.consumerOrder, tag)
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassBasic, MethodID: 31})
}

func removeString(s []string, v string) []string {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// BasicPublish implements spec.md §4.4's publish path: assigns a confirm
// sequence number if in confirm mode, then emits Publish, one
// ContentHeader, and zero or more ContentBody frames chunked to
// frame_max-8 bytes, contiguously with no other frame for this channel
// interleaved (spec.md §5's ordering guarantee — guaranteed here simply
// by enqueueing all of them before returning).
func (ch *Channel) BasicPublish(exchange, routingKey string, mandatory, immediate bool, msg Message) (uint64, error) {
	if ch.fsm.State() != fsm.ChanOpen {
		return 0, newErr("amqp: channel is not open")
	}
	var seqNo uint64
	if ch.confirmMode {
		ch.nextPublishSeqNo++
		seqNo = ch.nextPublishSeqNo
		ch.unconfirmed = append(ch.unconfirmed, seqNo)
	}

	m, _ := methods.New(methods.ClassBasic, 40, map[string]interface{}{
		"exchange": exchange, "routing-key": routingKey, "mandatory": mandatory, "immediate": immediate,
	})
	if err := ch.send(m); err != nil {
		return seqNo, err
	}

	hdr, err := encodeContentHeader(methods.ClassBasic, uint64(len(msg.Body)), msg.Properties.toWire())
	if err != nil {
		return seqNo, err
	}
	hf, err := frames.Encode(frames.Frame{Type: frames.TypeContentHeader, ChannelID: ch.id, Payload: hdr})
	if err != nil {
		return seqNo, err
	}
	ch.enqueue(hf)

	chunk := int(ch.conn.frameMax) - frames.HeaderOverhead
	if chunk <= 0 {
		chunk = frames.MinFrameSize - frames.HeaderOverhead
	}
	body := msg.Body
	for len(body) > 0 {
		n := chunk
		if n > len(body) {
			n = len(body)
		}
		bf, err := frames.Encode(frames.Frame{Type: frames.TypeContentBody, ChannelID: ch.id, Payload: body[:n]})
		if err != nil {
			return seqNo, err
		}
		ch.enqueue(bf)
		body = body[n:]
	}
	return seqNo, nil
}

func encodeContentHeader(classID uint16, bodySize uint64, props encoding.BasicProperties) ([]byte, error) {
	var w buffer.Buffer
	encoding.WriteShort(&w, classID)
	encoding.WriteShort(&w, 0) // weight, always 0
	encoding.WriteLonglong(&w, bodySize)
	if err := encoding.EncodeBasicProperties(&w, props); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeContentHeader(payload []byte) (classID uint16, bodySize uint64, props encoding.BasicProperties, err error) {
	r := buffer.New(payload)
	if classID, err = encoding.ReadShort(r); err != nil {
		return
	}
	if _, err = encoding.ReadShort(r); err != nil { // weight
		return
	}
	if bodySize, err = encoding.ReadLonglong(r); err != nil {
		return
	}
	props, err = encoding.DecodeBasicProperties(r)
	return
}

// BasicGet implements spec.md §4.4's basic_get.
func (ch *Channel) BasicGet(queueName string, noAck bool) (*Waiter[GetResult], error) {
	if ch.pendingGet != nil {
		return nil, newErr("amqp: a basic_get is already pending on this channel")
	}
	m, _ := methods.New(methods.ClassBasic, 70, map[string]interface{}{"queue": queueName, "no-ack": noAck})
	if err := ch.send(m); err != nil {
		return nil, err
	}
	ch.pendingGet = NewWaiter[GetResult]()
	return ch.pendingGet, nil
}

// BasicAck implements spec.md §4.4's basic_ack (client-initiated; a
// no_ack consumer never needs this, an explicit-ack consumer does).
func (ch *Channel) BasicAck(deliveryTag uint64, multiple bool) error {
	m, _ := methods.New(methods.ClassBasic, 80, map[string]interface{}{"delivery-tag": deliveryTag, "multiple": multiple})
	return ch.send(m)
}

// BasicReject implements spec.md §4.4's basic_reject.
func (ch *Channel) BasicReject(deliveryTag uint64, requeue bool) error {
	m, _ := methods.New(methods.ClassBasic, 90, map[string]interface{}{"delivery-tag": deliveryTag, "requeue": requeue})
	return ch.send(m)
}

// BasicNack implements spec.md §4.4's basic_nack (client-initiated
// negative ack, the RabbitMQ extension mirrored in the catalog).
func (ch *Channel) BasicNack(deliveryTag uint64, multiple, requeue bool) error {
	m, _ := methods.New(methods.ClassBasic, 120, map[string]interface{}{
		"delivery-tag": deliveryTag, "multiple": multiple, "requeue": requeue,
	})
	return ch.send(m)
}

// BasicRecoverAsync implements spec.md §4.4's basic_recover_async (fire
// and forget, deprecated in favor of BasicRecover).
func (ch *Channel) BasicRecoverAsync(requeue bool) error {
	m, _ := methods.New(methods.ClassBasic, 100, map[string]interface{}{"requeue": requeue})
	return ch.send(m)
}

// BasicRecover implements spec.md §4.4's basic_recover.
func (ch *Channel) BasicRecover(requeue bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassBasic, 110, map[string]interface{}{"requeue": requeue})
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassBasic, MethodID: 111})
}

// ConfirmSelect implements spec.md §4.4's confirm_select, turning on
// publisher-confirm bookkeeping (SPEC_FULL.md §1).
func (ch *Channel) ConfirmSelect(noWait bool) (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassConfirm, 10, map[string]interface{}{"no-wait": noWait})
	ch.confirmMode = true
	ch.nextPublishSeqNo = 0
	if noWait {
		return nil, ch.send(m)
	}
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassConfirm, MethodID: 11})
}

// TxSelect, TxCommit, TxRollback implement spec.md §4.4's transaction
// trio (SPEC_FULL.md §4's supplemented feature; mutually exclusive with
// confirm mode per the AMQP model, left to the caller to respect).
func (ch *Channel) TxSelect() (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassTx, 10, nil)
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassTx, MethodID: 11})
}

func (ch *Channel) TxCommit() (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassTx, 20, nil)
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassTx, MethodID: 21})
}

func (ch *Channel) TxRollback() (*Waiter[methods.Method], error) {
	m, _ := methods.New(methods.ClassTx, 30, nil)
	return ch.sendSync(m, methods.Key{ClassID: methods.ClassTx, MethodID: 31})
}

// DrainConfirms returns a Waiter that resolves once every currently
// unconfirmed publish has been acked or nacked.
func (ch *Channel) DrainConfirms() *Waiter[struct{}] {
	w := NewWaiter[struct{}]()
	if len(ch.unconfirmed) == 0 {
		w.Set(struct{}{})
		return w
	}
	ch.drainWaiter = w
	return w
}

// --- inbound frame handling --------------------------------------------

func (ch *Channel) handleFrame(f frames.Frame) error {
	switch f.Type {
	case frames.TypeMethod:
		m, err := methods.Decode(f.Payload)
		if err != nil {
			return ch.conn.fail(ReplyCommandInvalid, err.Error(), 0, 0)
		}
		if ch.partial != nil && !ch.partial.complete() {
			// Any method frame other than body continuation truncates
			// the in-flight content (spec.md §4.3).
			ch.partial = nil
			ch.contentPhase = fsm.ContentNone
		}
		return ch.handleMethod(m)
	case frames.TypeContentHeader:
		return ch.handleContentHeader(f.Payload)
	case frames.TypeContentBody:
		return ch.handleContentBody(f.Payload)
	default:
		return ch.conn.fail(ReplyUnexpectedFrame, "unexpected frame type on channel", 0, 0)
	}
}

func (ch *Channel) resolvePending(m methods.Method) bool {
	if ch.pendingSync == nil || !ch.pendingSync.replies[m.Key] {
		return false
	}
	w := ch.pendingSync.waiter
	ch.pendingSync = nil
	w.Set(m)
	return true
}

func (ch *Channel) handleMethod(m methods.Method) error {
	switch m.Key {
	case methods.Key{ClassID: methods.ClassChannel, MethodID: 11}: // open-ok
		if err := ch.fsm.Trigger(fsm.EvChanRecvOpenOk); err != nil {
			return ch.conn.fail(ReplyUnexpectedFrame, err.Error(), 20, 11)
		}
		ch.resolvePending(m)
		if ch.cfg != nil && (ch.cfg.prefetchCount != 0 || ch.cfg.prefetchSize != 0) {
			if _, err := ch.BasicQos(ch.cfg.prefetchSize, ch.cfg.prefetchCount, ch.cfg.prefetchGlobal); err != nil {
				return err
			}
		}
		return nil
	case methods.Key{ClassID: methods.ClassChannel, MethodID: 20}: // flow (server-initiated)
		active := m.Bool("active")
		ok, _ := methods.New(methods.ClassChannel, 21, map[string]interface{}{"active": active})
		if err := ch.send(ok); err != nil {
			return err
		}
		ch.events.Enqueue(Event(FlowChanged{ChannelID: ch.id, Active: active}))
		return nil
	case methods.Key{ClassID: methods.ClassChannel, MethodID: 40}: // close (server-initiated)
		reason := &Error{
			Code: ReplyCode(m.Uint16("reply-code")), Text: m.Str("reply-text"),
			ClassID: m.Uint16("class-id"), MethodID: m.Uint16("method-id"),
		}
		ok, _ := methods.New(methods.ClassChannel, 41, nil)
		_ = ch.send(ok)
		ch.fsm.Force(fsm.ChanClosed)
		ch.failWith(reason)
		ch.events.Enqueue(Event(ChannelClosed{ChannelID: ch.id, Reason: reason}))
		if reason.Code.IsHard() {
			return ch.conn.fail(reason.Code, reason.Text, reason.ClassID, reason.MethodID)
		}
		return nil
	case methods.Key{ClassID: methods.ClassChannel, MethodID: 41}: // close-ok
		if err := ch.fsm.Trigger(fsm.EvChanRecvCloseOk); err != nil {
			return ch.conn.fail(ReplyUnexpectedFrame, err.Error(), 20, 41)
		}
		ch.resolvePending(m)
		ch.events.Enqueue(Event(ChannelClosed{ChannelID: ch.id, Reason: nil}))
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 30}: // cancel (server-initiated)
		tag := m.Str("consumer-tag")
		delete(ch.consumers, tag)
		ch.consumerOrder = removeString(ch.consumerOrder, tag)
		ch.events.Enqueue(Event(ConsumerCancelled{ChannelID: ch.id, ConsumerTag: tag, NoWait: true}))
		if !m.Bool("no-wait") {
			ok, _ := methods.New(methods.ClassBasic, 31, map[string]interface{}{"consumer-tag": tag})
			return ch.send(ok)
		}
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 31}: // cancel-ok
		ch.resolvePending(m)
		ch.events.Enqueue(Event(ConsumerCancelled{ChannelID: ch.id, ConsumerTag: m.Str("consumer-tag"), NoWait: false}))
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 60}: // deliver
		ch.partial = &partialContent{
			kind: "deliver", consumerTag: m.Str("consumer-tag"), deliveryTag: m.Uint64("delivery-tag"),
			redelivered: m.Bool("redelivered"), exchange: m.Str("exchange"), routingKey: m.Str("routing-key"),
		}
		ch.contentPhase = fsm.ContentAwaitingHeader
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 50}: // return
		ch.partial = &partialContent{
			kind: "return", replyCode: ReplyCode(m.Uint16("reply-code")), replyText: m.Str("reply-text"),
			exchange: m.Str("exchange"), routingKey: m.Str("routing-key"),
		}
		ch.contentPhase = fsm.ContentAwaitingHeader
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 71}: // get-ok
		ch.partial = &partialContent{
			kind: "get-ok", deliveryTag: m.Uint64("delivery-tag"), redelivered: m.Bool("redelivered"),
			exchange: m.Str("exchange"), routingKey: m.Str("routing-key"), messageCnt: m.Uint32("message-count"),
		}
		ch.contentPhase = fsm.ContentAwaitingHeader
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 72}: // get-empty
		if ch.pendingGet != nil {
			w := ch.pendingGet
			ch.pendingGet = nil
			w.Set(GetResult{ChannelID: ch.id, Empty: true})
		}
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 80}: // ack (confirm)
		ch.applyConfirm(m.Uint64("delivery-tag"), m.Bool("multiple"), false, false)
		return nil
	case methods.Key{ClassID: methods.ClassBasic, MethodID: 120}: // nack (confirm)
		ch.applyConfirm(m.Uint64("delivery-tag"), m.Bool("multiple"), true, m.Bool("requeue"))
		return nil
	default:
		if ch.resolvePending(m) {
			return nil
		}
		return ch.conn.fail(ReplyCommandInvalid, "unexpected channel method "+m.String(), m.Key.ClassID, m.Key.MethodID)
	}
}

// applyConfirm implements spec.md §4.4's confirm accounting.
func (ch *Channel) applyConfirm(tag uint64, multiple, negative, requeue bool) {
	var removed []uint64
	if multiple {
		rest := ch.unconfirmed[:0]
		for _, t := range ch.unconfirmed {
			if t <= tag {
				removed = append(removed, t)
			} else {
				rest = append(rest, t)
			}
		}
		ch.unconfirmed = rest
	} else {
		rest := ch.unconfirmed[:0]
		for _, t := range ch.unconfirmed {
			if t == tag {
				removed = append(removed, t)
			} else {
				rest = append(rest, t)
			}
		}
		ch.unconfirmed = rest
	}
	for _, t := range removed {
		if negative {
			ch.events.Enqueue(Event(Nacked{ChannelID: ch.id, DeliveryTag: t, Multiple: multiple, Requeue: requeue}))
		} else {
			ch.events.Enqueue(Event(Acked{ChannelID: ch.id, DeliveryTag: t, Multiple: multiple}))
		}
	}
	if len(ch.unconfirmed) == 0 && ch.drainWaiter != nil {
		w := ch.drainWaiter
		ch.drainWaiter = nil
		w.Set(struct{}{})
	}
}

func (ch *Channel) handleContentHeader(payload []byte) error {
	if ch.partial == nil || ch.contentPhase != fsm.ContentAwaitingHeader {
		return ch.conn.fail(ReplyUnexpectedFrame, "content header without a pending method", 0, 0)
	}
	_, bodySize, wire, err := decodeContentHeader(payload)
	if err != nil {
		if _, ok := err.(*encoding.NotImplementedError); ok {
			return ch.conn.fail(ReplyNotImplemented, err.Error(), 0, 0)
		}
		return ch.conn.fail(ReplyFrameError, err.Error(), 0, 0)
	}
	ch.partial.properties = fromWire(wire)
	ch.partial.bodySize = bodySize
	ch.partial.haveHeader = true
	ch.contentPhase = fsm.ContentAwaitingBody
	if ch.partial.complete() {
		return ch.finalizePartial()
	}
	return nil
}

func (ch *Channel) handleContentBody(payload []byte) error {
	if ch.partial == nil || ch.contentPhase != fsm.ContentAwaitingBody {
		return ch.conn.fail(ReplyUnexpectedFrame, "content body without a pending header", 0, 0)
	}
	ch.partial.body = append(ch.partial.body, payload...)
	if ch.partial.complete() {
		return ch.finalizePartial()
	}
	return nil
}

func (ch *Channel) finalizePartial() error {
	p := ch.partial
	ch.partial = nil
	ch.contentPhase = fsm.ContentNone

	switch p.kind {
	case "deliver":
		cons, ok := ch.consumers[p.consumerTag]
		if !ok {
			return ch.conn.fail(ReplyCommandInvalid, "deliver for unknown consumer tag "+p.consumerTag, 60, 60)
		}
		cons.queue.Enqueue(Delivered{
			ChannelID: ch.id, ConsumerTag: p.consumerTag, DeliveryTag: p.deliveryTag,
			Redelivered: p.redelivered, Exchange: p.exchange, RoutingKey: p.routingKey,
			Properties: p.properties, Body: p.body,
		})
	case "return":
		ch.events.Enqueue(Event(Returned{
			ChannelID: ch.id, ReplyCode: p.replyCode, ReplyText: p.replyText,
			Exchange: p.exchange, RoutingKey: p.routingKey, Properties: p.properties, Body: p.body,
		}))
	case "get-ok":
		if ch.pendingGet != nil {
			w := ch.pendingGet
			ch.pendingGet = nil
			w.Set(GetResult{
				ChannelID: ch.id, DeliveryTag: p.deliveryTag, Redelivered: p.redelivered,
				Exchange: p.exchange, RoutingKey: p.routingKey, MessageCnt: p.messageCnt,
				Properties: p.properties, Body: p.body,
			})
		}
	}
	return nil
}

// failWith fails every pending operation on this channel with reason,
// used both for server-initiated Channel.Close and for connection-wide
// teardown (spec.md §4.4's "Server-initiated Channel.Close" and §7's
// "Transport loss").
func (ch *Channel) failWith(reason *Error) {
	if ch.pendingSync != nil {
		ch.pendingSync.waiter.Fail(&ChannelError{Reason: reason})
		ch.pendingSync = nil
	}
	if ch.pendingGet != nil {
		ch.pendingGet.Fail(&ChannelError{Reason: reason})
		ch.pendingGet = nil
	}
	if ch.drainWaiter != nil {
		ch.drainWaiter.Fail(&ChannelError{Reason: reason})
		ch.drainWaiter = nil
	}
	for _, tag := range ch.consumerOrder {
		ch.events.Enqueue(Event(ConsumerCancelled{ChannelID: ch.id, ConsumerTag: tag, NoWait: true}))
	}
	ch.consumers = make(map[string]*consumer)
	ch.consumerOrder = nil
}
