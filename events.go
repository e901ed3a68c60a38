package amqp

// Event is the sum type of everything a Connection or Channel can
// surface to its host asynchronously (spec.md §6's feed(bytes) -> events
// API). The host type-switches on the concrete type.
type Event interface {
	isEvent()
}

// Delivered is a message pushed to a consumer by Basic.Deliver.
type Delivered struct {
	ChannelID   uint16
	ConsumerTag string
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
	Properties  Properties
	Body        []byte
}

// Returned is an undeliverable published message bounced back by
// Basic.Return. Kept distinct from Delivered per SPEC_FULL.md §5's
// decision: a Return never has a consumer tag or delivery tag, and
// merging the two types would force callers to branch on a zero-value
// sentinel instead of a type switch.
type Returned struct {
	ChannelID  uint16
	ReplyCode  ReplyCode
	ReplyText  string
	Exchange   string
	RoutingKey string
	Properties Properties
	Body       []byte
}

// GetResult is the outcome of a Basic.Get, successful or empty.
type GetResult struct {
	ChannelID   uint16
	Empty       bool
	DeliveryTag uint64
	Redelivered bool
	Exchange    string
	RoutingKey  string
	MessageCnt  uint32
	Properties  Properties
	Body        []byte
}

// Acked is a publisher confirm acknowledging one or more published
// messages (spec.md §4.4's confirm accounting).
type Acked struct {
	ChannelID   uint16
	DeliveryTag uint64
	Multiple    bool
}

// Nacked is a negative publisher confirm.
type Nacked struct {
	ChannelID   uint16
	DeliveryTag uint64
	Multiple    bool
	Requeue     bool
}

// ConsumerCancelled reports that a consumer is gone: cancelled by the
// server via Basic.Cancel (consumer-cancel-notify, e.g. because its queue
// was deleted), confirmed by Basic.Cancel-Ok after a client-initiated
// BasicCancel, or evicted because its channel or connection closed.
// Terminal: the consumer will receive no further Delivered events.
type ConsumerCancelled struct {
	ChannelID   uint16
	ConsumerTag string
	// NoWait is false when this event confirms a client-initiated
	// Basic.Cancel; it is true for server-initiated cancel-notify and for
	// evictions on channel or connection close.
	NoWait bool
}

// ChannelClosed reports that a channel ended, gracefully or via a soft
// protocol error. Reason is nil for a clean client-initiated close.
type ChannelClosed struct {
	ChannelID uint16
	Reason    *Error
}

// ConnectionClosed reports that the connection ended, gracefully or via
// a hard protocol error or transport loss. Reason is nil for a clean
// client-initiated close.
type ConnectionClosed struct {
	Reason *Error
}

// FlowChanged reports a Channel.Flow request from the broker asking the
// client to pause or resume publishing on a channel.
type FlowChanged struct {
	ChannelID uint16
	Active    bool
}

func (Delivered) isEvent()         {}
func (Returned) isEvent()          {}
func (GetResult) isEvent()         {}
func (Acked) isEvent()             {}
func (Nacked) isEvent()            {}
func (ConsumerCancelled) isEvent() {}
func (ChannelClosed) isEvent()     {}
func (ConnectionClosed) isEvent()  {}
func (FlowChanged) isEvent()       {}
