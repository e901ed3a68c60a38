package methods

// Class ids (spec.md §3's "Method" domain, assigned by the AMQP 0-9-1 spec).
const (
	ClassConnection = 10
	ClassChannel    = 20
	ClassExchange   = 40
	ClassQueue      = 50
	ClassBasic      = 60
	ClassConfirm    = 85
	ClassTx         = 90
)

func init() {
	registerConnectionMethods()
	registerChannelMethods()
	registerExchangeMethods()
	registerQueueMethods()
	registerBasicMethods()
	registerConfirmMethods()
	registerTxMethods()
}

func registerConnectionMethods() {
	register(&Spec{
		Key: Key{ClassConnection, 10}, ClassName: "connection", MethodName: "start",
		Fields: []FieldSpec{
			{Name: "version-major", Domain: DOctet},
			{Name: "version-minor", Domain: DOctet},
			{Name: "server-properties", Domain: DTable},
			{Name: "mechanisms", Domain: DLongStr},
			{Name: "locales", Domain: DLongStr},
		},
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassConnection, 11}, ClassName: "connection", MethodName: "start-ok",
		Fields: []FieldSpec{
			{Name: "client-properties", Domain: DTable},
			{Name: "mechanism", Domain: DShortStr},
			{Name: "response", Domain: DLongStr},
			{Name: "locale", Domain: DShortStr},
		},
	})
	register(&Spec{
		Key: Key{ClassConnection, 20}, ClassName: "connection", MethodName: "secure",
		Fields:            []FieldSpec{{Name: "challenge", Domain: DLongStr}},
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key:    Key{ClassConnection, 21},
		ClassName: "connection", MethodName: "secure-ok",
		Fields: []FieldSpec{{Name: "response", Domain: DLongStr}},
	})
	register(&Spec{
		Key: Key{ClassConnection, 30}, ClassName: "connection", MethodName: "tune",
		Fields: []FieldSpec{
			{Name: "channel-max", Domain: DShort},
			{Name: "frame-max", Domain: DLong},
			{Name: "heartbeat", Domain: DShort},
		},
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassConnection, 31}, ClassName: "connection", MethodName: "tune-ok",
		Fields: []FieldSpec{
			{Name: "channel-max", Domain: DShort},
			{Name: "frame-max", Domain: DLong},
			{Name: "heartbeat", Domain: DShort},
		},
	})
	register(&Spec{
		Key: Key{ClassConnection, 40}, ClassName: "connection", MethodName: "open",
		Fields: []FieldSpec{
			{Name: "virtual-host", Domain: DShortStr},
			{Name: "reserved-1", Domain: DShortStr, Reserved: true},
			{Name: "reserved-2", Domain: DBit, Reserved: true},
		},
		SyncReply: key(ClassConnection, 41),
	})
	register(&Spec{
		Key: Key{ClassConnection, 41}, ClassName: "connection", MethodName: "open-ok",
		Fields: []FieldSpec{{Name: "reserved-1", Domain: DShortStr, Reserved: true}},
	})
	register(&Spec{
		Key: Key{ClassConnection, 50}, ClassName: "connection", MethodName: "close",
		Fields: []FieldSpec{
			{Name: "reply-code", Domain: DShort},
			{Name: "reply-text", Domain: DShortStr},
			{Name: "class-id", Domain: DShort},
			{Name: "method-id", Domain: DShort},
		},
		SyncReply:         key(ClassConnection, 51),
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassConnection, 51}, ClassName: "connection", MethodName: "close-ok",
	})
}

func registerChannelMethods() {
	register(&Spec{
		Key: Key{ClassChannel, 10}, ClassName: "channel", MethodName: "open",
		Fields:    []FieldSpec{{Name: "reserved-1", Domain: DShortStr, Reserved: true}},
		SyncReply: key(ClassChannel, 11),
	})
	register(&Spec{
		Key: Key{ClassChannel, 11}, ClassName: "channel", MethodName: "open-ok",
		Fields: []FieldSpec{{Name: "reserved-1", Domain: DLongStr, Reserved: true}},
	})
	register(&Spec{
		Key: Key{ClassChannel, 20}, ClassName: "channel", MethodName: "flow",
		Fields:            []FieldSpec{{Name: "active", Domain: DBit}},
		SyncReply:         key(ClassChannel, 21),
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassChannel, 21}, ClassName: "channel", MethodName: "flow-ok",
		Fields: []FieldSpec{{Name: "active", Domain: DBit}},
	})
	register(&Spec{
		Key: Key{ClassChannel, 40}, ClassName: "channel", MethodName: "close",
		Fields: []FieldSpec{
			{Name: "reply-code", Domain: DShort},
			{Name: "reply-text", Domain: DShortStr},
			{Name: "class-id", Domain: DShort},
			{Name: "method-id", Domain: DShort},
		},
		SyncReply:         key(ClassChannel, 41),
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassChannel, 41}, ClassName: "channel", MethodName: "close-ok",
	})
}

func registerExchangeMethods() {
	register(&Spec{
		Key: Key{ClassExchange, 10}, ClassName: "exchange", MethodName: "declare",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "exchange", Domain: DShortStr},
			{Name: "type", Domain: DShortStr},
			{Name: "passive", Domain: DBit},
			{Name: "durable", Domain: DBit},
			{Name: "auto-delete", Domain: DBit},
			{Name: "internal", Domain: DBit},
			{Name: "no-wait", Domain: DBit},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassExchange, 11),
	})
	register(&Spec{Key: Key{ClassExchange, 11}, ClassName: "exchange", MethodName: "declare-ok"})
	register(&Spec{
		Key: Key{ClassExchange, 20}, ClassName: "exchange", MethodName: "delete",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "exchange", Domain: DShortStr},
			{Name: "if-unused", Domain: DBit},
			{Name: "no-wait", Domain: DBit},
		},
		SyncReply: key(ClassExchange, 21),
	})
	register(&Spec{Key: Key{ClassExchange, 21}, ClassName: "exchange", MethodName: "delete-ok"})
	register(&Spec{
		Key: Key{ClassExchange, 30}, ClassName: "exchange", MethodName: "bind",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "destination", Domain: DShortStr},
			{Name: "source", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
			{Name: "no-wait", Domain: DBit},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassExchange, 31),
	})
	register(&Spec{Key: Key{ClassExchange, 31}, ClassName: "exchange", MethodName: "bind-ok"})
	register(&Spec{
		Key: Key{ClassExchange, 40}, ClassName: "exchange", MethodName: "unbind",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "destination", Domain: DShortStr},
			{Name: "source", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
			{Name: "no-wait", Domain: DBit},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassExchange, 51),
	})
	register(&Spec{Key: Key{ClassExchange, 51}, ClassName: "exchange", MethodName: "unbind-ok"})
}

func registerQueueMethods() {
	register(&Spec{
		Key: Key{ClassQueue, 10}, ClassName: "queue", MethodName: "declare",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "passive", Domain: DBit},
			{Name: "durable", Domain: DBit},
			{Name: "exclusive", Domain: DBit},
			{Name: "auto-delete", Domain: DBit},
			{Name: "no-wait", Domain: DBit},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassQueue, 11),
	})
	register(&Spec{
		Key: Key{ClassQueue, 11}, ClassName: "queue", MethodName: "declare-ok",
		Fields: []FieldSpec{
			{Name: "queue", Domain: DShortStr},
			{Name: "message-count", Domain: DLong},
			{Name: "consumer-count", Domain: DLong},
		},
	})
	register(&Spec{
		Key: Key{ClassQueue, 20}, ClassName: "queue", MethodName: "bind",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "exchange", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
			{Name: "no-wait", Domain: DBit},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassQueue, 21),
	})
	register(&Spec{Key: Key{ClassQueue, 21}, ClassName: "queue", MethodName: "bind-ok"})
	register(&Spec{
		Key: Key{ClassQueue, 30}, ClassName: "queue", MethodName: "purge",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "no-wait", Domain: DBit},
		},
		SyncReply: key(ClassQueue, 31),
	})
	register(&Spec{
		Key: Key{ClassQueue, 31}, ClassName: "queue", MethodName: "purge-ok",
		Fields: []FieldSpec{{Name: "message-count", Domain: DLong}},
	})
	register(&Spec{
		Key: Key{ClassQueue, 40}, ClassName: "queue", MethodName: "delete",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "if-unused", Domain: DBit},
			{Name: "if-empty", Domain: DBit},
			{Name: "no-wait", Domain: DBit},
		},
		SyncReply: key(ClassQueue, 41),
	})
	register(&Spec{
		Key: Key{ClassQueue, 41}, ClassName: "queue", MethodName: "delete-ok",
		Fields: []FieldSpec{{Name: "message-count", Domain: DLong}},
	})
	register(&Spec{
		Key: Key{ClassQueue, 50}, ClassName: "queue", MethodName: "unbind",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "exchange", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassQueue, 51),
	})
	register(&Spec{Key: Key{ClassQueue, 51}, ClassName: "queue", MethodName: "unbind-ok"})
}

func registerBasicMethods() {
	register(&Spec{
		Key: Key{ClassBasic, 10}, ClassName: "basic", MethodName: "qos",
		Fields: []FieldSpec{
			{Name: "prefetch-size", Domain: DLong},
			{Name: "prefetch-count", Domain: DShort},
			{Name: "global", Domain: DBit},
		},
		SyncReply: key(ClassBasic, 11),
	})
	register(&Spec{Key: Key{ClassBasic, 11}, ClassName: "basic", MethodName: "qos-ok"})
	register(&Spec{
		Key: Key{ClassBasic, 20}, ClassName: "basic", MethodName: "consume",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "consumer-tag", Domain: DShortStr},
			{Name: "no-local", Domain: DBit},
			{Name: "no-ack", Domain: DBit},
			{Name: "exclusive", Domain: DBit},
			{Name: "no-wait", Domain: DBit},
			{Name: "arguments", Domain: DTable},
		},
		SyncReply: key(ClassBasic, 21),
	})
	register(&Spec{
		Key: Key{ClassBasic, 21}, ClassName: "basic", MethodName: "consume-ok",
		Fields: []FieldSpec{{Name: "consumer-tag", Domain: DShortStr}},
	})
	register(&Spec{
		Key: Key{ClassBasic, 30}, ClassName: "basic", MethodName: "cancel",
		Fields: []FieldSpec{
			{Name: "consumer-tag", Domain: DShortStr},
			{Name: "no-wait", Domain: DBit},
		},
		SyncReply:         key(ClassBasic, 31),
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassBasic, 31}, ClassName: "basic", MethodName: "cancel-ok",
		Fields: []FieldSpec{{Name: "consumer-tag", Domain: DShortStr}},
	})
	register(&Spec{
		Key: Key{ClassBasic, 40}, ClassName: "basic", MethodName: "publish",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "exchange", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
			{Name: "mandatory", Domain: DBit},
			{Name: "immediate", Domain: DBit},
		},
		CarriesContent: true,
	})
	register(&Spec{
		Key: Key{ClassBasic, 50}, ClassName: "basic", MethodName: "return",
		Fields: []FieldSpec{
			{Name: "reply-code", Domain: DShort},
			{Name: "reply-text", Domain: DShortStr},
			{Name: "exchange", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
		},
		CarriesContent:    true,
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassBasic, 60}, ClassName: "basic", MethodName: "deliver",
		Fields: []FieldSpec{
			{Name: "consumer-tag", Domain: DShortStr},
			{Name: "delivery-tag", Domain: DLongLong},
			{Name: "redelivered", Domain: DBit},
			{Name: "exchange", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
		},
		CarriesContent:    true,
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassBasic, 70}, ClassName: "basic", MethodName: "get",
		Fields: []FieldSpec{
			{Name: "reserved-1", Domain: DShort, Reserved: true},
			{Name: "queue", Domain: DShortStr},
			{Name: "no-ack", Domain: DBit},
		},
		// get's reply is one of two methods (get-ok|get-empty); the
		// channel engine resolves it explicitly rather than through
		// SyncReply.
	})
	register(&Spec{
		Key: Key{ClassBasic, 71}, ClassName: "basic", MethodName: "get-ok",
		Fields: []FieldSpec{
			{Name: "delivery-tag", Domain: DLongLong},
			{Name: "redelivered", Domain: DBit},
			{Name: "exchange", Domain: DShortStr},
			{Name: "routing-key", Domain: DShortStr},
			{Name: "message-count", Domain: DLong},
		},
		CarriesContent: true,
	})
	register(&Spec{
		Key: Key{ClassBasic, 72}, ClassName: "basic", MethodName: "get-empty",
		Fields: []FieldSpec{{Name: "reserved-1", Domain: DShortStr, Reserved: true}},
	})
	register(&Spec{
		Key: Key{ClassBasic, 80}, ClassName: "basic", MethodName: "ack",
		Fields: []FieldSpec{
			{Name: "delivery-tag", Domain: DLongLong},
			{Name: "multiple", Domain: DBit},
		},
		ServerMayInitiate: true,
	})
	register(&Spec{
		Key: Key{ClassBasic, 90}, ClassName: "basic", MethodName: "reject",
		Fields: []FieldSpec{
			{Name: "delivery-tag", Domain: DLongLong},
			{Name: "requeue", Domain: DBit},
		},
	})
	register(&Spec{
		Key: Key{ClassBasic, 100}, ClassName: "basic", MethodName: "recover-async",
		Fields: []FieldSpec{{Name: "requeue", Domain: DBit}},
	})
	register(&Spec{
		Key: Key{ClassBasic, 110}, ClassName: "basic", MethodName: "recover",
		Fields:    []FieldSpec{{Name: "requeue", Domain: DBit}},
		SyncReply: key(ClassBasic, 111),
	})
	register(&Spec{Key: Key{ClassBasic, 111}, ClassName: "basic", MethodName: "recover-ok"})
	register(&Spec{
		Key: Key{ClassBasic, 120}, ClassName: "basic", MethodName: "nack",
		Fields: []FieldSpec{
			{Name: "delivery-tag", Domain: DLongLong},
			{Name: "multiple", Domain: DBit},
			{Name: "requeue", Domain: DBit},
		},
		ServerMayInitiate: true,
	})
}

func registerConfirmMethods() {
	register(&Spec{
		Key: Key{ClassConfirm, 10}, ClassName: "confirm", MethodName: "select",
		Fields:    []FieldSpec{{Name: "no-wait", Domain: DBit}},
		SyncReply: key(ClassConfirm, 11),
	})
	register(&Spec{Key: Key{ClassConfirm, 11}, ClassName: "confirm", MethodName: "select-ok"})
}

func registerTxMethods() {
	register(&Spec{Key: Key{ClassTx, 10}, ClassName: "tx", MethodName: "select", SyncReply: key(ClassTx, 11)})
	register(&Spec{Key: Key{ClassTx, 11}, ClassName: "tx", MethodName: "select-ok"})
	register(&Spec{Key: Key{ClassTx, 20}, ClassName: "tx", MethodName: "commit", SyncReply: key(ClassTx, 21)})
	register(&Spec{Key: Key{ClassTx, 21}, ClassName: "tx", MethodName: "commit-ok"})
	register(&Spec{Key: Key{ClassTx, 30}, ClassName: "tx", MethodName: "rollback", SyncReply: key(ClassTx, 31)})
	register(&Spec{Key: Key{ClassTx, 31}, ClassName: "tx", MethodName: "rollback-ok"})
}
