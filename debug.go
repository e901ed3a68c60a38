package amqp

import (
	"log/slog"

	"github.com/malinoff/amqproto-sub000/internal/debug"
)

// RegisterLogger configures the library's debug logger with the input
// slog.Handler h. By default the debug logger uses a no-op handler and
// doesn't produce any log events; the host attaches a real handler (a
// text or JSON handler, or one backed by a third-party sink) to observe
// the structured events this package emits for handshake progress,
// frame routing, and error conditions.
func RegisterLogger(h slog.Handler) {
	debug.RegisterLogger(h)
}
