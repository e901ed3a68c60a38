package amqp

import (
	"fmt"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
	"github.com/malinoff/amqproto-sub000/internal/encoding"
)

// SASLMechanism is the pluggable SASL response producer described in
// spec.md §4.6. Grounded on original_source/amqproto/auth.py; PLAIN and
// AMQPLAIN never challenge, so HandleChallenge is an error for both.
type SASLMechanism interface {
	// Name is the mechanism name advertised in Start-Ok, e.g. "PLAIN".
	Name() string
	// InitialResponse is sent as the SASL response bytes of Start-Ok.
	InitialResponse() ([]byte, error)
	// HandleChallenge computes a response to a Connection.Secure
	// challenge. May fail for mechanisms that never challenge.
	HandleChallenge(challenge []byte) ([]byte, error)
}

// errNoChallenge is returned by mechanisms that don't support
// Connection.Secure round trips.
type errNoChallenge struct{ mechanism string }

func (e *errNoChallenge) Error() string {
	return fmt.Sprintf("amqp: %s SASL mechanism does not support challenges", e.mechanism)
}

// PlainAuth implements the PLAIN SASL mechanism: the initial response is
// NUL username NUL password (spec.md §4.6).
type PlainAuth struct {
	Username string
	Password string
}

func (a *PlainAuth) Name() string { return "PLAIN" }

func (a *PlainAuth) InitialResponse() ([]byte, error) {
	resp := make([]byte, 0, len(a.Username)+len(a.Password)+2)
	resp = append(resp, 0)
	resp = append(resp, a.Username...)
	resp = append(resp, 0)
	resp = append(resp, a.Password...)
	return resp, nil
}

func (a *PlainAuth) HandleChallenge(_ []byte) ([]byte, error) {
	return nil, &errNoChallenge{mechanism: "PLAIN"}
}

// AMQPlainAuth implements the AMQPLAIN SASL mechanism: the initial
// response is a field table with keys LOGIN and PASSWORD (spec.md §4.6).
type AMQPlainAuth struct {
	Username string
	Password string
}

func (a *AMQPlainAuth) Name() string { return "AMQPLAIN" }

func (a *AMQPlainAuth) InitialResponse() ([]byte, error) {
	t := encoding.Table{}
	t.Set("LOGIN", a.Username)
	t.Set("PASSWORD", a.Password)

	var w buffer.Buffer
	if err := encoding.WriteTable(&w, t); err != nil {
		return nil, err
	}
	return w.Detach(), nil
}

func (a *AMQPlainAuth) HandleChallenge(_ []byte) ([]byte, error) {
	return nil, &errNoChallenge{mechanism: "AMQPLAIN"}
}
