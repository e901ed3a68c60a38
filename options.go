package amqp

import (
	"time"

	"github.com/malinoff/amqproto-sub000/internal/encoding"
)

// ConnOption configures a Connection at construction, following the
// error-returning functional-option shape of Azure-go-amqp's LinkOption
// (see link_test.go's LinkWithManualCredits).
type ConnOption func(*connConfig) error

type connConfig struct {
	auth        SASLMechanism
	vhost       string
	locale      string
	channelMax  uint16
	frameMax    uint32
	heartbeat   time.Duration
	clientProps map[string]interface{}
}

func defaultConnConfig() *connConfig {
	return &connConfig{
		auth:        &PlainAuth{Username: "guest", Password: "guest"},
		vhost:       "/",
		locale:      "en_US",
		channelMax:  2047,
		frameMax:    131072,
		heartbeat:   60 * time.Second,
		clientProps: defaultClientProperties(),
	}
}

// defaultClientProperties is the client-properties table sent in
// Connection.Start-Ok (SPEC_FULL.md §4's supplemented feature).
func defaultClientProperties() map[string]interface{} {
	return map[string]interface{}{
		"product":      "amqproto-sub000",
		"platform":     "Go",
		"capabilities": encoding.NewTable(map[string]interface{}{"consumer_cancel_notify": true}),
	}
}

// ConnSASLMechanism sets the SASL mechanism used during the handshake.
// Defaults to PlainAuth{"guest", "guest"}.
func ConnSASLMechanism(m SASLMechanism) ConnOption {
	return func(c *connConfig) error {
		c.auth = m
		return nil
	}
}

// ConnVirtualHost sets the virtual host opened in Connection.Open.
// Defaults to "/".
func ConnVirtualHost(vhost string) ConnOption {
	return func(c *connConfig) error {
		c.vhost = vhost
		return nil
	}
}

// ConnLocale sets the locale proposed in Connection.Start-Ok.
func ConnLocale(locale string) ConnOption {
	return func(c *connConfig) error {
		c.locale = locale
		return nil
	}
}

// ConnMaxChannels caps the number of channels this connection will
// propose to negotiate in Connection.Tune-Ok. 0 means no client-side
// limit (defer entirely to the server's proposal).
func ConnMaxChannels(n uint16) ConnOption {
	return func(c *connConfig) error {
		c.channelMax = n
		return nil
	}
}

// ConnMaxFrameSize caps the frame size this connection will propose in
// Connection.Tune-Ok. Nonzero values below frames.MinFrameSize are
// rejected; 0 means no client-side limit.
func ConnMaxFrameSize(n uint32) ConnOption {
	return func(c *connConfig) error {
		if n != 0 && n < 4096 {
			return newErrf("amqp: frame size %d below minimum 4096", n)
		}
		c.frameMax = n
		return nil
	}
}

// ConnHeartbeat sets the heartbeat interval this connection proposes.
// 0 disables heartbeats.
func ConnHeartbeat(d time.Duration) ConnOption {
	return func(c *connConfig) error {
		c.heartbeat = d
		return nil
	}
}

// ConnProperty sets a single entry of the client-properties table sent
// in Connection.Start-Ok.
func ConnProperty(key string, value interface{}) ConnOption {
	return func(c *connConfig) error {
		if c.clientProps == nil {
			c.clientProps = map[string]interface{}{}
		}
		c.clientProps[key] = value
		return nil
	}
}

// ChannelOption configures a Channel at construction.
type ChannelOption func(*channelConfig) error

type channelConfig struct {
	prefetchCount  uint16
	prefetchSize   uint32
	prefetchGlobal bool
}

func defaultChannelConfig() *channelConfig {
	return &channelConfig{}
}

// ChannelPrefetch sets the initial Basic.Qos applied when the channel
// opens. global mirrors the Basic.Qos "global" field (spec.md's
// basic_qos operation).
func ChannelPrefetch(count uint16, size uint32, global bool) ChannelOption {
	return func(c *channelConfig) error {
		c.prefetchCount = count
		c.prefetchSize = size
		c.prefetchGlobal = global
		return nil
	}
}
