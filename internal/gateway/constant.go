package gateway

import "time"

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200

	// DialTimeout bounds the websocket handshake
	DialTimeout = 10 * time.Second

	// ReconnectMin and ReconnectMax bound the backoff between dial attempts
	ReconnectMin = time.Second
	ReconnectMax = 30 * time.Second
)

// Query parameter keys for the gateway handshake
const (
	QueryToken       = "token"
	QuerySendId      = "send_id"
	QueryPlatformId  = "platform_id"
	QueryOperationId = "operation_id"
	QuerySDKType     = "sdk_type"
)

// SDK types
const (
	SDKTypeGo = "go"
)
