package gateway

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mbeoliero/kit/log"

	"github.com/mbeoliero/chatsync/internal/event"
)

// Handler consumes decoded push events
type Handler interface {
	Handle(ev event.Event)
}

// Options configures the gateway client
type Options struct {
	URL        string // ws endpoint, e.g. ws://host:8081/ws
	Token      string
	UserId     string
	PlatformId int

	DialTimeout  time.Duration
	PongWait     time.Duration
	PingPeriod   time.Duration
	WriteWait    time.Duration
	MaxMsgSize   int64
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

func (o *Options) applyDefaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DialTimeout
	}
	if o.PongWait <= 0 {
		o.PongWait = PongWait
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = PingPeriod
	}
	if o.WriteWait <= 0 {
		o.WriteWait = WriteWait
	}
	if o.MaxMsgSize <= 0 {
		o.MaxMsgSize = MaxMessageSize
	}
	if o.ReconnectMin <= 0 {
		o.ReconnectMin = ReconnectMin
	}
	if o.ReconnectMax <= 0 {
		o.ReconnectMax = ReconnectMax
	}
}

// Client maintains a persistent connection to the push gateway. It dials,
// reads push frames, decodes them into events and hands them to the handler.
// On any connection error it redials with exponential backoff; after every
// successful dial it invokes onConnect so the owner can resync state missed
// while offline.
type Client struct {
	opts      Options
	codec     *event.Codec
	handler   Handler
	onConnect func(ctx context.Context) error

	mu     sync.Mutex
	conn   *Conn
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a gateway client. onConnect may be nil.
func NewClient(opts Options, handler Handler, onConnect func(ctx context.Context) error) *Client {
	opts.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:      opts,
		codec:     &event.Codec{CurrentUserId: opts.UserId},
		handler:   handler,
		onConnect: onConnect,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start begins the connect/read/reconnect loop
func (c *Client) Start() {
	go c.run()
}

func (c *Client) run() {
	defer close(c.done)

	backoff := c.opts.ReconnectMin
	for !c.closed.Load() {
		conn, err := c.dial()
		if err != nil {
			log.CtxWarn(c.ctx, "gateway dial failed: user_id=%s, error=%v, retry_in=%s", c.opts.UserId, err, backoff)
			if !c.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff, c.opts.ReconnectMax)
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		// Close may have run between the handshake and the store above; it
		// sets the closed flag before reading c.conn, so re-checking here
		// covers every interleaving. Without this the read loop would sit
		// on a healthy keepalive-extended connection forever.
		if c.closed.Load() {
			conn.Close()
			return
		}

		log.CtxInfo(c.ctx, "gateway connected: user_id=%s", c.opts.UserId)
		backoff = c.opts.ReconnectMin

		if c.onConnect != nil {
			if err := c.onConnect(c.ctx); err != nil {
				log.CtxWarn(c.ctx, "resync after connect failed: user_id=%s, error=%v", c.opts.UserId, err)
			}
		}

		c.readLoop(conn)
		conn.Close()

		if c.closed.Load() {
			return
		}
		if !c.sleep(backoff) {
			return
		}
		backoff = nextBackoff(backoff, c.opts.ReconnectMax)
	}
}

func (c *Client) dial() (*Conn, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set(QueryToken, c.opts.Token)
	q.Set(QuerySendId, c.opts.UserId)
	q.Set(QueryPlatformId, strconv.Itoa(c.opts.PlatformId))
	q.Set(QueryOperationId, uuid.NewString())
	q.Set(QuerySDKType, SDKTypeGo)
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	wsConn, _, err := dialer.DialContext(c.ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	return NewConn(wsConn, c.opts.MaxMsgSize, c.opts.PongWait, c.opts.PingPeriod, c.opts.WriteWait), nil
}

// readLoop reads frames until the connection breaks
func (c *Client) readLoop(conn *Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(c.ctx, "gateway read loop panic: user_id=%s, error=%v", c.opts.UserId, r)
		}
	}()

	for {
		message, err := conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.opts.UserId, err)
			}
			return
		}

		if c.closed.Load() {
			return
		}

		ev, err := c.codec.Decode(message)
		if err != nil {
			// Malformed frames are dropped, never fatal
			log.CtxWarn(c.ctx, "drop undecodable frame: user_id=%s, error=%v", c.opts.UserId, err)
			continue
		}
		if ev == nil {
			continue
		}

		c.handler.Handle(ev)
	}
}

// sleep waits for d or until the client is closed; it reports whether the
// client should keep running.
func (c *Client) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-c.ctx.Done():
		return false
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	next := cur * 2
	if next > max {
		return max
	}
	return next
}

// Close tears down the connection and stops the reconnect loop
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}

	<-c.done
	return nil
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
