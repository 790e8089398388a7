package devtools

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// Dynamic command ids start well above the reserved bands used by the
	// extraction sequence so the two can never collide.
	dynamicIDBase = 1000

	writeWait = 10 * time.Second
)

// Message is one inbound protocol frame. Command replies carry ID and Result
// or Error; events carry Method and Params with no ID.
type Message struct {
	ID     int64               `json:"id,omitempty"`
	Method string              `json:"method,omitempty"`
	Params jsoniter.RawMessage `json:"params,omitempty"`
	Result jsoniter.RawMessage `json:"result,omitempty"`
	Error  *CommandError       `json:"error,omitempty"`
}

// IsEvent reports whether the message is an unsolicited event rather than a
// reply to a command.
func (m Message) IsEvent() bool { return m.ID == 0 && m.Method != "" }

type command struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

// DialOptions tunes a control channel connection.
type DialOptions struct {
	QueueSize        int
	MaxMessageSize   int64
	HandshakeTimeout time.Duration
}

// Channel is a correlated request/reply channel over one debugging websocket.
// Inbound frames land in a bounded queue; WaitFor consumes the first frame
// matching a predicate. A single reader goroutine owns the socket reads and
// exits when the peer or Close tears the connection down.
type Channel struct {
	conn *websocket.Conn
	log  *zap.Logger

	queueSize int
	nextID    atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	queue   []Message
	notify  chan struct{}
	readErr error

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to a target's debugging websocket and starts the reader.
func Dial(ctx context.Context, wsURL string, opts DialOptions, logger *zap.Logger) (*Channel, error) {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing control channel %s: %w", wsURL, err)
	}
	if opts.MaxMessageSize > 0 {
		conn.SetReadLimit(opts.MaxMessageSize)
	}

	c := &Channel{
		conn:      conn,
		log:       logger.Named("devtools.channel"),
		queueSize: opts.QueueSize,
		notify:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	c.nextID.Store(dynamicIDBase)

	go c.readLoop()
	return c, nil
}

func (c *Channel) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.readErr = err
			close(c.notify)
			c.notify = make(chan struct{})
			c.mu.Unlock()
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn("dropping undecodable frame", zap.Error(err), zap.Int("bytes", len(data)))
			continue
		}
		c.enqueue(msg)
	}
}

func (c *Channel) enqueue(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) >= c.queueSize {
		dropped := c.queue[0]
		c.queue = c.queue[1:]
		c.log.Debug("inbound queue full, dropping oldest",
			zap.Int64("dropped_id", dropped.ID), zap.String("dropped_method", dropped.Method))
	}
	c.queue = append(c.queue, msg)
	close(c.notify)
	c.notify = make(chan struct{})
}

// Send issues a command under a freshly allocated id and returns that id.
func (c *Channel) Send(method string, params any) (int64, error) {
	id := c.nextID.Add(1)
	return id, c.SendWithID(id, method, params)
}

// SendWithID issues a command under a caller-chosen id. The reserved-id bands
// of the extraction sequence go through here.
func (c *Channel) SendWithID(id int64, method string, params any) error {
	payload, err := json.Marshal(command{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("encoding %s command: %w", method, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("sending %s command: %w", method, err)
	}
	c.log.Debug("sent command", zap.Int64("id", id), zap.String("method", method))
	return nil
}

// WaitFor blocks until a queued or newly arriving message satisfies pred,
// consuming and returning it. Messages that never match stay queued for later
// waiters. On expiry it returns a ProtocolTimeoutError; if the connection
// dies first, the read error is returned instead.
func (c *Channel) WaitFor(desc string, timeout time.Duration, pred func(Message) bool) (Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	start := time.Now()

	for {
		c.mu.Lock()
		for i := range c.queue {
			if pred(c.queue[i]) {
				msg := c.queue[i]
				c.queue = append(c.queue[:i], c.queue[i+1:]...)
				c.mu.Unlock()
				return msg, nil
			}
		}
		if c.readErr != nil {
			err := c.readErr
			c.mu.Unlock()
			return Message{}, fmt.Errorf("channel lost while waiting for %s: %w", desc, err)
		}
		notify := c.notify
		c.mu.Unlock()

		select {
		case <-notify:
		case <-timer.C:
			return Message{}, &ProtocolTimeoutError{WaitingFor: desc, Elapsed: time.Since(start)}
		}
	}
}

// WaitForID waits for the reply to a specific command id.
func (c *Channel) WaitForID(id int64, timeout time.Duration) (Message, error) {
	return c.WaitFor(fmt.Sprintf("reply to command %d", id), timeout, func(m Message) bool {
		return m.ID == id
	})
}

// Close tears down the connection. Safe to call any number of times; queued
// messages are discarded, never re-delivered.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.writeMu.Unlock()

		_ = c.conn.Close()
		<-c.done

		c.mu.Lock()
		c.queue = nil
		c.mu.Unlock()
	})
	return nil
}
