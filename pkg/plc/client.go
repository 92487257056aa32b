package plc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"go.uber.org/atomic"
	"k8s.io/klog/v2"
	"opcbridge/pkg/utils/pingutil"
)

// Client is a façade over a single PLC endpoint. The endpoint address and
// credentials are fixed at construction; all protocol work is delegated to
// the underlying OPC UA session.
type Client struct {
	ip       string
	port     int
	url      string
	username string
	password string

	dial  func() (Session, error)
	probe func(host string, timeout time.Duration) bool

	mu           sync.Mutex
	session      Session
	sub          Subscription
	dispatchDone chan struct{}
	subs         map[string]*monitoredNode
	handles      map[uint32]string
	nextHandle   uint32

	connected *atomic.Bool

	obsMu           sync.Mutex
	errorObservers  []func(message string)
	statusObservers []func(connected bool)
}

type Option func(*Client)

func WithPort(port int) Option {
	return func(c *Client) {
		if port > 0 {
			c.port = port
		}
	}
}

func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithProbe replaces the ICMP reachability probe.
func WithProbe(probe func(host string, timeout time.Duration) bool) Option {
	return func(c *Client) {
		c.probe = probe
	}
}

// WithDialer replaces the session factory.
func WithDialer(dial func() (Session, error)) Option {
	return func(c *Client) {
		c.dial = dial
	}
}

func New(ip string, opts ...Option) *Client {
	c := &Client{
		ip:         ip,
		port:       DefaultPort,
		probe:      pingutil.Reachable,
		subs:       make(map[string]*monitoredNode),
		handles:    make(map[uint32]string),
		nextHandle: 1,
		connected:  atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.url = fmt.Sprintf("opc.tcp://%s:%d", ip, c.port)
	if c.dial == nil {
		c.dial = func() (Session, error) {
			return dialUa(c.url, c.username, c.password)
		}
	}
	return c
}

func (c *Client) Ip() string {
	return c.ip
}

func (c *Client) Url() string {
	return c.url
}

// OnError registers an observer fired with a human-readable message whenever
// a connect, read, write or subscribe operation fails.
func (c *Client) OnError(observer func(message string)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.errorObservers = append(c.errorObservers, observer)
}

// OnStatusChange registers an observer fired with the connected flag each
// time the façade observes a session status transition.
func (c *Client) OnStatusChange(observer func(connected bool)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.statusObservers = append(c.statusObservers, observer)
}

// Open connects the underlying session synchronously. It returns the
// resulting connected flag; failures are reported to the error observers and
// never retried here.
func (c *Client) Open(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		session, err := c.dial()
		if err != nil {
			klog.V(2).InfoS("Failed to create opc ua client", "url", c.url, "err", err)
			c.reportError("Failed to create opc ua client %s: %v", c.url, err)
			return false
		}
		c.session = session
	}
	if err := c.session.Connect(ctx); err != nil {
		klog.V(2).InfoS("Failed to connect opc ua server", "url", c.url, "err", err)
		c.reportError("Failed to connect opc ua server %s: %v", c.url, err)
		return false
	}
	connected := c.session.Connected()
	c.setConnected(connected)
	return connected
}

// Close disconnects from the PLC. Errors from the underlying client are
// swallowed; the next Open dials a fresh session.
func (c *Client) Close(ctx context.Context) {
	c.mu.Lock()
	session := c.session
	sub := c.sub
	done := c.dispatchDone
	c.session = nil
	c.sub = nil
	c.dispatchDone = nil
	c.mu.Unlock()

	if sub != nil {
		_ = sub.Cancel(ctx)
	}
	if session != nil {
		_ = session.Close(ctx)
	}
	if done != nil {
		close(done)
	}
	c.setConnected(false)
}

// IsAvailable reports whether the PLC answers a single echo probe within one
// second. An unparsable address is unavailable.
func (c *Client) IsAvailable() bool {
	return c.probe(c.ip, probeTimeout)
}

// IsConnected re-verifies connectivity on every call: the session must
// exist, the endpoint must answer the probe, and the underlying client must
// report an active session.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return false
	}
	if !c.IsAvailable() {
		return false
	}
	return session.Connected()
}

func (c *Client) currentSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Client) reportError(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	c.obsMu.Lock()
	observers := make([]func(string), len(c.errorObservers))
	copy(observers, c.errorObservers)
	c.obsMu.Unlock()
	for _, observer := range observers {
		observer(message)
	}
}

func (c *Client) setConnected(connected bool) {
	if c.connected.Swap(connected) == connected {
		return
	}
	c.obsMu.Lock()
	observers := make([]func(bool), len(c.statusObservers))
	copy(observers, c.statusObservers)
	c.obsMu.Unlock()
	for _, observer := range observers {
		observer(connected)
	}
}

// ensureSubscription lazily creates the publish subscription and its
// dispatch goroutine. Callers must hold c.mu.
func (c *Client) ensureSubscription(ctx context.Context) error {
	if c.sub != nil {
		return nil
	}
	if c.session == nil {
		return ErrNotConnected
	}
	notifyCh := make(chan *opcua.PublishNotificationData, notifyBuffer)
	sub, err := c.session.Subscribe(ctx, defaultPublishInterval, notifyCh)
	if err != nil {
		return err
	}
	done := make(chan struct{})
	c.sub = sub
	c.dispatchDone = done
	go c.dispatch(notifyCh, done)
	return nil
}
