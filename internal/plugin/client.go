package plugin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/amgp/pkg/protocol"
)

var (
	ErrAlreadyClosed = errors.New("plugin client already closed")
	ErrBreakerOpen   = errors.New("plugin circuit breaker open")
)

// Client speaks the component protocol to one plugin connection.
type Client struct {
	conn         *jsonrpc2.Conn
	name         string
	timeout      time.Duration
	state        atomic.Value
	requestCount int64
	errorCount   int64
	lastRequest  time.Time
	mu           sync.RWMutex
	closedCh     chan struct{}
}

type stdioReadWriteCloser struct {
	reader io.ReadCloser
	writer io.WriteCloser
}

func (s *stdioReadWriteCloser) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *stdioReadWriteCloser) Write(p []byte) (int, error) {
	return s.writer.Write(p)
}

func (s *stdioReadWriteCloser) Close() error {
	werr := s.writer.Close()
	rerr := s.reader.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// NewClient starts a connection over rwc. The plugin side is expected to run
// protocol.Serve.
func NewClient(ctx context.Context, name string, rwc io.ReadWriteCloser, requestTimeout time.Duration) *Client {
	c := &Client{
		name:     name,
		timeout:  requestTimeout,
		closedCh: make(chan struct{}),
	}
	c.state.Store(StateReady)

	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	c.conn = jsonrpc2.NewConn(ctx, stream, &clientHandler{client: c})
	return c
}

func newStdioClient(ctx context.Context, name string, stdin io.WriteCloser, stdout io.ReadCloser, requestTimeout time.Duration) *Client {
	return NewClient(ctx, name, &stdioReadWriteCloser{reader: stdout, writer: stdin}, requestTimeout)
}

// clientHandler rejects plugin-initiated requests; the host never serves any.
type clientHandler struct {
	client *Client
}

func (h *clientHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	if req.Notif {
		log.Debug("plugin notification ignored", "plugin", h.client.name, "method", req.Method)
		return
	}
	err := &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "host serves no methods"}
	if rerr := conn.ReplyWithError(ctx, req.ID, err); rerr != nil {
		log.Debug("reply to plugin failed", "plugin", h.client.name, "error", rerr)
	}
}

func (c *Client) call(ctx context.Context, timeout time.Duration, method string, params, result interface{}) error {
	select {
	case <-c.closedCh:
		return ErrAlreadyClosed
	default:
	}

	c.recordRequest()
	if timeout <= 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := c.conn.Call(ctx, method, params, result); err != nil {
		c.recordError()
		return fmt.Errorf("%s %s: %w", c.name, method, err)
	}
	return nil
}

func (c *Client) Identity(ctx context.Context, timeout time.Duration) (protocol.Identity, error) {
	var id protocol.Identity
	err := c.call(ctx, timeout, protocol.MethodIdentity, nil, &id)
	return id, err
}

func (c *Client) Capabilities(ctx context.Context) (map[string]protocol.Capability, error) {
	var result protocol.CapabilitiesResult
	if err := c.call(ctx, 0, protocol.MethodCapabilities, nil, &result); err != nil {
		return nil, err
	}
	return result.Capabilities, nil
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	var result protocol.PingResult
	if err := c.call(ctx, 0, protocol.MethodPing, nil, &result); err != nil {
		return "", err
	}
	return result.Status, nil
}

// Shutdown tells the plugin the host is done with it.
func (c *Client) Shutdown(ctx context.Context) error {
	var result interface{}
	return c.call(ctx, 0, protocol.MethodShutdown, nil, &result)
}

func (c *Client) Close() error {
	select {
	case <-c.closedCh:
		return ErrAlreadyClosed
	default:
		close(c.closedCh)
	}

	c.state.Store(StateStopped)
	return c.conn.Close()
}

// Done is closed when the connection to the plugin is lost.
func (c *Client) Done() <-chan struct{} {
	return c.conn.DisconnectNotify()
}

func (c *Client) State() State {
	return c.state.Load().(State)
}

func (c *Client) Stats() ClientStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ClientStats{
		Name:         c.name,
		State:        c.State(),
		RequestCount: atomic.LoadInt64(&c.requestCount),
		ErrorCount:   atomic.LoadInt64(&c.errorCount),
		LastRequest:  c.lastRequest,
	}
}

func (c *Client) recordRequest() {
	atomic.AddInt64(&c.requestCount, 1)
	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *Client) recordError() {
	atomic.AddInt64(&c.errorCount, 1)
}
