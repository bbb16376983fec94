package protocol

import (
	"context"
	"io"
	"os"

	"github.com/sourcegraph/jsonrpc2"
)

// Provider is implemented by a component executable.
type Provider interface {
	Identity() Identity
	Capabilities() map[string]Capability
}

// Pinger is optionally implemented by a Provider that can check its own
// upstream data source.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Serve answers requests on rwc until the host disconnects or ctx is
// cancelled. The host closes the connection after amgp.shutdown.
func Serve(ctx context.Context, rwc io.ReadWriteCloser, p Provider) error {
	stream := jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(ctx, stream, jsonrpc2.HandlerWithError(func(ctx context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
		switch req.Method {
		case MethodIdentity:
			return p.Identity(), nil
		case MethodCapabilities:
			return CapabilitiesResult{Capabilities: p.Capabilities()}, nil
		case MethodPing:
			pinger, ok := p.(Pinger)
			if !ok {
				return PingResult{Status: "ok"}, nil
			}
			status, err := pinger.Ping(ctx)
			if err != nil {
				return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeInternalError, Message: err.Error()}
			}
			return PingResult{Status: status}, nil
		case MethodShutdown:
			return struct{}{}, nil
		}
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "method not found: " + req.Method}
	}))

	select {
	case <-conn.DisconnectNotify():
		return nil
	case <-ctx.Done():
	}
	return conn.Close()
}

// Stdio is the connection a plugin executable serves on: requests arrive on
// stdin and replies go to stdout, so plugins must log to stderr.
func Stdio() io.ReadWriteCloser { return stdio{} }

type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return os.Stdin.Close() }
