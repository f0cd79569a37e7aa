// Package client talks to a running irqd over its socket. Every call uses
// a fresh connection, so a Client is safe for concurrent use.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/l3aro/go-ir-query/internal/daemon"
	"github.com/l3aro/go-ir-query/pkg/ir"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 5 * time.Second

// Error is a failure reported by the daemon rather than by the transport.
type Error struct {
	Command string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("daemon error (%s): %s", e.Command, e.Message)
}

// Client is a daemon client
type Client struct {
	socketPath string
	timeout    time.Duration
	seq        atomic.Uint64
}

// Option is a client option
type Option func(*Client)

// WithSocketPath sets the socket path. Empty means the daemon default.
func WithSocketPath(path string) Option {
	return func(c *Client) {
		c.socketPath = path
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// New creates a new daemon client
func New(opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// call sends one command and decodes its result into out. The request is
// bounded by the client timeout and by ctx.
func (c *Client) call(ctx context.Context, typ string, params, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := daemon.Dial(c.socketPath, c.timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok && deadline.Before(time.Now().Add(c.timeout)) {
		conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	cmd := daemon.Command{
		Type: typ,
		ID:   fmt.Sprintf("%s-%d", typ, c.seq.Add(1)),
	}
	if params != nil {
		if cmd.Params, err = json.Marshal(params); err != nil {
			return fmt.Errorf("marshaling params: %w", err)
		}
	}

	if err := json.NewEncoder(conn).Encode(cmd); err != nil {
		return c.transportError(ctx, "sending command", err)
	}
	var resp daemon.Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return c.transportError(ctx, "reading response", err)
	}
	if resp.Error != "" {
		return &Error{Command: typ, Message: resp.Error}
	}
	if resp.ID != cmd.ID {
		return fmt.Errorf("response id %q does not match request %q", resp.ID, cmd.ID)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", typ, err)
	}
	return nil
}

// transportError prefers the context error when ctx ended the exchange.
func (c *Client) transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", op, ctxErr)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Available reports whether a daemon answers on the socket.
func (c *Client) Available(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}

// Status returns the daemon status.
func (c *Client) Status(ctx context.Context) (*daemon.ServerStatus, error) {
	var st daemon.ServerStatus
	if err := c.call(ctx, daemon.CmdStatus, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Open syncs document into the daemon. With a nil text the daemon reads the
// file at document itself, so document should be an absolute path.
func (c *Client) Open(ctx context.Context, document string, text *string) (*daemon.SyncResult, error) {
	var res daemon.SyncResult
	if err := c.call(ctx, daemon.CmdOpen, daemon.OpenParams{Document: document, Text: text}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Edit reports edited changed characters and, when text is not nil, syncs
// the new text.
func (c *Client) Edit(ctx context.Context, document string, edited int, text *string) (*daemon.SyncResult, error) {
	var res daemon.SyncResult
	params := daemon.EditParams{Document: document, Edited: edited, Text: text}
	if err := c.call(ctx, daemon.CmdEdit, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Funcs returns the published graph of an open document.
func (c *Client) Funcs(ctx context.Context, document string) (*ir.Graph, error) {
	var g ir.Graph
	if err := c.call(ctx, daemon.CmdFuncs, daemon.DocumentParams{Document: document}, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// At returns the function containing the byte offset, or nil.
func (c *Client) At(ctx context.Context, document string, offset int) (*ir.FunctionInfo, error) {
	var res daemon.AtResult
	if err := c.call(ctx, daemon.CmdAt, daemon.AtParams{Document: document, Offset: offset}, &res); err != nil {
		return nil, err
	}
	return res.Function, nil
}

// Nodes returns the nodes of function in an open document.
func (c *Client) Nodes(ctx context.Context, document, function string) (*ir.NodeSet, error) {
	var set ir.NodeSet
	if err := c.call(ctx, daemon.CmdNodes, daemon.NodesParams{Document: document, Function: function}, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// Layout lays out the call graph, or the data flow of params.Function.
func (c *Client) Layout(ctx context.Context, params daemon.LayoutParams) (*daemon.LayoutResult, error) {
	var res daemon.LayoutResult
	if err := c.call(ctx, daemon.CmdLayout, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Close forgets an open document.
func (c *Client) Close(ctx context.Context, document string) error {
	return c.call(ctx, daemon.CmdClose, daemon.DocumentParams{Document: document}, nil)
}

// Stop asks the daemon to shut down.
func (c *Client) Stop(ctx context.Context) error {
	return c.call(ctx, daemon.CmdStop, nil, nil)
}

// IsDaemonError reports whether err was returned by the daemon itself.
func IsDaemonError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
