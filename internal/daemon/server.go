package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/l3aro/go-ir-query/internal/log"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/layout"
	"github.com/l3aro/go-ir-query/pkg/session"
)

// IdleTimeout closes a connection that sends nothing for this long.
const IdleTimeout = 30 * time.Second

// Server answers commands against a session of open documents.
type Server struct {
	session *session.Session
	layout  layout.Options
	logger  log.Logger
	version string
	started time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(l log.Logger) ServerOption {
	return func(s *Server) {
		s.logger = l
	}
}

// WithLayoutOptions sets the geometry layout requests start from.
func WithLayoutOptions(opts layout.Options) ServerOption {
	return func(s *Server) {
		s.layout = opts
	}
}

// WithVersion sets the version reported by status.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a Server. It runs until ctx is cancelled or a stop
// command arrives.
func NewServer(ctx context.Context, sess *session.Session, opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(ctx)
	s := &Server{
		session: sess,
		layout:  layout.DefaultOptions(),
		logger:  log.Default(),
		version: "dev",
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Done is closed once the server is stopping.
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Stop makes Serve return.
func (s *Server) Stop() {
	s.cancel()
}

// Listen opens the endpoint for socketPath. A stale Unix socket file is
// removed first.
func Listen(socketPath string) (net.Listener, error) {
	network, address := Endpoint(socketPath)
	if network == "unix" {
		if err := os.Remove(address); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing existing socket: %w", err)
		}
	}
	l, err := net.Listen(network, address)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", address, err)
	}
	if network == "unix" {
		if err := os.Chmod(address, 0700); err != nil {
			l.Close()
			return nil, fmt.Errorf("setting socket permissions: %w", err)
		}
	}
	return l, nil
}

// Serve accepts connections on l until the server stops, then closes l.
// Accept errors are retried with a backoff capped at one second.
func (s *Server) Serve(l net.Listener) error {
	stop := context.AfterFunc(s.ctx, func() { l.Close() })
	defer stop()

	s.logger.Info("serving", "address", l.Addr().String())

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			if tempDelay == 0 {
				tempDelay = time.Millisecond
			} else {
				tempDelay *= 2
			}
			if tempDelay > time.Second {
				tempDelay = time.Second
			}
			s.logger.Warn("accept failed", "error", err, "retry_in", tempDelay)
			select {
			case <-time.After(tempDelay):
				continue
			case <-s.ctx.Done():
				return nil
			}
		}
		tempDelay = 0

		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		conn.SetReadDeadline(time.Now().Add(IdleTimeout))

		var cmd Command
		if err := decoder.Decode(&cmd); err != nil {
			var netErr net.Error
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || (errors.As(err, &netErr) && netErr.Timeout()) {
				return
			}
			// the stream cannot be resynchronised after malformed JSON
			encoder.Encode(Response{Error: fmt.Sprintf("decode error: %v", err)})
			return
		}

		resp := s.Handle(cmd)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Warn("encode failed", "command", cmd.Type, "error", err)
			return
		}
		if s.ctx.Err() != nil {
			return
		}
	}
}

// Handle executes one command.
func (s *Server) Handle(cmd Command) Response {
	s.logger.Debug("command", "type", cmd.Type, "id", cmd.ID)

	var (
		result any
		err    error
	)
	switch cmd.Type {
	case CmdStatus:
		result = s.status()
	case CmdOpen:
		result, err = s.open(cmd.Params)
	case CmdEdit:
		result, err = s.edit(cmd.Params)
	case CmdFuncs:
		result, err = s.funcs(cmd.Params)
	case CmdAt:
		result, err = s.at(cmd.Params)
	case CmdNodes:
		result, err = s.nodes(cmd.Params)
	case CmdLayout:
		result, err = s.layoutOf(cmd.Params)
	case CmdClose:
		result, err = s.close(cmd.Params)
	case CmdStop:
		s.Stop()
		result = map[string]string{"status": "stopped"}
	default:
		err = fmt.Errorf("unknown command: %s", cmd.Type)
	}
	if err != nil {
		return Response{ID: cmd.ID, Type: cmd.Type, Error: err.Error()}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return Response{ID: cmd.ID, Type: cmd.Type, Error: fmt.Sprintf("marshal error: %v", err)}
	}
	return Response{ID: cmd.ID, Type: cmd.Type, Result: data}
}

// decode unmarshals params into v and checks the document name.
func decode[T any](params json.RawMessage, document func(*T) string) (*T, error) {
	var v T
	if len(params) > 0 {
		if err := json.Unmarshal(params, &v); err != nil {
			return nil, fmt.Errorf("invalid params: %w", err)
		}
	}
	if document(&v) == "" {
		return nil, errors.New("document is required")
	}
	return &v, nil
}

func (s *Server) status() ServerStatus {
	return ServerStatus{
		Version:   s.version,
		Status:    "running",
		PID:       os.Getpid(),
		Documents: s.session.Documents(),
		Cache:     s.session.CacheStats(),
		StartedAt: s.started,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}
}

func (s *Server) sync(id string, text *string) (*SyncResult, error) {
	var body string
	if text != nil {
		body = *text
	} else {
		data, err := os.ReadFile(id)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", id, err)
		}
		body = string(data)
	}

	g, fresh, err := s.session.Sync(s.ctx, id, body)
	if err != nil {
		return nil, err
	}
	if fresh {
		s.logger.Debug("parsed document", "document", id, "functions", len(g.Functions))
	}
	return &SyncResult{Document: id, Fresh: fresh, Graph: g}, nil
}

func (s *Server) open(params json.RawMessage) (*SyncResult, error) {
	p, err := decode(params, func(p *OpenParams) string { return p.Document })
	if err != nil {
		return nil, err
	}
	return s.sync(p.Document, p.Text)
}

func (s *Server) edit(params json.RawMessage) (*SyncResult, error) {
	p, err := decode(params, func(p *EditParams) string { return p.Document })
	if err != nil {
		return nil, err
	}
	g, err := s.session.Graph(p.Document)
	if err != nil {
		return nil, err
	}
	if p.Edited < 0 {
		return nil, fmt.Errorf("edited must be non-negative, got %d", p.Edited)
	}
	s.session.Edit(p.Document, p.Edited)
	if p.Text == nil {
		return &SyncResult{Document: p.Document, Graph: g}, nil
	}
	return s.sync(p.Document, p.Text)
}

func (s *Server) funcs(params json.RawMessage) (*ir.Graph, error) {
	p, err := decode(params, func(p *DocumentParams) string { return p.Document })
	if err != nil {
		return nil, err
	}
	return s.session.Graph(p.Document)
}

func (s *Server) at(params json.RawMessage) (*AtResult, error) {
	p, err := decode(params, func(p *AtParams) string { return p.Document })
	if err != nil {
		return nil, err
	}
	g, err := s.session.Graph(p.Document)
	if err != nil {
		return nil, err
	}
	out := &AtResult{Document: p.Document, Offset: p.Offset}
	if i, ok := g.FunctionAt(p.Offset); ok {
		fn := g.Functions[i]
		out.Function = &fn
	}
	return out, nil
}

// function resolves a qualified or simple function name in an open document.
func (s *Server) function(document, name string) (ir.FunctionInfo, error) {
	g, err := s.session.Graph(document)
	if err != nil {
		return ir.FunctionInfo{}, err
	}
	fn, ok := g.Function(name)
	if !ok {
		return ir.FunctionInfo{}, fmt.Errorf("%s: %w", name, ir.ErrUnknownFunction)
	}
	return fn, nil
}

func (s *Server) nodes(params json.RawMessage) (*ir.NodeSet, error) {
	p, err := decode(params, func(p *NodesParams) string { return p.Document })
	if err != nil {
		return nil, err
	}
	fn, err := s.function(p.Document, p.Function)
	if err != nil {
		return nil, err
	}
	return s.session.Nodes(p.Document, fn.Name)
}

func (s *Server) layoutOf(params json.RawMessage) (*LayoutResult, error) {
	p, err := decode(params, func(p *LayoutParams) string { return p.Document })
	if err != nil {
		return nil, err
	}

	opts := s.layout
	if p.Strategy != "" {
		if opts.Strategy, err = layout.ParseStrategy(p.Strategy); err != nil {
			return nil, err
		}
	}
	if p.MaxDepth > 0 {
		opts.MaxDepth = p.MaxDepth
	}

	out := &LayoutResult{Document: p.Document, Graph: "calls", Options: opts}
	if p.Function != "" {
		fn, err := s.function(p.Document, p.Function)
		if err != nil {
			return nil, err
		}
		set, err := s.session.Nodes(p.Document, fn.Name)
		if err != nil {
			return nil, err
		}
		out.Graph, out.Function = "nodes", fn.Name
		out.View = layout.DataFlowView(fn, set, p.Root, opts, p.All)
	} else {
		g, err := s.session.Graph(p.Document)
		if err != nil {
			return nil, err
		}
		out.View = layout.CallsView(g, p.Root, opts, p.All)
	}

	for _, w := range out.View.Layout.Warnings {
		s.logger.Warn("layout", "document", p.Document, "error", w)
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out, nil
}

func (s *Server) close(params json.RawMessage) (*DocumentParams, error) {
	p, err := decode(params, func(p *DocumentParams) string { return p.Document })
	if err != nil {
		return nil, err
	}
	s.session.Close(p.Document)
	return p, nil
}
