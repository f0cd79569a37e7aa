package daemon

import (
	"encoding/json"
	"time"

	"github.com/l3aro/go-ir-query/pkg/cache"
	"github.com/l3aro/go-ir-query/pkg/ir"
	"github.com/l3aro/go-ir-query/pkg/layout"
)

// Command types understood by the daemon.
const (
	CmdStatus = "status"
	CmdOpen   = "open"
	CmdEdit   = "edit"
	CmdFuncs  = "funcs"
	CmdAt     = "at"
	CmdNodes  = "nodes"
	CmdLayout = "layout"
	CmdClose  = "close"
	CmdStop   = "stop"
)

// Command is one request. Requests and responses are JSON values written
// back to back on the connection.
type Command struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
	ID     string          `json:"id,omitempty"`
}

// Response answers the Command with the same ID.
type Response struct {
	ID     string          `json:"id,omitempty"`
	Type   string          `json:"type,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// DocumentParams names an open document. Documents are identified by the
// path they were opened with.
type DocumentParams struct {
	Document string `json:"document"`
}

// OpenParams opens or re-syncs a document. Without Text the file at
// Document is read.
type OpenParams struct {
	Document string  `json:"document"`
	Text     *string `json:"text,omitempty"`
}

// EditParams reports Edited changed characters. When Text is set the
// document is synced afterwards, which re-parses only once enough edits
// have accumulated.
type EditParams struct {
	Document string  `json:"document"`
	Edited   int     `json:"edited"`
	Text     *string `json:"text,omitempty"`
}

// AtParams asks for the function containing a byte offset.
type AtParams struct {
	Document string `json:"document"`
	Offset   int    `json:"offset"`
}

// NodesParams asks for the nodes of one function.
type NodesParams struct {
	Document string `json:"document"`
	Function string `json:"function"`
}

// LayoutParams asks for a call graph layout, or a data-flow layout of
// Function when it is set. Zero values fall back to the daemon's options.
type LayoutParams struct {
	Document string `json:"document"`
	Function string `json:"function,omitempty"`
	Root     string `json:"root,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	MaxDepth int    `json:"max_depth,omitempty"`
	All      bool   `json:"all,omitempty"`
}

// ServerStatus is the result of a status command.
type ServerStatus struct {
	Version   string      `json:"version"`
	Status    string      `json:"status"`
	PID       int         `json:"pid"`
	Documents int         `json:"documents"`
	Cache     cache.Stats `json:"cache"`
	StartedAt time.Time   `json:"started_at"`
	Uptime    string      `json:"uptime"`
}

// SyncResult is the result of open and edit.
type SyncResult struct {
	Document string    `json:"document"`
	Fresh    bool      `json:"fresh"`
	Graph    *ir.Graph `json:"graph"`
}

// AtResult is the result of at. Function is nil outside every function.
type AtResult struct {
	Document string           `json:"document"`
	Offset   int              `json:"offset"`
	Function *ir.FunctionInfo `json:"function"`
}

// LayoutResult is the result of layout.
type LayoutResult struct {
	Document string         `json:"document"`
	Graph    string         `json:"graph"`
	Function string         `json:"function,omitempty"`
	Options  layout.Options `json:"options"`
	View     *layout.View   `json:"view"`
	Warnings []string       `json:"warnings,omitempty"`
}
