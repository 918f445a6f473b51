package appgen

import "github.com/KOMKZ/go-appgen/workflow"

// App is the configured unit a generation request runs against. The
// tenant is the billing scope for the daily quota; the app carries its
// own concurrency ceiling.
type App struct {
	ID       string
	TenantID string
	Name     string
	Mode     AppMode

	// IsAgent marks chat apps driven by an agent; they dispatch to the
	// agent-chat strategy regardless of Mode being "chat".
	IsAgent bool

	// MaxActiveRequests is the app's own concurrency ceiling.
	// 0 means no app-level limit.
	MaxActiveRequests int64
}

// UserKind distinguishes console accounts from end users.
type UserKind string

const (
	UserKindAccount UserKind = "account"
	UserKindEndUser UserKind = "end-user"
)

// User is the invoking identity.
type User struct {
	ID   string
	Kind UserKind
}

// GenerationContext carries everything a strategy needs for one request.
type GenerationContext struct {
	App        *App
	User       User
	Args       map[string]any
	InvokeFrom InvokeFrom
	Streaming  bool

	// Workflow is resolved by the registry for workflow-backed modes.
	Workflow *workflow.Workflow

	// NodeID targets the node for single-iteration/single-loop re-runs.
	NodeID string

	// MessageID targets the source message for more-like-this.
	MessageID string
}
