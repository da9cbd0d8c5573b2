// Package graphexec defines the narrow boundary between the agent
// spawner and whatever language-model conversation graph actually
// answers a message. The graph implementation itself — prompt
// construction, tool-call looping, provider selection — is out of
// scope for this service; callers provide a Factory that builds one
// per invocation, wired to that user's tool bridge.
package graphexec

import "context"

// Graph is a single conversation graph bound to one user and tool
// bridge, capable of running a message against a given thread.
type Graph interface {
	// Chat runs message against threadID, returning the graph's final
	// text response. The same threadID reused across calls continues
	// the same conversation; an unseen threadID starts a fresh one.
	Chat(ctx context.Context, message, threadID string) (string, error)
}

// BridgeTools is the subset of internal/bridge.Bridge a graph needs to
// expose tool calls to the model, kept narrow so this package never
// imports internal/bridge directly.
type BridgeTools interface {
	ToolNames() []string
}

// Options configures a single Factory call.
type Options struct {
	Provider        string
	Model           string
	UserID          string
	Bridge          BridgeTools
	AllowOperatorKey bool
}

// Factory builds a Graph for one invocation. Implementations
// typically cache and reuse an underlying model client across calls
// for the same user/provider/model combination.
type Factory func(ctx context.Context, opts Options) (Graph, error)
