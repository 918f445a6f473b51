// Package appgen admits, throttles and dispatches generation requests.
// It owns the admission-control and streaming-lifecycle layer: the
// per-tenant daily quota, the per-app concurrency governor and the
// wrapper that ties the admission ticket to the full lifetime of a
// streamed or blocking response.
package appgen

import "fmt"

// AppMode is an application's configured generation mode. The set is
// closed; values outside it are rejected with ErrUnsupportedMode before
// any strategy runs.
type AppMode string

const (
	ModeCompletion   AppMode = "completion"
	ModeChat         AppMode = "chat"
	ModeAgentChat    AppMode = "agent-chat"
	ModeAdvancedChat AppMode = "advanced-chat"
	ModeWorkflow     AppMode = "workflow"
)

// ParseAppMode validates a raw mode value.
func ParseAppMode(raw string) (AppMode, error) {
	switch mode := AppMode(raw); mode {
	case ModeCompletion, ModeChat, ModeAgentChat, ModeAdvancedChat, ModeWorkflow:
		return mode, nil
	default:
		return "", ErrUnsupportedMode.
			WithMsgf("invalid app mode %q", raw).
			WithData("mode", raw)
	}
}

// GenerationMode selects a dispatch target in the registry. On top of
// the app modes it covers the debug re-runs of a single workflow node
// and "more like this" regeneration.
type GenerationMode string

const (
	GenCompletion        GenerationMode = GenerationMode(ModeCompletion)
	GenChat              GenerationMode = GenerationMode(ModeChat)
	GenAgentChat         GenerationMode = GenerationMode(ModeAgentChat)
	GenAdvancedChat      GenerationMode = GenerationMode(ModeAdvancedChat)
	GenWorkflow          GenerationMode = GenerationMode(ModeWorkflow)
	GenSingleIteration   GenerationMode = "workflow-single-step-iteration"
	GenSingleLoop        GenerationMode = "workflow-single-step-loop"
	GenMoreLikeThis      GenerationMode = "more-like-this"
)

// needsWorkflow reports whether the mode runs against a workflow
// definition that must be resolved before dispatch.
func (m GenerationMode) needsWorkflow() bool {
	switch m {
	case GenAdvancedChat, GenWorkflow, GenSingleIteration, GenSingleLoop:
		return true
	default:
		return false
	}
}

// InvokeFrom identifies the source of an invocation. Debugger-sourced
// requests run against draft workflow definitions; everything else runs
// against the published ones.
type InvokeFrom string

const (
	InvokeFromServiceAPI InvokeFrom = "service-api"
	InvokeFromWebApp     InvokeFrom = "web-app"
	InvokeFromExplore    InvokeFrom = "explore"
	InvokeFromDebugger   InvokeFrom = "debugger"
)

// ParseInvokeFrom validates a raw invocation source.
func ParseInvokeFrom(raw string) (InvokeFrom, error) {
	switch source := InvokeFrom(raw); source {
	case InvokeFromServiceAPI, InvokeFromWebApp, InvokeFromExplore, InvokeFromDebugger:
		return source, nil
	default:
		return "", fmt.Errorf("invalid invoke_from %q", raw)
	}
}
