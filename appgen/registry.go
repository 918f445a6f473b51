package appgen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/KOMKZ/go-appgen/workflow"
)

// Registry maps generation modes to their Generator implementations and
// resolves the workflow a mode needs before dispatching to it.
type Registry struct {
	mu         sync.RWMutex
	generators map[GenerationMode]Generator
	workflows  workflow.Provider
}

// NewRegistry creates a registry. workflows may be nil when no
// registered mode needs workflow resolution.
func NewRegistry(workflows workflow.Provider) *Registry {
	return &Registry{
		generators: make(map[GenerationMode]Generator),
		workflows:  workflows,
	}
}

// Register binds a generator to a mode. Registering the same mode twice
// is a programming error and panics, like duplicate error-code
// registration.
func (r *Registry) Register(mode GenerationMode, gen Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.generators[mode]; ok {
		panic(fmt.Sprintf("appgen: generator already registered for mode %q", mode))
	}
	r.generators[mode] = gen
}

// Resolve returns the generator for mode.
func (r *Registry) Resolve(mode GenerationMode) (Generator, error) {
	r.mu.RLock()
	gen, ok := r.generators[mode]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnsupportedMode.WithMsgf("no generator registered for mode %q", mode)
	}
	return gen, nil
}

// Modes returns the registered generation modes.
func (r *Registry) Modes() []GenerationMode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	modes := make([]GenerationMode, 0, len(r.generators))
	for m := range r.generators {
		modes = append(modes, m)
	}
	return modes
}

// Dispatch resolves the generator and, when the mode requires one, the
// workflow version for gctx, then runs the generation.
func (r *Registry) Dispatch(ctx context.Context, mode GenerationMode, gctx *GenerationContext) (*Output, error) {
	gen, err := r.Resolve(mode)
	if err != nil {
		return nil, err
	}
	if err := r.resolveWorkflow(ctx, mode, gctx); err != nil {
		return nil, err
	}
	return gen.Generate(ctx, gctx)
}

// resolveWorkflow fills gctx.Workflow for workflow-backed modes.
// Debugger calls run against the draft version; everything else runs
// the latest published version. A caller that already resolved a
// specific version keeps it.
func (r *Registry) resolveWorkflow(ctx context.Context, mode GenerationMode, gctx *GenerationContext) error {
	if !mode.needsWorkflow() || gctx.Workflow != nil {
		return nil
	}
	if r.workflows == nil {
		return ErrWorkflowNotFound.WithMsgf("no workflow provider configured for app %q", gctx.App.ID)
	}
	if gctx.InvokeFrom == InvokeFromDebugger {
		wf, err := r.workflows.GetDraft(ctx, gctx.App.ID)
		if err != nil {
			if errors.Is(err, workflow.ErrNotFound) {
				return ErrWorkflowNotFound.WithMsgf("app %q has no draft workflow", gctx.App.ID)
			}
			return err
		}
		gctx.Workflow = wf
		return nil
	}
	wf, err := r.workflows.GetPublished(ctx, gctx.App.ID)
	if err != nil {
		if errors.Is(err, workflow.ErrNotFound) {
			return ErrWorkflowNotPublished.WithMsgf("app %q has no published workflow", gctx.App.ID)
		}
		return err
	}
	gctx.Workflow = wf
	return nil
}
