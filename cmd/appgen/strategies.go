package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/KOMKZ/go-appgen/appgen"
	"github.com/KOMKZ/go-appgen/apps"
)

// registerDemoStrategies fills the registry with echo generators for
// every mode so the service runs end to end without a model backend.
// A deployment replaces these with real strategy implementations.
func registerDemoStrategies(registry *appgen.Registry) {
	for _, mode := range []appgen.GenerationMode{
		appgen.GenCompletion,
		appgen.GenChat,
		appgen.GenAgentChat,
		appgen.GenAdvancedChat,
		appgen.GenWorkflow,
		appgen.GenSingleIteration,
		appgen.GenSingleLoop,
		appgen.GenMoreLikeThis,
	} {
		registry.Register(mode, echoGenerator(mode))
	}
}

func echoGenerator(mode appgen.GenerationMode) appgen.Generator {
	return appgen.GeneratorFunc(func(ctx context.Context, gctx *appgen.GenerationContext) (*appgen.Output, error) {
		answer := echoAnswer(mode, gctx)
		if !gctx.Streaming {
			return appgen.NewBlockingOutput(map[string]any{
				"mode":   string(mode),
				"answer": answer,
			}), nil
		}

		events := make([]appgen.Event, 0, len(answer)+1)
		for _, word := range strings.Fields(answer) {
			events = append(events, appgen.Event{
				Name: "message",
				Data: map[string]any{"chunk": word + " "},
			})
		}
		events = append(events, appgen.Event{Name: "message_end"})
		return appgen.NewStreamingOutput(appgen.FromEvents(events...)), nil
	})
}

func echoAnswer(mode appgen.GenerationMode, gctx *appgen.GenerationContext) string {
	query, _ := gctx.Args["query"].(string)
	switch mode {
	case appgen.GenSingleIteration, appgen.GenSingleLoop:
		return fmt.Sprintf("ran node %s of workflow %s", gctx.NodeID, gctx.Workflow.ID)
	case appgen.GenMoreLikeThis:
		return fmt.Sprintf("another take on message %s", gctx.MessageID)
	default:
		return fmt.Sprintf("echo from %s: %s", gctx.App.Name, query)
	}
}

// demoApps serves a small fixed app set when no database is configured.
func demoApps() apps.Provider {
	return apps.NewStaticProvider(
		&appgen.App{
			ID:       "demo-chat",
			TenantID: "demo-tenant",
			Name:     "demo chat",
			Mode:     appgen.ModeChat,
		},
		&appgen.App{
			ID:                "demo-completion",
			TenantID:          "demo-tenant",
			Name:              "demo completion",
			Mode:              appgen.ModeCompletion,
			MaxActiveRequests: 5,
		},
	)
}
