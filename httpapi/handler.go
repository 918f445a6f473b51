// Package httpapi exposes the generation service over HTTP. Streaming
// responses are served as SSE; blocking responses use the unified JSON
// envelope.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/KOMKZ/go-appgen/appgen"
	"github.com/KOMKZ/go-appgen/apps"
	"github.com/KOMKZ/go-appgen/errcode"
	"github.com/KOMKZ/go-appgen/httpx"
	"github.com/KOMKZ/go-appgen/logger"
	"github.com/KOMKZ/go-appgen/workflow"
)

// Handler serves the generation endpoints.
type Handler struct {
	svc       *appgen.Service
	apps      apps.Provider
	nodeExecs workflow.NodeExecutionRepository
	logger    *logger.CtxZapLogger
}

// NewHandler creates the handler. nodeExecs may be nil when no database
// is configured; the node-execution listing then reports not found.
func NewHandler(svc *appgen.Service, appProvider apps.Provider, nodeExecs workflow.NodeExecutionRepository) *Handler {
	return &Handler{
		svc:       svc,
		apps:      appProvider,
		nodeExecs: nodeExecs,
		logger:    logger.GetLogger("httpapi"),
	}
}

// RegisterRoutes mounts all endpoints under /v1.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/apps/:app_id/generate", h.Generate)
	v1.POST("/apps/:app_id/workflows/draft/iteration/nodes/:node_id/run", h.GenerateSingleIteration)
	v1.POST("/apps/:app_id/workflows/draft/loop/nodes/:node_id/run", h.GenerateSingleLoop)
	v1.POST("/apps/:app_id/messages/:message_id/more-like-this", h.GenerateMoreLikeThis)
	v1.GET("/workflow-runs/:run_id/node-executions", h.ListNodeExecutions)
}

type generateRequest struct {
	AppID        string         `uri:"app_id"`
	Inputs       map[string]any `json:"inputs"`
	Query        string         `json:"query"`
	User         string         `json:"user"`
	ResponseMode string         `json:"response_mode"`
	InvokeFrom   string         `json:"invoke_from"`
}

func (r generateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.User, validation.Required),
		validation.Field(&r.ResponseMode, validation.In("", "streaming", "blocking")),
	)
}

// Generate runs a generation in the app's configured mode.
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := httpx.Parse(c, &req); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}

	app, ok := h.loadApp(c, req.AppID)
	if !ok {
		return
	}

	invokeFrom := appgen.InvokeFromServiceAPI
	if req.InvokeFrom != "" {
		parsed, err := appgen.ParseInvokeFrom(req.InvokeFrom)
		if err != nil {
			httpx.BadRequestJson(c, err)
			return
		}
		invokeFrom = parsed
	}

	out, err := h.svc.Generate(c.Request.Context(), app, requestUser(req.User, invokeFrom),
		requestArgs(req.Inputs, req.Query), invokeFrom, req.ResponseMode != "blocking")
	if err != nil {
		httpx.HandleError(c, err)
		return
	}
	h.writeOutput(c, out)
}

type singleStepRequest struct {
	AppID  string         `uri:"app_id"`
	NodeID string         `uri:"node_id"`
	Inputs map[string]any `json:"inputs"`
	User   string         `json:"user"`
}

func (r singleStepRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.User, validation.Required),
	)
}

// GenerateSingleIteration re-runs one iteration node of the draft
// workflow.
func (h *Handler) GenerateSingleIteration(c *gin.Context) {
	h.singleStep(c, h.svc.GenerateSingleIteration)
}

// GenerateSingleLoop re-runs one loop node of the draft workflow.
func (h *Handler) GenerateSingleLoop(c *gin.Context) {
	h.singleStep(c, h.svc.GenerateSingleLoop)
}

type singleStepFunc func(ctx context.Context, app *appgen.App, user appgen.User, nodeID string, args map[string]any, streaming bool) (*appgen.Output, error)

func (h *Handler) singleStep(c *gin.Context, run singleStepFunc) {
	var req singleStepRequest
	if err := httpx.Parse(c, &req); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}

	app, ok := h.loadApp(c, req.AppID)
	if !ok {
		return
	}

	user := appgen.User{ID: req.User, Kind: appgen.UserKindAccount}
	out, err := run(c.Request.Context(), app, user, req.NodeID, requestArgs(req.Inputs, ""), true)
	if err != nil {
		httpx.HandleError(c, err)
		return
	}
	h.writeOutput(c, out)
}

type moreLikeThisRequest struct {
	AppID        string `uri:"app_id"`
	MessageID    string `uri:"message_id"`
	User         string `form:"user" json:"user"`
	ResponseMode string `form:"response_mode" json:"response_mode"`
}

func (r moreLikeThisRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.User, validation.Required),
		validation.Field(&r.ResponseMode, validation.In("", "streaming", "blocking")),
	)
}

// GenerateMoreLikeThis regenerates a variation of an earlier completion
// message.
func (h *Handler) GenerateMoreLikeThis(c *gin.Context) {
	var req moreLikeThisRequest
	if err := httpx.Parse(c, &req); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}

	app, ok := h.loadApp(c, req.AppID)
	if !ok {
		return
	}

	user := appgen.User{ID: req.User, Kind: appgen.UserKindEndUser}
	out, err := h.svc.GenerateMoreLikeThis(c.Request.Context(), app, user, req.MessageID,
		appgen.InvokeFromWebApp, req.ResponseMode != "blocking")
	if err != nil {
		httpx.HandleError(c, err)
		return
	}
	h.writeOutput(c, out)
}

type listNodeExecutionsRequest struct {
	RunID     string `uri:"run_id"`
	OrderBy   string `form:"order_by"`
	Direction string `form:"direction"`
}

func (r listNodeExecutionsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Direction, validation.In("", "asc", "desc")),
	)
}

// ListNodeExecutions returns the node executions of a workflow run,
// optionally ordered by the requested fields.
func (h *Handler) ListNodeExecutions(c *gin.Context) {
	if h.nodeExecs == nil {
		httpx.NotFoundJson(c, "node execution history is not enabled")
		return
	}

	var req listNodeExecutionsRequest
	if err := httpx.Parse(c, &req); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}
	if err := req.Validate(); err != nil {
		httpx.BadRequestJson(c, err)
		return
	}

	var order *workflow.OrderConfig
	if req.OrderBy != "" {
		direction := workflow.OrderAsc
		if req.Direction == string(workflow.OrderDesc) {
			direction = workflow.OrderDesc
		}
		order = &workflow.OrderConfig{
			OrderBy:   strings.Split(req.OrderBy, ","),
			Direction: direction,
		}
	}

	executions, err := h.nodeExecs.GetByWorkflowRun(c.Request.Context(), req.RunID, order)
	if err != nil {
		httpx.HandleError(c, err)
		return
	}
	httpx.OkJson(c, gin.H{"data": executions})
}

// loadApp resolves the app or writes the error response.
func (h *Handler) loadApp(c *gin.Context, appID string) (*appgen.App, bool) {
	app, err := h.apps.GetApp(c.Request.Context(), appID)
	if err != nil {
		if errors.Is(err, apps.ErrNotFound) {
			httpx.NotFoundJson(c, "app not found")
			return nil, false
		}
		httpx.HandleError(c, err)
		return nil, false
	}
	return app, true
}

// writeOutput renders a generation outcome: JSON envelope for blocking
// results, SSE for streams.
func (h *Handler) writeOutput(c *gin.Context, out *appgen.Output) {
	if !out.Streaming() {
		httpx.OkJson(c, out.Result())
		return
	}

	stream := out.Stream()
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		ev, err := stream.Next(ctx)
		if err == io.EOF {
			return
		}
		if err != nil {
			// The status line is already written; the failure has to
			// travel in-band as a terminal error event.
			h.logger.WarnCtx(ctx, "stream aborted", zap.Error(err))
			c.SSEvent("error", errorPayload(err))
			c.Writer.Flush()
			return
		}
		c.SSEvent(ev.Name, ev.Data)
		c.Writer.Flush()
	}
}

func errorPayload(err error) gin.H {
	var layeredErr *errcode.LayeredError
	if errors.As(err, &layeredErr) {
		return gin.H{
			"code":    layeredErr.Code(),
			"message": layeredErr.Message(),
		}
	}
	return gin.H{"code": 500, "message": "internal server error"}
}

func requestUser(id string, invokeFrom appgen.InvokeFrom) appgen.User {
	kind := appgen.UserKindEndUser
	if invokeFrom == appgen.InvokeFromDebugger {
		kind = appgen.UserKindAccount
	}
	return appgen.User{ID: id, Kind: kind}
}

func requestArgs(inputs map[string]any, query string) map[string]any {
	args := map[string]any{"inputs": inputs}
	if query != "" {
		args["query"] = query
	}
	return args
}
