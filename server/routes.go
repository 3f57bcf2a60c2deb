package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/execution"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/meikuraledutech/workflow/session"
)

const (
	defaultRunLimit    = 50
	healthCheckTimeout = 3 * time.Second
)

type healthChecker interface {
	Health(ctx context.Context) error
}

// api carries everything the handlers touch. runs and remote may be nil.
type api struct {
	store       *graph.Store
	selection   *graph.Selection
	coordinator *execution.Coordinator
	uploader    *execution.Uploader
	sessions    *session.Manager
	runs        workflow.RunStore
	remote      healthChecker
	logger      *slog.Logger
	accessLog   io.Writer
	corsOrigins []string
}

type createNodeRequest struct {
	Type workflow.NodeType `json:"type" validate:"required"`
}

type deleteNodesRequest struct {
	IDs []string `json:"ids" validate:"required,dive,required"`
}

type connectRequest struct {
	Source       string `json:"source" validate:"required"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target" validate:"required"`
	TargetHandle string `json:"targetHandle"`
}

type selectRequest struct {
	ID string `json:"id" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type graphResponse struct {
	Nodes          []workflow.Node `json:"nodes"`
	Edges          []workflow.Edge `json:"edges"`
	SelectedNodeID *string         `json:"selectedNodeId"`
	State          execution.State `json:"state"`
}

func newApp(a *api) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:         "workflow",
		StructValidator: newStructValidator(),
		ErrorHandler:    errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{Stream: a.accessLog}))
	app.Use(cors.New(cors.Config{AllowOrigins: a.corsOrigins}))

	// ── Public ────────────────────────────────────────────────────────
	app.Get("/health", a.health)
	app.Get("/node-types", func(c fiber.Ctx) error {
		return c.JSON(workflow.NodeTypes())
	})
	app.Post("/login", a.login)
	app.Post("/logout", a.logout)
	app.Get("/session", a.currentSession)

	// ── Editor (login required) ───────────────────────────────────────
	ed := app.Group("", a.requireSession)

	ed.Get("/graph", a.getGraph)

	ed.Post("/nodes", a.createNode)
	ed.Patch("/nodes/:id", a.updateNode)
	ed.Delete("/nodes/:id", func(c fiber.Ctx) error {
		a.store.DeleteNodes(c.Params("id"))
		return c.SendStatus(204)
	})
	ed.Delete("/nodes", a.deleteNodes)
	ed.Post("/nodes/:id/image", a.uploadImage)

	ed.Post("/edges", a.connect)
	ed.Delete("/edges/:id", func(c fiber.Ctx) error {
		if !a.store.DeleteEdge(c.Params("id")) {
			return c.Status(404).JSON(fiber.Map{"error": "edge not found"})
		}
		return c.SendStatus(204)
	})

	ed.Put("/selection", a.selectNode)
	ed.Delete("/selection", func(c fiber.Ctx) error {
		a.selection.Clear()
		return c.SendStatus(204)
	})

	ed.Post("/execute", a.execute)
	ed.Get("/execution", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"state": a.coordinator.State()})
	})

	// ── History ───────────────────────────────────────────────────────
	ed.Get("/runs", a.listRuns)
	ed.Post("/schema", a.createSchema)
	ed.Delete("/schema", a.dropSchema)

	return app
}

// errorHandler renders every unhandled error as {"error": message}.
func errorHandler(c fiber.Ctx, err error) error {
	code := 500
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

// badBody answers a failed Bind: 422 for validation failures, 400 otherwise.
func badBody(c fiber.Ctx, err error) error {
	if msg, ok := validationMessage(err); ok {
		return c.Status(422).JSON(fiber.Map{"error": msg})
	}
	return c.Status(400).JSON(fiber.Map{"error": "invalid body"})
}

// ── Session ───────────────────────────────────────────────────────────

func (a *api) requireSession(c fiber.Ctx) error {
	if _, ok := a.sessions.Restore(c.Context()); !ok {
		return c.Status(401).JSON(fiber.Map{"error": "login required"})
	}
	return c.Next()
}

func (a *api) login(c fiber.Ctx) error {
	var req loginRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badBody(c, err)
	}
	exp, err := a.sessions.Login(c.Context(), req.Email, req.Password)
	if errors.Is(err, session.ErrInvalidCredentials) {
		return c.Status(401).JSON(fiber.Map{"error": "invalid email or password"})
	}
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"user": req.Email, "expiresAt": exp.UnixMilli()})
}

func (a *api) logout(c fiber.Ctx) error {
	if err := a.sessions.Logout(c.Context()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(204)
}

func (a *api) currentSession(c fiber.Ctx) error {
	user, ok := a.sessions.Restore(c.Context())
	if !ok {
		return c.JSON(fiber.Map{"loggedIn": false})
	}
	return c.JSON(fiber.Map{"loggedIn": true, "user": user})
}

// ── Graph ─────────────────────────────────────────────────────────────

func (a *api) getGraph(c fiber.Ctx) error {
	g := a.store.Snapshot()
	resp := graphResponse{
		Nodes: g.Nodes,
		Edges: g.Edges,
		State: a.coordinator.State(),
	}
	if id, ok := a.selection.Current(); ok {
		resp.SelectedNodeID = &id
	}
	return c.JSON(resp)
}

func (a *api) createNode(c fiber.Ctx) error {
	var req createNodeRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badBody(c, err)
	}
	n, ok := a.store.AddNode(req.Type)
	if !ok {
		return c.Status(422).JSON(fiber.Map{"error": workflow.ErrUnknownNodeType.Error()})
	}
	return c.Status(201).JSON(n)
}

func (a *api) updateNode(c fiber.Ctx) error {
	var p workflow.Patch
	if err := c.Bind().JSON(&p); err != nil {
		return badBody(c, err)
	}
	id := c.Params("id")
	n, ok := a.store.Node(id)
	if !ok {
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	}
	spec, _ := workflow.Lookup(n.Type)
	if err := spec.Validate(p); err != nil {
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}
	if !a.store.Bind(id)(p) {
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	}
	return c.SendStatus(204)
}

func (a *api) deleteNodes(c fiber.Ctx) error {
	var req deleteNodesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badBody(c, err)
	}
	a.store.DeleteNodes(req.IDs...)
	return c.SendStatus(204)
}

func (a *api) uploadImage(c fiber.Ctx) error {
	fh, err := c.FormFile("image")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "no image file provided"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}
	defer f.Close()

	n, err := a.uploader.Upload(c.Context(), c.Params("id"), fh.Filename, f)
	if errors.Is(err, workflow.ErrNodeNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	}
	if err != nil {
		return c.Status(502).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(n)
}

func (a *api) connect(c fiber.Ctx) error {
	var req connectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badBody(c, err)
	}
	e, ok := a.store.Connect(req.Source, req.SourceHandle, req.Target, req.TargetHandle)
	if !ok {
		return c.Status(422).JSON(fiber.Map{"error": "connection refused"})
	}
	return c.Status(201).JSON(e)
}

func (a *api) selectNode(c fiber.Ctx) error {
	var req selectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badBody(c, err)
	}
	if !a.store.Select(req.ID) {
		return c.Status(404).JSON(fiber.Map{"error": "node not found"})
	}
	return c.SendStatus(204)
}

// ── Execution ─────────────────────────────────────────────────────────

func (a *api) execute(c fiber.Ctx) error {
	out := a.coordinator.Execute(c.Context())
	switch out.Status {
	case execution.Skipped:
		if errors.Is(out.Err, workflow.ErrBusy) {
			return c.Status(409).JSON(fiber.Map{"error": out.Err.Error()})
		}
		return c.Status(422).JSON(fiber.Map{"error": out.Err.Error()})
	case execution.Failed:
		return c.Status(502).JSON(fiber.Map{"error": out.Err.Error(), "runId": out.RunID})
	}
	updated := out.Updated
	if updated == nil {
		updated = []string{}
	}
	return c.JSON(fiber.Map{
		"status":  out.Status,
		"runId":   out.RunID,
		"updated": updated,
		"result":  out.Result,
	})
}

func (a *api) health(c fiber.Ctx) error {
	resp := fiber.Map{"status": "ok", "remote": "unknown"}
	if a.remote != nil {
		ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
		defer cancel()
		if err := a.remote.Health(ctx); err != nil {
			a.logger.Warn("execution service unreachable", "error", err)
			resp["remote"] = "unreachable"
		} else {
			resp["remote"] = "ok"
		}
	}
	return c.JSON(resp)
}

// ── History ───────────────────────────────────────────────────────────

func (a *api) listRuns(c fiber.Ctx) error {
	if a.runs == nil {
		return c.JSON([]workflow.Run{})
	}
	runs, err := a.runs.ListRuns(c.Context(), fiber.Query[int](c, "limit", defaultRunLimit))
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

func (a *api) createSchema(c fiber.Ctx) error {
	if a.runs == nil {
		return c.Status(503).JSON(fiber.Map{"error": "no database configured"})
	}
	if err := a.runs.CreateSchema(c.Context()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "schema created"})
}

func (a *api) dropSchema(c fiber.Ctx) error {
	if a.runs == nil {
		return c.Status(503).JSON(fiber.Map{"error": "no database configured"})
	}
	if err := a.runs.DropSchema(c.Context()); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"message": "schema dropped"})
}
