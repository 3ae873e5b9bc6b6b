// Package httpapi exposes the worker's HTTP surface: health/version/status
// endpoints, Prometheus metrics, the websocket status stream, and the
// archive-request admission endpoints, per SPEC_FULL §4.9. Routing and
// middleware follow the teacher's fiber.App conventions.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wpgc/quiz-archiver/internal/config"
	"github.com/wpgc/quiz-archiver/internal/hostapi"
	"github.com/wpgc/quiz-archiver/internal/jobmodel"
	"github.com/wpgc/quiz-archiver/internal/logging"
	"github.com/wpgc/quiz-archiver/internal/scheduler"
	"github.com/wpgc/quiz-archiver/internal/wsstatus"
)

// AdapterFactory builds the right wire-variant adapter for a validated
// descriptor. Built once at server construction time from the resilience
// manager and config shared with the rest of the process.
type AdapterFactory func(d *jobmodel.Descriptor) hostapi.Adapter

// Server wires the scheduler, adapter factory, websocket hub, and metrics
// registry into a fiber.App.
type Server struct {
	app       *fiber.App
	scheduler *scheduler.Scheduler
	adapterOf AdapterFactory
	hub       *wsstatus.Hub
	logger    *logging.ArchiverLogger
	cfg       *config.Config
	version   string
}

// New builds the fiber app and registers every route from §4.9. registry is
// the same prometheus.Registerer the engine's monitoring.Metrics was built
// against, so /metrics exposes exactly the collectors this process owns.
func New(sched *scheduler.Scheduler, adapterOf AdapterFactory, hub *wsstatus.Hub, registry *prometheus.Registry, cfg *config.Config, logger *logging.ArchiverLogger, version string) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	s := &Server{app: app, scheduler: sched, adapterOf: adapterOf, hub: hub, logger: logger, cfg: cfg, version: version}
	s.routes(registry)
	return s
}

func (s *Server) routes(registry *prometheus.Registry) {
	s.app.Get("/", s.handleIndex)
	s.app.Get("/version", s.handleVersion)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/status/:id", s.handleStatusByID)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	s.app.Use("/ws/status", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws/status", websocket.New(s.hub.HandleConnection))

	s.app.Post("/archive", s.handleArchiveTask)
	s.app.Post("/archive/task", s.handleArchiveTask)
	s.app.Post("/archive/legacy", s.handleArchiveLegacy)
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"app": "quiz-archiver", "version": s.version})
}

func (s *Server) handleVersion(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": s.version})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    s.scheduler.Status(),
		"queue_len": s.scheduler.QueueLen(),
	})
}

func (s *Server) handleStatusByID(c *fiber.Ctx) error {
	id := c.Params("id")
	entry, ok := s.scheduler.History(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "job not found"})
	}
	return c.JSON(fiber.Map{"jobid": entry.ID, "status": entry.Status})
}

func (s *Server) handleArchiveTask(c *fiber.Ctx) error {
	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}
	descriptor, err := req.ToDescriptor()
	if err != nil {
		return s.badRequest(c, err)
	}
	adapter := hostapi.Adapter(s.adapterOf(descriptor))
	return s.admit(c, descriptor, adapter)
}

func (s *Server) handleArchiveLegacy(c *fiber.Ctx) error {
	var req LegacyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed request body"})
	}
	descriptor, err := req.ToDescriptor()
	if err != nil {
		return s.badRequest(c, err)
	}
	adapter := hostapi.Adapter(s.adapterOf(descriptor))
	return s.admit(c, descriptor, adapter)
}

// admit probes the host, constructs a job, and hands it to the scheduler.
// Error mapping follows §4.9: failed host probe and schema errors both map
// to 400, a full queue maps to 429.
func (s *Server) admit(c *fiber.Ctx, descriptor *jobmodel.Descriptor, adapter hostapi.Adapter) error {
	probeCtx, cancel := context.WithTimeout(c.Context(), 10*time.Second)
	defer cancel()

	ok, err := adapter.CheckConnection(probeCtx)
	if err != nil || !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "host connection probe failed"})
	}

	id := uuid.Must(uuid.NewV7()).String()
	job := jobmodel.NewJob(id, descriptor, context.Background())
	job.SetStatus(jobmodel.StatusAwaitingProcessing)

	if err := s.scheduler.Admit(job); err != nil {
		if ae, ok := err.(*logging.ArchiverError); ok && ae.Code == logging.ErrCodeQueueFull {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": ae.Message})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"jobid": id, "status": string(jobmodel.StatusAwaitingProcessing)})
}

func (s *Server) badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// Listen starts the HTTP server, blocking until it exits or errors.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
