// Package main provides the Autometa API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/autometa/autometa/pkg/node"
	"github.com/autometa/autometa/pkg/price"
	"github.com/autometa/autometa/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	node     *node.Node
	prices   *price.Service
	validate *validator.Validate
}

// NewAPI wraps a loaded node and an optional price service. A nil prices
// disables the price endpoint.
func NewAPI(logger *slog.Logger, protocolNode *node.Node, prices *price.Service) *API {
	return &API{
		logger:   logger,
		node:     protocolNode,
		prices:   prices,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.node, a.prices, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Autometa API")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/", handlers.GetWorkflows)
	w.Get("/total", handlers.TotalWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Get("/:id/meta", handlers.GetWorkflowMeta)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Post("/:id/pause", handlers.PauseWorkflow)
	w.Post("/:id/resume", handlers.ResumeWorkflow)
	w.Post("/:id/execute", handlers.ExecuteWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)

	e := app.Group("/escrow")
	e.Post("/deposit", handlers.Deposit)
	e.Post("/withdraw", handlers.Withdraw)
	e.Get("/balance/:address", handlers.EscrowBalance)

	app.Get("/price/:symbol", handlers.GetPrice)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}

func (a *API) Stop() {
	if a.prices != nil {
		a.prices.Stop()
	}
}
