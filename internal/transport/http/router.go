package http

import (
	"github.com/campusrun/backend/internal/config"
	"github.com/campusrun/backend/internal/core/services"
	"github.com/campusrun/backend/internal/domain"
	"github.com/campusrun/backend/internal/infrastructure/db"
	"github.com/campusrun/backend/internal/infrastructure/logger"
	"github.com/campusrun/backend/internal/transport/http/handlers"
	httpmw "github.com/campusrun/backend/internal/transport/http/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RouterConfig struct {
	DB     *gorm.DB
	Logger *logger.Logger
	Config *config.Config
}

func SetupRoutes(app *fiber.App, cfg RouterConfig) {
	// Repositories
	taskRepo := db.NewTaskRepository(cfg.DB, cfg.Logger)
	timelineRepo := db.NewTimelineRepository(cfg.DB, cfg.Logger)

	// Services
	table := domain.NewTransitionTable(cfg.Config.Lifecycle.AllowHelperCancel)
	propagator := services.NewPropagator(cfg.Config.Realtime.SubscriberBuffer, cfg.Logger)

	taskService := services.NewTaskService(services.TaskServiceConfig{
		Repository: taskRepo,
		Logger:     cfg.Logger,
	})
	acceptanceService := services.NewAcceptanceService(services.AcceptanceServiceConfig{
		Repository: taskRepo,
		Publisher:  propagator,
		Logger:     cfg.Logger,
	})
	transitionService := services.NewTransitionService(services.TransitionServiceConfig{
		Repository: taskRepo,
		Table:      table,
		Publisher:  propagator,
		Logger:     cfg.Logger,
		MaxRetries: cfg.Config.Lifecycle.MaxRetries,
	})

	// Handlers
	taskHandler := handlers.NewTaskHandler(taskService, cfg.Logger)
	lifecycleHandler := handlers.NewLifecycleHandler(acceptanceService, transitionService, cfg.Logger)
	timelineHandler := handlers.NewTimelineHandler(timelineRepo)
	eventsHandler := handlers.NewEventsHandler(propagator, timelineRepo, cfg.Logger)

	// Websocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	})

	app.Get("/ws/tasks/:id", websocket.New(eventsHandler.HandleTask))
	app.Get("/ws/participants/:id", websocket.New(eventsHandler.HandleParticipant))

	// API v1 routes
	api := app.Group("/api/v1")

	tasks := api.Group("/tasks", httpmw.SessionAuth(cfg.Config))
	tasks.Post("/", taskHandler.CreateTask)
	tasks.Get("/", taskHandler.GetTasks)
	tasks.Get("/:id", taskHandler.GetTask)
	tasks.Post("/:id/accept", lifecycleHandler.Accept)
	tasks.Post("/:id/transition", lifecycleHandler.Transition)
	tasks.Get("/:id/timeline", timelineHandler.GetEvents)
}
