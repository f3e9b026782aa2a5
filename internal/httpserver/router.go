package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"habitflow/internal/handler"
	"habitflow/pkg/otel"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers groups the HTTP handlers mounted by the router.
type Handlers struct {
	Auth     *handler.AuthHandler
	Events   *handler.EventHandler
	Habits   *handler.HabitHandler
	Schedule *handler.ScheduleHandler
	Planner  *handler.PlannerHandler
}

// Options carries the non-handler dependencies of the router. Publisher may be
// nil, in which case readiness only checks the database.
type Options struct {
	Auth      Authenticator
	DB        Pinger
	Publisher interface{ IsConnected() bool }
	Logger    *zap.Logger
}

func NewRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), TraceMiddleware(), otel.GinMiddleware(), RequestLogger(opts.Logger))

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := opts.DB.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if opts.Publisher != nil && !opts.Publisher.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public
	r.POST("/register", h.Auth.Register)
	r.POST("/login", h.Auth.Login)

	// Protected
	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(opts.Auth))
	{
		api.POST("/events", h.Events.CreateEvent)

		api.GET("/day", h.Planner.Day)
		api.GET("/insights", h.Planner.Insights)

		api.GET("/schedule", h.Schedule.ListSchedule)
		api.DELETE("/schedule/:kind/:id", h.Schedule.DeleteEntry)

		api.POST("/habits", h.Habits.CreateHabit)
		api.GET("/habits", h.Habits.ListHabits)
		api.POST("/habits/:id/completions", h.Habits.LogCompletion)
		api.DELETE("/habits/:id/completions", h.Habits.RemoveCompletion)
		api.GET("/habits/:id/stats", h.Habits.Stats)
	}

	return r
}
