package api

import (
	"net/http"

	"github.com/celerix-dev/viaticos/internal/logging"
	"github.com/gin-gonic/gin"
)

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	CORSOrigins []string
	RateLimit   float64 // requests per second per client; 0 disables
	Burst       int
	Logger      logging.Logger
}

// NewRouter mounts every route of h on a fresh gin engine.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	registerValidators()

	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if h.Log == nil {
		h.Log = cfg.Logger
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(cfg.Logger), CORS(cfg.CORSOrigins))
	if cfg.RateLimit > 0 {
		r.Use(RateLimit(cfg.RateLimit, max(cfg.Burst, 1)))
	}

	r.GET("/health", h.Health)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", h.Status)
		apiGroup.POST("/sync", h.Sync)
		apiGroup.DELETE("/data", h.ClearAllData)
		apiGroup.GET("/dashboard", h.Dashboard)

		apiGroup.GET("/users", h.ListUsers)
		apiGroup.POST("/users", h.CreateUser)
		apiGroup.GET("/users/:id", h.GetUser)
		apiGroup.PATCH("/users/:id", h.UpdateUser)
		apiGroup.DELETE("/users/:id", h.DeleteUser)
		apiGroup.GET("/users/:id/budget", h.UserBudget)
		apiGroup.GET("/users/:id/spend", h.UserSpend)

		apiGroup.GET("/trips", h.ListTrips)
		apiGroup.POST("/trips", h.CreateTrip)
		apiGroup.GET("/trips/export", h.ExportTrips)
		apiGroup.GET("/trips/:id", h.GetTrip)
		apiGroup.PATCH("/trips/:id", h.UpdateTrip)
		apiGroup.DELETE("/trips/:id", h.DeleteTrip)

		apiGroup.GET("/expenses", h.ListExpenses)
		apiGroup.POST("/expenses", h.CreateExpense)
		apiGroup.GET("/expenses/categories", h.ListCategories)
		apiGroup.GET("/expenses/:id", h.GetExpense)
		apiGroup.PATCH("/expenses/:id", h.UpdateExpense)
		apiGroup.DELETE("/expenses/:id", h.DeleteExpense)

		apiGroup.GET("/notifications", h.ListNotifications)
		apiGroup.DELETE("/notifications/:id", h.DismissNotification)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
	})

	return r
}
