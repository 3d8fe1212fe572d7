package bootstrap

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	httpapi "github.com/job-portal/job-portal-server/internal/api/http"
	"github.com/job-portal/job-portal-server/internal/api/http/middleware"
	"github.com/job-portal/job-portal-server/internal/applications"
	"github.com/job-portal/job-portal-server/internal/auth"
	"github.com/job-portal/job-portal-server/internal/docstore"
	"github.com/job-portal/job-portal-server/internal/events"
	"github.com/job-portal/job-portal-server/internal/jobs"
)

type RouterDeps struct {
	ServiceName string
	Version     string
	CORSOrigins []string

	Store     docstore.Store
	Publisher events.Publisher

	Tokens  *auth.TokenService
	Cookies auth.CookieConfig

	// IssueLimiter throttles POST /jwt per client; nil disables it.
	IssueLimiter *middleware.ClientRateLimiter
	RequireJob   bool
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())

	if len(dep.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     dep.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
			ExposeHeaders:    []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Store)
	healthHandler.RegisterRoutes(r)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Job portal server is running")
	})

	authHandler := auth.NewHandler(dep.Tokens, dep.Cookies)
	authHandler.Register(r, middleware.RateLimit(dep.IssueLimiter))

	jobRepo := jobs.NewRepo(dep.Store)
	jobs.Register(r, jobRepo)

	appService := applications.NewService(dep.Store, jobRepo, dep.Publisher, applications.Options{
		RequireJob: dep.RequireJob,
	})
	applications.Register(r, appService, auth.RequireToken(dep.Tokens, dep.Cookies))

	return r
}
