package http

import (
	"log/slog"
	"strings"

	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/http/views"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/geocoder89/profilehub/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const serviceName = "profilehub"

// TokenService issues tokens for CreateToken and verifies them for /api.
type TokenService interface {
	handlers.TokenIssuer
	middlewares.TokenVerifier
}

// Deps are the services the routes are wired to. Prom, Gatherer and Checks
// are optional.
type Deps struct {
	Accounts handlers.AccountService
	Identity handlers.SignInService
	Tokens   TokenService
	Sessions session.Store
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.PingFunc
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) *gin.Engine {
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.SetHTMLTemplate(views.Templates())

	secure := cfg.IsProd()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(secure, publicPath(cfg.ImagePublicPath)))
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))

	// health
	h := handlers.NewHealthHandler(deps.Checks)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	r.Static(publicPath(cfg.ImagePublicPath), cfg.ImageDir)

	accountHandler := handlers.NewAccountHandler(deps.Accounts, log, secure)
	loginHandler := handlers.NewLoginHandler(deps.Identity, log, secure, cfg.StoreTimeout)
	var tokenRec handlers.TokenRecorder
	if deps.Prom != nil {
		tokenRec = deps.Prom
	}
	tokenHandler := handlers.NewTokenHandler(deps.Tokens, tokenRec, log)

	// forms carry an image, so the body cap sits above the image cap
	bodyLimit := cfg.ImageMaxBytes + 1<<20

	acc := r.Group("/Account",
		middlewares.MaxBodyBytes(bodyLimit),
		middlewares.RequireForm(),
		middlewares.LoadSession(deps.Sessions, secure),
		middlewares.CSRF(secure),
	)
	{
		acc.GET("", accountHandler.Index)
		acc.GET("/Index", accountHandler.Index)
		acc.GET("/Create", accountHandler.CreateForm)
		acc.POST("/Create", accountHandler.Create)
		acc.GET("/UserProfile", accountHandler.UserProfile)
		acc.POST("/UpdateUser", accountHandler.UpdateUser)
		acc.GET("/CreateToken", tokenHandler.CreateToken)

		acc.GET("/Login", loginHandler.LoginForm)
		acc.POST("/Login", loginHandler.Login)
		acc.POST("/Logout", loginHandler.Logout)

		acc.GET("/Details/:id", accountHandler.Details)
		acc.GET("/Delete/:id", accountHandler.DeleteForm)
		acc.POST("/Delete/:id", accountHandler.Delete)
		acc.POST("/Edit/:id", accountHandler.Edit)
	}

	authMw := middlewares.NewAuthMiddleware(deps.Tokens)
	api := r.Group("/api", authMw.RequireAuth(), authMw.RequireRole(user.RoleUser))
	{
		api.GET("/profile", handlers.NewProfileAPIHandler(deps.Accounts).Me)
	}

	return r
}

func publicPath(p string) string {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		return "/UserImages"
	}
	return p
}
