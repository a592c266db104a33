package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/internal/tasks"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

type AuthService interface {
	TokenValidator
	Register(ctx context.Context, req models.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Issue(user *models.User) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
	User(ctx context.Context, id string) (*models.User, error)
}

type TaskService interface {
	ListByOwner(ctx context.Context, userID string) ([]models.Task, error)
	Create(ctx context.Context, userID string, in tasks.Input) (*models.Task, error)
	Update(ctx context.Context, userID, taskID string, in tasks.Input) (*models.Task, error)
	Delete(ctx context.Context, userID, taskID string) error
}

// Pinger is a dependency probed by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type TaskAPI struct {
	httpSrv *http.Server
	auth    AuthService
	tasks   TaskService
	cfg     *Config
	checks  map[string]Pinger
}

type Option func(*TaskAPI)

// WithReadinessCheck adds a dependency reported by /health/ready.
func WithReadinessCheck(name string, p Pinger) Option {
	return func(api *TaskAPI) { api.checks[name] = p }
}

func NewTaskAPI(authSvc AuthService, taskSvc TaskService, cfg *Config, opts ...Option) *TaskAPI {
	if authSvc == nil || taskSvc == nil {
		return nil
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}

	api := &TaskAPI{
		httpSrv: &http.Server{
			Addr:              cfg.ListenAddr(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		auth:   authSvc,
		tasks:  taskSvc,
		cfg:    cfg,
		checks: make(map[string]Pinger),
	}
	for _, opt := range opts {
		opt(api)
	}
	api.configRoutes()
	return api
}

// Start blocks serving HTTP until Shutdown is called.
func (api *TaskAPI) Start() error {
	if api.httpSrv == nil {
		return errors.ErrInternalServer
	}
	log := logger.Get()
	log.Info().Str("addr", api.httpSrv.Addr).Msg("http server listening")

	if err := api.httpSrv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (api *TaskAPI) Shutdown(ctx context.Context) error {
	if api.httpSrv == nil {
		return nil
	}
	return api.httpSrv.Shutdown(ctx)
}

func (api *TaskAPI) Handler() http.Handler {
	return api.httpSrv.Handler
}

func (api *TaskAPI) configRoutes() {
	exposeStack := !api.cfg.IsProduction()

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(
		Recovery(exposeStack),
		RequestID(),
		AccessLog(),
		Metrics(),
		CORS(api.cfg.CORSOrigins),
		ErrorHandler(exposeStack),
	)
	if api.cfg.Gzip {
		router.Use(GzipRequestDecompress(), GzipResponseCompress())
	}

	router.NoRoute(func(ctx *gin.Context) { abort(ctx, errors.ErrRouteNotFound) })
	router.NoMethod(func(ctx *gin.Context) { abort(ctx, errors.ErrMethodNotAllowed) })

	api.mount(router.Group("/"))
	api.mount(router.Group("/api"))

	api.httpSrv.Handler = router
}

func (api *TaskAPI) mount(g *gin.RouterGroup) {
	g.GET("/health", api.liveness)
	g.GET("/health/ready", api.readiness)
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := RequireAuth(api.auth)

	account := g.Group("/auth")
	{
		account.POST("/register", api.register)
		account.POST("/login", api.login)
		account.POST("/logout", requireAuth, api.logout)
		account.GET("/me", requireAuth, api.me)
	}

	taskRoutes := g.Group("/tasks", requireAuth)
	{
		taskRoutes.GET("", api.listTasks)
		taskRoutes.POST("", api.createTask)
		taskRoutes.PUT("/:id", api.updateTask)
		taskRoutes.DELETE("/:id", api.deleteTask)
	}
}
