// Package httpapi exposes the mod catalog, the upload pipeline and account
// endpoints over HTTP using gin.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/modzart/internal/logging"
	"github.com/dmitrijs2005/modzart/internal/server/blobstore"
	"github.com/dmitrijs2005/modzart/internal/server/models"
	"github.com/dmitrijs2005/modzart/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ModService is the part of services.ModService used by the handlers.
type ModService interface {
	Async() bool
	CreateMod(ctx context.Context, userID int64, in services.ModInput, file io.Reader, filename string) (*models.Mod, error)
	EnqueueMod(ctx context.Context, userID int64, in services.ModInput, file io.Reader, filename string) (*models.UploadJob, error)
	GetJob(ctx context.Context, userID int64, jobID string) (*models.UploadJob, error)
	CreateProject(ctx context.Context, userID int64, in services.ProjectInput) (*models.Mod, error)
	Get(ctx context.Context, id int64) (*models.Mod, error)
	List(ctx context.Context, filter models.ModFilter) ([]*models.Mod, error)
	Update(ctx context.Context, userID, id int64, patch services.ModPatch) (*models.Mod, error)
	DeleteMod(ctx context.Context, userID, id int64) error
	Download(ctx context.Context, id int64) (string, error)
	UploadVersion(ctx context.Context, userID, modID int64, in services.VersionInput, file io.Reader, filename string) (*models.Version, error)
	ListVersions(ctx context.Context, modID int64) ([]*models.Version, error)
}

// UserService is the part of services.UserService used by the handlers.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
	Authenticate(token string) (int64, error)
}

// LocalFiles resolves keys of the local blob store for the retrieval route.
type LocalFiles interface {
	Open(key string) (string, error)
}

// Options configure a Server. Files is nil unless the local backend is in
// use; Gatherer is nil when metrics are not exposed.
type Options struct {
	Address        string
	AllowedOrigins []string
	MaxUploadSize  int64
	Files          LocalFiles
	Gatherer       prometheus.Gatherer
}

type Server struct {
	address string
	maxBody int64
	logger  logging.Logger
	mods    ModService
	users   UserService
	files   LocalFiles
	engine  *gin.Engine
}

func NewServer(opts Options, l logging.Logger, mods ModService, users UserService) *Server {
	s := &Server{
		address: opts.Address,
		maxBody: bodyLimit(opts.MaxUploadSize),
		logger:  l.With("module", "http_server"),
		mods:    mods,
		users:   users,
		files:   opts.Files,
	}
	s.engine = s.routes(opts)
	return s
}

// multipartOverhead is allowed on top of the file size for form fields and
// boundaries.
const multipartOverhead = 1 << 20

func bodyLimit(maxUpload int64) int64 {
	if maxUpload <= 0 {
		return 0
	}
	return maxUpload + multipartOverhead
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = opts.AllowedOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	if len(corsConfig.AllowOrigins) == 0 {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(corsConfig))

	auth := s.authRequired()

	r.POST("/users/", s.register)
	r.POST("/auth/token", s.token)
	r.GET("/users/me", auth, s.me)

	modRoutes := r.Group("/mods")
	{
		modRoutes.GET("/", s.listMods)
		modRoutes.GET("/:id", s.getMod)
		modRoutes.GET("/:id/download", s.downloadMod)
		modRoutes.GET("/:id/versions", s.listVersions)

		modRoutes.POST("/", auth, s.createMod)
		modRoutes.POST("/project", auth, s.createProject)
		modRoutes.PUT("/:id", auth, s.updateMod)
		modRoutes.DELETE("/:id", auth, s.deleteMod)
		modRoutes.POST("/:id/versions", auth, s.uploadVersion)
	}

	r.GET("/uploads/:job", auth, s.getJob)

	if s.files != nil {
		r.GET(blobstore.DownloadRoute+"*key", s.serveFile)
	}
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "modzart api"})
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
