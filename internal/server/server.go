package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultVersionLimit is the number of versions kept per diagram when
// Config.VersionLimit is unset.
const DefaultVersionLimit = 10

// Config controls the server. Zero values pick defaults; JWTSecret is
// required.
type Config struct {
	JWTSecret      string
	TokenTTL       time.Duration
	VersionLimit   int
	RateLimitRPS   float64
	RateLimitBurst int
	AllowOrigins   []string
}

// Server serves the diagram sync API.
type Server struct {
	db     *gorm.DB
	cfg    Config
	log    *zap.Logger
	tokens *tokenIssuer
	engine *gin.Engine
}

// New builds the server on an already migrated database.
func New(db *gorm.DB, cfg Config, log *zap.Logger) (*Server, error) {
	if db == nil {
		return nil, errors.New("server: nil db")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("server: JWT secret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	if cfg.VersionLimit <= 0 {
		cfg.VersionLimit = DefaultVersionLimit
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		db:     db,
		cfg:    cfg,
		log:    log,
		tokens: &tokenIssuer{secret: []byte(cfg.JWTSecret), ttl: cfg.TokenTTL},
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logging(s.log), Recovery(s.log))
	r.Use(cors.New(s.corsConfig()))
	if s.cfg.RateLimitRPS > 0 {
		burst := s.cfg.RateLimitBurst
		if burst <= 0 {
			burst = int(s.cfg.RateLimitRPS)
		}
		r.Use(RateLimit(s.cfg.RateLimitRPS, burst))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/sync/api")
	{
		auth := api.Group("/auth")
		auth.POST("/signup", s.signup)
		auth.POST("/login", s.login)
		auth.GET("/me", s.authRequired(), s.me)
		auth.PUT("/me", s.authRequired(), s.updateMe)
		auth.PUT("/password", s.authRequired(), s.changePassword)

		d := api.Group("/diagrams", s.authRequired())
		d.POST("/push", s.pushDiagram)
		d.POST("/sync", s.syncDiagram)
		d.GET("/pull-all", s.pullAll)
		d.GET("/pull/:id", s.pullDiagram)
		d.GET("", s.listDiagrams)
		d.GET("/:id", s.getDiagram)
		d.DELETE("/:id", s.deleteDiagram)
		d.GET("/:id/versions", s.listVersions)
		d.DELETE("/:id/versions/:version", s.deleteVersion)
		d.POST("/:id/snapshot", s.createSnapshot)
	}
	return r
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(s.cfg.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = s.cfg.AllowOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
