package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/htsget-drs-server/internal/authz"
	"github.com/htsget-drs-server/internal/beacon"
	"github.com/htsget-drs-server/internal/domain"
	"github.com/htsget-drs-server/internal/drs"
	"github.com/htsget-drs-server/internal/htsget"
	"github.com/htsget-drs-server/internal/middleware"
)

// Server is the HTTP surface: the DRS object graph, htsget tickets and
// data, and the Beacon search, all behind one gin router.
type Server struct {
	cfg    *domain.Config
	router *gin.Engine
	server *http.Server
	log    *logrus.Logger

	auth   *authz.Authorizer
	drs    *drs.Service
	htsget *htsget.Service
	beacon *beacon.Service
}

// NewServer wires the services onto the router.
func NewServer(cfg *domain.Config, log *logrus.Logger, auth *authz.Authorizer, drsSvc *drs.Service, htsgetSvc *htsget.Service, beaconSvc *beacon.Service) *Server {
	if strings.ToLower(cfg.Logging.Level) == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))

	s := &Server{
		cfg:    cfg,
		router: router,
		log:    log,
		auth:   auth,
		drs:    drsSvc,
		htsget: htsgetSvc,
		beacon: beaconSvc,
	}
	s.setupRoutes()
	return s
}

// Router exposes the gin engine, mainly for tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "htsget-drs-server"})
	})

	drsGroup := s.router.Group("/ga4gh/drs/v1")
	{
		drsGroup.GET("/service-info", s.handleDrsServiceInfo)
		drsGroup.GET("/objects", s.handleListObjects)
		drsGroup.POST("/objects", s.handlePostObject)
		drsGroup.GET("/objects/*id", s.handleGetObject)
		drsGroup.DELETE("/objects/*id", s.handleDeleteObject)
		drsGroup.GET("/cohorts", s.handleListCohorts)
		drsGroup.POST("/cohorts", s.handlePostCohort)
		drsGroup.GET("/cohorts/:id", s.handleGetCohort)
		drsGroup.DELETE("/cohorts/:id", s.handleDeleteCohort)
		drsGroup.GET("/cohorts/:id/status", s.handleCohortStatus)
	}

	htsgetGroup := s.router.Group("/htsget/v1")
	{
		htsgetGroup.GET("/reads/service-info", s.handleReadsServiceInfo)
		htsgetGroup.GET("/reads/data/:id", s.handleData("read"))
		htsgetGroup.GET("/reads/:id", s.handleTicket("read"))
		htsgetGroup.GET("/variants/service-info", s.handleVariantsServiceInfo)
		htsgetGroup.GET("/variants/data/:id", s.handleData("variant"))
		htsgetGroup.GET("/variants/:id", s.handleTicket("variant"))
		htsgetGroup.GET("/variants/:id/index", s.handleIndexVariants)
		htsgetGroup.POST("/variants/:id/index", s.handleIndexVariants)
		htsgetGroup.POST("/variants/search", s.handleSearchVariants)
		htsgetGroup.GET("/genes", s.handleListGenes)
		htsgetGroup.GET("/genes/:id", s.handleMatchGenes)
		htsgetGroup.GET("/transcripts", s.handleListTranscripts)
		htsgetGroup.GET("/transcripts/:id", s.handleMatchTranscripts)
	}

	beaconGroup := s.router.Group("/beacon/v2")
	{
		beaconGroup.GET("/service-info", s.handleBeaconServiceInfo)
		beaconGroup.GET("/g_variants", s.handleBeaconGet)
		beaconGroup.POST("/g_variants", s.handleBeaconPost)
	}
}

// abortError writes the error taxonomy response for err.
func (s *Server) abortError(c *gin.Context, err error) {
	status := domain.StatusFor(err)
	if status >= 500 {
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("Request failed")
	}
	c.JSON(status, gin.H{"message": err.Error()})
}
