package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
	"github.com/trezcool/deliberation/services/period"
)

type (
	// GradingService is the part of grading.Service exposed over HTTP.
	GradingService interface {
		InitializeEmptyGrades(ctx context.Context, semesterID int, academicYear string) (grading.Report, error)
		FinalizeSemesterGrades(ctx context.Context, semesterID int, academicYear string) (grading.Report, error)
		FinalizeYearGrades(ctx context.Context, academicYear string) (grading.Report, error)
		EnterScores(ctx context.Context, se grading.ScoreEntry) (grading.ElementGrade, error)
	}

	// ReportMailer is notified of every batch run triggered over HTTP.
	ReportMailer interface {
		SendReport(report grading.Report)
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		GradingSvc     GradingService
		Gate           *period.Gate
		Mailer         ReportMailer // optional
		DisableReqLogs bool
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		jwt      jwtConfig
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *server {
	s := &server{
		deps:     deps,
		app:      echo.New(),
		jwt:      newJWTConfig(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.jwt, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.jwt.JWTConfig)

	registerGradingAPI(v1, jwt, s.jwt, s.deps)
}

// Start blocks until the server stops; startup errors are sent to Errors().
func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address()); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Errors() <-chan error { return s.errors }

func (s *server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
