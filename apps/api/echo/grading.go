package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/deliberation/core"
	"github.com/trezcool/deliberation/core/grading"
	"github.com/trezcool/deliberation/services/period"
)

type gradingApi struct {
	svc    GradingService
	gate   *period.Gate
	mailer ReportMailer
}

func registerGradingAPI(g *echo.Group, jwt echo.MiddlewareFunc, cfg jwtConfig, deps ServerDeps) {
	api := gradingApi{
		svc:    deps.GradingSvc,
		gate:   deps.Gate,
		mailer: deps.Mailer,
	}

	gg := g.Group("/grades", jwt)

	// batches & periods: grading admins only
	admin := adminMiddleware(cfg, RoleAdmin, RoleGrading)
	gg.POST("/initialize", api.initialize, admin)
	gg.POST("/semester/finalize", api.finalizeSemester, admin)
	gg.POST("/year/finalize", api.finalizeYear, admin)
	gg.GET("/periods", api.retrievePeriods, admin)
	gg.PUT("/periods", api.updatePeriods, admin)

	gg.PUT("/scores", api.enterScores, staffMiddleware(cfg))
}

// Handlers

func (api *gradingApi) initialize(ctx echo.Context) error {
	var data semesterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to semesterRequest")
	}
	report, err := api.svc.InitializeEmptyGrades(ctx.Request().Context(), data.SemesterID, data.AcademicYear)
	return api.respondReport(ctx, report, err)
}

func (api *gradingApi) finalizeSemester(ctx echo.Context) error {
	var data semesterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to semesterRequest")
	}
	report, err := api.svc.FinalizeSemesterGrades(ctx.Request().Context(), data.SemesterID, data.AcademicYear)
	return api.respondReport(ctx, report, err)
}

func (api *gradingApi) finalizeYear(ctx echo.Context) error {
	var data yearRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to yearRequest")
	}
	report, err := api.svc.FinalizeYearGrades(ctx.Request().Context(), data.AcademicYear)
	return api.respondReport(ctx, report, err)
}

// respondReport sends 200 on success and 207 (with the failed students) on a partial batch failure.
// Any other error goes through the HTTP error handler.
func (api *gradingApi) respondReport(ctx echo.Context, report grading.Report, err error) error {
	if err != nil {
		if _, ok := grading.IsBatchError(err); !ok {
			return err
		}
	}
	if api.mailer != nil && report.Students > 0 {
		api.mailer.SendReport(report)
	}

	code, status := http.StatusOK, statusSuccess
	if err != nil {
		code, status = http.StatusMultiStatus, statusError
	}
	return ctx.JSON(code, response{
		Status:   status,
		Message:  report.Message(),
		Report:   &report,
		Failures: report.Failures,
	})
}

func (api *gradingApi) enterScores(ctx echo.Context) error {
	var data grading.ScoreEntry
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ScoreEntry")
	}
	g, err := api.svc.EnterScores(ctx.Request().Context(), data)
	if err != nil {
		if errors.Cause(err) == grading.ErrNotFound {
			return echo.NewHTTPError(http.StatusNotFound, "grade record not found: grades must be initialized first")
		}
		return err
	}
	return ctx.JSON(http.StatusOK, response{Status: statusSuccess, Message: "scores saved", Data: g})
}

func (api *gradingApi) retrievePeriods(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, response{Status: statusSuccess, Message: "entry periods", Data: api.gate.Snapshot()})
}

func (api *gradingApi) updatePeriods(ctx echo.Context) error {
	var data periodsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to periodsRequest")
	}
	if data.NormalOpen == nil && data.MakeupOpen == nil {
		return core.NewValidationError(nil, core.FieldError{Field: "normal_open", Error: "normal_open and/or makeup_open is required"})
	}

	state := api.gate.Snapshot()
	if data.NormalOpen != nil {
		state.NormalOpen = *data.NormalOpen
	}
	if data.MakeupOpen != nil {
		state.MakeupOpen = *data.MakeupOpen
	}
	api.gate.Set(state)
	return ctx.JSON(http.StatusOK, response{Status: statusSuccess, Message: "entry periods updated", Data: state})
}
