package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"GridPull/internal/domain/models"
	"GridPull/internal/service/ratelimit"
	"GridPull/internal/usecase"
	xhttp "GridPull/pkg/http"
	xlogger "GridPull/pkg/logger"

	"github.com/labstack/echo/v4"
)

// PredictorsEchoHandler implements Echo-based HTTP handlers following Clean Architecture.
type PredictorsEchoHandler struct {
	logger     *xlogger.Logger
	predictors *usecase.PredictorsUseCase
	market     *usecase.MarketDataUseCase
	rl         *ratelimit.Limiter
}

func NewPredictorsEchoHandler(logger *xlogger.Logger, predictors *usecase.PredictorsUseCase, market *usecase.MarketDataUseCase) *PredictorsEchoHandler {
	return &PredictorsEchoHandler{
		logger:     logger,
		predictors: predictors,
		market:     market,
		rl:         ratelimit.New(),
	}
}

func (h *PredictorsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")
	g.GET("/predictors", h.Predictors)
	g.GET("/market/gas", h.GasPrices)
}

func (h *PredictorsEchoHandler) Predictors(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":predictors", 5, 2) {
		h.logger.Warn("predictors rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.PredictorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start, end, verr := parseWindow(req.Start, req.End)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	resolution, err := models.ParseResolution(req.Resolution)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code: "ERR_DURATION", Field: "resolution", Message: err.Error(),
		}})
	}

	set, err := h.predictors.GetPredictors(c.Request().Context(), usecase.GetPredictorsParams{
		Start:      start,
		End:        end,
		Resolution: resolution,
		Location:   models.Location{City: req.City, Lat: req.Lat, Lon: req.Lon},
		Groups:     parseGroups(req.Groups),
	})
	if err != nil {
		if isBadRequest(err) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("predictors usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, set)
}

func (h *PredictorsEchoHandler) GasPrices(c echo.Context) error {
	if !h.rl.Allow(c.RealIP()+":gas", 5, 2) {
		h.logger.Warn("gas_prices rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
	}

	req := &models.GasPricesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	start, end, verr := parseWindow(req.Start, req.End)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	resolution, err := models.ParseResolution(req.Resolution)
	if err != nil {
		return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
			Code: "ERR_DURATION", Field: "resolution", Message: err.Error(),
		}})
	}

	frame, err := h.market.GetGasPrices(c.Request().Context(), start, end, resolution)
	if err != nil {
		if isBadRequest(err) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		h.logger.Error("gas_prices usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, frame)
}

// parseWindow reads both window bounds, reporting per-field errors the same
// way struct validation does.
func parseWindow(rawStart, rawEnd string) (start, end time.Time, verr []xhttp.ValidationError) {
	const hint = "must be RFC3339, unix seconds, or YYYY-MM-DD"
	var ok bool
	if start, ok = xhttp.ParseTime(rawStart); !ok {
		verr = append(verr, xhttp.ValidationError{Code: "ERR_TIME", Field: "start", Message: "start " + hint})
	}
	if end, ok = xhttp.ParseTime(rawEnd); !ok {
		verr = append(verr, xhttp.ValidationError{Code: "ERR_TIME", Field: "end", Message: "end " + hint})
	}
	return start, end, verr
}

// parseGroups splits a comma separated group list. An absent parameter keeps
// the default of all groups; validation happens in the usecase.
func parseGroups(raw string) []models.PredictorGroup {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	groups := make([]models.PredictorGroup, 0, len(parts))
	for _, p := range parts {
		groups = append(groups, models.PredictorGroup(strings.TrimSpace(p)))
	}
	return groups
}

func isBadRequest(err error) bool {
	return errors.Is(err, models.ErrUnknownPredictorGroup) ||
		errors.Is(err, models.ErrLocationRequired) ||
		errors.Is(err, models.ErrInvalidRange)
}
