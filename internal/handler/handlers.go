package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"domainatlas/internal/export"
	"domainatlas/internal/model"
	"domainatlas/internal/service"
	"domainatlas/internal/storage"
	"domainatlas/internal/utils"
)

type Handler struct {
	Storage  *storage.Storage
	Pipeline *service.Pipeline
	Bus      *service.ProgressBus

	TrustedIPs string
	Proxy      utils.ProxyConfig
}

func NewHandler(store *storage.Storage, pipe *service.Pipeline, bus *service.ProgressBus, trustedIPs string, proxy utils.ProxyConfig) *Handler {
	return &Handler{
		Storage:    store,
		Pipeline:   pipe,
		Bus:        bus,
		TrustedIPs: trustedIPs,
		Proxy:      proxy,
	}
}

func (h *Handler) Healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := h.Storage.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// TriggerRun starts a pipeline run in the background. Only trusted addresses
// may trigger one; a second trigger while a run is active gets 409.
func (h *Handler) TriggerRun(c echo.Context) error {
	ip := utils.ExtractIP(c, h.Proxy)
	if !utils.IsTrustedIP(ip, h.TrustedIPs) {
		utils.Log.Warn("run trigger rejected", utils.Field("ip", ip))
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to trigger runs")
	}

	var opts service.RunOptions
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		if err := c.Bind(&opts); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid run options")
		}
	} else {
		opts.SkipScrape = parseFlag(c.FormValue("skip_scrape"))
		opts.ClassifyOnly = parseFlag(c.FormValue("classify_only"))
		opts.ImportFile = c.FormValue("import_file")
	}

	if err := h.Pipeline.Start(opts); err != nil {
		if errors.Is(err, service.ErrRunInProgress) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "starting run failed")
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "started"})
}

func (h *Handler) Results(c echo.Context) error {
	ctx := c.Request().Context()
	records, err := h.Storage.GetResults(ctx)
	if err != nil {
		utils.Log.Error("loading results failed", utils.Field("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading results failed")
	}
	updatedAt, err := h.Storage.GetUpdatedAt(ctx)
	if err != nil {
		utils.Log.Error("loading update stamp failed", utils.Field("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading results failed")
	}
	if records == nil {
		records = []model.Record{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"updated_at": updatedAt,
		"count":      len(records),
		"results":    records,
	})
}

func (h *Handler) ResultsCSV(c echo.Context) error {
	records, err := h.Storage.GetResults(c.Request().Context())
	if err != nil {
		utils.Log.Error("loading results failed", utils.Field("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading results failed")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment;filename=results.csv")
	c.Response().WriteHeader(http.StatusOK)
	return export.WriteCSV(c.Response().Writer, records)
}

func (h *Handler) Summary(c echo.Context) error {
	summary, err := h.Storage.GetSummary(c.Request().Context())
	if err != nil {
		utils.Log.Error("loading summary failed", utils.Field("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading summary failed")
	}
	if summary == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no completed run yet")
	}
	return c.JSON(http.StatusOK, summary)
}

func (h *Handler) History(c echo.Context) error {
	domain := strings.ToLower(strings.TrimSpace(c.Param("domain")))
	if !utils.IsValidDomain(domain) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid domain")
	}

	entries, diffs, err := h.Storage.GetHistoryWithDiffs(c.Request().Context(), domain)
	if err != nil {
		utils.Log.Error("loading history failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		return echo.NewHTTPError(http.StatusInternalServerError, "loading history failed")
	}
	if entries == nil {
		entries = []model.HistoryEntry{}
	}
	if diffs == nil {
		diffs = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{
		"domain":  domain,
		"entries": entries,
		"diffs":   diffs,
	})
}

func parseFlag(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "on"
}
