package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/irfndi/mmm-collinearity/internal/cache"
	"github.com/irfndi/mmm-collinearity/internal/export"
	"github.com/irfndi/mmm-collinearity/internal/logging"
	"github.com/irfndi/mmm-collinearity/internal/middleware"
	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
	"github.com/irfndi/mmm-collinearity/internal/telemetry"
	"github.com/irfndi/mmm-collinearity/internal/utils"
)

// MaxBootstrapIterations bounds the work a single request can ask for.
const MaxBootstrapIterations = 1000

// AnalysisHandler serves dataset generation and the collinearity analyses.
// Every request carries its own parameters, so the handler keeps no state
// between calls.
type AnalysisHandler struct {
	logger     *logrus.Logger
	events     *logging.StandardLogger
	settings   Settings
	generator  *services.DataGenerator
	bootstrap  *services.BootstrapAnalyzer
	comparator *services.FitComparator
	simulator  *services.PairSimulator
	summary    *services.SummaryService
	datasets   cache.Store
}

type DatasetResponse struct {
	Dataset *models.MarketingDataset `json:"dataset"`
	Summary *models.DatasetSummary   `json:"summary"`
}

type ScenarioInfo struct {
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Channels    []string    `json:"channels"`
	Correlation [][]float64 `json:"correlation"`
	MeanSpend   []float64   `json:"mean_spend"`
}

type ScenariosResponse struct {
	Scenarios               []ScenarioInfo     `json:"scenarios"`
	GroundTruthCoefficients map[string]float64 `json:"ground_truth_coefficients"`
}

func NewAnalysisHandler(logger *logrus.Logger, events *logging.StandardLogger, settings Settings) *AnalysisHandler {
	if logger == nil {
		logger = logrus.New()
	}
	if events == nil {
		events = logging.NewStandardLogger("info", "json")
	}
	return &AnalysisHandler{
		logger:     logger,
		events:     events,
		settings:   settings,
		generator:  services.NewDataGenerator(logger),
		bootstrap:  services.NewBootstrapAnalyzer(logger),
		comparator: services.NewFitComparator(logger),
		simulator:  services.NewPairSimulator(logger),
		summary:    services.NewSummaryService(logger),
	}
}

// WithDatasetCache serves generated datasets from c. Caller-supplied data is
// never cached.
func (h *AnalysisHandler) WithDatasetCache(c cache.Store) *AnalysisHandler {
	h.datasets = c
	return h
}

// startSpan opens an analysis span under the request span and makes it the
// request context, so errors reported afterwards land on it.
func startSpan(c *gin.Context, kind string, attrs ...attribute.KeyValue) trace.Span {
	ctx, span := telemetry.StartAnalysisSpan(c.Request.Context(), kind, attrs...)
	c.Request = c.Request.WithContext(ctx)
	return span
}

func datasetAttrs(ds *models.MarketingDataset) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("dataset.scenario", datasetLabel(ds)),
		attribute.Int("dataset.rows", ds.NumRows()),
		attribute.Int("dataset.channels", len(ds.Channels)),
	}
}

// analysisEvents tags the event log with the request and the dataset it
// analysed.
func (h *AnalysisHandler) analysisEvents(c *gin.Context, ds *models.MarketingDataset) *logging.StandardLogger {
	return h.events.
		WithRequestID(middleware.GetRequestID(c)).
		WithScenario(datasetLabel(ds)).
		WithDataset(fmt.Sprintf("%016x", ds.Fingerprint()))
}

func (h *AnalysisHandler) window(requested, rows int) int {
	w := requested
	if w <= 0 {
		w = h.settings.MovingAverageWindow
	}
	return min(w, rows)
}

// GenerateDataset handles POST /api/v1/datasets
func (h *AnalysisHandler) GenerateDataset(c *gin.Context) {
	req := h.settings.dataRequest()
	ds, ok := h.bindAndResolve(c, &req, &req)
	if !ok {
		return
	}

	summary, err := h.summary.Summarize(ds, h.window(0, ds.NumRows()))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DatasetResponse{Dataset: ds, Summary: summary})
}

// ExportDataset handles POST /api/v1/datasets/export. The dataset is returned
// as CSV, or zstd-framed CSV with ?compress=zstd.
func (h *AnalysisHandler) ExportDataset(c *gin.Context) {
	req := h.settings.dataRequest()
	ds, ok := h.bindAndResolve(c, &req, &req)
	if !ok {
		return
	}

	data, err := export.MarshalCSV(ds)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("marketing_%s_%016x.csv", datasetLabel(ds), ds.Fingerprint())
	contentType := "text/csv; charset=utf-8"
	switch c.Query("compress") {
	case "":
	case "zstd":
		data = export.Compress(data)
		filename += export.ZstdExtension
		contentType = "application/zstd"
	default:
		h.respondError(c, utils.NewConfigurationErrorf("compress", "unsupported value %q", c.Query("compress")))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func datasetLabel(ds *models.MarketingDataset) string {
	if ds.Scenario != "" {
		return ds.Scenario
	}
	return "custom"
}

// Diagnostics handles POST /api/v1/diagnostics
func (h *AnalysisHandler) Diagnostics(c *gin.Context) {
	req := DiagnosticsRequest{
		DataRequest: h.settings.dataRequest(),
		Threshold:   h.settings.CorrelationThreshold,
	}
	ds, ok := h.bindAndResolve(c, &req, &req.DataRequest)
	if !ok {
		return
	}
	if req.Threshold <= 0 || req.Threshold > 1 {
		h.respondError(c, utils.NewConfigurationErrorf("threshold", "must be in (0, 1], got %g", req.Threshold))
		return
	}

	span := startSpan(c, "diagnostics", datasetAttrs(ds)...)
	defer span.End()

	result, err := services.NewDiagnosticsService(h.logger, req.Threshold).Compute(ds)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.analysisEvents(c, ds).LogAnalysis("diagnostics", map[string]interface{}{
		"max_vif":           result.MaxVIF.Float(),
		"problematic_pairs": len(result.ProblematicPairs),
	})
	c.JSON(http.StatusOK, result)
}

// Bootstrap handles POST /api/v1/bootstrap
func (h *AnalysisHandler) Bootstrap(c *gin.Context) {
	req := BootstrapRequest{
		DataRequest: h.settings.dataRequest(),
		Iterations:  h.settings.BootstrapIterations,
		Seed:        h.settings.Generation.Seed,
	}
	ds, ok := h.bindAndResolve(c, &req, &req.DataRequest)
	if !ok {
		return
	}
	if req.Iterations > MaxBootstrapIterations {
		h.respondError(c, utils.NewConfigurationErrorf("iterations", "must be at most %d, got %d", MaxBootstrapIterations, req.Iterations))
		return
	}

	spec := models.FitSpec{Kind: models.MethodOLS}
	if req.Method != nil {
		spec = *req.Method
	}

	span := startSpan(c, "bootstrap", append(datasetAttrs(ds),
		attribute.Int("bootstrap.iterations", req.Iterations),
		attribute.String("bootstrap.method", spec.Kind.String()),
	)...)
	defer span.End()

	result, err := h.bootstrap.RunWithModel(ds, req.Iterations, req.Seed, spec)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.analysisEvents(c, ds).LogAnalysis("bootstrap", map[string]interface{}{
		"iterations": result.Iterations,
		"method":     spec.Kind.String(),
		"max_cv":     result.MaxCV(),
	})
	c.JSON(http.StatusOK, result)
}

// Compare handles POST /api/v1/compare
func (h *AnalysisHandler) Compare(c *gin.Context) {
	req := CompareRequest{
		DataRequest:   h.settings.dataRequest(),
		TrainFraction: h.settings.TrainFraction,
		Methods:       h.settings.Methods,
	}
	ds, ok := h.bindAndResolve(c, &req, &req.DataRequest)
	if !ok {
		return
	}

	span := startSpan(c, "compare", append(datasetAttrs(ds), attribute.Float64("compare.train_fraction", req.TrainFraction))...)
	defer span.End()

	result, err := h.comparator.Compare(ds, req.TrainFraction, req.Methods)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.analysisEvents(c, ds).LogAnalysis("compare", map[string]interface{}{
		"train_rows": result.TrainRows,
		"test_rows":  result.TestRows,
		"methods":    len(result.Records),
	})
	c.JSON(http.StatusOK, result)
}

// Simulate handles POST /api/v1/simulate
func (h *AnalysisHandler) Simulate(c *gin.Context) {
	params := models.DefaultSimulationParams()
	if err := bindJSON(c, &params); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error()))
		return
	}

	span := startSpan(c, "simulate",
		attribute.Float64("simulate.correlation", params.Correlation),
		attribute.Int("simulate.sample_size", params.SampleSize),
	)
	defer span.End()

	result, err := h.simulator.Simulate(params)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Summary handles POST /api/v1/summary
func (h *AnalysisHandler) Summary(c *gin.Context) {
	req := SummaryRequest{DataRequest: h.settings.dataRequest()}
	ds, ok := h.bindAndResolve(c, &req, &req.DataRequest)
	if !ok {
		return
	}

	window := req.Window
	if window == 0 {
		window = h.window(0, ds.NumRows())
	}
	summary, err := h.summary.Summarize(ds, window)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Scenarios handles GET /api/v1/scenarios
func (h *AnalysisHandler) Scenarios(c *gin.Context) {
	resp := ScenariosResponse{
		GroundTruthCoefficients: make(map[string]float64, len(models.DefaultChannels)),
	}
	for i, ch := range models.DefaultChannels {
		resp.GroundTruthCoefficients[ch] = models.GroundTruthCoefficients[i]
	}
	for _, s := range models.AllScenarios() {
		cov, err := models.LookupScenario(s)
		if err != nil {
			h.respondError(c, err)
			return
		}
		resp.Scenarios = append(resp.Scenarios, ScenarioInfo{
			Name:        s.String(),
			DisplayName: s.DisplayName(),
			Channels:    cov.Channels,
			Correlation: cov.Correlation,
			MeanSpend:   cov.MeanSpend,
		})
	}
	c.JSON(http.StatusOK, resp)
}
