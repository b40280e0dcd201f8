package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/mmm-collinearity/internal/models"
	"github.com/irfndi/mmm-collinearity/internal/services"
	"github.com/irfndi/mmm-collinearity/internal/utils"
)

// Settings are the server-side defaults a request may override.
type Settings struct {
	Generation           services.GenerateParams
	CorrelationThreshold float64
	BootstrapIterations  int
	TrainFraction        float64
	Methods              models.MethodParams
	MovingAverageWindow  int
}

// DefaultSettings mirrors the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Generation:           services.DefaultGenerateParams(),
		CorrelationThreshold: services.DefaultCorrelationThreshold,
		BootstrapIterations:  50,
		TrainFraction:        0.8,
		Methods:              models.DefaultMethodParams(),
		MovingAverageWindow:  services.DefaultMovingAverageWindow,
	}
}

// GenerationRequest selects a scenario by name and overrides any generation
// parameter present in the body.
type GenerationRequest struct {
	Scenario string `json:"scenario"`
	services.GenerateParams
}

// DatasetPayload carries caller-supplied data instead of a generated dataset.
type DatasetPayload struct {
	Channels    []string    `json:"channels"`
	Spend       [][]float64 `json:"spend"`
	OutcomeName string      `json:"outcome_name"`
	Outcome     []float64   `json:"outcome"`
}

// DataRequest is embedded by every analysis request. When Data is set it is
// analysed as-is; otherwise a dataset is generated from Generate.
type DataRequest struct {
	Generate GenerationRequest `json:"generate"`
	Data     *DatasetPayload   `json:"data,omitempty"`
}

type DiagnosticsRequest struct {
	DataRequest
	Threshold float64 `json:"threshold"`
}

type BootstrapRequest struct {
	DataRequest
	Iterations int             `json:"iterations"`
	Seed       int64           `json:"seed"`
	Method     *models.FitSpec `json:"method,omitempty"`
}

type CompareRequest struct {
	DataRequest
	TrainFraction float64             `json:"train_fraction"`
	Methods       models.MethodParams `json:"methods"`
}

type SummaryRequest struct {
	DataRequest
	Window int `json:"window"`
}

func (s Settings) dataRequest() DataRequest {
	return DataRequest{
		Generate: GenerationRequest{
			Scenario:       s.Generation.Scenario.String(),
			GenerateParams: s.Generation,
		},
	}
}

// bindJSON decodes the body over the prefilled defaults in dst. An empty
// body keeps every default.
func bindJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// toParams resolves the scenario name into generator params.
func (r GenerationRequest) toParams() (services.GenerateParams, error) {
	params := r.GenerateParams
	if r.Scenario != "" {
		scenario, err := models.ParseScenario(r.Scenario)
		if err != nil {
			return params, utils.NewConfigurationError("scenario", err.Error())
		}
		params.Scenario = scenario
	}
	return params, nil
}

func (h *AnalysisHandler) resolveDataset(req DataRequest) (*models.MarketingDataset, error) {
	if req.Data != nil {
		return services.FromColumns(req.Data.Channels, req.Data.Spend, req.Data.OutcomeName, req.Data.Outcome)
	}
	params, err := req.Generate.toParams()
	if err != nil {
		return nil, err
	}
	if h.datasets != nil {
		return h.datasets.GetOrGenerate(params, h.generator.Generate)
	}
	return h.generator.Generate(params)
}

// bindAndResolve binds the request and produces its dataset, writing the
// error response itself. It reports whether the handler should continue.
func (h *AnalysisHandler) bindAndResolve(c *gin.Context, dst any, data *DataRequest) (*models.MarketingDataset, bool) {
	if err := bindJSON(c, dst); err != nil {
		c.JSON(http.StatusBadRequest, newErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error()))
		return nil, false
	}
	ds, err := h.resolveDataset(*data)
	if err != nil {
		h.respondError(c, err)
		return nil, false
	}
	return ds, true
}
