package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lunaos-ai/OpenHands/internal/capabilities"
	"github.com/lunaos-ai/OpenHands/internal/domain"
	"github.com/lunaos-ai/OpenHands/internal/jobs"
	"github.com/lunaos-ai/OpenHands/internal/logging"
	"github.com/lunaos-ai/OpenHands/internal/metrics"
	"github.com/lunaos-ai/OpenHands/internal/middleware"
	"go.uber.org/zap"
)

type Executor interface {
	Execute(ctx context.Context, req domain.TaskRequest) domain.TaskResult
}

type Capabilities interface {
	Health(ctx context.Context) (domain.HealthResponse, error)
	AnalyzeSpec(ctx context.Context, req domain.AnalyzeRequest) (domain.AnalyzeResponse, error)
	GenerateConnector(ctx context.Context, req domain.GenerateConnectorRequest) (domain.GenerateConnectorResponse, error)
	GenerateTests(ctx context.Context, req domain.GenerateTestsRequest) (domain.GenerateTestsResponse, error)
	FixConnector(ctx context.Context, req domain.FixConnectorRequest) (domain.FixConnectorResponse, error)
}

type JobRunner interface {
	Submit(ctx context.Context, req domain.TaskRequest) (domain.Job, error)
	Get(ctx context.Context, id string) (domain.Job, error)
}

type Dependencies struct {
	Executor     Executor
	Capabilities Capabilities
	// Jobs is optional; nil leaves the /api/jobs routes unregistered.
	Jobs JobRunner

	APIKey             string
	RateLimitPerMinute int
	RateLimitBurst     int
	Logger             *zap.Logger
}

func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	logger := logging.OrNop(deps.Logger)
	h := &handlers{deps: deps, logger: logger}

	router.GET("/health", h.health)
	router.POST("/health", h.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	group := router.Group("/api")
	group.Use(requireAPIKey(deps.APIKey))
	group.Use(rateLimit(newClientRateLimiter(deps.RateLimitPerMinute, deps.RateLimitBurst, nil)))

	group.POST("/execute", h.execute)
	group.POST("/analyze", h.analyze)
	group.POST("/generate-connector", h.generateConnector)
	group.POST("/generate-tests", h.generateTests)
	group.POST("/fix", h.fix)

	if deps.Jobs != nil {
		group.POST("/jobs", h.submitJob)
		group.GET("/jobs/:id", h.getJob)
	}
}

type handlers struct {
	deps   Dependencies
	logger *zap.Logger
}

func (h *handlers) health(c *gin.Context) {
	response, err := h.deps.Capabilities.Health(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "", "Service not healthy: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, response)
}

// execute always answers 200 once the body is valid; executor failures are
// reported inside the envelope.
func (h *handlers) execute(c *gin.Context) {
	var req domain.TaskRequest
	if err := c.ShouldBindWith(&req, numberJSON{}); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid task payload: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, h.deps.Executor.Execute(c.Request.Context(), req))
}

func (h *handlers) analyze(c *gin.Context) {
	var req domain.AnalyzeRequest
	if err := c.ShouldBindWith(&req, numberJSON{}); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid analyze payload: "+err.Error())
		return
	}
	response, err := h.deps.Capabilities.AnalyzeSpec(c.Request.Context(), req)
	if err != nil {
		h.writeCapabilityError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlers) generateConnector(c *gin.Context) {
	var req domain.GenerateConnectorRequest
	if err := c.ShouldBindWith(&req, numberJSON{}); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid connector payload: "+err.Error())
		return
	}
	response, err := h.deps.Capabilities.GenerateConnector(c.Request.Context(), req)
	if err != nil {
		h.writeCapabilityError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlers) generateTests(c *gin.Context) {
	var req domain.GenerateTestsRequest
	if err := c.ShouldBindWith(&req, numberJSON{}); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid test generation payload: "+err.Error())
		return
	}
	response, err := h.deps.Capabilities.GenerateTests(c.Request.Context(), req)
	if err != nil {
		h.writeCapabilityError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlers) fix(c *gin.Context) {
	var req domain.FixConnectorRequest
	if err := c.ShouldBindWith(&req, numberJSON{}); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid fix payload: "+err.Error())
		return
	}
	response, err := h.deps.Capabilities.FixConnector(c.Request.Context(), req)
	if err != nil {
		h.writeCapabilityError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *handlers) submitJob(c *gin.Context) {
	var req domain.TaskRequest
	if err := c.ShouldBindWith(&req, numberJSON{}); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_payload", "invalid task payload: "+err.Error())
		return
	}
	job, err := h.deps.Jobs.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, jobs.ErrRunnerClosed) {
			writeError(c, http.StatusServiceUnavailable, "shutting_down", err.Error())
			return
		}
		h.logger.Error("job submit failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, domain.JobAccepted{JobID: job.ID, State: job.State})
}

func (h *handlers) getJob(c *gin.Context) {
	job, err := h.deps.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			writeError(c, http.StatusNotFound, "job_not_found", "job not found")
			return
		}
		h.logger.Error("job lookup failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *handlers) writeCapabilityError(c *gin.Context, err error) {
	var capabilityErr *capabilities.Error
	if !errors.As(err, &capabilityErr) {
		h.logger.Error("capability failed", zap.String("request_id", middleware.GetRequestID(c)), zap.Error(err))
	}
	writeError(c, http.StatusInternalServerError, "", err.Error())
}

func writeError(c *gin.Context, status int, code string, detail string) {
	c.AbortWithStatusJSON(status, domain.ErrorResponse{
		Detail:    detail,
		Code:      code,
		RequestID: middleware.GetRequestID(c),
	})
}

func requireAPIKey(requiredKey string) gin.HandlerFunc {
	requiredKey = strings.TrimSpace(requiredKey)
	return func(c *gin.Context) {
		if requiredKey == "" {
			c.Next()
			return
		}

		providedKey := strings.TrimSpace(c.GetHeader("X-Api-Key"))
		if providedKey == "" {
			authorization := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				providedKey = strings.TrimSpace(authorization[7:])
			}
		}

		if subtle.ConstantTimeCompare([]byte(requiredKey), []byte(providedKey)) != 1 {
			writeError(c, http.StatusUnauthorized, "unauthorized", "API key is invalid")
			return
		}
		c.Next()
	}
}
