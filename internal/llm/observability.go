package llm

import (
	"context"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/metrics"
	"github.com/lunaos-ai/OpenHands/internal/middleware"
	"go.uber.org/zap"
)

const operationComplete = "complete"

func observeProviderOperation(ctx context.Context, logger *zap.Logger, provider string, model string, call func() (string, error)) (string, error) {
	started := time.Now()
	log := logger.With(
		zap.String("request_id", middleware.RequestIDFromContext(ctx)),
		zap.String("component", "provider"),
		zap.String("provider", provider),
		zap.String("model", model),
	)
	log.Debug("provider call started")

	result, err := call()

	status := "success"
	errorCategory := providerErrorCategory(err)
	if err != nil {
		status = "error"
	}

	duration := time.Since(started)
	metrics.RecordProviderCall(provider, operationComplete, status, errorCategory, duration)
	fields := []zap.Field{
		zap.String("status", status),
		zap.String("error_category", errorCategory),
		zap.Int64("duration_ms", duration.Milliseconds()),
	}
	if err != nil {
		log.Warn("provider call failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("provider call finished", fields...)
	}

	return result, err
}
