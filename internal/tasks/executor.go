package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/domain"
	"github.com/lunaos-ai/OpenHands/internal/llm"
	"github.com/lunaos-ai/OpenHands/internal/logging"
	"github.com/lunaos-ai/OpenHands/internal/metrics"
	"github.com/lunaos-ai/OpenHands/internal/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 30 * time.Second
	temperature    = 0.3

	noCredentialsMessage = "No LLM API key configured"
	failurePrefix        = "Task execution failed: "

	customTaskLabel = "custom"
)

var (
	ErrProviderTimeout = errors.New("provider call timed out")
	ErrPoolSaturated   = errors.New("no provider worker available")
	errPromptRequired  = errors.New("prompt is required")
)

type Options struct {
	// Timeout bounds how long Execute waits for the provider. Zero means 30s.
	Timeout time.Duration
	// QueueTimeout bounds the wait for a pool slot. Zero means Timeout.
	QueueTimeout time.Duration
	Pool         *Pool
	Logger       *zap.Logger
}

// Executor turns a TaskRequest into exactly one provider call and wraps the
// outcome in a TaskResult. It never returns an error to its caller.
type Executor struct {
	resolver     *llm.Resolver
	registry     *llm.Registry
	pool         *Pool
	timeout      time.Duration
	queueTimeout time.Duration
	logger       *zap.Logger
}

func NewExecutor(resolver *llm.Resolver, registry *llm.Registry, opts Options) *Executor {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	queueTimeout := opts.QueueTimeout
	if queueTimeout <= 0 || queueTimeout > timeout {
		queueTimeout = timeout
	}
	pool := opts.Pool
	if pool == nil {
		pool = NewPool(defaultPoolSize)
	}
	logger := logging.OrNop(opts.Logger)
	return &Executor{
		resolver:     resolver,
		registry:     registry,
		pool:         pool,
		timeout:      timeout,
		queueTimeout: queueTimeout,
		logger:       logger,
	}
}

// Available reports whether any provider runtime is registered.
func (e *Executor) Available() bool {
	return e.registry.Available()
}

func (e *Executor) Execute(ctx context.Context, req domain.TaskRequest) domain.TaskResult {
	started := time.Now()
	label := taskTypeLabel(req.TaskType)
	log := e.logger.With(
		zap.String("request_id", middleware.RequestIDFromContext(ctx)),
		zap.String("task_type", string(req.TaskType)),
	)

	selection, err := e.resolver.Resolve(req.ModelOverride())
	if err != nil {
		metrics.RecordTask(label, "no_credentials", time.Since(started))
		log.Warn("task rejected", zap.Error(err))
		return domain.TaskResult{Success: false, Error: noCredentialsMessage}
	}

	text, duration, err := e.run(ctx, selection, req)
	if err != nil {
		metrics.RecordTask(label, "failure", time.Since(started))
		log.Warn("task failed",
			zap.String("provider", selection.ProviderKey),
			zap.String("model", selection.ModelID),
			zap.Error(err),
		)
		return domain.TaskResult{
			Success:  false,
			Error:    failurePrefix + err.Error(),
			Metadata: &domain.TaskMetadata{Traceback: fmt.Sprintf("%+v", err)},
		}
	}

	metrics.RecordTask(label, "success", time.Since(started))
	log.Info("task executed",
		zap.String("provider", selection.ProviderKey),
		zap.String("model", selection.ModelID),
		zap.Duration("provider_duration", duration),
	)

	seconds := duration.Seconds()
	return domain.TaskResult{
		Success: true,
		Data:    &domain.TaskData{Result: text, Raw: text},
		Metadata: &domain.TaskMetadata{
			DurationSeconds: &seconds,
			Model:           selection.ModelID,
			Provider:        selection.ProviderKey,
			TaskType:        req.TaskType,
		},
	}
}

// taskTypeLabel keeps the task_type metric label bounded: caller-chosen task
// types share one series.
func taskTypeLabel(taskType domain.TaskType) string {
	switch taskType {
	case domain.TaskAPIAnalysis, domain.TaskConnectorGeneration, domain.TaskTestGeneration, domain.TaskConnectorFix:
		return string(taskType)
	default:
		return customTaskLabel
	}
}

type callOutcome struct {
	text     string
	duration time.Duration
	err      error
}

// run returns errors carrying a stack trace so the failure envelope can
// expose it as metadata.traceback.
func (e *Executor) run(ctx context.Context, selection llm.ProviderSelection, req domain.TaskRequest) (string, time.Duration, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", 0, errors.WithStack(errPromptRequired)
	}

	provider, err := e.registry.Lookup(selection.ProviderKey)
	if err != nil {
		return "", 0, errors.WithStack(err)
	}

	prompt, err := RenderPrompt(req.TaskType, req.Context, req.Prompt)
	if err != nil {
		return "", 0, errors.Wrap(err, "render prompt")
	}

	waitCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	acquireCtx, cancelAcquire := context.WithTimeout(waitCtx, e.queueTimeout)
	release, err := e.pool.Acquire(acquireCtx)
	cancelAcquire()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", 0, errors.WithStack(fmt.Errorf("%w within %s", ErrPoolSaturated, e.queueTimeout))
		}
		return "", 0, errors.WithStack(err)
	}

	completion := llm.CompletionRequest{
		Model:       selection.ModelID,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: temperature,
		Credential:  e.resolver.Credentials().For(selection.ProviderKey),
	}

	// The call keeps request values but not the caller's cancellation: once
	// issued it runs to completion and only the wait below is abandoned.
	callCtx := context.WithoutCancel(ctx)
	done := make(chan callOutcome, 1)
	go func() {
		defer release()
		defer func() {
			if recovered := recover(); recovered != nil {
				done <- callOutcome{err: errors.Errorf("provider panicked: %v", recovered)}
			}
		}()
		callStarted := time.Now()
		text, err := provider.Complete(callCtx, completion)
		done <- callOutcome{text: text, duration: time.Since(callStarted), err: err}
	}()

	select {
	case outcome := <-done:
		if outcome.err != nil {
			return "", outcome.duration, errors.WithStack(outcome.err)
		}
		return outcome.text, outcome.duration, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return "", 0, errors.WithStack(ctx.Err())
		}
		return "", 0, errors.WithStack(fmt.Errorf("%w after %s", ErrProviderTimeout, e.timeout))
	}
}
