package tasks

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lunaos-ai/OpenHands/internal/domain"
	"github.com/lunaos-ai/OpenHands/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name     string
	calls    atomic.Int32
	last     atomic.Pointer[llm.CompletionRequest]
	complete func(ctx context.Context, req llm.CompletionRequest) (string, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	f.calls.Add(1)
	f.last.Store(&req)
	return f.complete(ctx, req)
}

func replying(name string, text string) *fakeProvider {
	return &fakeProvider{name: name, complete: func(context.Context, llm.CompletionRequest) (string, error) {
		return text, nil
	}}
}

func newTestExecutor(creds llm.Credentials, opts Options, providers ...llm.Provider) *Executor {
	return NewExecutor(llm.NewResolver(&creds, llm.DefaultModels{}), llm.NewRegistry(providers...), opts)
}

func pingRequest() domain.TaskRequest {
	return domain.TaskRequest{TaskType: "ping", Context: map[string]any{}, Prompt: "say hi"}
}

func TestExecuteSuccessEnvelope(t *testing.T) {
	provider := replying(llm.ProviderOpenAI, "hello")
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk-test"}, Options{}, provider)

	result := executor.Execute(context.Background(), pingRequest())

	require.True(t, result.Success)
	require.NotNil(t, result.Data)
	assert.Equal(t, "hello", result.Data.Result)
	assert.Equal(t, "hello", result.Data.Raw)
	assert.Empty(t, result.Error)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, "gpt-4", result.Metadata.Model)
	assert.Equal(t, llm.ProviderOpenAI, result.Metadata.Provider)
	assert.Equal(t, domain.TaskType("ping"), result.Metadata.TaskType)
	require.NotNil(t, result.Metadata.DurationSeconds)
	assert.GreaterOrEqual(t, *result.Metadata.DurationSeconds, 0.0)
	assert.Empty(t, result.Metadata.Traceback)

	last := provider.last.Load()
	require.NotNil(t, last)
	assert.Equal(t, "sk-test", last.Credential)
	assert.InDelta(t, 0.3, last.Temperature, 1e-9)
	require.Len(t, last.Messages, 1)
	assert.Equal(t, "user", last.Messages[0].Role)
	assert.Contains(t, last.Messages[0].Content, "Task Type: ping")
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestExecuteWithoutCredentials(t *testing.T) {
	provider := replying(llm.ProviderOpenAI, "hello")
	executor := newTestExecutor(llm.Credentials{}, Options{}, provider)

	result := executor.Execute(context.Background(), pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "No LLM API key configured", result.Error)
	assert.Nil(t, result.Metadata)
	assert.Nil(t, result.Data)
	assert.Zero(t, provider.calls.Load())
}

func TestExecuteHonoursModelOverride(t *testing.T) {
	provider := replying(llm.ProviderAnthropic, "ok")
	executor := newTestExecutor(llm.Credentials{AnthropicKey: "sk-ant"}, Options{}, provider)

	req := pingRequest()
	req.Config = map[string]any{"llm": "claude-3-opus"}
	result := executor.Execute(context.Background(), req)

	require.True(t, result.Success)
	assert.Equal(t, "claude-3-opus", result.Metadata.Model)
	assert.Equal(t, "claude-3-opus", provider.last.Load().Model)
	assert.Equal(t, "sk-ant", provider.last.Load().Credential)
}

func TestExecuteProviderFailure(t *testing.T) {
	provider := &fakeProvider{name: llm.ProviderOpenAI, complete: func(context.Context, llm.CompletionRequest) (string, error) {
		return "", &llm.ProviderHTTPError{Provider: "openai", StatusCode: 401, Message: "bad key"}
	}}
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{}, provider)

	result := executor.Execute(context.Background(), pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: openai request failed with status 401: bad key", result.Error)
	require.NotNil(t, result.Metadata)
	assert.NotEmpty(t, result.Metadata.Traceback)
	assert.Contains(t, result.Metadata.Traceback, "tasks.(*Executor).run")
	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestExecuteEmptyPrompt(t *testing.T) {
	provider := replying(llm.ProviderOpenAI, "hello")
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{}, provider)

	req := pingRequest()
	req.Prompt = "  "
	result := executor.Execute(context.Background(), req)

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: prompt is required", result.Error)
	assert.Zero(t, provider.calls.Load())
}

func TestExecuteUnserializableContext(t *testing.T) {
	provider := replying(llm.ProviderOpenAI, "hello")
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{}, provider)

	req := pingRequest()
	req.Context = map[string]any{"score": math.NaN()}
	result := executor.Execute(context.Background(), req)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Task execution failed: render prompt")
	assert.Zero(t, provider.calls.Load())
}

func TestExecuteUnregisteredProvider(t *testing.T) {
	executor := newTestExecutor(llm.Credentials{GeminiKey: "g"}, Options{}, replying(llm.ProviderOpenAI, "x"))

	result := executor.Execute(context.Background(), pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: provider not registered: gemini", result.Error)
}

func TestExecuteTimeoutAbandonsCall(t *testing.T) {
	unblock := make(chan struct{})
	finished := make(chan error, 1)
	provider := &fakeProvider{name: llm.ProviderOpenAI, complete: func(ctx context.Context, _ llm.CompletionRequest) (string, error) {
		<-unblock
		finished <- ctx.Err()
		return "late", nil
	}}
	pool := NewPool(1)
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{Timeout: 30 * time.Millisecond, Pool: pool}, provider)

	result := executor.Execute(context.Background(), pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: provider call timed out after 30ms", result.Error)

	close(unblock)
	select {
	case err := <-finished:
		assert.NoError(t, err, "abandoned call must not be cancelled")
	case <-time.After(time.Second):
		t.Fatal("provider call never completed")
	}
	require.NoError(t, pool.Close(context.Background()))
}

func TestExecutePoolSaturated(t *testing.T) {
	pool := NewPool(1)
	release, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	provider := replying(llm.ProviderOpenAI, "hello")
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{
		Timeout:      time.Second,
		QueueTimeout: 20 * time.Millisecond,
		Pool:         pool,
	}, provider)

	result := executor.Execute(context.Background(), pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: no provider worker available within 20ms", result.Error)
	assert.Zero(t, provider.calls.Load())
}

func TestExecuteRecoversProviderPanic(t *testing.T) {
	provider := &fakeProvider{name: llm.ProviderOpenAI, complete: func(context.Context, llm.CompletionRequest) (string, error) {
		panic("boom")
	}}
	pool := NewPool(1)
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{Pool: pool}, provider)

	result := executor.Execute(context.Background(), pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: provider panicked: boom", result.Error)
	assert.NotEmpty(t, result.Metadata.Traceback)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, pool.Close(ctx), "slot must be released after a panic")
}

func TestExecuteCallerCancelled(t *testing.T) {
	provider := &fakeProvider{name: llm.ProviderOpenAI, complete: func(ctx context.Context, _ llm.CompletionRequest) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return "late", nil
	}}
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{}, provider)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	result := executor.Execute(ctx, pingRequest())

	assert.False(t, result.Success)
	assert.Equal(t, "Task execution failed: context canceled", result.Error)
}

func TestExecuteIsRepeatable(t *testing.T) {
	executor := newTestExecutor(llm.Credentials{OpenAIKey: "sk"}, Options{}, replying(llm.ProviderOpenAI, "same"))

	first := executor.Execute(context.Background(), pingRequest())
	second := executor.Execute(context.Background(), pingRequest())

	first.Metadata.DurationSeconds, second.Metadata.DurationSeconds = nil, nil
	assert.Equal(t, first, second)
}

func TestTaskTypeLabelIsBounded(t *testing.T) {
	for _, known := range []domain.TaskType{
		domain.TaskAPIAnalysis,
		domain.TaskConnectorGeneration,
		domain.TaskTestGeneration,
		domain.TaskConnectorFix,
	} {
		assert.Equal(t, string(known), taskTypeLabel(known))
	}
	assert.Equal(t, "custom", taskTypeLabel("ping"))
	assert.Equal(t, "custom", taskTypeLabel(""))
}
