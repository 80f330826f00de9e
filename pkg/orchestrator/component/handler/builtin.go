// Package handler ships built-in job handlers: a no-op, a configurable
// sleep, a probabilistic failure injector and a shell-style echo. They cover
// smoke tests, pipeline dry runs and failure-path validation without
// application code.
package handler

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/registry"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

// NoopHandler completes immediately and echoes its config as output.
type NoopHandler struct{}

// NewNoopHandler creates a NoopHandler.
func NewNoopHandler() *NoopHandler { return &NoopHandler{} }

func (h *NoopHandler) TypeName() string { return "noop" }

func (h *NoopHandler) Execute(ctx context.Context, job model.JobConfig) (model.JobOutput, error) {
	logger.Debugf("NoopHandler: job '%s' executed.", job.ID)
	return model.JobOutput{"ok": true}, nil
}

// SleepHandler sleeps for the configured number of milliseconds
// ("durationMs", default 100) and honors cancellation.
type SleepHandler struct{}

// NewSleepHandler creates a SleepHandler.
func NewSleepHandler() *SleepHandler { return &SleepHandler{} }

func (h *SleepHandler) TypeName() string { return "sleep" }

func (h *SleepHandler) Execute(ctx context.Context, job model.JobConfig) (model.JobOutput, error) {
	durationMs := 100
	if v, ok := job.Config["durationMs"]; ok {
		switch t := v.(type) {
		case int:
			durationMs = t
		case float64:
			durationMs = int(t)
		}
	}
	select {
	case <-time.After(time.Duration(durationMs) * time.Millisecond):
		return model.JobOutput{"sleptMs": durationMs}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RandomFailHandler fails with the configured probability ("failRate",
// default 0.5). It validates failure isolation and resume paths.
type RandomFailHandler struct {
	rng *rand.Rand
}

// NewRandomFailHandler creates a RandomFailHandler.
func NewRandomFailHandler() *RandomFailHandler {
	return &RandomFailHandler{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (h *RandomFailHandler) TypeName() string { return "random_fail" }

func (h *RandomFailHandler) Execute(ctx context.Context, job model.JobConfig) (model.JobOutput, error) {
	failRate := 0.5
	if v, ok := job.Config["failRate"]; ok {
		if f, ok := v.(float64); ok {
			failRate = f
		}
	}
	if h.rng.Float64() < failRate {
		logger.Errorf("RandomFailHandler: job '%s' intentionally failing (rate %.2f).", job.ID, failRate)
		return nil, fmt.Errorf("random failure injected for job '%s'", job.ID)
	}
	return model.JobOutput{"survived": true}, nil
}

// EchoHandler logs its configured "message" and returns it as output.
type EchoHandler struct{}

// NewEchoHandler creates an EchoHandler.
func NewEchoHandler() *EchoHandler { return &EchoHandler{} }

func (h *EchoHandler) TypeName() string { return "echo" }

func (h *EchoHandler) Execute(ctx context.Context, job model.JobConfig) (model.JobOutput, error) {
	message, _ := job.Config.GetString("message")
	logger.Infof("EchoHandler: %s", message)
	return model.JobOutput{"message": message}, nil
}

// RegisterBuiltins registers every built-in handler on the registry.
func RegisterBuiltins(reg *registry.HandlerRegistry) {
	reg.Register(NewNoopHandler())
	reg.Register(NewSleepHandler())
	reg.Register(NewRandomFailHandler())
	reg.Register(NewEchoHandler())
}
