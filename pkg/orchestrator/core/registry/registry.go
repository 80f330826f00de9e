// Package registry maps job type strings to their executors. The host
// application registers one handler per job type before submitting
// executions; the orchestrator core never interprets job semantics itself.
package registry

import (
	"context"
	"sync"

	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/core/model"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/exception"
	"github.com/canfieldjuan/finetunelab/pkg/orchestrator/support/util/logger"
)

const moduleName = "registry"

// JobHandler executes jobs of a single type.
type JobHandler interface {
	// TypeName returns the job type string this handler serves.
	TypeName() string
	// Execute runs one job and returns its output. The context carries the
	// per-job timeout, if any, and is cancelled cooperatively; a handler that
	// ignores ctx still runs to completion.
	Execute(ctx context.Context, job model.JobConfig) (model.JobOutput, error)
}

// HandlerFunc adapts a plain function to a JobHandler.
type HandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, job model.JobConfig) (model.JobOutput, error)
}

// TypeName returns the job type string this handler serves.
func (h HandlerFunc) TypeName() string {
	return h.Type
}

// Execute invokes the wrapped function.
func (h HandlerFunc) Execute(ctx context.Context, job model.JobConfig) (model.JobOutput, error) {
	return h.Fn(ctx, job)
}

// HandlerRegistry is a concurrency-safe map of job type to JobHandler.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]JobHandler
}

// NewHandlerRegistry creates an empty HandlerRegistry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]JobHandler)}
}

// Register adds a handler for its type. Registering the same type twice
// overwrites the previous handler with a warning.
func (r *HandlerRegistry) Register(h JobHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	typeName := h.TypeName()
	if _, exists := r.handlers[typeName]; exists {
		logger.Warnf("Handler for job type '%s' already registered. Overwriting.", typeName)
	}
	r.handlers[typeName] = h
}

// RegisterFunc adds a function-backed handler for the given type.
func (r *HandlerRegistry) RegisterFunc(typeName string, fn func(ctx context.Context, job model.JobConfig) (model.JobOutput, error)) {
	r.Register(HandlerFunc{Type: typeName, Fn: fn})
}

// Lookup resolves the handler for the given job type. An unknown type yields
// an exception.ErrHandlerNotFound; the engine scopes that failure to the
// single requesting job.
func (r *HandlerRegistry) Lookup(typeName string) (JobHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typeName]
	if !ok {
		return nil, exception.NewHandlerNotFoundError(moduleName, typeName)
	}
	return h, nil
}

// Types returns the registered job type names.
func (r *HandlerRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}
