// Package lifecycle gives every long-running subsystem (the auto-scaler and
// the fee-deposit ticker) an explicit Start/Stop lifecycle instead of
// package-level globals (spec §9).
package lifecycle

import (
	"context"
	"fmt"
	"sync"
)

// HookFunc runs during a lifecycle phase.
type HookFunc func(ctx context.Context) error

// NamedHook pairs a hook with a name used for error reporting.
type NamedHook struct {
	Name string
	Fn   HookFunc
}

// Hooks manages pre/post start/stop hooks for a service.
type Hooks struct {
	mu sync.RWMutex

	preStart  []NamedHook
	postStart []NamedHook
	preStop   []NamedHook
	postStop  []NamedHook
}

// NewHooks creates an empty Hooks set.
func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnPreStart(name string, fn HookFunc) {
	h.add(&h.preStart, name, fn)
}

func (h *Hooks) OnPostStart(name string, fn HookFunc) {
	h.add(&h.postStart, name, fn)
}

func (h *Hooks) OnPreStop(name string, fn HookFunc) {
	h.add(&h.preStop, name, fn)
}

func (h *Hooks) OnPostStop(name string, fn HookFunc) {
	h.add(&h.postStop, name, fn)
}

func (h *Hooks) add(slot *[]NamedHook, name string, fn HookFunc) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	*slot = append(*slot, NamedHook{Name: name, Fn: fn})
}

func (h *Hooks) RunPreStart(ctx context.Context) error {
	return h.run(ctx, "PreStart", h.snapshot(h.preStart))
}

func (h *Hooks) RunPostStart(ctx context.Context) error {
	return h.run(ctx, "PostStart", h.snapshot(h.postStart))
}

func (h *Hooks) RunPreStop(ctx context.Context) error {
	return h.run(ctx, "PreStop", h.snapshot(h.preStop))
}

// RunPostStop runs post-stop hooks in reverse (LIFO) order.
func (h *Hooks) RunPostStop(ctx context.Context) error {
	hooks := h.snapshot(h.postStop)
	for i, j := 0, len(hooks)-1; i < j; i, j = i+1, j-1 {
		hooks[i], hooks[j] = hooks[j], hooks[i]
	}
	return h.run(ctx, "PostStop", hooks)
}

func (h *Hooks) snapshot(hooks []NamedHook) []NamedHook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]NamedHook, len(hooks))
	copy(out, hooks)
	return out
}

func (h *Hooks) run(ctx context.Context, phase string, hooks []NamedHook) error {
	for i, hook := range hooks {
		if hook.Fn == nil {
			continue
		}
		if err := hook.Fn(ctx); err != nil {
			if hook.Name != "" {
				return fmt.Errorf("%s hook %q (#%d) failed: %w", phase, hook.Name, i, err)
			}
			return fmt.Errorf("%s hook #%d failed: %w", phase, i, err)
		}
	}
	return nil
}

// Service is the contract every long-running subsystem implements: a
// well-defined lifecycle with no hidden globals, so tests can construct
// independent instances.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
