package activity

import (
	"context"
	"strings"
	"sync"
)

// DefaultChannel is applied to events emitted without a channel.
const DefaultChannel = "layoutmap"

// Config controls emission defaults.
type Config struct {
	Disabled bool
	Channel  string
}

type subscription struct {
	id   uint64
	hook ActivityHook
}

// Emitter fans events out to configured hooks and runtime subscribers.
// Subscribers are notified after configured hooks, in subscription order.
type Emitter struct {
	mu       sync.RWMutex
	hooks    Hooks
	subs     []subscription
	nextID   uint64
	disabled bool
	channel  string
}

// NewEmitter constructs an emitter from hooks and configuration.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:    cloneHooks(hooks),
		disabled: cfg.Disabled,
		channel:  channel,
	}
}

// Subscribe registers hook and returns a function that removes it. Calling
// the returned function more than once is harmless.
func (e *Emitter) Subscribe(hook ActivityHook) func() {
	if e == nil || hook == nil {
		return func() {}
	}
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, hook: hook})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, sub := range e.subs {
			if sub.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

// Enabled reports whether emissions should be attempted.
func (e *Emitter) Enabled() bool {
	if e == nil || e.disabled {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.hooks) > 0 || len(e.subs) > 0
}

// Emit forwards the event to all hooks, applying the default channel.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.snapshot().Notify(ctx, event)
}

func (e *Emitter) snapshot() Hooks {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(Hooks, 0, len(e.hooks)+len(e.subs))
	out = append(out, e.hooks...)
	for _, sub := range e.subs {
		out = append(out, sub.hook)
	}
	return out
}

func cloneHooks(hooks Hooks) Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	return Hooks(normalized)
}
