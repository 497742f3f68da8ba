package layoutmap

import (
	"fmt"
	"time"
)

// RuleContext is what a match rule sees when deciding whether a dependent
// group applies. Values holds every document variable by id; the remaining
// fields describe the group being tested.
type RuleContext struct {
	ImageVariableID string
	GroupIndex      int
	Values          map[string]string
	Segments        []string
	Result          string
	Resolved        bool
	Metadata        map[string]any
	Now             *time.Time
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil || ctx.Now.IsZero() {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Values == nil {
		ctx.Values = map[string]string{}
	}
	if ctx.Segments == nil {
		ctx.Segments = []string{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	if ctx.Now == nil {
		return time.Now()
	}
	return *ctx.Now
}

// label identifies the group in errors and logs.
func (ctx RuleContext) label() string {
	if ctx.ImageVariableID == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s#%d", ctx.ImageVariableID, ctx.GroupIndex)
}

// bindings exposes the context as evaluator variables.
func (ctx RuleContext) bindings() map[string]any {
	values := make(map[string]any, len(ctx.Values))
	for id, value := range ctx.Values {
		values[id] = value
	}
	segments := make([]any, len(ctx.Segments))
	for i, segment := range ctx.Segments {
		segments[i] = segment
	}
	return map[string]any{
		"now":           ctx.timestamp(),
		"values":        values,
		"segments":      segments,
		"result":        ctx.Result,
		"resolved":      ctx.Resolved,
		"imageVariable": ctx.ImageVariableID,
		"group":         ctx.GroupIndex,
		"metadata":      ctx.Metadata,
	}
}
