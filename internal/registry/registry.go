// Package registry holds the tool name-to-descriptor map, with name
// sanitization, collision handling, and model-facing schema stripping.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/haasonsaas/agentcore/internal/observability"
	"github.com/haasonsaas/agentcore/pkg/protocol"
)

var validNameRe = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,63}$`)
var invalidCharRe = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)

const (
	truncatePrefixLen = 28
	truncateSuffixLen = 32
)

// SanitizeName enforces the valid tool-name grammar: invalid characters
// become `_`, and overlong names are middle-truncated to
// 28+"___"+32 characters. Idempotent: SanitizeName(SanitizeName(x)) ==
// SanitizeName(x).
func SanitizeName(name string) string {
	if name == "" {
		return "_"
	}
	safe := invalidCharRe.ReplaceAllString(name, "_")
	if len(safe) <= 63 && validNameRe.MatchString(safe) {
		return safe
	}
	if len(safe) > truncatePrefixLen+truncateSuffixLen+3 {
		safe = safe[:truncatePrefixLen] + "___" + safe[len(safe)-truncateSuffixLen:]
	}
	if len(safe) > 63 {
		safe = safe[:63]
	}
	return safe
}

// Registry maps sanitized tool names to descriptors, with collision
// handling.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*protocol.ToolDescriptor
	logger *observability.Logger
}

func New() *Registry {
	return &Registry{tools: make(map[string]*protocol.ToolDescriptor)}
}

// WithLogger attaches a logger used to warn on overwriting registrations.
func (r *Registry) WithLogger(l *observability.Logger) *Registry {
	r.logger = l
	return r
}

// Register adds a descriptor. dynamic indicates the descriptor was
// discovered from an external source (e.g. MCP) rather than built in: a
// colliding dynamic registration is re-registered under
// `{source}__{originalName}` instead of overwriting the existing entry.
func (r *Registry) Register(desc *protocol.ToolDescriptor, dynamic bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := SanitizeName(desc.Name)
	_, collides := r.tools[name]

	if collides && dynamic {
		qualified := SanitizeName(fmt.Sprintf("%s__%s", desc.Source, desc.Name))
		clone := *desc
		clone.Name = qualified
		r.tools[qualified] = &clone
		return
	}

	if collides && r.logger != nil {
		r.logger.Warn(context.Background(), "registry: overwriting existing tool registration", "name", name)
	}

	clone := *desc
	clone.Name = name
	r.tools[name] = &clone
}

// Lookup finds a descriptor by its registered (sanitized) name.
func (r *Registry) Lookup(name string) (*protocol.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// All returns every registered descriptor, in unspecified order; map
// insertion order is not a contract.
func (r *Registry) All() []*protocol.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*protocol.ToolDescriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	return out
}

// Declaration is the model-facing view of a tool: name, description, and a
// JSON schema stripped of constructs the model API rejects.
type Declaration struct {
	Name        string
	Description string
	ParamsSchema map[string]any
}

// Declarations produces the model-facing declaration list, applying
// StripUnsupportedSchema to every descriptor's paramsSchema.
func (r *Registry) Declarations() []Declaration {
	all := r.All()
	out := make([]Declaration, 0, len(all))
	for _, d := range all {
		out = append(out, Declaration{
			Name:         d.Name,
			Description:  d.Description,
			ParamsSchema: StripUnsupportedSchema(d.ParamsSchema),
		})
	}
	return out
}

// StripUnsupportedSchema walks a JSON schema and removes combinations the
// model API rejects: `default` co-occurring with `anyOf`, and non-string
// enum values (coerced to their string representation). The input is not
// mutated.
func StripUnsupportedSchema(schema map[string]any) map[string]any {
	if schema == nil {
		return nil
	}
	return stripNode(schema).(map[string]any)
}

func stripNode(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = val
		}
		if _, hasAnyOf := out["anyOf"]; hasAnyOf {
			delete(out, "default")
		}
		if enumVal, ok := out["enum"]; ok {
			out["enum"] = coerceEnumToStrings(enumVal)
		}
		for k, val := range out {
			out[k] = stripNode(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = stripNode(val)
		}
		return out
	default:
		return node
	}
}

func coerceEnumToStrings(v any) any {
	list, ok := v.([]any)
	if !ok {
		return v
	}
	allString := true
	for _, item := range list {
		if _, ok := item.(string); !ok {
			allString = false
			break
		}
	}
	if allString {
		return list
	}
	out := make([]any, len(list))
	for i, item := range list {
		out[i] = fmt.Sprint(item)
	}
	return out
}
