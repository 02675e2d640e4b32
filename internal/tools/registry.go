package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/DexterGo/internal/models"
)

// Handler executes one tool call against already-parsed arguments.
type Handler func(ctx context.Context, args map[string]any) (*models.ToolOutput, error)

// Spec declares one tool: its name, the description and parameter schema
// shown to the planner, and the handler that runs it. Tools are plain data;
// adding one means registering another Spec, nothing more.
type Spec struct {
	Name    string
	Desc    string
	Params  map[string]*schema.ParameterInfo
	Handler Handler
}

// Registry holds the tool vocabulary available to a research session.
type Registry struct {
	mu    sync.RWMutex
	specs map[string]*Spec
	order []string
}

func NewRegistry() *Registry {
	return &Registry{specs: make(map[string]*Spec)}
}

// Register adds a tool. Re-registering a name replaces the earlier spec.
func (r *Registry) Register(spec *Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.specs[spec.Name]; !exists {
		r.order = append(r.order, spec.Name)
	}
	r.specs[spec.Name] = spec
}

// Has reports whether the named tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.specs[name]
	return ok
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Schemas renders the registered tools as eino ToolInfo, the form the
// planner prompt and chat models consume.
func (r *Registry) Schemas() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]*schema.ToolInfo, 0, len(r.order))
	for _, name := range r.order {
		spec := r.specs[name]
		infos = append(infos, &schema.ToolInfo{
			Name:        spec.Name,
			Desc:        spec.Desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(spec.Params),
		})
	}
	return infos
}

// Execute dispatches one tool call. Unknown tools are an error; handler
// errors pass through untouched so the executor can record them per step.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*models.ToolOutput, error) {
	r.mu.RLock()
	spec, ok := r.specs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return spec.Handler(ctx, args)
}
