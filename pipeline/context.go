package pipeline

import (
	"context"
	"sync"

	"github.com/nodeflow-run/nodeflow/log"
)

// resource is a named disposable registered against an ExecutionContext.
type resource struct {
	name  string
	close func() error
}

// ExecutionContext threads cancellation, shared key/value state, the
// current-node scope stack and a LIFO resource registry through a single
// run. Nodes never hold a reference back to the Graph; everything they need
// at run time flows through this context.
type ExecutionContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	parameters map[string]any
	items      map[string]any
	properties map[string]any
	nodeStack  []string
	resources  []resource

	loggerFactory log.Factory
	observer      Observer
	lineage       *LineageAdapter
}

// NewExecutionContext derives a cancellable ExecutionContext from parent.
// loggerFactory may be nil, in which case DefaultFactory(a default Logger)
// is used; observer may be nil, in which case events are simply dropped.
func NewExecutionContext(parent context.Context, loggerFactory log.Factory, observer Observer) *ExecutionContext {
	ctx, cancel := context.WithCancel(parent)
	if loggerFactory == nil {
		loggerFactory = log.DefaultFactory(log.NewDefaultLogger(log.LogLevelInfo))
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	return &ExecutionContext{
		ctx:           ctx,
		cancel:        cancel,
		parameters:    make(map[string]any),
		items:         make(map[string]any),
		properties:    make(map[string]any),
		loggerFactory: loggerFactory,
		observer:      observer,
	}
}

// Context returns the cancellable context.Context nodes should pass to
// blocking operations and Pipe.Next calls.
func (ec *ExecutionContext) Context() context.Context { return ec.ctx }

// Cancel triggers structured cancellation of the whole run.
func (ec *ExecutionContext) Cancel() { ec.cancel() }

// SetParameter/Parameter store and retrieve run-scoped configuration values,
// typically populated once before the run starts and read-only thereafter.
func (ec *ExecutionContext) SetParameter(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.parameters[key] = value
}

func (ec *ExecutionContext) Parameter(key string) (any, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.parameters[key]
	return v, ok
}

// SetItem/Item store and retrieve values that flow between nodes outside the
// typed pipe data path (e.g. a running total a later node wants to read).
func (ec *ExecutionContext) SetItem(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.items[key] = value
}

func (ec *ExecutionContext) Item(key string) (any, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.items[key]
	return v, ok
}

// SetProperty/Property store and retrieve free-form diagnostic metadata for
// the caller's own use; nothing in this package reads it.
func (ec *ExecutionContext) SetProperty(key string, value any) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.properties[key] = value
}

func (ec *ExecutionContext) Property(key string) (any, bool) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	v, ok := ec.properties[key]
	return v, ok
}

// PushNode/PopNode scope the "current node" for the duration of a node's
// execution, so Logger and CurrentNode reflect nested calls correctly (a
// Join invoking helpers that themselves push a node id, for instance).
func (ec *ExecutionContext) PushNode(id string) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.nodeStack = append(ec.nodeStack, id)
}

func (ec *ExecutionContext) PopNode() {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if len(ec.nodeStack) > 0 {
		ec.nodeStack = ec.nodeStack[:len(ec.nodeStack)-1]
	}
}

// CurrentNode returns the innermost pushed node id, or "" if none.
func (ec *ExecutionContext) CurrentNode() string {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	if len(ec.nodeStack) == 0 {
		return ""
	}
	return ec.nodeStack[len(ec.nodeStack)-1]
}

// Logger returns a Logger scoped to the current node, via loggerFactory.
func (ec *ExecutionContext) Logger() log.Logger {
	return ec.loggerFactory(ec.CurrentNode())
}

// Observer returns the run's Observer, never nil.
func (ec *ExecutionContext) Observer() Observer { return ec.observer }

// SetLineage installs the LineageAdapter a run should use; Runner calls
// this once before executing any node when graph-wide lineage is enabled.
func (ec *ExecutionContext) SetLineage(l *LineageAdapter) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.lineage = l
}

// Lineage returns the run's LineageAdapter, or nil if lineage tracking
// isn't enabled for this run.
func (ec *ExecutionContext) Lineage() *LineageAdapter {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.lineage
}

// RegisterResource adds a disposable to the LIFO registry. close is invoked
// by Dispose in reverse registration order, matching the teardown order a
// stack of deferred closes would produce.
func (ec *ExecutionContext) RegisterResource(name string, close func() error) {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	ec.resources = append(ec.resources, resource{name: name, close: close})
}

// Dispose closes every registered resource in LIFO order, collecting every
// failure rather than stopping at the first one, and returns a
// *ContextDisposalFailedError if any resource failed to close. The registry
// is emptied, so each resource is closed at most once across calls.
func (ec *ExecutionContext) Dispose() error {
	ec.mu.Lock()
	resources := append([]resource(nil), ec.resources...)
	ec.resources = nil
	ec.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &ContextDisposalFailedError{Errs: errs}
	}
	return nil
}
