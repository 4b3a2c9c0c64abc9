package command

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"
	"go.uber.org/zap"

	"yqhp/syncbridge/internal/config"
	"yqhp/syncbridge/internal/hook"
	"yqhp/syncbridge/pkg/logger"
)

// Instance is an API surface whose commands have been wrapped.
// It implements result.Receiver.
type Instance struct {
	mu         sync.RWMutex
	commands   map[string]Func
	namespaces map[string]map[string]Func

	hooks      hook.Sets
	executor   *hook.Executor
	excluded   []string
	rawResult  []string
	waitPrefix string
	metrics    *Metrics
	logger     *zap.Logger

	lastMu sync.Mutex
	last   any
}

// Option configures an Instance.
type Option func(*Instance)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Instance) {
		i.logger = l
	}
}

// WithExecutor sets the executor running command hooks.
func WithExecutor(e *hook.Executor) Option {
	return func(i *Instance) {
		i.executor = e
	}
}

// WithExcluded sets the operations that stay callable unwrapped and are
// never exposed as chain methods.
func WithExcluded(names []string) Option {
	return func(i *Instance) {
		i.excluded = append([]string(nil), names...)
	}
}

// WithRawResult sets the commands whose results are returned without
// augmentation.
func WithRawResult(names []string) Option {
	return func(i *Instance) {
		i.rawResult = append([]string(nil), names...)
	}
}

// WithWaitPrefix sets the prefix of commands that leave the chain state
// untouched. An empty prefix disables the behavior.
func WithWaitPrefix(prefix string) Option {
	return func(i *Instance) {
		i.waitPrefix = prefix
	}
}

// WithMetrics sets the latency recorder. Nil disables recording.
func WithMetrics(m *Metrics) Option {
	return func(i *Instance) {
		i.metrics = m
	}
}

// WithConfig applies the commands section of a configuration.
func WithConfig(cfg config.CommandsConfig) Option {
	return func(i *Instance) {
		if cfg.Excluded != nil {
			WithExcluded(cfg.Excluded)(i)
		}
		if cfg.RawResult != nil {
			WithRawResult(cfg.RawResult)(i)
		}
		i.waitPrefix = cfg.WaitPrefix
		if !cfg.Metrics {
			i.metrics = nil
		} else if i.metrics == nil {
			i.metrics = NewMetrics()
		}
	}
}

// WrapCommands wraps every operation of surface with hook orchestration.
// Operations in the exclusion list are kept as they are.
func WrapCommands(surface Surface, hooks hook.Sets, opts ...Option) *Instance {
	i := &Instance{
		commands:   make(map[string]Func),
		namespaces: make(map[string]map[string]Func),
		hooks:      hook.Merge(hooks),
		excluded:   append([]string(nil), config.DefaultExcluded...),
		rawResult:  []string{"reload"},
		waitPrefix: "wait",
		metrics:    NewMetrics(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logger.OrDefault(i.logger, "command")
	if i.executor == nil {
		i.executor = hook.NewExecutor(hook.WithLogger(i.logger))
	}

	if surface == nil {
		return i
	}
	for name, fn := range surface.Commands() {
		if fn == nil {
			continue
		}
		if slice.Contain(i.excluded, name) {
			i.commands[name] = fn
			continue
		}
		i.commands[name] = i.wrap(name, fn)
	}
	return i
}

// Capabilities returns the sorted names of all top-level commands.
func (i *Instance) Capabilities() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := maputil.Keys(i.commands)
	sort.Strings(names)
	return names
}

// Namespaces returns the sorted names of all command namespaces.
func (i *Instance) Namespaces() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := maputil.Keys(i.namespaces)
	sort.Strings(names)
	return names
}

// NamespaceCommands returns the sorted command names of namespace.
func (i *Instance) NamespaceCommands(namespace string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := maputil.Keys(i.namespaces[namespace])
	sort.Strings(names)
	return names
}

// Command returns the callable registered under name. Namespaced commands
// are addressed as "namespace.name".
func (i *Instance) Command(name string) (Func, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if fn, ok := i.commands[name]; ok {
		return fn, true
	}
	if ns, cmd, found := strings.Cut(name, "."); found {
		if fn, ok := i.namespaces[ns][cmd]; ok {
			return fn, true
		}
	}
	return nil, false
}

// Has reports whether name is a registered command.
func (i *Instance) Has(name string) bool {
	_, ok := i.Command(name)
	return ok
}

// Call invokes the command name.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (any, error) {
	fn, ok := i.Command(name)
	if !ok {
		return nil, NewNotFoundError(name)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, args...)
}

// Hooks returns the command hooks of the instance.
func (i *Instance) Hooks() hook.Sets {
	return i.hooks
}

// Excluded returns the names that are never wrapped nor chained.
func (i *Instance) Excluded() []string {
	return append([]string(nil), i.excluded...)
}

// Metrics returns the latency recorder, nil when disabled.
func (i *Instance) Metrics() *Metrics {
	return i.metrics
}

// LastResult returns the augmented result of the last top-level command.
func (i *Instance) LastResult() any {
	i.lastMu.Lock()
	defer i.lastMu.Unlock()
	return i.last
}

func (i *Instance) setLastResult(v any) {
	i.lastMu.Lock()
	defer i.lastMu.Unlock()
	i.last = v
}
