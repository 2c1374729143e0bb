package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/sprintbridge/backend/internal/page"
)

// Runtime is a goja VM with the page API installed.
type Runtime struct {
	vm     *goja.Runtime
	api    *page.API
	config Config
	mu     sync.Mutex

	// ctx bounds the page calls of the running script
	ctx context.Context

	console   []LogEntry
	consoleMu sync.Mutex
}

// New creates a runtime bound to api.
func New(api *page.API, config Config) (*Runtime, error) {
	r := &Runtime{
		api:    api,
		config: config,
		ctx:    context.Background(),
	}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Execute runs src to completion, or until ctx is done or the timeout
// elapses. In-flight page calls are abandoned on either.
func (r *Runtime) Execute(ctx context.Context, src string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}
	r.ctx = ctx
	defer func() { r.ctx = context.Background() }()

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	stop := make(chan struct{})
	watcher := make(chan struct{})
	go func() {
		defer close(watcher)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err().Error())
		case <-stop:
		}
	}()

	start := time.Now()
	val, err := r.vm.RunString(src)
	result := &Result{Duration: time.Since(start)}

	close(stop)
	<-watcher
	r.vm.ClearInterrupt()

	r.consoleMu.Lock()
	result.Console = append([]LogEntry(nil), r.console...)
	r.consoleMu.Unlock()

	if err != nil {
		return result, scriptError(err)
	}

	value, err := r.settle(val)
	if err != nil {
		return result, err
	}
	result.Value = value
	return result, nil
}

// Reset discards all script state and reinstalls the globals.
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reset()
}

func (r *Runtime) reset() error {
	r.vm = goja.New()
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	r.console = nil
	return r.setupGlobals()
}

// settle unwraps a promise completion value. Pending jobs have already run
// when RunString returns.
func (r *Runtime) settle(val goja.Value) (any, error) {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil, nil
	}
	p, ok := val.Export().(*goja.Promise)
	if !ok {
		return val.Export(), nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return exportValue(p.Result()), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("script rejected: %s", rejection(p.Result()))
	default:
		return nil, errors.New("script promise did not settle")
	}
}

func exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func rejection(val goja.Value) string {
	if obj, ok := val.(*goja.Object); ok {
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			return msg.String()
		}
	}
	return val.String()
}

func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("script interrupted: %v", interrupted.Value())
	}
	var exception *goja.Exception
	if errors.As(err, &exception) {
		return fmt.Errorf("script error: %s", strings.TrimSpace(exception.Error()))
	}
	return fmt.Errorf("script error: %w", err)
}

// setupGlobals removes host globals and installs console and the namespace.
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	ns, err := r.namespace()
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", GlobalName, err)
	}
	return r.vm.Set(GlobalName, ns)
}

func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}
