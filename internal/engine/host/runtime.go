// Package host executes compiled units in an embedded JavaScript engine.
package host

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"straits/internal/core/errors"
	"straits/internal/shared/observability"

	"github.com/dop251/goja"
)

// RuntimeError is a JavaScript exception that escaped the executed code.
type RuntimeError struct {
	Name    string
	Message string
	Stack   string
}

func (e *RuntimeError) Error() string {
	if e.Name == "" {
		return e.Message
	}
	return e.Name + ": " + e.Message
}

type Option func(*Runtime)

// WithLogger routes console output to log.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runtime) {
		r.log = log
	}
}

// WithTimeout interrupts scripts that run longer than d. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) {
		r.timeout = d
	}
}

// Runtime wraps one goja VM. It must be used from one goroutine at a time;
// Interrupt is the only method safe to call concurrently.
type Runtime struct {
	vm      *goja.Runtime
	log     *slog.Logger
	timeout time.Duration
}

func New(opts ...Option) *Runtime {
	r := &Runtime{
		vm:  goja.New(),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	r.installConsole()
	return r
}

// VM exposes the underlying engine for callers that need to build values.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Set defines a global.
func (r *Runtime) Set(name string, value any) error {
	return r.vm.Set(name, value)
}

// Run executes code as a script named name and returns its completion value.
func (r *Runtime) Run(ctx context.Context, name, code string) (goja.Value, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	start := time.Now()
	value, err := r.vm.RunScript(name, code)
	close(done)
	<-stopped
	r.vm.ClearInterrupt()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RuntimeDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		return nil, r.convert(name, err)
	}
	return value, nil
}

// Interrupt aborts the running script with reason.
func (r *Runtime) Interrupt(reason any) {
	r.vm.Interrupt(reason)
}

func (r *Runtime) convert(name string, err error) error {
	var exception *goja.Exception
	if stderrors.As(err, &exception) {
		rerr := &RuntimeError{Message: exception.Error(), Stack: exception.String()}
		if obj, ok := exception.Value().(*goja.Object); ok {
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				rerr.Message = msg.String()
			}
			if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
				rerr.Name = n.String()
			}
		} else if v := exception.Value(); v != nil {
			rerr.Message = v.String()
		}
		return rerr
	}

	var interrupted *goja.InterruptedError
	if stderrors.As(err, &interrupted) {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeInternal, "script interrupted"),
			errors.CtxPath, name,
		)
	}

	var syntaxErr *goja.CompilerSyntaxError
	if stderrors.As(err, &syntaxErr) {
		return errors.AddContext(
			errors.Wrap(err, errors.CodeSyntax, "generated code does not compile"),
			errors.CtxPath, name,
		)
	}
	return fmt.Errorf("run %s: %w", name, err)
}

func (r *Runtime) installConsole() {
	console := r.vm.NewObject()
	logAt := func(level slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}
			r.log.Log(context.Background(), level, strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logAt(slog.LevelInfo))
	_ = console.Set("info", logAt(slog.LevelInfo))
	_ = console.Set("debug", logAt(slog.LevelDebug))
	_ = console.Set("warn", logAt(slog.LevelWarn))
	_ = console.Set("error", logAt(slog.LevelError))
	_ = r.vm.Set("console", console)
}
