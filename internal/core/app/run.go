package app

import (
	"context"

	"straits/internal/engine/host"

	"github.com/dop251/goja"
)

// Run compiles path and evaluates the result in a fresh host runtime,
// returning the completion value as a string.
func (a *App) Run(ctx context.Context, path string) (string, error) {
	unit, err := a.CompileFile(ctx, path)
	if err != nil {
		return "", err
	}

	rt := host.New(
		host.WithLogger(a.log),
		host.WithTimeout(a.config().Runtime.Timeout),
	)
	value, err := rt.Run(ctx, path, string(unit.Code))
	if err != nil {
		return "", err
	}
	if value == nil || goja.IsUndefined(value) {
		return "undefined", nil
	}
	return value.String(), nil
}
