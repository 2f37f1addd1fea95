// Package compiler runs one unit through the whole pipeline: prepass and
// parse, desugar, render.
package compiler

import (
	"context"
	"log/slog"
	"time"

	"straits/internal/core/errors"
	"straits/internal/engine/desugar"
	"straits/internal/engine/parser"
	"straits/internal/shared/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Version identifies the output format. Cached outputs from another version
// are ignored.
const Version = "0.3.0"

type Result struct {
	Path     string
	Language string
	Code     []byte
	Stats    desugar.Stats
}

type Compiler struct {
	parser *parser.Parser
	log    *slog.Logger
}

func New(p *parser.Parser, log *slog.Logger) *Compiler {
	if log == nil {
		log = slog.Default()
	}
	return &Compiler{parser: p, log: log}
}

func (c *Compiler) Parser() *parser.Parser {
	return c.parser
}

// Compile picks the language from path.
func (c *Compiler) Compile(ctx context.Context, path string, src []byte) (*Result, error) {
	lang := c.parser.GetLanguage(path)
	if lang == "" {
		return nil, errors.AddContext(
			errors.New(errors.CodeNotSupported, "unsupported file type"),
			errors.CtxPath, path,
		)
	}
	return c.CompileLanguage(ctx, lang, path, src)
}

func (c *Compiler) CompileLanguage(ctx context.Context, lang, path string, src []byte) (res *Result, err error) {
	ctx, span := observability.Tracer.Start(ctx, "compiler.Compile", trace.WithAttributes(
		attribute.String("path", path),
		attribute.String("language", lang),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			observability.UnitsCompiledTotal.WithLabelValues("error").Inc()
			observability.CompileErrorsTotal.WithLabelValues(string(errors.CodeOf(err))).Inc()
		} else {
			observability.UnitsCompiledTotal.WithLabelValues("ok").Inc()
		}
		span.End()
	}()

	_, parseSpan := observability.Tracer.Start(ctx, "compiler.Parse")
	tree, err := c.parser.Parse(lang, path, src)
	parseSpan.End()
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	_, transformSpan := observability.Tracer.Start(ctx, "compiler.Transform")
	start := time.Now()
	stats, err := desugar.Transform(tree, desugar.Options{Logger: c.log})
	observability.TransformDuration.WithLabelValues(lang).Observe(time.Since(start).Seconds())
	transformSpan.SetAttributes(
		attribute.Int("declarations", stats.Declarations),
		attribute.Int("bindings", stats.Bindings),
	)
	transformSpan.End()
	if err != nil {
		return nil, err
	}

	observability.AccessesRewrittenTotal.WithLabelValues("read").Add(float64(stats.Reads))
	observability.AccessesRewrittenTotal.WithLabelValues("assign").Add(float64(stats.Assigns))
	observability.AccessesRewrittenTotal.WithLabelValues("computed").Add(float64(stats.Computed))

	_, renderSpan := observability.Tracer.Start(ctx, "compiler.Render")
	code := tree.Render()
	renderSpan.End()

	return &Result{
		Path:     path,
		Language: lang,
		Code:     code,
		Stats:    stats,
	}, nil
}
