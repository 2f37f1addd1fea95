package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	coreapp "straits/internal/core/app"
	"straits/internal/core/config"
	"straits/internal/core/errors"
	"straits/internal/engine/host"
	"straits/internal/shared/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const program = `const traits = { x: Symbol("x") };
use traits * from traits;
const obj = {};
obj.*x = 20;
obj.*x * 2 + 2;
`

func TestParseOptions(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		command string
		rest    []string
		out     string
		noCache bool
	}{
		{name: "Empty", args: nil},
		{name: "Build", args: []string{"build"}, command: "build"},
		{name: "FlagsBefore", args: []string{"-no-cache", "compile", "a.js"}, command: "compile", rest: []string{"a.js"}, noCache: true},
		{name: "FlagsAfter", args: []string{"compile", "-o", "out.js", "a.js"}, command: "compile", rest: []string{"a.js"}, out: "out.js"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			opts, err := parseOptions(tc.args, io.Discard)
			require.NoError(t, err)
			assert.Equal(t, tc.command, opts.command)
			assert.Equal(t, tc.out, opts.outPath)
			assert.Equal(t, tc.noCache, opts.noCache)
			if len(tc.rest) == 0 {
				assert.Empty(t, opts.args)
			} else {
				assert.Equal(t, tc.rest, opts.args)
			}
		})
	}
}

func TestParseOptions_UnknownFlag(t *testing.T) {
	_, err := parseOptions([]string{"-bogus"}, io.Discard)
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	cases := []struct {
		name string
		opts cliOptions
		err  string
	}{
		{name: "Missing", opts: cliOptions{}, err: "no command given"},
		{name: "Unknown", opts: cliOptions{command: "deploy"}, err: `unknown command "deploy"`},
		{name: "CompileNoFile", opts: cliOptions{command: "compile"}, err: "exactly one file"},
		{name: "RunTwoFiles", opts: cliOptions{command: "run", args: []string{"a", "b"}}, err: "exactly one file"},
		{name: "BuildArgs", opts: cliOptions{command: "build", args: []string{"x"}}, err: "takes no arguments"},
		{name: "OutWithBuild", opts: cliOptions{command: "build", outPath: "x"}, err: "-o is only valid"},
		{name: "ReportWithRun", opts: cliOptions{command: "run", args: []string{"a.js"}, reportPath: "x"}, err: "-report is only valid"},
		{name: "Compile", opts: cliOptions{command: "compile", args: []string{"a.js"}}},
		{name: "Watch", opts: cliOptions{command: "watch"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := validateCommand(tc.opts)
			if tc.err == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.err)
		})
	}
}

type project struct {
	root   string
	config string
}

func newProject(t *testing.T) project {
	t.Helper()
	root := t.TempDir()
	cfgPath := filepath.Join(root, config.DefaultFile)
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
[paths]
source_root = "src"
out_dir = "dist"

[cache]
enabled = false
`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	return project{root: root, config: cfgPath}
}

func (p project) write(t *testing.T, rel, content string) string {
	t.Helper()
	path := filepath.Join(p.root, "src", rel)
	require.NoError(t, util.WriteFileWithDirs(path, []byte(content), 0o644))
	return path
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Version(t *testing.T) {
	code, out, _ := runCLI("-version")
	assert.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(out, "straits v"), out)
}

func TestRun_UsageErrors(t *testing.T) {
	code, _, errOut := runCLI()
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: straits")

	code, _, _ = runCLI("-nope")
	assert.Equal(t, 2, code)
}

func TestRun_Compile(t *testing.T) {
	p := newProject(t)
	src := p.write(t, "main.js", program)

	code, out, errOut := runCLI("-config", p.config, "compile", src)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "_defineHidden(obj, _x, 20)")
	assert.Contains(t, out, "obj[_x] * 2 + 2;")

	target := filepath.Join(p.root, "out", "main.js")
	code, out, errOut = runCLI("-config", p.config, "compile", "-o", target, src)
	require.Equal(t, 0, code, errOut)
	assert.Empty(t, out)
	written, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(written), "_defineHidden(")
}

func TestRun_CompileErrorShowsCodeFrame(t *testing.T) {
	p := newProject(t)
	src := p.write(t, "bad.js", "let a = 1;\nfoo(;\n")

	code, _, errOut := runCLI("-config", p.config, "compile", src)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, src+":2:")
	assert.Contains(t, errOut, "error[SYNTAX_ERROR]")
	assert.Contains(t, errOut, "2 | foo(;")
}

func TestRun_Build(t *testing.T) {
	p := newProject(t)
	p.write(t, "main.js", program)
	p.write(t, "lib/util.ts", "export const n: number = 1;\n")

	code, out, errOut := runCLI("-config", p.config, "build")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "build ok")
	assert.Contains(t, out, "2 units")
	assert.FileExists(t, filepath.Join(p.root, "dist", "main.js"))
	assert.FileExists(t, filepath.Join(p.root, "dist", "lib", "util.ts"))

	p.write(t, "broken.js", "use traits * from;\n")
	reportPath := filepath.Join(p.root, "report.sarif")
	code, out, errOut = runCLI("-config", p.config, "build", "-report", reportPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "build failed")
	assert.Contains(t, errOut, "broken.js")

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"uri": "src/broken.js"`)
	assert.Contains(t, string(data), "STR002")
}

func TestRun_RunFile(t *testing.T) {
	p := newProject(t)
	src := p.write(t, "main.js", program)

	code, out, errOut := runCLI("-config", p.config, "run", src)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "42\n", out)

	thrower := p.write(t, "throw.js", "throw new TypeError('boom');\n")
	code, _, errOut = runCLI("-config", p.config, "run", thrower)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "runtime error")
	assert.Contains(t, errOut, "TypeError: boom")
}

func TestRun_MissingConfig(t *testing.T) {
	code, _, errOut := runCLI("-config", filepath.Join(t.TempDir(), "nope.toml"), "build")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "failed to load config")
}

func TestLoadConfig_Discovery(t *testing.T) {
	p := newProject(t)
	nested := filepath.Join(p.root, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	cfg, root, file, err := loadConfig("", nested)
	require.NoError(t, err)
	assert.Equal(t, p.root, root)
	assert.Equal(t, p.config, file)
	assert.Equal(t, "dist", cfg.Paths.OutDir)

	empty := t.TempDir()
	cfg, root, file, err = loadConfig("", empty)
	require.NoError(t, err)
	assert.Equal(t, empty, root)
	assert.Empty(t, file)
	assert.NotEmpty(t, cfg.Paths.SourceRoot)
}

func TestFormatDiagnostic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.js")
	require.NoError(t, os.WriteFile(path, []byte("one\n\tobj.*x;\n"), 0o644))

	out := formatDiagnostic(errors.At(errors.CodeScope, "`.*` used outside any declared scope", path, 2, 5))
	assert.Contains(t, out, path+":2:5")
	assert.Contains(t, out, "error[SCOPE_ERROR]: `.*` used outside any declared scope")
	assert.Contains(t, out, "2 | \tobj.*x;")
	assert.Contains(t, out, "  | \t   ^")

	out = formatDiagnostic(errors.New(errors.CodeInternal, "boom"))
	assert.Equal(t, "error[INTERNAL_ERROR]: boom\n", out)

	out = formatDiagnostic(&host.RuntimeError{Name: "Error", Message: "x"})
	assert.Contains(t, out, "runtime error: Error: x")

	assert.Empty(t, formatDiagnostic(nil))
}

func TestFormatSummary(t *testing.T) {
	assert.Contains(t, formatSummary(coreapp.BuildReport{Units: 2}), "build ok: 2 units, 0 cached, 0 failed")
	assert.Contains(t, formatSummary(coreapp.BuildReport{Units: 2, Failures: 1}), "build failed")
	assert.Contains(t, formatSummary(coreapp.BuildReport{}), "nothing to build")
}

func TestObservabilityServer(t *testing.T) {
	cfg := config.Default()
	root := t.TempDir()
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)
	application, err := coreapp.New(cfg, paths, coreapp.Options{NoCache: true})
	require.NoError(t, err)
	defer application.Close()

	server := NewObservabilityServer("127.0.0.1:0", coreapp.NewHealthService(application))
	defer server.Stop(context.Background())
	handler := server.handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var status coreapp.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "up", status.Status)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "straits_")

	limited := 0
	for i := 0; i < clientBurst*2; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Greater(t, limited, 0)
}

func TestObservabilityServer_StartStop(t *testing.T) {
	server := NewObservabilityServer("127.0.0.1:0", coreapp.NewHealthService(nil))
	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Stop(context.Background()))

	bad := NewObservabilityServer("256.0.0.1:bad", nil)
	assert.Error(t, bad.Start(context.Background()))
	_ = bad.Stop(context.Background())
}
