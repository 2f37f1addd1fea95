package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"straits/internal/shared/util"
)

func TestNewWatcher_RejectsNilCallback(t *testing.T) {
	w, err := NewWatcher(100*time.Millisecond, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error for nil callback")
	}
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("expected os.ErrInvalid, got %v", err)
	}
	if w != nil {
		t.Fatal("expected nil watcher when callback is invalid")
	}
}

func TestNewWatcher_RejectsBadGlob(t *testing.T) {
	if _, err := NewWatcher(time.Millisecond, []string{"[abc"}, nil, func([]string) {}); err == nil {
		t.Fatal("expected glob compile error")
	}
}

func TestWatcher(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 1)
	w, err := NewWatcher(100*time.Millisecond, []string{"node_modules"}, []string{"*.min.js"}, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetExtensions([]string{".js"})

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	testFile := filepath.Join(tmpDir, "main.js")
	if err := os.WriteFile(testFile, []byte("o.*x;"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-changedFiles:
		if !contains(paths, testFile) {
			t.Errorf("expected to find %s in changed files %v", testFile, paths)
		}
	case <-time.After(2 * time.Second):
		t.Error("timed out waiting for file change event")
	}

	// excluded by glob and by extension
	_ = os.WriteFile(filepath.Join(tmpDir, "bundle.min.js"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte("x"), 0o644)

	select {
	case paths := <-changedFiles:
		t.Errorf("excluded files triggered event: %v", paths)
	case <-time.After(500 * time.Millisecond):
	}

	subdir := filepath.Join(tmpDir, "lib")
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		t.Fatal(err)
	}
	subFile := filepath.Join(subdir, "nested.js")
	if err := os.WriteFile(subFile, []byte("let a;"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			if contains(paths, subFile) {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for nested file event in newly created directory")
		}
	}
}

func TestWatcher_RenameTriggersChange(t *testing.T) {
	tmpDir := t.TempDir()

	changedFiles := make(chan []string, 8)
	w, err := NewWatcher(100*time.Millisecond, nil, nil, func(paths []string) {
		changedFiles <- paths
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch([]string{tmpDir}); err != nil {
		t.Fatal(err)
	}

	oldPath := filepath.Join(tmpDir, "old.js")
	newPath := filepath.Join(tmpDir, "new.js")
	if err := os.WriteFile(oldPath, []byte("1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case paths := <-changedFiles:
			if contains(paths, oldPath) || contains(paths, newPath) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for rename event, old=%s new=%s", oldPath, newPath)
		}
	}
}

func TestWatcher_TouchWithoutEditIsIgnored(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.js")
	if err := os.WriteFile(path, []byte("o.*x;"), 0o644); err != nil {
		t.Fatal(err)
	}

	var got [][]string
	w, err := NewWatcher(time.Hour, nil, nil, func(paths []string) {
		got = append(got, paths)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.seedHashes(tmpDir)

	now := time.Now()
	if err := os.Chtimes(path, now, now); err != nil {
		t.Fatal(err)
	}
	w.scheduleChange(path)
	w.flushChanges()
	if len(got) != 0 {
		t.Fatalf("expected touch to be ignored, got %v", got)
	}

	if err := os.WriteFile(path, []byte("o.*y;"), 0o644); err != nil {
		t.Fatal(err)
	}
	w.scheduleChange(path)
	w.flushChanges()
	if len(got) != 1 || got[0][0] != path {
		t.Fatalf("expected edit to be reported, got %v", got)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	w.scheduleChange(path)
	w.flushChanges()
	if len(got) != 2 {
		t.Fatalf("expected removal to be reported, got %v", got)
	}
}

func TestWatcher_LimiterDefersFlush(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "a.js")

	var calls int
	w, err := NewWatcher(time.Hour, nil, nil, func([]string) { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	w.SetLimiter(util.NewLimiter(0.001, 1))

	_ = os.WriteFile(path, []byte("1;"), 0o644)
	w.scheduleChange(path)
	w.flushChanges()
	if calls != 1 {
		t.Fatalf("expected first flush to run, got %d calls", calls)
	}

	_ = os.WriteFile(path, []byte("2;"), 0o644)
	w.scheduleChange(path)
	w.flushChanges()
	if calls != 1 {
		t.Fatalf("expected second flush to be deferred, got %d calls", calls)
	}

	w.pendingMu.Lock()
	_, stillPending := w.pending[path]
	w.pendingMu.Unlock()
	if !stillPending {
		t.Fatal("expected deferred path to remain pending")
	}
}

func TestWatcher_ExtensionFilter(t *testing.T) {
	w, err := NewWatcher(10*time.Millisecond, nil, []string{"*.d.ts"}, func([]string) {})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if w.shouldExcludeFile("main.py") {
		t.Fatal("expected every file to pass without an extension filter")
	}

	w.SetExtensions([]string{".js", " .TS "})
	if !w.shouldExcludeFile("main.py") {
		t.Fatal("expected .py to be excluded")
	}
	if w.shouldExcludeFile("Main.TS") {
		t.Fatal("expected extension matching to ignore case")
	}
	if !w.shouldExcludeFile("types.d.ts") {
		t.Fatal("expected glob exclusion to apply")
	}
}

func contains(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}
