package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewRunLogger(t *testing.T) {
	t.Run("creates log file under document slug", func(t *testing.T) {
		base := t.TempDir()
		logger, err := NewRunLogger(base, "notes/tasks.md@main")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		defer logger.Close()

		if logger.RunID == "" {
			t.Error("expected RunID to be set")
		}
		if _, err := os.Stat(logger.LogPath); err != nil {
			t.Errorf("log file not created: %v", err)
		}
		if !strings.HasPrefix(filepath.Base(logger.Dir), "tasks.md_main-") {
			t.Errorf("log dir: got %q, want tasks.md_main-<hash>", logger.Dir)
		}
		if filepath.Dir(logger.Dir) != base {
			t.Errorf("log dir parent: got %q, want %q", filepath.Dir(logger.Dir), base)
		}
	})

	t.Run("empty base dir returns error", func(t *testing.T) {
		_, err := NewRunLogger("", "tasks.md")
		if err == nil || !strings.Contains(err.Error(), "empty") {
			t.Fatalf("expected empty dir error, got %v", err)
		}
	})

	t.Run("different documents get different dirs", func(t *testing.T) {
		base := t.TempDir()
		a, _ := FindLogDir(base, "a/tasks.md")
		b, _ := FindLogDir(base, "b/tasks.md")
		if a == b {
			t.Errorf("FindLogDir: got same dir %q for different documents", a)
		}
	})
}

func TestRunLoggerWriter(t *testing.T) {
	logger, err := NewRunLogger(t.TempDir(), "tasks.md")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := logger.Writer().Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(logger.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello\n" {
		t.Errorf("content: got %q", data)
	}

	var nilLogger *RunLogger
	if err := nilLogger.Close(); err != nil {
		t.Errorf("Close(nil): got %v", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"tasks.md", "tasks.md"},
		{"tasks.md@main", "tasks.md_main"},
		{"my  tasks!!", "my_tasks"},
		{"", "tasks"},
		{"@@@", "tasks"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := slugify(tt.input); got != tt.want {
				t.Errorf("slugify(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFindLatestLog(t *testing.T) {
	t.Run("finds newest log", func(t *testing.T) {
		dir := t.TempDir()
		older := filepath.Join(dir, "20240101-000000-1.log")
		newer := filepath.Join(dir, "20240102-000000-1.log")
		for _, p := range []string{older, newer, filepath.Join(dir, "notes.txt")} {
			if err := os.WriteFile(p, []byte("x\n"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		past := time.Now().Add(-time.Hour)
		if err := os.Chtimes(older, past, past); err != nil {
			t.Fatal(err)
		}

		got, err := FindLatestLog(dir)
		if err != nil {
			t.Fatalf("FindLatestLog: %v", err)
		}
		if got != newer {
			t.Errorf("FindLatestLog: got %q, want %q", got, newer)
		}
	})

	t.Run("missing directory yields empty", func(t *testing.T) {
		got, err := FindLatestLog(filepath.Join(t.TempDir(), "missing"))
		if err != nil || got != "" {
			t.Errorf("FindLatestLog: got (%q, %v), want empty", got, err)
		}
	})

	t.Run("ignores subdirectories", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Mkdir(filepath.Join(dir, "old.log"), 0755); err != nil {
			t.Fatal(err)
		}
		got, _ := FindLatestLog(dir)
		if got != "" {
			t.Errorf("FindLatestLog: got %q, want empty", got)
		}
	})
}

func TestTailLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.log")
	var content strings.Builder
	for i := 1; i <= 10; i++ {
		content.WriteString("line ")
		content.WriteString(strings.Repeat("x", i))
		content.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		t.Fatal(err)
	}

	t.Run("whole file when n is zero", func(t *testing.T) {
		var buf bytes.Buffer
		if err := TailLog(context.Background(), &buf, path, 0, false); err != nil {
			t.Fatal(err)
		}
		if buf.String() != content.String() {
			t.Errorf("TailLog: got %q", buf.String())
		}
	})

	t.Run("last n lines", func(t *testing.T) {
		var buf bytes.Buffer
		if err := TailLog(context.Background(), &buf, path, 2, false); err != nil {
			t.Fatal(err)
		}
		want := "line " + strings.Repeat("x", 9) + "\nline " + strings.Repeat("x", 10) + "\n"
		if buf.String() != want {
			t.Errorf("TailLog: got %q, want %q", buf.String(), want)
		}
	})

	t.Run("more lines than file", func(t *testing.T) {
		var buf bytes.Buffer
		if err := TailLog(context.Background(), &buf, path, 50, false); err != nil {
			t.Fatal(err)
		}
		if buf.String() != content.String() {
			t.Errorf("TailLog: got %q", buf.String())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := TailLog(context.Background(), &bytes.Buffer{}, filepath.Join(dir, "nope.log"), 0, false); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("follow stops with context", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
		defer cancel()
		var buf bytes.Buffer
		if err := TailLog(ctx, &buf, path, 1, true); err != nil {
			t.Fatalf("TailLog(follow): %v", err)
		}
		if !strings.HasSuffix(buf.String(), strings.Repeat("x", 10)+"\n") {
			t.Errorf("TailLog(follow): got %q", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
		{"bogus", log.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseFormatter(t *testing.T) {
	if got := ParseFormatter("json"); got != log.JSONFormatter {
		t.Errorf("ParseFormatter(json): got %v", got)
	}
	if got := ParseFormatter("logfmt"); got != log.LogfmtFormatter {
		t.Errorf("ParseFormatter(logfmt): got %v", got)
	}
	if got := ParseFormatter(""); got != log.TextFormatter {
		t.Errorf("ParseFormatter(empty): got %v", got)
	}
}

func TestNewFromConfig(t *testing.T) {
	var buf bytes.Buffer
	logger := NewFromConfig(&buf, "warn", "logfmt", false, false)
	logger.Info("hidden")
	logger.Warn("shown", "op", "save")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "op=save") {
		t.Errorf("output: got %q", out)
	}
	if !strings.Contains(out, "prefix=mdtasks") {
		t.Errorf("prefix missing: %q", out)
	}
}

func TestDiscard(t *testing.T) {
	OrDiscard(nil).Error("dropped")
}
