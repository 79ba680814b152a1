package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhubert/turnbench-core/paths"
)

// setupTestLogger initializes the logger on a temp file and resets it afterwards.
func setupTestLogger(t *testing.T) string {
	t.Helper()
	Reset()
	t.Cleanup(Reset)

	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := Init(logPath); err != nil {
		t.Fatalf("Failed to init logger: %v", err)
	}
	return logPath
}

// setupTestHome isolates the default log location under a temp HOME.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	paths.Reset()
	t.Cleanup(paths.Reset)
	return home
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestGet_StructuredLogging(t *testing.T) {
	logPath := setupTestLogger(t)

	Get().Info("turn played", "stage", "proposal", "turn", 1)

	content := readLog(t, logPath)
	for _, want := range []string{"turn played", "stage=proposal", "turn=1", "time="} {
		if !strings.Contains(content, want) {
			t.Errorf("log should contain %q, got %q", want, content)
		}
	}
	if Path() != logPath {
		t.Errorf("Path() = %q, want %q", Path(), logPath)
	}
}

func TestWithSession(t *testing.T) {
	logPath := setupTestLogger(t)

	WithSession("session-xyz").With("component", "engine").Info("retrying", "kind", "format")

	content := readLog(t, logPath)
	for _, want := range []string{"sessionID=session-xyz", "component=engine", "kind=format"} {
		if !strings.Contains(content, want) {
			t.Errorf("log should contain %q", want)
		}
	}
}

func TestWithComponent(t *testing.T) {
	logPath := setupTestLogger(t)

	WithComponent("store").Info("opened", "driver", "badger")

	content := readLog(t, logPath)
	if !strings.Contains(content, "component=store") {
		t.Error("Should contain 'component=store' attribute")
	}
	if !strings.Contains(content, "driver=badger") {
		t.Error("Should contain 'driver=badger' attribute")
	}
}

func TestLogLevel_Filtering(t *testing.T) {
	logPath := setupTestLogger(t)

	Get().Debug("debug-filtered")
	Get().Info("info-visible")

	content := readLog(t, logPath)
	if strings.Contains(content, "debug-filtered") {
		t.Error("Debug message should be filtered at Info level")
	}
	if !strings.Contains(content, "info-visible") {
		t.Error("Info message should be visible at Info level")
	}

	SetDebug(true)
	defer SetDebug(false)
	Get().Debug("debug-visible")
	if !strings.Contains(readLog(t, logPath), "level=DEBUG") {
		t.Error("Debug message should be visible after SetDebug(true)")
	}
}

func TestSetLevel(t *testing.T) {
	logPath := setupTestLogger(t)

	if err := SetLevel("warn"); err != nil {
		t.Fatalf("SetLevel(warn): %v", err)
	}
	Get().Info("info-hidden")
	Get().Warn("warn-visible")

	content := readLog(t, logPath)
	if strings.Contains(content, "info-hidden") {
		t.Error("Info should be filtered at Warn level")
	}
	if !strings.Contains(content, "warn-visible") {
		t.Error("Warn should be visible at Warn level")
	}

	if err := SetLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestReset(t *testing.T) {
	tmpDir := t.TempDir()
	Reset()
	defer Reset()

	logPath1 := filepath.Join(tmpDir, "log1.log")
	if err := Init(logPath1); err != nil {
		t.Fatalf("Failed to init logger: %v", err)
	}
	Get().Info("message to log1")

	Reset()

	logPath2 := filepath.Join(tmpDir, "log2.log")
	if err := Init(logPath2); err != nil {
		t.Fatalf("Failed to reinit logger: %v", err)
	}
	Get().Info("message to log2")

	if c := readLog(t, logPath1); !strings.Contains(c, "message to log1") || strings.Contains(c, "message to log2") {
		t.Errorf("log1 has unexpected content: %q", c)
	}
	if c := readLog(t, logPath2); !strings.Contains(c, "message to log2") || strings.Contains(c, "message to log1") {
		t.Errorf("log2 has unexpected content: %q", c)
	}
}

func TestConcurrent_InitAndGet(t *testing.T) {
	for range 5 {
		Reset()
		logPath := filepath.Join(t.TempDir(), "concurrent.log")

		done := make(chan bool, 12)
		for range 4 {
			go func() {
				_ = Init(logPath)
				done <- true
			}()
			go func() {
				WithSession("sess").Info("concurrent session")
				done <- true
			}()
			go func() {
				WithComponent("comp").Info("concurrent component")
				done <- true
			}()
		}
		for range 12 {
			<-done
		}
	}
	Reset()
}

func TestEnsureInit_DefaultPath(t *testing.T) {
	home := setupTestHome(t)
	Reset()
	defer Reset()

	Get().Info("default path test")

	want := filepath.Join(home, ".turnbench", "logs", "turnbench.log")
	if Path() != want {
		t.Errorf("Path() = %q, want %q", Path(), want)
	}
}

func TestTranscriptLogPath(t *testing.T) {
	setupTestHome(t)

	got, err := TranscriptLogPath("abc-123")
	if err != nil {
		t.Fatalf("TranscriptLogPath: %v", err)
	}
	if !strings.HasSuffix(got, filepath.Join("logs", "transcript-abc-123.log")) {
		t.Errorf("TranscriptLogPath = %q", got)
	}
}

func TestClearLogs(t *testing.T) {
	setupTestHome(t)
	Reset()
	defer Reset()

	Get().Info("something")
	Close()

	transcript, err := TranscriptLogPath("s1")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(transcript, []byte("user: hi\n"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := ClearLogs()
	if err != nil {
		t.Fatalf("ClearLogs: %v", err)
	}
	if n != 2 {
		t.Errorf("ClearLogs removed %d files, want 2", n)
	}
}
