package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mdobak/go-xerrors"
)

func TestGetEnvFallbacks(t *testing.T) {
	t.Setenv("AC_TEST_STRING", "  value ")
	t.Setenv("AC_TEST_INT", "12")
	t.Setenv("AC_TEST_BAD_INT", "twelve")
	t.Setenv("AC_TEST_FLOAT", "0.25")
	t.Setenv("AC_TEST_DURATION", "90s")
	t.Setenv("AC_TEST_BLANK", "   ")

	if got := GetEnv("AC_TEST_STRING", "x"); got != "value" {
		t.Fatalf("GetEnv trimmed value = %q", got)
	}
	if got := GetEnv("AC_TEST_BLANK", "fallback"); got != "fallback" {
		t.Fatalf("blank env should fall back, got %q", got)
	}
	if got := GetEnvInt("AC_TEST_INT", 1); got != 12 {
		t.Fatalf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("AC_TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("malformed int should fall back, got %d", got)
	}
	if got := GetEnvFloat("AC_TEST_FLOAT", 1); got != 0.25 {
		t.Fatalf("GetEnvFloat = %f", got)
	}
	if got := GetEnvDuration("AC_TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("GetEnvDuration = %s", got)
	}
}

func TestCreateFolderNested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := CreateFolder(dir); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", dir)
	}
}

func TestReplaceAttrAddsTrace(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{ReplaceAttr: replaceAttr}))

	log.Error("boom", slog.Any("error", xerrors.New(errors.New("disk full"))))

	var entry struct {
		Error struct {
			Msg   string       `json:"msg"`
			Trace []stackFrame `json:"trace"`
		} `json:"error"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if !strings.Contains(entry.Error.Msg, "disk full") {
		t.Fatalf("unexpected error message %q", entry.Error.Msg)
	}
	if len(entry.Error.Trace) == 0 {
		t.Fatalf("expected a stack trace in %s", buf.String())
	}
}
