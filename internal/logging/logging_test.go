package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDebugfIsGated(t *testing.T) {
	var buf bytes.Buffer
	closer := setup(&buf, Options{})
	defer closer.Close()
	defer log.SetOutput(os.Stderr)

	Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Fatalf("debug line written with debug disabled: %q", buf.String())
	}

	setup(&buf, Options{Debug: true})
	Debugf("shown %d", 2)
	if !strings.Contains(buf.String(), "DEBUG: shown 2") {
		t.Fatalf("missing debug line: %q", buf.String())
	}
}

func TestSetupWritesFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "weatherbot.log")
	closer := setup(&buf, Options{File: true, Path: path, MaxSizeMB: 1})
	defer log.SetOutput(os.Stderr)

	log.Printf("INFO: hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "INFO: hello") || !strings.Contains(buf.String(), "INFO: hello") {
		t.Fatalf("log line missing: file=%q console=%q", data, buf.String())
	}
}
