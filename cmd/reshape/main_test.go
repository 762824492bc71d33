package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const wideCSV = "Sample Number,Variety,Formulation,WLD0,WLD9\n1,Hass,A,100,90\n"

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestCLILenient(t *testing.T) {
	path := writeInput(t, "123_sample.csv", wideCSV)
	var stdout, stderr bytes.Buffer

	code := cli([]string{"-in", path, "-upload-date", "2024-05-20", "-lenient"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", stdout.String())
	}
	want := "123_sample.csv,Hass,A,,2024-05-20 00:00:00,2024-05-11 00:00:00,9,90,1,123,1"
	if lines[2] != want {
		t.Fatalf("row = %q, want %q", lines[2], want)
	}
}

func TestCLIStrictRejectsMissingColumn(t *testing.T) {
	path := writeInput(t, "123_sample.csv", wideCSV)
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-in", path}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "Number of Samples") {
		t.Fatalf("stderr should name the missing column: %q", stderr.String())
	}
}

func TestCLIUsageErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 2 {
		t.Fatalf("missing -in: exit %d", code)
	}
	path := writeInput(t, "1.csv", wideCSV)
	if code := cli([]string{"-in", path, "-lenient", "-upload-date", "yesterday"}, &stdout, &stderr); code != 1 {
		t.Fatalf("bad date: exit %d", code)
	}
}

func TestCLIWritesOutputFile(t *testing.T) {
	path := writeInput(t, "77_run.csv", wideCSV)
	out := filepath.Join(t.TempDir(), "long.csv")
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-in", path, "-lenient", "-out", out}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.HasPrefix(string(data), "Filename,Variety") || stdout.Len() != 0 {
		t.Fatalf("output not written to file: %q", data)
	}
}
