package run

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"exocompare/domain/core"
)

func TestRunFingerprint_Deterministic(t *testing.T) {
	// same inputs produce identical fingerprints
	fp1 := NewRunFingerprint("sha256:schema", "sha256:input", 42, "1.0.0")
	fp2 := NewRunFingerprint("sha256:schema", "sha256:input", 42, "1.0.0")

	if fp1.Fingerprint != fp2.Fingerprint {
		t.Errorf("Fingerprints not identical: %s vs %s", fp1.Fingerprint, fp2.Fingerprint)
	}
	if fp1.Seed != 42 {
		t.Errorf("Seed mismatch: %d vs %d", fp1.Seed, 42)
	}
	if len(fp1.Fingerprint) != 64 {
		t.Errorf("Fingerprint should be hex sha256, got %q", fp1.Fingerprint)
	}
}

func TestRunFingerprint_Unique(t *testing.T) {
	base := NewRunFingerprint("sha256:schema", "sha256:input", 42, "1.0.0")

	testCases := []struct {
		name string
		fp   RunFingerprint
	}{
		{"different schema", NewRunFingerprint("sha256:other", "sha256:input", 42, "1.0.0")},
		{"different input", NewRunFingerprint("sha256:schema", "sha256:other", 42, "1.0.0")},
		{"different seed", NewRunFingerprint("sha256:schema", "sha256:input", 43, "1.0.0")},
		{"different code", NewRunFingerprint("sha256:schema", "sha256:input", 42, "1.0.1")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fp.Fingerprint == base.Fingerprint {
				t.Errorf("Fingerprint should differ for %s", tc.name)
			}
		})
	}
}

func TestRunLog_Lifecycle(t *testing.T) {
	ts := core.NewTimestamp(time.Date(2024, 5, 1, 11, 30, 15, 0, time.UTC))
	l := NewRunLog("run-1", ts, "run", "abc1234", "sha256:x")

	if l.Status != StatusRunning {
		t.Fatalf("new log should be running, got %s", l.Status)
	}
	if l.GeneratedUTC != "2024-05-01T11:30:15Z" {
		t.Errorf("GeneratedUTC = %s", l.GeneratedUTC)
	}

	l.FinalizeFailure(errors.New("fetch failed\nTAP service error: status 503"))
	if l.Status != StatusFailed || l.ErrorSummary == nil || *l.ErrorSummary != "TAP service error: status 503" {
		t.Errorf("unexpected failure state: %s %v", l.Status, l.ErrorSummary)
	}

	l.FinalizeSuccess()
	if l.Status != StatusSuccess || l.ErrorSummary != nil {
		t.Errorf("unexpected success state: %s %v", l.Status, l.ErrorSummary)
	}
}

func TestRunLog_WriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifacts", "run.json")
	l := NewRunLog("run-1", core.Now(), "offline", "UNKNOWN", "sha256:x")
	l.RowCounts["clean"] = 12
	l.FinalizeSuccess()

	if err := l.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if data[len(data)-1] != '\n' {
		t.Errorf("run.json should end with a newline")
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"generated_utc", "run_id", "git_commit", "schema_hash", "bootstrap", "missingness", "libraries", "status", "error_summary"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("run.json missing key %q", key)
		}
	}
	if doc["error_summary"] != nil {
		t.Errorf("error_summary should be null on success")
	}
}

func TestGitCommit(t *testing.T) {
	root := t.TempDir()
	if got := GitCommit(root); got != "UNKNOWN" {
		t.Errorf("GitCommit without .git = %q", got)
	}

	if err := os.MkdirAll(filepath.Join(root, ".git", "refs", "heads"), 0o755); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0o644)
	os.WriteFile(filepath.Join(root, ".git", "refs", "heads", "main"), []byte("0123456789abcdef\n"), 0o644)

	if got := GitCommit(root); got != "0123456" {
		t.Errorf("GitCommit = %q", got)
	}
}
