package run

import (
	"crypto/sha256"
	"fmt"

	"exocompare/domain/core"
)

// Status of a pipeline run
type Status string

const (
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// RunFingerprint ensures deterministic replay: two runs with the same
// fingerprint must produce identical metrics.
type RunFingerprint struct {
	SchemaHash  string    `json:"schema_hash"`
	InputDigest string    `json:"input_digest"`
	Seed        int64     `json:"seed"`
	CodeVersion string    `json:"code_version"`
	Fingerprint core.Hash `json:"fingerprint"` // Hash of all above
}

// NewRunFingerprint creates a fingerprint from determinism parameters
func NewRunFingerprint(schemaHash, inputDigest string, seed int64, codeVersion string) RunFingerprint {
	return RunFingerprint{
		SchemaHash:  schemaHash,
		InputDigest: inputDigest,
		Seed:        seed,
		CodeVersion: codeVersion,
		Fingerprint: computeRunFingerprint(schemaHash, inputDigest, seed, codeVersion),
	}
}

// computeRunFingerprint generates deterministic hash from all determinism parameters
func computeRunFingerprint(schemaHash, inputDigest string, seed int64, codeVersion string) core.Hash {
	data := fmt.Sprintf("schema:%s|input:%s|seed:%d|code:%s", schemaHash, inputDigest, seed, codeVersion)
	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}

// FileRef points at a written file with its digest
type FileRef struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Rows   int    `json:"rows,omitempty"`
}

// BootstrapEcho is the resampling configuration recorded for audit
type BootstrapEcho struct {
	Seed              int64   `json:"seed"`
	NResamples        int     `json:"n_resamples"`
	CI                float64 `json:"ci"`
	BaselineMethod    string  `json:"baseline_method"`
	QuantileMethod    string  `json:"quantile_method"`
	MinGroupSizeForCI int     `json:"min_group_size_for_ci"`
	StdDDOF           int     `json:"std_ddof"`
}
