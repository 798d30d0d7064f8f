package analysis

import (
	"fmt"

	"exocompare/domain/compare"
	"exocompare/domain/core"
	apperrors "exocompare/internal/errors"
)

// Config is everything the engine needs for one run.
type Config struct {
	BaselineMethod string
	MethodOrder    []string
	Metrics        []string
	Units          map[string]string
	StdDDOF        int
	Bootstrap      compare.BootstrapConfig
	// Workers bounds how many measurements are computed concurrently; <= 1 is sequential.
	Workers int
}

// ValidateInputs checks the configuration against the table schema. All
// problems are reported together as one CONFIG_INVALID error so that nothing
// is computed from a bad configuration.
func ValidateInputs(table *compare.Table, cfg Config) error {
	var problems []error

	if len(cfg.MethodOrder) == 0 {
		problems = append(problems, core.NewValidationError("method_order", "must not be empty"))
	}
	if !contains(cfg.MethodOrder, cfg.BaselineMethod) {
		problems = append(problems, fmt.Errorf("%w: %q", core.ErrBaselineNotOrdered, cfg.BaselineMethod))
	}
	if len(cfg.Metrics) == 0 {
		problems = append(problems, core.NewValidationError("metrics", "must not be empty"))
	}
	for _, m := range cfg.Metrics {
		if table == nil || !table.HasMeasurement(m) {
			problems = append(problems, fmt.Errorf("%w: %s", core.ErrMissingColumn, m))
		}
	}
	if cfg.Bootstrap.Resamples <= 0 {
		problems = append(problems, core.NewValidationError("bootstrap.n_resamples", fmt.Sprintf("must be positive, got %d", cfg.Bootstrap.Resamples)))
	}
	if !(cfg.Bootstrap.CI > 0 && cfg.Bootstrap.CI < 1) {
		problems = append(problems, core.NewValidationError("bootstrap.ci", fmt.Sprintf("must be in (0, 1), got %v", cfg.Bootstrap.CI)))
	}
	if cfg.StdDDOF < 0 {
		problems = append(problems, core.NewValidationError("std_ddof", fmt.Sprintf("must be non-negative, got %d", cfg.StdDDOF)))
	}
	if cfg.Bootstrap.MinGroupSizeForCI <= 0 {
		problems = append(problems, core.NewValidationError("thresholds.min_group_size_for_ci", fmt.Sprintf("must be positive, got %d", cfg.Bootstrap.MinGroupSizeForCI)))
	}
	if _, err := compare.ParseQuantileMethod(string(cfg.Bootstrap.QuantileMethod)); err != nil {
		problems = append(problems, err)
	}

	return apperrors.ConfigProblems(problems)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
