package tap

import (
	"fmt"
	"sort"
	"strings"

	"exocompare/internal/errors"
)

// KnownDiscoveryMethods is the archive's closed set of discovery method labels.
var KnownDiscoveryMethods = map[string]bool{
	"Transit":                       true,
	"Radial Velocity":               true,
	"Imaging":                       true,
	"Microlensing":                  true,
	"Eclipse Timing Variations":     true,
	"Transit Timing Variations":     true,
	"Astrometry":                    true,
	"Pulsar Timing":                 true,
	"Pulsation Timing Variations":   true,
	"Orbital Brightness Modulation": true,
	"Disk Kinematics":               true,
}

// ValidateDiscoveryMethods rejects labels the archive does not know.
func ValidateDiscoveryMethods(methods []string) error {
	var unknown []string
	for _, m := range methods {
		if !KnownDiscoveryMethods[m] {
			unknown = append(unknown, fmt.Sprintf("%q", m))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.InvalidInput("unknown discovery method(s): " + strings.Join(unknown, ", "))
	}
	return nil
}

// BuildADQL selects the columns filtered only by discovery method. No
// per-metric "is not null" clause is added so incomplete rows are kept.
func BuildADQL(table string, columns, methods []string) (string, error) {
	if err := ValidateDiscoveryMethods(methods); err != nil {
		return "", err
	}
	quoted := make([]string, len(methods))
	for i, m := range methods {
		quoted[i] = "'" + m + "'"
	}
	return fmt.Sprintf("select %s from %s where discoverymethod in (%s)",
		strings.Join(columns, ", "), table, strings.Join(quoted, ", ")), nil
}
