package modversion

import (
	"fmt"
	"strings"

	semver "github.com/Masterminds/semver/v3"
)

// Constraint wraps a parsed semantic-version range expression (the
// "CompiledVersionConstraint" carried by a Requires edge). It is a
// secondary, best-effort compatibility check layered on top of the
// grammar-strict Version type above — the canonical requires/exports
// resolution never depends on it.
type Constraint struct {
	raw  string
	cons *semver.Constraints
}

// ParseConstraint parses a Masterminds/semver-syntax range expression
// (e.g. ">=1.2.0, <2.0.0").
func ParseConstraint(expr string) (*Constraint, error) {
	c, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("parse version constraint %q: %w", expr, err)
	}

	return &Constraint{raw: expr, cons: c}, nil
}

func (c *Constraint) String() string { return c.raw }

// toSemver renders a Version into the closest Masterminds/semver
// representation it can: the first three sequence tokens become
// major.minor.patch (zero-padded/truncated), the pre-release tokens are
// joined with '.', and build metadata is dropped since it does not affect
// precedence in either grammar.
func (v Version) toSemver() (*semver.Version, error) {
	nums := [3]int64{}

	for i := 0; i < 3 && i < len(v.Sequence); i++ {
		if v.Sequence[i].IsInt {
			nums[i] = v.Sequence[i].Int
		}
	}

	s := fmt.Sprintf("%d.%d.%d", nums[0], nums[1], nums[2])

	if len(v.PreRelease) > 0 {
		parts := make([]string, len(v.PreRelease))
		for i, t := range v.PreRelease {
			parts[i] = t.String()
		}

		s += "-" + strings.Join(parts, ".")
	}

	return semver.NewVersion(s)
}

// Satisfies reports whether v falls within the constraint, under the
// semver approximation described by toSemver. An error is returned only
// if v cannot be approximated as a semver version at all (it never is, in
// practice, since toSemver always zero-pads).
func (c *Constraint) Satisfies(v Version) (bool, error) {
	sv, err := v.toSemver()
	if err != nil {
		return false, fmt.Errorf("approximate %q as semver: %w", v.String(), err)
	}

	return c.cons.Check(sv), nil
}
