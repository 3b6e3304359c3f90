package artifacts

import (
	"github.com/pkg/errors"
)

// MaxLevel is the highest debug level.
const MaxLevel = 3

// Policy says which artifacts are produced. It is derived once from the debug level.
type Policy struct {
	Level                        int
	PersistPoseText              bool
	ShowLiveOverlay              bool
	PersistOverlayImage          bool
	PersistInitialReconstruction bool
}

func (p Policy) flags() []bool {
	return []bool{p.PersistPoseText, p.ShowLiveOverlay, p.PersistOverlayImage, p.PersistInitialReconstruction}
}

// includes reports whether p enables everything other enables.
func (p Policy) includes(other Policy) bool {
	mine := p.flags()
	for i, on := range other.flags() {
		if on && !mine[i] {
			return false
		}
	}
	return true
}

// policies is indexed by level.
var policies = mustBuildPolicies([]Policy{
	{Level: 0, PersistPoseText: true},
	{Level: 1, PersistPoseText: true, ShowLiveOverlay: true},
	{Level: 2, PersistPoseText: true, ShowLiveOverlay: true, PersistOverlayImage: true},
	{
		Level: 3, PersistPoseText: true, ShowLiveOverlay: true, PersistOverlayImage: true,
		PersistInitialReconstruction: true,
	},
})

// buildPolicies checks that levels are contiguous from zero and that each level enables a
// superset of the level below it.
func buildPolicies(table []Policy) ([]Policy, error) {
	for i, p := range table {
		if p.Level != i {
			return nil, errors.Errorf("policy at position %d is for level %d", i, p.Level)
		}
		if i > 0 && !p.includes(table[i-1]) {
			return nil, errors.Errorf("debug level %d drops an artifact enabled at level %d", i, i-1)
		}
	}
	return append([]Policy(nil), table...), nil
}

func mustBuildPolicies(table []Policy) []Policy {
	built, err := buildPolicies(table)
	if err != nil {
		panic(err)
	}
	return built
}

// PolicyForLevel returns the policy of a debug level in [0, MaxLevel].
func PolicyForLevel(level int) (Policy, error) {
	if level < 0 || level >= len(policies) {
		return Policy{}, errors.Errorf("debug level must be in [0, %d], got %d", MaxLevel, level)
	}
	return policies[level], nil
}
