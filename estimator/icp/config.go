package icp

import (
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Config tunes the ICP estimator. Distances are in meters.
type Config struct {
	// Hypotheses is the number of starting rotations tried during registration, including the
	// identity.
	Hypotheses int `json:"hypotheses"`
	// InnerSteps caps the ICP steps run per refinement stage.
	InnerSteps int `json:"inner_steps"`
	// MaxPoints caps how many observed points are used, sampled with a fixed stride.
	MaxPoints int `json:"max_points"`
	// ScoreTruncation clamps each residual when scoring a hypothesis.
	ScoreTruncation float64 `json:"score_truncation_m"`
	// MinCorrespondence is the floor of the shrinking correspondence distance.
	MinCorrespondence float64 `json:"min_correspondence_m"`
	// Convergence ends a stage early once an update moves the pose less than this.
	Convergence float64 `json:"convergence_m"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Hypotheses:        8,
		InnerSteps:        15,
		MaxPoints:         2500,
		ScoreTruncation:   0.01,
		MinCorrespondence: 0.005,
		Convergence:       1e-7,
	}
}

// NewConfigFromAttributes decodes an attribute map, such as the "estimator" section of a
// configuration file, on top of DefaultConfig.
func NewConfigFromAttributes(attributes map[string]interface{}) (Config, error) {
	conf := DefaultConfig()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return Config{}, errors.Wrap(err, "invalid estimator attributes")
	}
	return conf, conf.Validate()
}

// Validate ensures all parts of the config are valid.
func (conf Config) Validate() error {
	switch {
	case conf.Hypotheses < 1:
		return errors.Errorf("hypotheses must be at least 1, got %d", conf.Hypotheses)
	case conf.InnerSteps < 1:
		return errors.Errorf("inner_steps must be at least 1, got %d", conf.InnerSteps)
	case conf.MaxPoints < minCorrespondences:
		return errors.Errorf("max_points must be at least %d, got %d", minCorrespondences, conf.MaxPoints)
	case conf.ScoreTruncation <= 0:
		return errors.Errorf("score_truncation_m must be positive, got %v", conf.ScoreTruncation)
	case conf.MinCorrespondence <= 0:
		return errors.Errorf("min_correspondence_m must be positive, got %v", conf.MinCorrespondence)
	case conf.Convergence < 0:
		return errors.Errorf("convergence_m cannot be negative, got %v", conf.Convergence)
	}
	return nil
}
