package conversion

import (
	"log"

	"github.com/pkg/errors"

	"fraclabelmap/internal/models"
)

// Registry dispatches conversions to rules by representation name.
type Registry struct {
	rules []Rule
}

// NewRegistry returns a registry holding the given rules.
func NewRegistry(rules ...Rule) *Registry {
	return &Registry{rules: rules}
}

// DefaultRegistry returns a registry with both fractional labelmap rules.
func DefaultRegistry(logger *log.Logger) *Registry {
	return NewRegistry(
		NewClosedSurfaceToFractionalLabelmap(logger),
		NewFractionalLabelmapToClosedSurface(logger),
	)
}

// Register adds a rule. A later rule for the same pair takes precedence.
func (r *Registry) Register(rule Rule) {
	r.rules = append(r.rules, rule)
}

// Rules returns the registered rules.
func (r *Registry) Rules() []Rule { return append([]Rule(nil), r.rules...) }

// Rule returns the rule converting source into target representations.
func (r *Registry) Rule(source, target string) (Rule, error) {
	for i := len(r.rules) - 1; i >= 0; i-- {
		rule := r.rules[i]
		if rule.SourceRepresentationName() == source && rule.TargetRepresentationName() == target {
			return rule, nil
		}
	}
	return nil, errors.Wrapf(ErrNoRule, "%s to %s", source, target)
}

// SetParameters applies the values to every registered rule defining them.
func (r *Registry) SetParameters(values map[string]string) {
	for _, rule := range r.rules {
		rule.Parameters().Apply(values)
	}
}

// Convert runs the rule matching the representation names of source and
// target. An empty target grid must have its Kind set to select the rule.
func (r *Registry) Convert(source, target models.Representation) error {
	if source == nil || target == nil {
		return errors.Wrap(ErrInvalidRepresentation, "nil representation")
	}
	rule, err := r.Rule(source.RepresentationName(), target.RepresentationName())
	if err != nil {
		return err
	}
	return rule.Convert(source, target)
}
