package conversion

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Parameter names shared by the conversion rules.
const (
	DecimationFactorParameterName             = "Decimation factor"
	SmoothingFactorParameterName              = "Smoothing factor"
	OversamplingFactorParameterName           = "Oversampling factor"
	NumberOfOffsetsParameterName              = "Number of offsets"
	ReferenceImageGeometryParameterName       = "Reference image geometry"
	CropToReferenceImageGeometryParameterName = "Crop to reference image geometry"
)

// Parameter is a named string value with a human-readable description.
type Parameter struct {
	Name        string
	Value       string
	Description string
}

// Parameters is an ordered set of conversion parameters.
type Parameters struct {
	order  []string
	byName map[string]*Parameter
}

// NewParameters returns an empty parameter set.
func NewParameters() *Parameters {
	return &Parameters{byName: make(map[string]*Parameter)}
}

// Define adds a parameter or replaces its default value and description.
func (p *Parameters) Define(name, value, description string) {
	if param, ok := p.byName[name]; ok {
		param.Value, param.Description = value, description
		return
	}
	p.order = append(p.order, name)
	p.byName[name] = &Parameter{Name: name, Value: value, Description: description}
}

// Names returns the parameter names in definition order.
func (p *Parameters) Names() []string {
	return append([]string(nil), p.order...)
}

// Has reports whether name is defined.
func (p *Parameters) Has(name string) bool {
	_, ok := p.byName[name]
	return ok
}

// Get returns the value of a parameter.
func (p *Parameters) Get(name string) (string, bool) {
	param, ok := p.byName[name]
	if !ok {
		return "", false
	}
	return param.Value, true
}

// Description returns the description of a parameter, or "" if undefined.
func (p *Parameters) Description(name string) string {
	if param, ok := p.byName[name]; ok {
		return param.Description
	}
	return ""
}

// Set changes the value of a defined parameter.
func (p *Parameters) Set(name, value string) error {
	param, ok := p.byName[name]
	if !ok {
		return errors.Wrapf(ErrInvalidParameter, "unknown parameter %q", name)
	}
	param.Value = value
	return nil
}

// Apply sets every defined parameter present in values and ignores the
// rest, so one override map can be applied to several rules.
func (p *Parameters) Apply(values map[string]string) {
	for name, v := range values {
		if param, ok := p.byName[name]; ok {
			param.Value = v
		}
	}
}

// Float parses a parameter as a floating point number.
func (p *Parameters) Float(name string) (float64, error) {
	s, ok := p.Get(name)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidParameter, "unknown parameter %q", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidParameter, "%s: %v", name, err)
	}
	return v, nil
}

// Int parses a parameter as an integer.
func (p *Parameters) Int(name string) (int, error) {
	s, ok := p.Get(name)
	if !ok {
		return 0, errors.Wrapf(ErrInvalidParameter, "unknown parameter %q", name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidParameter, "%s: %v", name, err)
	}
	return v, nil
}

// Bool parses a parameter as a flag. "0" and "1" are accepted along with
// the forms understood by strconv.ParseBool.
func (p *Parameters) Bool(name string) (bool, error) {
	s, ok := p.Get(name)
	if !ok {
		return false, errors.Wrapf(ErrInvalidParameter, "unknown parameter %q", name)
	}
	v, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, errors.Wrapf(ErrInvalidParameter, "%s: %v", name, err)
	}
	return v, nil
}
