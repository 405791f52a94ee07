package algorithm

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrOutOfRange       = errors.New("value out of range")
	ErrInvalidValue     = errors.New("invalid value type")
)

// Kind is the value domain of a parameter.
type Kind int

const (
	IntRange Kind = iota
	FloatRange
	Bool
	Enum
)

func (k Kind) String() string {
	switch k {
	case IntRange:
		return "int"
	case FloatRange:
		return "float"
	case Bool:
		return "bool"
	case Enum:
		return "enum"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Parameter describes one tunable value of an algorithm. Value holds an int, float64,
// bool or string depending on Kind.
type Parameter struct {
	Name        string
	Kind        Kind
	Min         float64
	Max         float64
	Step        float64
	Options     []string
	Default     interface{}
	Value       interface{}
	Description string
}

func IntParam(name string, min, max, step, def int) Parameter {
	return Parameter{
		Name:    name,
		Kind:    IntRange,
		Min:     float64(min),
		Max:     float64(max),
		Step:    float64(step),
		Default: def,
		Value:   def,
	}
}

func FloatParam(name string, min, max, step, def float64) Parameter {
	return Parameter{
		Name:    name,
		Kind:    FloatRange,
		Min:     min,
		Max:     max,
		Step:    step,
		Default: def,
		Value:   def,
	}
}

func BoolParam(name string, def bool) Parameter {
	return Parameter{
		Name:    name,
		Kind:    Bool,
		Default: def,
		Value:   def,
	}
}

func EnumParam(name string, options []string, def string) Parameter {
	return Parameter{
		Name:    name,
		Kind:    Enum,
		Options: append([]string(nil), options...),
		Default: def,
		Value:   def,
	}
}

// WithDescription returns a copy of p carrying a human readable hint.
func (p Parameter) WithDescription(text string) Parameter {
	p.Description = text
	return p
}

func (p Parameter) clone() Parameter {
	p.Options = append([]string(nil), p.Options...)
	return p
}

// Normalize checks v against the declared domain and converts it to the canonical Go
// type for the kind. Numbers decoded from JSON arrive as float64 and are accepted for
// integer parameters when they have no fractional part.
func (p Parameter) Normalize(v interface{}) (interface{}, error) {
	switch p.Kind {
	case IntRange:
		f, ok := toFloat(v)
		if !ok || f != math.Trunc(f) {
			return nil, errors.Wrapf(ErrInvalidValue, "%s: want integer, got %v", p.Name, v)
		}
		if f < p.Min || f > p.Max {
			return nil, errors.Wrapf(ErrOutOfRange, "%s: %v not in [%v, %v]", p.Name, f, p.Min, p.Max)
		}
		if p.Step > 1 && math.Mod(f-p.Min, p.Step) != 0 {
			return nil, errors.Wrapf(ErrOutOfRange, "%s: %v not on step %v from %v", p.Name, f, p.Step, p.Min)
		}
		return int(f), nil
	case FloatRange:
		f, ok := toFloat(v)
		if !ok || math.IsNaN(f) {
			return nil, errors.Wrapf(ErrInvalidValue, "%s: want number, got %v", p.Name, v)
		}
		if f < p.Min || f > p.Max {
			return nil, errors.Wrapf(ErrOutOfRange, "%s: %v not in [%v, %v]", p.Name, f, p.Min, p.Max)
		}
		return f, nil
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%s: want bool, got %v", p.Name, v)
		}
		return b, nil
	case Enum:
		s, ok := v.(string)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidValue, "%s: want string, got %v", p.Name, v)
		}
		if !lo.Contains(p.Options, s) {
			return nil, errors.Wrapf(ErrOutOfRange, "%s: %q not one of %v", p.Name, s, p.Options)
		}
		return s, nil
	default:
		return nil, errors.Wrapf(ErrInvalidValue, "%s: unsupported kind %s", p.Name, p.Kind)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
