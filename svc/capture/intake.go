package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
)

// UnknownFieldPolicy decides what happens to measurement keys outside the catalogue.
type UnknownFieldPolicy string

const (
	UnknownFieldsReject UnknownFieldPolicy = "reject"
	UnknownFieldsKeep   UnknownFieldPolicy = "keep"
)

// UnmarshalText parses the policy from configuration, case-insensitively.
func (p *UnknownFieldPolicy) UnmarshalText(text []byte) error {
	v := UnknownFieldPolicy(strings.ToLower(strings.TrimSpace(string(text))))
	if err := v.validate(); err != nil {
		return err
	}
	*p = v
	return nil
}

func (p UnknownFieldPolicy) validate() error {
	switch p {
	case UnknownFieldsReject, UnknownFieldsKeep:
		return nil
	}
	return fmt.Errorf("capture: unknown field policy %q, want %q or %q", string(p), UnknownFieldsReject, UnknownFieldsKeep)
}

// Field is a recognized body measurement in centimeters with the range a
// human body can plausibly produce.
type Field struct {
	Name string
	Min  float64
	Max  float64
}

// HeightField is the canonical height key.
const HeightField = "height"

// Catalogue lists recognized measurement fields.
var Catalogue = []Field{
	{HeightField, 50, 250},
	{"head", 40, 70},
	{"neck", 20, 70},
	{"shoulder", 20, 70},
	{"bust", 40, 200},
	{"chest", 40, 200},
	{"underbust", 40, 180},
	{"waist", 30, 200},
	{"hip", 40, 220},
	{"arm_length", 30, 100},
	{"sleeve", 30, 100},
	{"bicep", 10, 70},
	{"wrist", 8, 30},
	{"nape_to_waist", 25, 70},
	{"front_length", 20, 80},
	{"back_length", 20, 80},
	{"waist_to_hip", 10, 40},
	{"waist_to_floor", 60, 150},
	{"rise", 15, 50},
	{"inseam", 30, 120},
	{"outseam", 50, 140},
	{"thigh", 20, 100},
	{"knee", 20, 70},
	{"calf", 15, 70},
	{"ankle", 10, 40},
}

type heightSource struct {
	key    string
	factor float64
}

// heightSources fold into HeightField, in precedence order.
var heightSources = []heightSource{
	{"height_cm", 1},
	{"height_mm", 0.1},
	{"height_in", 2.54},
}

// Accepted is a validated, normalized measurement set.
type Accepted struct {
	Values     map[string]float64
	Confidence float64
}

// Intake validates and normalizes submitted measurement payloads.
type Intake struct {
	fields            map[string]Field
	policy            UnknownFieldPolicy
	defaultConfidence float64
}

// NewIntake builds an intake over Catalogue. An empty policy rejects unknown fields.
func NewIntake(policy UnknownFieldPolicy, defaultConfidence float64) *Intake {
	fields := make(map[string]Field, len(Catalogue))
	for _, f := range Catalogue {
		fields[f.Name] = f
	}
	if policy == "" {
		policy = UnknownFieldsReject
	}
	return &Intake{fields: fields, policy: policy, defaultConfidence: defaultConfidence}
}

// Validate checks the payload shape and the confidence, then folds derived
// keys into canonical ones. Any invalid field rejects the whole payload.
// Keys are checked in sorted order so the reported field is deterministic.
func (in *Intake) Validate(payload map[string]any, confidence *float64) (Accepted, error) {
	if len(payload) == 0 {
		return Accepted{}, invalidValue("measurements", "no measurements supplied")
	}

	values := make(map[string]float64, len(payload))
	for _, raw := range slices.Sorted(maps.Keys(payload)) {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			return Accepted{}, invalidValue(raw, "empty field name")
		}
		v, ok := toFloat(payload[raw])
		if !ok {
			return Accepted{}, invalidValue(key, "not a number")
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Accepted{}, invalidValue(key, "not a finite number")
		}
		if v <= 0 {
			return Accepted{}, invalidValue(key, "must be positive")
		}
		if !in.known(key) && in.policy == UnknownFieldsReject {
			return Accepted{}, invalidValue(key, "unknown field")
		}
		if _, dup := values[key]; dup {
			return Accepted{}, invalidValue(key, "duplicate field")
		}
		values[key] = v
	}

	conf := in.defaultConfidence
	if confidence != nil {
		c := *confidence
		if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 || c > 1 {
			return Accepted{}, invalidValue("confidence", "must be within [0, 1]")
		}
		conf = c
	}

	foldHeight(values)
	return Accepted{Values: values, Confidence: conf}, nil
}

// Check applies body bounds to recognized fields. A failure here means the
// payload was well formed but could not come from a real measurement.
func (in *Intake) Check(values map[string]float64) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		f, ok := in.fields[key]
		if !ok {
			continue
		}
		if v := values[key]; v < f.Min || v > f.Max {
			return implausibleValue(key, fmt.Sprintf("%.1f cm outside %.0f..%.0f", v, f.Min, f.Max))
		}
	}
	return nil
}

func (in *Intake) known(key string) bool {
	if _, ok := in.fields[key]; ok {
		return true
	}
	return slices.ContainsFunc(heightSources, func(h heightSource) bool { return h.key == key })
}

// foldHeight moves derived height keys onto HeightField. An explicit height wins.
func foldHeight(values map[string]float64) {
	_, explicit := values[HeightField]
	for _, src := range heightSources {
		v, ok := values[src.key]
		if !ok {
			continue
		}
		delete(values, src.key)
		if explicit {
			continue
		}
		values[HeightField] = math.Round(v*src.factor*100) / 100
		explicit = true
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		// Out of range literals parse to ±Inf and are reported as not finite.
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil || errors.Is(err, strconv.ErrRange)
	}
	return 0, false
}
