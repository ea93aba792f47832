package limits

import (
	"context"
	"errors"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Source loads the plan catalogue.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// InMemSource serves a fixed set of plans.
type InMemSource map[string]Plan

func (s InMemSource) Load(context.Context) (map[string]Plan, error) {
	out := make(map[string]Plan, len(s))
	for id, p := range s {
		out[id] = clonePlan(p)
	}
	return out, nil
}

// FileSource reads plans from a YAML document of the form:
//
//	plans:
//	  - id: free
//	    limits: {capture_sessions: 20, clients: 50}
//	    features: [guest_capture]
type FileSource struct {
	Path string
}

func (s FileSource) Load(context.Context) (map[string]Plan, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return ParseYAML(raw)
}

// ParseYAML decodes a plan catalogue document.
func ParseYAML(raw []byte) (map[string]Plan, error) {
	var doc struct {
		Plans []Plan `yaml:"plans"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	out := make(map[string]Plan, len(doc.Plans))
	for _, p := range doc.Plans {
		if p.ID == "" {
			return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("plan without id"))
		}
		if _, dup := out[p.ID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("duplicate plan "+p.ID))
		}
		out[p.ID] = p
	}
	return out, nil
}

func clonePlan(p Plan) Plan {
	p.Limits = maps.Clone(p.Limits)
	p.Features = slices.Clone(p.Features)
	return p
}
