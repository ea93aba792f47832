package limits

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// CounterFunc returns current usage of a resource for an owner.
type CounterFunc func(ctx context.Context, ownerID uuid.UUID) (int64, error)

// Service checks owners against their plan.
type Service struct {
	plans       map[string]Plan
	counters    map[Resource]CounterFunc
	defaultPlan string
}

// Option configures the Service.
type Option func(*Service)

// WithCounter registers the usage counter for res.
func WithCounter(res Resource, fn CounterFunc) Option {
	if fn == nil {
		panic(fmt.Sprintf("limits: nil counter for resource %q", res))
	}
	return func(s *Service) { s.counters[res] = fn }
}

// WithDefaultPlan sets the plan used when the context carries none.
func WithDefaultPlan(planID string) Option {
	return func(s *Service) { s.defaultPlan = planID }
}

// NewService loads the plan catalogue from src.
func NewService(ctx context.Context, src Source, opts ...Option) (*Service, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	for id, p := range plans {
		for res, limit := range p.Limits {
			if limit < Unlimited {
				return nil, fmt.Errorf("%w: plan %q resource %q has negative limit %d",
					ErrInvalidPlanConfiguration, id, res, limit)
			}
		}
	}

	s := &Service{plans: plans, counters: make(map[Resource]CounterFunc)}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultPlan != "" {
		if _, ok := plans[s.defaultPlan]; !ok {
			return nil, errors.Join(ErrPlanNotFound, fmt.Errorf("default plan %q", s.defaultPlan))
		}
	}
	return s, nil
}

// CanCreate returns ErrLimitExceeded when the owner has used the whole
// allowance of res. Resources missing from the plan are unrestricted.
func (s *Service) CanCreate(ctx context.Context, ownerID uuid.UUID, res Resource) error {
	usage, err := s.Usage(ctx, ownerID, res)
	if err != nil {
		return err
	}
	if usage.Limit != Unlimited && usage.Current >= usage.Limit {
		return ErrLimitExceeded
	}
	return nil
}

// Usage reports current consumption. The counter is not called for
// unlimited resources.
func (s *Service) Usage(ctx context.Context, ownerID uuid.UUID, res Resource) (Usage, error) {
	plan, err := s.plan(ctx)
	if err != nil {
		return Usage{}, err
	}
	limit, ok := plan.Limits[res]
	if !ok || limit == Unlimited {
		return Usage{Limit: Unlimited}, nil
	}
	counter, ok := s.counters[res]
	if !ok {
		return Usage{}, ErrNoCounterRegistered
	}
	current, err := counter(ctx, ownerID)
	if err != nil {
		return Usage{}, errors.Join(ErrFailedToCountResourceUsage, err)
	}
	return Usage{Current: current, Limit: limit}, nil
}

// HasFeature reports whether the caller's plan enables f. Unknown plans have
// no features.
func (s *Service) HasFeature(ctx context.Context, f Feature) bool {
	plan, err := s.plan(ctx)
	if err != nil {
		return false
	}
	return slices.Contains(plan.Features, f)
}

// Plan returns the plan by id.
func (s *Service) Plan(id string) (Plan, bool) {
	p, ok := s.plans[id]
	if !ok {
		return Plan{}, false
	}
	return clonePlan(p), true
}

func (s *Service) plan(ctx context.Context) (Plan, error) {
	id, ok := PlanIDFromContext(ctx)
	if !ok {
		if s.defaultPlan == "" {
			return Plan{}, ErrPlanIDNotInContext
		}
		id = s.defaultPlan
	}
	p, ok := s.plans[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}
