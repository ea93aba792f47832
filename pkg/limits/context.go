package limits

import "context"

type planIDCtxKey struct{}

// WithPlanID stores the caller's plan id in ctx.
func WithPlanID(ctx context.Context, planID string) context.Context {
	return context.WithValue(ctx, planIDCtxKey{}, planID)
}

// PlanIDFromContext returns the plan id stored by WithPlanID.
func PlanIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(planIDCtxKey{}).(string)
	return id, ok && id != ""
}
