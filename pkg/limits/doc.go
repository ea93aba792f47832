// Package limits enforces per-plan resource quotas and feature flags for
// designers (owners). Plans come from a Source, either in memory or a YAML file;
// the active plan id is read from the request context, usually placed there by
// the auth middleware from the token's plan claim.
//
//	svc, _ := limits.NewService(ctx, limits.FileSource{Path: "plans.yaml"},
//	    limits.WithCounter(limits.ResourceCaptureSessions, store.CountIssuedThisMonth),
//	)
//	if err := svc.CanCreate(ctx, ownerID, limits.ResourceCaptureSessions); err != nil {
//	    // limits.ErrLimitExceeded
//	}
package limits
