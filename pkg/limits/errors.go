package limits

import "errors"

var (
	ErrPlanNotFound               = errors.New("limits.plan_not_found")
	ErrPlanIDNotInContext         = errors.New("limits.plan_id_not_in_context")
	ErrInvalidPlanConfiguration   = errors.New("limits.invalid_plan_configuration")
	ErrLimitExceeded              = errors.New("limits.limit_exceeded")
	ErrNoCounterRegistered        = errors.New("limits.no_counter_registered")
	ErrFailedToLoadPlans          = errors.New("limits.failed_to_load_plans")
	ErrFailedToCountResourceUsage = errors.New("limits.failed_to_count_resource_usage")
)
