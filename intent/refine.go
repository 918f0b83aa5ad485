package intent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sr-robotics/srcore/policy"
)

// Blend weights for policy refinement: the parsed intent stays dominant.
const (
	baseWeight   = 0.7
	policyWeight = 0.3
)

// Refiner optionally blends parsed actions with a learned policy's
// prediction. It is pure with respect to device state.
type Refiner struct {
	policy policy.Policy
	logger *zap.Logger
}

func NewRefiner(p policy.Policy, logger *zap.Logger) *Refiner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refiner{policy: p, logger: logger}
}

// Refine consults the policy and, when it returns at least one action of
// the same type, blends values element-wise at 0.7 base / 0.3 policy with
// averaged confidence and a fresh timestamp. Any other outcome passes the
// base action through unchanged.
func (r *Refiner) Refine(ctx context.Context, base policy.Action, obs policy.Observation) policy.Action {
	if r.policy == nil {
		return base
	}

	result, err := r.policy.Predict(ctx, obs)
	if err != nil {
		r.logger.Warn("policy prediction failed, using base action", zap.Error(err))
		return base
	}
	if len(result.Actions) == 0 {
		return base
	}

	predicted := result.Actions[0]
	if predicted.Type != base.Type {
		return base
	}

	n := len(base.Values)
	if len(predicted.Values) < n {
		n = len(predicted.Values)
	}
	refined := make([]float64, n)
	for i := 0; i < n; i++ {
		refined[i] = base.Values[i]*baseWeight + predicted.Values[i]*policyWeight
	}

	return policy.Action{
		Type:       base.Type,
		Values:     refined,
		Confidence: (base.Confidence + predicted.Confidence) / 2,
		Timestamp:  float64(time.Now().UnixNano()) / 1e9,
	}
}
