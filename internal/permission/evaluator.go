package permission

import (
	"context"

	"github.com/bwmarrin/snowflake"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ConditionFunc evaluates one named condition for a user.
type ConditionFunc func(ctx context.Context, userID snowflake.ID) (bool, error)

func always(context.Context, snowflake.ID) (bool, error) { return true, nil }

// DefaultConditions are the built-in conditions. Navigation is not tied to
// an entity, so both are met whenever the grant exists.
func DefaultConditions() map[string]ConditionFunc {
	return map[string]ConditionFunc{
		rbacdomain.ConditionIsCreator:            always,
		rbacdomain.ConditionHasSameRoleAsCreator: always,
	}
}

type EvaluatorParams struct {
	fx.In

	Log  *zap.Logger
	RBAC rbacdomain.Service
}

type evaluator struct {
	log        *zap.Logger
	rbac       rbacdomain.Service
	conditions map[string]ConditionFunc
}

func NewEvaluator(p EvaluatorParams) ConditionEvaluator {
	return NewEvaluatorWithConditions(p.Log, p.RBAC, DefaultConditions())
}

func NewEvaluatorWithConditions(log *zap.Logger, rbac rbacdomain.Service, conditions map[string]ConditionFunc) ConditionEvaluator {
	return &evaluator{
		log:        log.Named("permission.evaluator"),
		rbac:       rbac,
		conditions: conditions,
	}
}

// Evaluate enforces the grant through the role store, then requires one
// matching grant to be unconditional or to have a condition that holds.
func (e *evaluator) Evaluate(ctx context.Context, userID snowflake.ID, required rbacdomain.Permission) (bool, error) {
	allowed, err := e.rbac.Enforce(ctx, userID, required.Action, required.Subject)
	if err != nil || !allowed {
		return false, err
	}

	perms, err := e.rbac.AllPermissions(ctx, userID)
	if err != nil {
		return false, err
	}

	for _, perm := range perms {
		if !perm.Matches(required) {
			continue
		}
		if len(perm.Conditions) == 0 {
			return true, nil
		}
		for _, name := range perm.Conditions {
			fn, ok := e.conditions[name]
			if !ok {
				e.log.Warn("skipping condition",
					zap.String("condition", name),
					zap.String("action", required.Action),
					zap.Error(ErrUnknownCondition),
				)
				continue
			}
			met, err := fn(ctx, userID)
			if err != nil {
				return false, err
			}
			if met {
				return true, nil
			}
		}
	}
	return false, nil
}
