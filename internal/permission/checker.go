// Package permission answers whether a user's grants satisfy a set of
// required permissions.
package permission

import (
	"context"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/console/internal/cache"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:generate mockgen -source=checker.go -destination=mock/checker_mock.go -package=mock

// Checker is the permission-check collaborator used by the settings menu.
type Checker interface {
	// HasPermissions reports whether granted satisfies every entry of
	// required. An empty required list is always satisfied.
	HasPermissions(ctx context.Context, userID snowflake.ID, granted, required []rbacdomain.Permission) (bool, error)
}

// ConditionEvaluator decides conditional grants on the server side.
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, userID snowflake.ID, required rbacdomain.Permission) (bool, error)
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Evaluator ConditionEvaluator
	Cache     cache.DecisionCache `optional:"true"`
	Metrics   Recorder            `optional:"true"`
}

// Recorder receives check outcomes. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordPermissionCheck(ctx context.Context, outcome string)
}

type checker struct {
	log       *zap.Logger
	evaluator ConditionEvaluator
	cache     cache.DecisionCache
	metrics   Recorder
}

func NewChecker(p Params) Checker {
	return &checker{
		log:       p.Log.Named("permission.checker"),
		evaluator: p.Evaluator,
		cache:     p.Cache,
		metrics:   p.Metrics,
	}
}

func (c *checker) HasPermissions(ctx context.Context, userID snowflake.ID, granted, required []rbacdomain.Permission) (bool, error) {
	if len(required) == 0 {
		return true, nil
	}

	for _, req := range required {
		ok, err := c.satisfies(ctx, userID, granted, req)
		if err != nil {
			c.record(ctx, "error")
			return false, err
		}
		if !ok {
			c.record(ctx, "denied")
			return false, nil
		}
	}
	c.record(ctx, "allowed")
	return true, nil
}

func (c *checker) satisfies(ctx context.Context, userID snowflake.ID, granted []rbacdomain.Permission, req rbacdomain.Permission) (bool, error) {
	matching := make([]rbacdomain.Permission, 0, 1)
	conditional := false
	for _, perm := range granted {
		if !perm.Matches(req) {
			continue
		}
		matching = append(matching, perm)
		if len(perm.Conditions) > 0 {
			conditional = true
		}
	}

	if len(matching) == 0 {
		return false, nil
	}
	if !conditional {
		return true, nil
	}
	if c.evaluator == nil {
		return false, ErrEvaluatorMissing
	}

	key := decisionKey(userID, req, matching)
	if c.cache != nil {
		allowed, found, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Warn("permission cache read failed", zap.Error(err))
		} else if found {
			return allowed, nil
		}
	}

	allowed, err := c.evaluator.Evaluate(ctx, userID, req)
	if err != nil {
		return false, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, allowed); err != nil {
			c.log.Warn("permission cache write failed", zap.Error(err))
		}
	}
	return allowed, nil
}

func (c *checker) record(ctx context.Context, outcome string) {
	if c.metrics != nil {
		c.metrics.RecordPermissionCheck(ctx, outcome)
	}
}

// decisionKey includes the matching grants so a role change yields a new key
// instead of a stale answer.
func decisionKey(userID snowflake.ID, req rbacdomain.Permission, matching []rbacdomain.Permission) string {
	conditions := make([]string, 0, len(matching))
	for _, perm := range matching {
		conditions = append(conditions, strings.Join(perm.Conditions, ","))
	}
	slices.Sort(conditions)

	subject := ""
	if req.Subject != nil {
		subject = *req.Subject
	}
	return cache.Key(userID.String(), req.Action, subject, strings.Join(conditions, ";"))
}
