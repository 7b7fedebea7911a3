package permission

import "errors"

var (
	ErrEvaluatorMissing = errors.New("condition_evaluator_missing")
	ErrUnknownCondition = errors.New("unknown_condition")
)
