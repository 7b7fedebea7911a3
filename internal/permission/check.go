package permission

import (
	"context"

	"github.com/bwmarrin/snowflake"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
)

// CheckEach answers every permission independently, in order.
func CheckEach(ctx context.Context, checker Checker, userID snowflake.ID, granted, perms []rbacdomain.Permission) ([]bool, error) {
	answers := make([]bool, len(perms))
	for i, perm := range perms {
		ok, err := checker.HasPermissions(ctx, userID, granted, []rbacdomain.Permission{perm})
		if err != nil {
			return nil, err
		}
		answers[i] = ok
	}
	return answers, nil
}
