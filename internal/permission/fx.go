package permission

import (
	"github.com/smallbiznis/console/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("permission",
	fx.Provide(func(m *metrics.Metrics) Recorder { return m }),
	fx.Provide(NewEvaluator),
	fx.Provide(NewChecker),
)
