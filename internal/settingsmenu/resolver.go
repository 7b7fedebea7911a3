package settingsmenu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/console/internal/observability/metrics"
	"github.com/smallbiznis/console/internal/permission"
	rbacdomain "github.com/smallbiznis/console/internal/rbac/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultCheckLimit   = 8
	defaultCheckTimeout = 5 * time.Second
)

// Input is everything one resolution pass depends on.
type Input struct {
	UserID  snowflake.ID
	Granted []rbacdomain.Permission
	// Links is the merged community and enterprise link set.
	Links    Links
	Registry Snapshot
	// ShouldUpdate decorates the overview link with a notification.
	ShouldUpdate bool
	Edition      string
}

// Resolver turns an Input into a Menu.
type Resolver struct {
	log      *zap.Logger
	checker  permission.Checker
	limit    int
	timeout  time.Duration
	metrics  *metrics.MenuMetrics
	recorder *metrics.Metrics
	tracer   trace.Tracer
}

type ResolverOption func(*Resolver)

// WithCheckLimit bounds the number of permission checks in flight.
func WithCheckLimit(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.limit = n
		}
	}
}

// WithCheckTimeout bounds each permission check.
func WithCheckTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithMenuMetrics(m *metrics.MenuMetrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithRecorder(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.recorder = m
	}
}

func NewResolver(log *zap.Logger, checker permission.Checker, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		log:     log.Named("settingsmenu.resolver"),
		checker: checker,
		limit:   defaultCheckLimit,
		timeout: defaultCheckTimeout,
		tracer:  otel.Tracer("console/settingsmenu"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Build assembles the ordered sections and attaches required permissions:
// the global section, the administration panel, then plugin sections in
// registration order. Every link starts not displayed. A link without id
// fails the whole build.
func (r *Resolver) Build(in Input) ([]Section, error) {
	global := make([]Link, 0, len(in.Registry.Global)+len(in.Links.Global))
	global = append(global, cloneLinks(in.Registry.Global)...)
	global = append(global, cloneLinks(in.Links.Global)...)

	sections := make([]Section, 0, 2+len(in.Registry.Sections))
	sections = append(sections,
		Section{ID: GlobalSectionID, IntlLabel: globalSectionLabel, Links: global},
		Section{ID: PermissionsSectionID, IntlLabel: adminSectionLabel, Links: cloneLinks(in.Links.Admin)},
	)
	sections = append(sections, cloneSections(in.Registry.Sections)...)

	for si := range sections {
		if sections[si].Links == nil {
			sections[si].Links = []Link{}
		}
		for li := range sections[si].Links {
			link := &sections[si].Links[li]
			if strings.TrimSpace(link.ID) == "" {
				return nil, fmt.Errorf("%w: section %q link %d (to %q)", ErrMissingLinkID, sections[si].ID, li, link.To)
			}
			if perms, ok := in.Registry.Permissions[link.ID]; ok {
				link.Permissions = clonePermissions(perms)
			}
			if link.Permissions == nil {
				link.Permissions = []rbacdomain.Permission{}
			}
			link.IsDisplayed = false
			link.HasNotification = false
		}
	}
	return sections, nil
}

// Check runs one permission check per link and waits for all of them. A
// failed check hides only its own link. The returned sections are a new
// value; the argument is not modified.
func (r *Resolver) Check(ctx context.Context, sections []Section, in Input) []Section {
	ctx, span := r.tracer.Start(ctx, "settingsmenu.check",
		trace.WithAttributes(attribute.Int("settingsmenu.sections", len(sections))),
	)
	defer span.End()

	start := time.Now()
	r.metrics.ResolveStarted()
	defer r.metrics.ResolveFinished()

	out := cloneSections(sections)
	type result struct {
		allowed bool
		err     error
	}
	results := make([][]result, len(out))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for si := range out {
		results[si] = make([]result, len(out[si].Links))
		for li := range out[si].Links {
			link := out[si].Links[li]
			g.Go(func() error {
				checkCtx, cancel := context.WithTimeout(gctx, r.timeout)
				defer cancel()
				allowed, err := r.checker.HasPermissions(checkCtx, in.UserID, in.Granted, link.Permissions)
				results[si][li] = result{allowed: allowed, err: err}
				return nil
			})
		}
	}
	_ = g.Wait()

	failed := 0
	for si := range out {
		for li := range out[si].Links {
			link := &out[si].Links[li]
			res := results[si][li]
			switch {
			case res.err != nil:
				failed++
				r.metrics.IncLinkCheck("error")
				r.log.Warn("permission check failed, hiding link",
					zap.String("section", out[si].ID),
					zap.String("link", link.ID),
					zap.Error(res.err),
				)
			case res.allowed:
				link.IsDisplayed = true
				r.metrics.IncLinkCheck("allowed")
			default:
				r.metrics.IncLinkCheck("denied")
			}
			link.HasNotification = link.ID == ApplicationInfosLinkID && in.ShouldUpdate
		}
	}
	outcome := "ok"
	if failed > 0 {
		outcome = "degraded"
		span.SetStatus(codes.Error, "permission checks failed")
		span.SetAttributes(attribute.Int("settingsmenu.failed_checks", failed))
	}
	if ctx.Err() != nil {
		outcome = "cancelled"
	}
	r.metrics.ObserveResolve(in.Edition, outcome, time.Since(start))
	r.recorder.RecordMenuResolution(ctx, in.Edition, outcome)
	return out
}

// Resolve builds and checks in one call.
func (r *Resolver) Resolve(ctx context.Context, in Input) (Menu, error) {
	sections, err := r.Build(in)
	if err != nil {
		return Menu{}, err
	}
	return Menu{Sections: r.Check(ctx, sections, in)}, nil
}
