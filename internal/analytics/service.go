package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/access"
	"github.com/pulsemetrics/analytics-gateway/internal/audit"
	"github.com/pulsemetrics/analytics-gateway/internal/cache"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
	"github.com/pulsemetrics/analytics-gateway/internal/obs"
	"github.com/pulsemetrics/analytics-gateway/internal/warehouse"
)

// AccessResolver computes the caller's access decision.
type AccessResolver interface {
	Resolve(ctx context.Context, req access.Request) (*access.Decision, error)
}

// WarehouseExecutor runs a parameterized query against the warehouse.
type WarehouseExecutor interface {
	Execute(ctx context.Context, q warehouse.Query) ([]warehouse.Row, error)
}

// cachedResult is the payload stored in the result cache. The response-level
// cacheHit flag lives outside it so the cached value stays identical across
// reads.
type cachedResult struct {
	Rows              []warehouse.Row
	OrganizationScope []string
	AppIDs            []string
	QueryDurationMs   int64
}

// Service orchestrates a gateway request: resolve access, plan the query,
// consult the cache, call the warehouse on a miss, and audit the outcome.
// It is stateless per request; the cache is the only shared mutable state.
type Service struct {
	resolver  AccessResolver
	planner   *Planner
	cache     *cache.ResultCache
	warehouse WarehouseExecutor
	sink      audit.Sink
	cacheTTL  time.Duration
	logger    *slog.Logger
}

func NewService(resolver AccessResolver, planner *Planner, resultCache *cache.ResultCache, executor WarehouseExecutor, sink audit.Sink, cacheTTL time.Duration, logger *slog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		planner:   planner,
		cache:     resultCache,
		warehouse: executor,
		sink:      sink,
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// Query drives a single request end to end. Exactly one audit record is
// written per terminal state; cache and warehouse are skipped entirely when
// resolution fails.
func (s *Service) Query(ctx context.Context, id *identity.Identity, dto QueryRequestDTO) (*QueryResponse, error) {
	start := time.Now()

	userID := ""
	if id != nil {
		userID = id.UserID
	}

	tr, appErr := dto.ParseTimeRange()
	if appErr != nil {
		s.audit(ctx, userID, nil, nil, audit.OutcomeDenied, start, false)
		return nil, appErr
	}

	decision, err := s.resolver.Resolve(ctx, access.Request{
		Identity:                id,
		RequestedOrganizationID: dto.OrganizationID,
		AppIDs:                  dto.AppIDs,
	})
	if err != nil {
		s.audit(ctx, userID, nil, dto.AppIDs, resolveOutcome(err), start, false)
		return nil, err
	}

	query, fp, err := s.planner.Plan(decision, tr, dto.Filters)
	if err != nil {
		s.audit(ctx, userID, decision.OrganizationScope, decision.AppIDs, audit.OutcomeDenied, start, false)
		return nil, err
	}

	if payload, ok := s.cache.Get(fp); ok {
		if cached, ok := payload.(*cachedResult); ok {
			obs.RecordCacheLookup(true)
			s.audit(ctx, userID, cached.OrganizationScope, cached.AppIDs, audit.OutcomeSuccess, start, true)
			return &QueryResponse{
				Rows: cached.Rows,
				Meta: ResponseMeta{
					OrganizationScope: cached.OrganizationScope,
					AppIDsResolved:    cached.AppIDs,
					CacheHit:          true,
					QueryDurationMs:   cached.QueryDurationMs,
				},
			}, nil
		}
	}
	obs.RecordCacheLookup(false)

	queryStart := time.Now()
	rows, err := s.warehouse.Execute(ctx, query)
	queryDuration := time.Since(queryStart)

	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			s.logger.Info("warehouse query abandoned, caller disconnected",
				"user_id", userID,
				"fingerprint", fp)
			s.audit(ctx, userID, decision.OrganizationScope, decision.AppIDs, audit.OutcomeCancelled, start, false)
			return nil, internal.NewUpstreamError("request cancelled", err)
		}
		s.logger.Error("warehouse query failed",
			"error", err,
			"user_id", userID,
			"organization_scope", decision.OrganizationScope)
		s.audit(ctx, userID, decision.OrganizationScope, decision.AppIDs, audit.OutcomeError, start, false)
		return nil, internal.NewUpstreamError("warehouse query failed", err)
	}

	obs.RecordWarehouseQuery(queryDuration)

	result := &cachedResult{
		Rows:              rows,
		OrganizationScope: decision.OrganizationScope,
		AppIDs:            decision.AppIDs,
		QueryDurationMs:   queryDuration.Milliseconds(),
	}
	s.cache.Put(fp, result, s.cacheTTL)

	s.audit(ctx, userID, decision.OrganizationScope, decision.AppIDs, audit.OutcomeSuccess, start, false)

	s.logger.Info("analytics query served",
		"user_id", userID,
		"organization_scope", decision.OrganizationScope,
		"app_count", len(decision.AppIDs),
		"rows", len(rows),
		"query_duration_ms", queryDuration.Milliseconds())

	return &QueryResponse{
		Rows: rows,
		Meta: ResponseMeta{
			OrganizationScope: decision.OrganizationScope,
			AppIDsResolved:    decision.AppIDs,
			CacheHit:          false,
			QueryDurationMs:   queryDuration.Milliseconds(),
		},
	}, nil
}

// resolveOutcome separates access decisions from infrastructure faults in
// the audit trail. A store that cannot answer is an error, not a denial.
func resolveOutcome(err error) string {
	if appErr, ok := internal.IsAppError(err); ok {
		switch appErr.Type {
		case internal.ErrorTypeInternal, internal.ErrorTypeExternal:
			return audit.OutcomeError
		default:
			return audit.OutcomeDenied
		}
	}
	return audit.OutcomeError
}

// audit writes the terminal record for this request. Sink failures are
// logged and swallowed; audit is best-effort relative to the response.
func (s *Service) audit(ctx context.Context, userID string, orgScope, appIDs []string, outcome string, start time.Time, cacheHit bool) {
	obs.RecordGatewayOutcome(outcome)

	record := audit.Record{
		ID:                uuid.NewString(),
		Timestamp:         time.Now().UTC(),
		RequestID:         internal.TraceIDFromContext(ctx),
		UserID:            userID,
		OrganizationScope: orgScope,
		AppIDs:            appIDs,
		Outcome:           outcome,
		LatencyMs:         time.Since(start).Milliseconds(),
		CacheHit:          cacheHit,
	}

	if err := s.sink.Append(ctx, record); err != nil {
		s.logger.Error("audit append failed", "error", err, "record_id", record.ID)
	}
}
