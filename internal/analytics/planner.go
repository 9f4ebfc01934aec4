package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/access"
	"github.com/pulsemetrics/analytics-gateway/internal/warehouse"
)

// TimeRange is a closed interval of UTC calendar days.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Normalize truncates both bounds to UTC midnight so equivalent ranges
// always fingerprint identically.
func (tr TimeRange) Normalize() TimeRange {
	return TimeRange{
		Start: tr.Start.UTC().Truncate(24 * time.Hour),
		End:   tr.End.UTC().Truncate(24 * time.Hour),
	}
}

const metricsQuery = `
SELECT app_id, metric_date, channel, sessions, conversions, revenue_cents
FROM app_daily_metrics
WHERE app_id IN (?)
  AND metric_date BETWEEN ? AND ?
ORDER BY metric_date, app_id, channel`

// Planner turns a validated access decision and time range into one
// parameterized warehouse query plus a cache fingerprint. It is a pure
// function of its inputs and holds no store dependency.
type Planner struct{}

func NewPlanner() *Planner {
	return &Planner{}
}

// Plan builds the warehouse query and fingerprint. Dimension filters are
// deliberately absent from both: the planner always requests the full
// dataset for the resolved scope and range, so toggling a filter on the
// caller side keeps hitting the same cache entry.
func (p *Planner) Plan(decision *access.Decision, tr TimeRange, _ DimensionFilters) (warehouse.Query, string, error) {
	if tr.Start.After(tr.End) {
		return warehouse.Query{}, "", internal.ErrInvalidRange
	}
	if decision == nil || len(decision.AppIDs) == 0 {
		return warehouse.Query{}, "", internal.ErrAccessDenied
	}

	norm := tr.Normalize()

	sql, args, err := sqlx.In(metricsQuery, decision.AppIDs, norm.Start, norm.End)
	if err != nil {
		return warehouse.Query{}, "", internal.NewInternalError("failed to build warehouse query", err)
	}

	return warehouse.Query{SQL: sql, Args: args}, fingerprint(decision, norm), nil
}

// fingerprint hashes sorted scope sets and the normalized range. The value
// never depends on request arrival order or on dimension filters.
func fingerprint(decision *access.Decision, tr TimeRange) string {
	orgs := append([]string(nil), decision.OrganizationScope...)
	apps := append([]string(nil), decision.AppIDs...)
	sort.Strings(orgs)
	sort.Strings(apps)

	canonical := fmt.Sprintf("orgs=%s|apps=%s|start=%s|end=%s",
		strings.Join(orgs, ","),
		strings.Join(apps, ","),
		tr.Start.Format(dateLayout),
		tr.End.Format(dateLayout),
	)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
