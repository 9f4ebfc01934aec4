package analytics

import (
	"time"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/warehouse"
)

const dateLayout = "2006-01-02"

type TimeRangeDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DimensionFilters narrow the returned dataset by dimension. Filtering
// happens after retrieval on the caller side; filters never reach the
// warehouse query or the cache fingerprint.
type DimensionFilters struct {
	Channel string `json:"channel,omitempty"`
}

type QueryRequestDTO struct {
	OrganizationID string           `json:"organizationId,omitempty"`
	TimeRange      TimeRangeDTO     `json:"timeRange"`
	AppIDs         []string         `json:"appIds,omitempty"`
	Filters        DimensionFilters `json:"filters,omitempty"`
}

// ParseTimeRange validates and parses the requested interval. Dates are
// interpreted as UTC calendar days; start must not be after end.
func (d *QueryRequestDTO) ParseTimeRange() (TimeRange, *internal.AppError) {
	if d.TimeRange.Start == "" || d.TimeRange.End == "" {
		return TimeRange{}, internal.NewValidationError("timeRange start and end are required", internal.ErrCodeInvalidRange)
	}

	start, err := time.ParseInLocation(dateLayout, d.TimeRange.Start, time.UTC)
	if err != nil {
		return TimeRange{}, internal.NewValidationError("timeRange.start must be a YYYY-MM-DD date", internal.ErrCodeInvalidRange)
	}
	end, err := time.ParseInLocation(dateLayout, d.TimeRange.End, time.UTC)
	if err != nil {
		return TimeRange{}, internal.NewValidationError("timeRange.end must be a YYYY-MM-DD date", internal.ErrCodeInvalidRange)
	}

	if start.After(end) {
		return TimeRange{}, internal.ErrInvalidRange
	}

	return TimeRange{Start: start, End: end}, nil
}

type ResponseMeta struct {
	OrganizationScope []string `json:"organizationScope"`
	AppIDsResolved    []string `json:"appIdsResolved"`
	CacheHit          bool     `json:"cacheHit"`
	QueryDurationMs   int64    `json:"queryDurationMs"`
}

type QueryResponse struct {
	Rows []warehouse.Row `json:"rows"`
	Meta ResponseMeta    `json:"meta"`
}

// ErrorResponse is the opaque wire envelope for every failure.
type ErrorResponse struct {
	Error string `json:"error"`
}
