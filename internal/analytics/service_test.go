package analytics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/access"
	"github.com/pulsemetrics/analytics-gateway/internal/audit"
	"github.com/pulsemetrics/analytics-gateway/internal/cache"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
	"github.com/pulsemetrics/analytics-gateway/internal/warehouse"
)

// Mock access resolver for testing
type mockResolver struct {
	decision      *access.Decision
	errorToReturn error
	calls         int
}

func (m *mockResolver) Resolve(_ context.Context, _ access.Request) (*access.Decision, error) {
	m.calls++
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	return m.decision, nil
}

// Mock warehouse executor counting calls
type mockWarehouse struct {
	rows          []warehouse.Row
	errorToReturn error
	calls         int
}

func (m *mockWarehouse) Execute(_ context.Context, _ warehouse.Query) ([]warehouse.Row, error) {
	m.calls++
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	return m.rows, nil
}

// Mock audit sink recording every appended record
type mockSink struct {
	records       []audit.Record
	errorToReturn error
}

func (m *mockSink) Append(_ context.Context, record audit.Record) error {
	m.records = append(m.records, record)
	return m.errorToReturn
}

func (m *mockSink) lastOutcome() string {
	if len(m.records) == 0 {
		return ""
	}
	return m.records[len(m.records)-1].Outcome
}

var _ = ginkgo.Describe("Service", func() {
	var (
		service     *Service
		resolver    *mockResolver
		executor    *mockWarehouse
		sink        *mockSink
		resultCache *cache.ResultCache
		ctx         context.Context
		id          *identity.Identity
		dto         QueryRequestDTO
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		id = &identity.Identity{UserID: "dana"}

		resolver = &mockResolver{
			decision: &access.Decision{
				OrganizationScope: []string{"org-a", "org-b"},
				AppIDs:            []string{"app-1", "app-2"},
				Privilege:         access.PrivilegeMember,
			},
		}
		executor = &mockWarehouse{
			rows: []warehouse.Row{
				{AppID: "app-1", MetricDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Channel: "organic", Sessions: 120, Conversions: 4, RevenueCents: 1900},
				{AppID: "app-2", MetricDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Channel: "paid", Sessions: 80, Conversions: 2, RevenueCents: 990},
			},
		}
		sink = &mockSink{}
		resultCache = cache.New(16, slog.Default())

		service = NewService(resolver, NewPlanner(), resultCache, executor, sink, time.Minute, slog.Default())

		dto = QueryRequestDTO{
			TimeRange: TimeRangeDTO{Start: "2026-03-01", End: "2026-03-07"},
		}
	})

	ginkgo.Describe("Query", func() {
		ginkgo.Context("on a cache miss", func() {
			ginkgo.It("should call the warehouse and return scoped rows", func() {
				resp, err := service.Query(ctx, id, dto)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(executor.calls).To(gomega.Equal(1))
				gomega.Expect(resp.Rows).To(gomega.HaveLen(2))
				gomega.Expect(resp.Meta.CacheHit).To(gomega.BeFalse())
				gomega.Expect(resp.Meta.OrganizationScope).To(gomega.Equal([]string{"org-a", "org-b"}))
				gomega.Expect(resp.Meta.AppIDsResolved).To(gomega.Equal([]string{"app-1", "app-2"}))
			})

			ginkgo.It("should audit a success record", func() {
				_, err := service.Query(ctx, id, dto)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(sink.records).To(gomega.HaveLen(1))
				gomega.Expect(sink.records[0].Outcome).To(gomega.Equal(audit.OutcomeSuccess))
				gomega.Expect(sink.records[0].UserID).To(gomega.Equal("dana"))
				gomega.Expect(sink.records[0].CacheHit).To(gomega.BeFalse())
			})
		})

		ginkgo.Context("on a repeated identical request", func() {
			ginkgo.It("should serve from cache without a second warehouse call", func() {
				first, err := service.Query(ctx, id, dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				second, err := service.Query(ctx, id, dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				gomega.Expect(executor.calls).To(gomega.Equal(1))
				gomega.Expect(second.Rows).To(gomega.Equal(first.Rows))
				gomega.Expect(second.Meta.CacheHit).To(gomega.BeTrue())
				gomega.Expect(sink.lastOutcome()).To(gomega.Equal(audit.OutcomeSuccess))
				gomega.Expect(sink.records[1].CacheHit).To(gomega.BeTrue())
			})

			ginkgo.It("should hit the same entry when only dimension filters differ", func() {
				_, err := service.Query(ctx, id, dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())

				filtered := dto
				filtered.Filters = DimensionFilters{Channel: "organic"}
				resp, err := service.Query(ctx, id, filtered)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(executor.calls).To(gomega.Equal(1))
				gomega.Expect(resp.Meta.CacheHit).To(gomega.BeTrue())
			})
		})

		ginkgo.Context("when the time range is invalid", func() {
			ginkgo.It("should fail before touching resolver or warehouse", func() {
				dto.TimeRange = TimeRangeDTO{Start: "2026-03-07", End: "2026-03-01"}

				resp, err := service.Query(ctx, id, dto)

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(resp).To(gomega.BeNil())
				gomega.Expect(resolver.calls).To(gomega.Equal(0))
				gomega.Expect(executor.calls).To(gomega.Equal(0))
				gomega.Expect(sink.lastOutcome()).To(gomega.Equal(audit.OutcomeDenied))
			})
		})

		ginkgo.Context("when access resolution fails", func() {
			ginkgo.It("should audit denied and skip the warehouse", func() {
				resolver.errorToReturn = internal.ErrForbidden

				resp, err := service.Query(ctx, id, dto)

				gomega.Expect(err).To(gomega.MatchError(internal.ErrForbidden))
				gomega.Expect(resp).To(gomega.BeNil())
				gomega.Expect(executor.calls).To(gomega.Equal(0))
				gomega.Expect(sink.lastOutcome()).To(gomega.Equal(audit.OutcomeDenied))
			})

			ginkgo.It("should audit an error outcome when the directory store is down", func() {
				resolver.errorToReturn = internal.NewInternalError("failed to load role assignments", errors.New("connection refused"))

				resp, err := service.Query(ctx, id, dto)

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(resp).To(gomega.BeNil())
				gomega.Expect(executor.calls).To(gomega.Equal(0))
				gomega.Expect(sink.lastOutcome()).To(gomega.Equal(audit.OutcomeError))
			})
		})

		ginkgo.Context("when the warehouse fails", func() {
			ginkgo.It("should return an upstream error and audit it", func() {
				executor.errorToReturn = errors.New("queue full")

				resp, err := service.Query(ctx, id, dto)

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(resp).To(gomega.BeNil())
				gomega.Expect(sink.lastOutcome()).To(gomega.Equal(audit.OutcomeError))

				appErr, ok := internal.IsAppError(err)
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(appErr.StatusCode).To(gomega.Equal(502))
				gomega.Expect(appErr.WireCategory()).To(gomega.Equal("upstream_error"))
			})

			ginkgo.It("should not populate the cache", func() {
				executor.errorToReturn = errors.New("queue full")

				_, _ = service.Query(ctx, id, dto)
				gomega.Expect(resultCache.Len()).To(gomega.Equal(0))

				// Recovery: the next identical request goes back upstream.
				executor.errorToReturn = nil
				resp, err := service.Query(ctx, id, dto)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(resp.Meta.CacheHit).To(gomega.BeFalse())
				gomega.Expect(executor.calls).To(gomega.Equal(2))
			})
		})

		ginkgo.Context("when the caller disconnects mid-query", func() {
			ginkgo.It("should audit a cancelled outcome", func() {
				cancelledCtx, cancel := context.WithCancel(ctx)
				cancel()
				executor.errorToReturn = context.Canceled

				resp, err := service.Query(cancelledCtx, id, dto)

				gomega.Expect(err).To(gomega.HaveOccurred())
				gomega.Expect(resp).To(gomega.BeNil())
				gomega.Expect(sink.lastOutcome()).To(gomega.Equal(audit.OutcomeCancelled))
				gomega.Expect(resultCache.Len()).To(gomega.Equal(0))
			})
		})

		ginkgo.Context("when the audit sink fails", func() {
			ginkgo.It("should still return the response", func() {
				sink.errorToReturn = errors.New("audit store unavailable")

				resp, err := service.Query(ctx, id, dto)

				gomega.Expect(err).ToNot(gomega.HaveOccurred())
				gomega.Expect(resp.Rows).To(gomega.HaveLen(2))
			})
		})
	})
})
