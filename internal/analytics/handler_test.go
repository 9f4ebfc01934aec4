package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
	"github.com/pulsemetrics/analytics-gateway/internal/warehouse"
)

// Mock service for handler testing
type mockService struct {
	response      *QueryResponse
	errorToReturn error
	received      QueryRequestDTO
}

func (m *mockService) Query(_ context.Context, _ *identity.Identity, dto QueryRequestDTO) (*QueryResponse, error) {
	m.received = dto
	if m.errorToReturn != nil {
		return nil, m.errorToReturn
	}
	return m.response, nil
}

var _ = ginkgo.Describe("Handler", func() {
	var (
		handler *Handler
		svc     *mockService
	)

	const requestBody = `{
		"organizationId": "org-a",
		"timeRange": {"start": "2026-03-01", "end": "2026-03-07"},
		"appIds": ["app-1"]
	}`

	newRequest := func(body string, withIdentity bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analytics/query", strings.NewReader(body))
		if withIdentity {
			ctx := identity.ContextWithIdentity(req.Context(), &identity.Identity{UserID: "dana"})
			req = req.WithContext(ctx)
		}
		rec := httptest.NewRecorder()
		handler.Query(rec, req)
		return rec
	}

	wireError := func(rec *httptest.ResponseRecorder) string {
		var resp ErrorResponse
		gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
		return resp.Error
	}

	ginkgo.BeforeEach(func() {
		svc = &mockService{
			response: &QueryResponse{
				Rows: []warehouse.Row{{AppID: "app-1", MetricDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), Channel: "organic", Sessions: 42}},
				Meta: ResponseMeta{
					OrganizationScope: []string{"org-a"},
					AppIDsResolved:    []string{"app-1"},
				},
			},
		}
		handler = NewHandler(svc)
	})

	ginkgo.Describe("Query", func() {
		ginkgo.It("should return rows and metadata for a valid request", func() {
			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(svc.received.OrganizationID).To(gomega.Equal("org-a"))
			gomega.Expect(svc.received.AppIDs).To(gomega.Equal([]string{"app-1"}))

			var resp QueryResponse
			gomega.Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(gomega.Succeed())
			gomega.Expect(resp.Rows).To(gomega.HaveLen(1))
			gomega.Expect(resp.Meta.OrganizationScope).To(gomega.Equal([]string{"org-a"}))
		})

		ginkgo.It("should reject a request without identity", func() {
			rec := newRequest(requestBody, false)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		})

		ginkgo.It("should reject a malformed body", func() {
			rec := newRequest(`{"timeRange": `, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
		})

		ginkgo.It("should map forbidden to the opaque envelope", func() {
			svc.errorToReturn = internal.ErrForbidden

			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(wireError(rec)).To(gomega.Equal("forbidden"))
		})

		ginkgo.It("should keep denied indistinguishable from forbidden on the wire", func() {
			svc.errorToReturn = internal.ErrAccessDenied

			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
			gomega.Expect(wireError(rec)).To(gomega.Equal("forbidden"))
		})

		ginkgo.It("should map a missing platform scope", func() {
			svc.errorToReturn = internal.ErrMissingScope

			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(wireError(rec)).To(gomega.Equal("missing_scope"))
		})

		ginkgo.It("should map an invalid range", func() {
			svc.errorToReturn = internal.ErrInvalidRange

			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadRequest))
			gomega.Expect(wireError(rec)).To(gomega.Equal("invalid_range"))
		})

		ginkgo.It("should map upstream failures to 502", func() {
			svc.errorToReturn = internal.NewUpstreamError("warehouse query failed", nil)

			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusBadGateway))
			gomega.Expect(wireError(rec)).To(gomega.Equal("upstream_error"))
		})

		ginkgo.It("should map unknown errors to an opaque 500", func() {
			svc.errorToReturn = context.DeadlineExceeded

			rec := newRequest(requestBody, true)

			gomega.Expect(rec.Code).To(gomega.Equal(http.StatusInternalServerError))
			gomega.Expect(wireError(rec)).To(gomega.Equal("internal_error"))
		})
	})
})
