package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func TestWarehouse(t *testing.T) {
	gomega.RegisterFailHandler(ginkgo.Fail)
	ginkgo.RunSpecs(t, "Warehouse Module Suite")
}

var _ = ginkgo.Describe("Client", func() {
	var (
		client *Client
		mock   sqlmock.Sqlmock
		ctx    context.Context
	)

	const querySQL = `SELECT app_id, metric_date, channel, sessions, conversions, revenue_cents
FROM app_daily_metrics
WHERE app_id IN (?, ?)
  AND metric_date BETWEEN ? AND ?
ORDER BY metric_date, app_id, channel`

	ginkgo.BeforeEach(func() {
		ctx = context.Background()

		db, sqlMock, err := sqlmock.New(
			sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
			sqlmock.MonitorPingsOption(true),
		)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		mock = sqlMock

		client = NewClient(sqlx.NewDb(db, "sqlmock"), 5*time.Second, slog.Default())
	})

	ginkgo.AfterEach(func() {
		gomega.Expect(mock.ExpectationsWereMet()).To(gomega.Succeed())
	})

	ginkgo.Describe("Execute", func() {
		ginkgo.It("should scan all returned rows", func() {
			day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
			mock.ExpectQuery("SELECT app_id, metric_date, channel").
				WithArgs("app-1", "app-2", day, day.AddDate(0, 0, 6)).
				WillReturnRows(sqlmock.NewRows([]string{"app_id", "metric_date", "channel", "sessions", "conversions", "revenue_cents"}).
					AddRow("app-1", day, "organic", int64(120), int64(4), int64(1900)).
					AddRow("app-2", day, "paid", int64(80), int64(2), int64(990)))

			rows, err := client.Execute(ctx, Query{
				SQL:  querySQL,
				Args: []interface{}{"app-1", "app-2", day, day.AddDate(0, 0, 6)},
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.HaveLen(2))
			gomega.Expect(rows[0].AppID).To(gomega.Equal("app-1"))
			gomega.Expect(rows[0].Sessions).To(gomega.Equal(int64(120)))
			gomega.Expect(rows[1].RevenueCents).To(gomega.Equal(int64(990)))
		})

		ginkgo.It("should return an empty slice when nothing matches", func() {
			mock.ExpectQuery("SELECT app_id, metric_date, channel").
				WillReturnRows(sqlmock.NewRows([]string{"app_id", "metric_date", "channel", "sessions", "conversions", "revenue_cents"}))

			rows, err := client.Execute(ctx, Query{SQL: querySQL})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.BeEmpty())
		})

		ginkgo.It("should surface query failures", func() {
			mock.ExpectQuery("SELECT app_id, metric_date, channel").
				WillReturnError(errors.New("relation does not exist"))

			rows, err := client.Execute(ctx, Query{SQL: querySQL})

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.BeNil())
		})

		ginkgo.It("should refuse an empty query", func() {
			rows, err := client.Execute(ctx, Query{})

			gomega.Expect(err).To(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("Ping", func() {
		ginkgo.It("should report connectivity", func() {
			mock.ExpectPing()

			gomega.Expect(client.Ping(ctx)).To(gomega.Succeed())
		})
	})
})
