package postgres_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pulsemetrics/analytics-gateway/internal/directory"
	directoryPostgres "github.com/pulsemetrics/analytics-gateway/internal/directory/postgres"
)

func TestDirectoryPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Directory Postgres Suite")
}

var _ = Describe("Directory PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo *directoryPostgres.DirectoryRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()

		// Use SQLite in-memory database for testing
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(
			&directory.Organization{},
			&directory.RoleAssignment{},
			&directory.AgencyLink{},
			&directory.AccessGrant{},
		)
		Expect(err).NotTo(HaveOccurred())

		repo = directoryPostgres.NewDirectoryRepository(db)
	})

	createOrg := func(id string) {
		Expect(repo.CreateOrganization(ctx, &directory.Organization{
			ID: id, DisplayName: id, Tier: directory.TierStandard, Active: true,
		})).To(Succeed())
	}

	Describe("organizations", func() {
		It("should create and fetch an organization", func() {
			createOrg("org-a")

			org, err := repo.GetOrganization(ctx, "org-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(org.DisplayName).To(Equal("org-a"))
			Expect(org.Active).To(BeTrue())
		})

		It("should return a typed error for a missing organization", func() {
			_, err := repo.GetOrganization(ctx, "org-missing")
			Expect(err).To(MatchError(directory.ErrOrganizationNotFound))
		})

		It("should soft-deactivate without deleting the row", func() {
			createOrg("org-a")

			Expect(repo.DeactivateOrganization(ctx, "org-a")).To(Succeed())

			org, err := repo.GetOrganization(ctx, "org-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(org.Active).To(BeFalse())
		})

		It("should report deactivating a missing organization", func() {
			Expect(repo.DeactivateOrganization(ctx, "org-missing")).To(MatchError(directory.ErrOrganizationNotFound))
		})
	})

	Describe("RolesFor", func() {
		It("should return assignments in creation order", func() {
			createOrg("org-a")
			createOrg("org-b")
			orgA, orgB := "org-a", "org-b"

			Expect(repo.AssignRole(ctx, &directory.RoleAssignment{UserID: "dana", OrganizationID: &orgA, Role: directory.RoleAnalyst})).To(Succeed())
			Expect(repo.AssignRole(ctx, &directory.RoleAssignment{UserID: "dana", OrganizationID: &orgB, Role: directory.RoleAdmin})).To(Succeed())
			Expect(repo.AssignRole(ctx, &directory.RoleAssignment{UserID: "root", Role: directory.RolePlatform})).To(Succeed())

			assignments, err := repo.RolesFor(ctx, "dana")
			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(HaveLen(2))
			Expect(*assignments[0].OrganizationID).To(Equal("org-a"))
			Expect(*assignments[1].OrganizationID).To(Equal("org-b"))
		})

		It("should include platform assignments with a nil organization", func() {
			Expect(repo.AssignRole(ctx, &directory.RoleAssignment{UserID: "root", Role: directory.RolePlatform})).To(Succeed())

			assignments, err := repo.RolesFor(ctx, "root")
			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(HaveLen(1))
			Expect(assignments[0].IsPlatform()).To(BeTrue())
		})

		It("should return an empty set for an unknown user", func() {
			assignments, err := repo.RolesFor(ctx, "stranger")
			Expect(err).NotTo(HaveOccurred())
			Expect(assignments).To(BeEmpty())
		})
	})

	Describe("agency links", func() {
		BeforeEach(func() {
			createOrg("org-a")
			createOrg("org-b")
			createOrg("org-c")
			Expect(repo.CreateAgencyLink(ctx, &directory.AgencyLink{AgencyID: "org-a", ClientID: "org-b", Active: true})).To(Succeed())
			Expect(repo.CreateAgencyLink(ctx, &directory.AgencyLink{AgencyID: "org-a", ClientID: "org-c", Active: false})).To(Succeed())
		})

		It("should list only active clients", func() {
			clients, err := repo.ActiveClientsOf(ctx, "org-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(clients).To(Equal([]string{"org-b"}))
		})

		It("should exclude clients whose organization was deactivated", func() {
			Expect(repo.DeactivateOrganization(ctx, "org-b")).To(Succeed())

			clients, err := repo.ActiveClientsOf(ctx, "org-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(clients).To(BeEmpty())
		})

		It("should exclude a link after deactivation", func() {
			Expect(repo.SetAgencyLinkActive(ctx, "org-a", "org-b", false)).To(Succeed())

			clients, err := repo.ActiveClientsOf(ctx, "org-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(clients).To(BeEmpty())
		})

		It("should report flipping a missing link", func() {
			Expect(repo.SetAgencyLinkActive(ctx, "org-b", "org-a", false)).To(MatchError(directory.ErrAgencyLinkNotFound))
		})
	})

	Describe("access grants", func() {
		BeforeEach(func() {
			createOrg("org-a")
			createOrg("org-b")
		})

		It("should attach and list grants", func() {
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-a", AppID: "app-1", AttachedAt: time.Now()})).To(Succeed())

			grant, err := repo.GetActiveGrant(ctx, "org-a", "app-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(grant.IsActive()).To(BeTrue())
		})

		It("should union active grants across organizations", func() {
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-a", AppID: "app-1", AttachedAt: time.Now()})).To(Succeed())
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-b", AppID: "app-2", AttachedAt: time.Now()})).To(Succeed())
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-b", AppID: "app-3", AttachedAt: time.Now()})).To(Succeed())

			grants, err := repo.ActiveGrantsFor(ctx, []string{"org-a", "org-b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(3))
		})

		It("should exclude grants of a deactivated organization from the active set", func() {
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-a", AppID: "app-1", AttachedAt: time.Now()})).To(Succeed())
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-b", AppID: "app-2", AttachedAt: time.Now()})).To(Succeed())
			Expect(repo.DeactivateOrganization(ctx, "org-b")).To(Succeed())

			grants, err := repo.ActiveGrantsFor(ctx, []string{"org-a", "org-b"})
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].AppID).To(Equal("app-1"))
		})

		It("should exclude soft-detached grants from the active set", func() {
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-a", AppID: "app-1", AttachedAt: time.Now()})).To(Succeed())
			Expect(repo.DetachGrant(ctx, "org-a", "app-1", time.Now())).To(Succeed())

			grants, err := repo.ActiveGrantsFor(ctx, []string{"org-a"})
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())

			// history stays queryable
			all, err := repo.ListGrants(ctx, "org-a")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
			Expect(all[0].IsActive()).To(BeFalse())
		})

		It("should return an empty set for an empty scope", func() {
			grants, err := repo.ActiveGrantsFor(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})

		It("should report detaching a grant twice", func() {
			Expect(repo.AttachGrant(ctx, &directory.AccessGrant{OrganizationID: "org-a", AppID: "app-1", AttachedAt: time.Now()})).To(Succeed())
			Expect(repo.DetachGrant(ctx, "org-a", "app-1", time.Now())).To(Succeed())
			Expect(repo.DetachGrant(ctx, "org-a", "app-1", time.Now())).To(MatchError(directory.ErrGrantNotFound))
		})
	})
})
