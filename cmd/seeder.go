package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/pulsemetrics/analytics-gateway/internal/directory"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the directory with sample data",
	Long:  `Seed the directory with sample organizations, roles, agency links and grants for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := initDirectoryDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init directory db: %v", err)
		}

		if clearData {
			for _, table := range []string{"access_grants", "agency_links", "role_assignments", "organizations"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing directory data")
		}

		organizations := []directory.Organization{
			{ID: "org-northwind", DisplayName: "Northwind Media Group", Tier: directory.TierEnterprise, Active: true},
			{ID: "org-acme", DisplayName: "Acme Apps", Tier: directory.TierStandard, Active: true},
			{ID: "org-globex", DisplayName: "Globex Games", Tier: directory.TierTrial, Active: true},
		}
		for _, org := range organizations {
			seedOrganization(db, org)
		}

		// Northwind is an agency managing Acme; the Globex engagement ended.
		seedAgencyLink(db, "org-northwind", "org-acme", true)
		seedAgencyLink(db, "org-northwind", "org-globex", false)

		northwind := "org-northwind"
		acme := "org-acme"
		roles := []directory.RoleAssignment{
			{UserID: "user-root", OrganizationID: nil, Role: directory.RolePlatform},
			{UserID: "user-dana", OrganizationID: &northwind, Role: directory.RoleAnalyst},
			{UserID: "user-lee", OrganizationID: &acme, Role: directory.RoleAdmin},
		}
		for _, role := range roles {
			seedRole(db, role)
		}

		grants := []struct {
			org      string
			appID    string
			detached bool
		}{
			{"org-northwind", "app-campaign-hub", false},
			{"org-acme", "app-storefront", false},
			{"org-acme", "app-loyalty", false},
			{"org-acme", "app-legacy-pos", true},
			{"org-globex", "app-arcade", false},
		}
		for _, g := range grants {
			seedGrant(db, g.org, g.appID, g.detached)
		}

		fmt.Println("Directory seeded successfully")
	},
}

func seedOrganization(db *gorm.DB, org directory.Organization) {
	var count int64
	db.Model(&directory.Organization{}).Where("id = ?", org.ID).Count(&count)
	if count > 0 {
		return
	}
	if err := db.Create(&org).Error; err != nil {
		log.Fatalf("failed to seed organization %s: %v", org.ID, err)
	}
	fmt.Println("Seeded organization:", org.ID)
}

func seedAgencyLink(db *gorm.DB, agencyID, clientID string, active bool) {
	var count int64
	db.Model(&directory.AgencyLink{}).Where("agency_id = ? AND client_id = ?", agencyID, clientID).Count(&count)
	if count > 0 {
		return
	}
	link := directory.AgencyLink{AgencyID: agencyID, ClientID: clientID, Active: active}
	if err := db.Create(&link).Error; err != nil {
		log.Fatalf("failed to seed agency link %s -> %s: %v", agencyID, clientID, err)
	}
	fmt.Printf("Seeded agency link: %s -> %s (active=%t)\n", agencyID, clientID, active)
}

func seedRole(db *gorm.DB, role directory.RoleAssignment) {
	query := db.Model(&directory.RoleAssignment{}).Where("user_id = ? AND role = ?", role.UserID, role.Role)
	if role.OrganizationID != nil {
		query = query.Where("organization_id = ?", *role.OrganizationID)
	} else {
		query = query.Where("organization_id IS NULL")
	}
	var count int64
	query.Count(&count)
	if count > 0 {
		return
	}
	if err := db.Create(&role).Error; err != nil {
		log.Fatalf("failed to seed role for %s: %v", role.UserID, err)
	}
	fmt.Printf("Seeded role: %s %s\n", role.UserID, role.Role)
}

func seedGrant(db *gorm.DB, organizationID, appID string, detached bool) {
	var count int64
	db.Model(&directory.AccessGrant{}).Where("organization_id = ? AND app_id = ?", organizationID, appID).Count(&count)
	if count > 0 {
		return
	}
	grant := directory.AccessGrant{
		OrganizationID: organizationID,
		AppID:          appID,
		AttachedAt:     time.Now().UTC(),
	}
	if detached {
		detachedAt := time.Now().UTC()
		grant.DetachedAt = &detachedAt
	}
	if err := db.Create(&grant).Error; err != nil {
		log.Fatalf("failed to seed grant %s/%s: %v", organizationID, appID, err)
	}
	fmt.Printf("Seeded grant: %s -> %s (active=%t)\n", organizationID, appID, !detached)
}
