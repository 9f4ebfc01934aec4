package directory

import (
	"context"
	"time"
)

// Organization tier levels.
const (
	TierTrial      = "trial"
	TierStandard   = "standard"
	TierEnterprise = "enterprise"
)

// Roles. A RoleAssignment with a nil OrganizationID carries RolePlatform and
// grants platform-wide authority; every other role is scoped to exactly one
// organization.
const (
	RolePlatform = "platform_admin"
	RoleAdmin    = "admin"
	RoleAnalyst  = "analyst"
)

// Organization is a tenant. Organizations are soft-deactivated, never
// hard-deleted.
type Organization struct {
	ID          string    `gorm:"primaryKey;column:id" json:"id"`
	DisplayName string    `gorm:"column:display_name" json:"display_name"`
	Tier        string    `gorm:"column:tier" json:"tier"`
	Active      bool      `gorm:"column:active" json:"active"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (Organization) TableName() string { return "organizations" }

// RoleAssignment binds a user to a role. OrganizationID is nil exactly when
// the role is platform-wide.
type RoleAssignment struct {
	ID             int64     `gorm:"primaryKey;column:id" json:"id"`
	UserID         string    `gorm:"column:user_id" json:"user_id"`
	OrganizationID *string   `gorm:"column:organization_id" json:"organization_id,omitempty"`
	Role           string    `gorm:"column:role" json:"role"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (RoleAssignment) TableName() string { return "role_assignments" }

// IsPlatform reports whether this assignment carries platform-wide authority.
func (r RoleAssignment) IsPlatform() bool {
	return r.OrganizationID == nil
}

// AgencyLink grants the agency organization read access to the client
// organization's grants while active. Directional; deactivation preserves
// history.
type AgencyLink struct {
	ID        int64     `gorm:"primaryKey;column:id" json:"id"`
	AgencyID  string    `gorm:"column:agency_id" json:"agency_id"`
	ClientID  string    `gorm:"column:client_id" json:"client_id"`
	Active    bool      `gorm:"column:active" json:"active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (AgencyLink) TableName() string { return "agency_links" }

// AccessGrant authorizes an organization to query warehouse rows for an
// external application identifier. Detachment is always a soft detach so
// historical time ranges stay interpretable; at most one active grant exists
// per (organization, app) pair.
type AccessGrant struct {
	ID             int64      `gorm:"primaryKey;column:id" json:"id"`
	OrganizationID string     `gorm:"column:organization_id" json:"organization_id"`
	AppID          string     `gorm:"column:app_id" json:"app_id"`
	AttachedAt     time.Time  `gorm:"column:attached_at" json:"attached_at"`
	DetachedAt     *time.Time `gorm:"column:detached_at" json:"detached_at,omitempty"`
}

func (AccessGrant) TableName() string { return "access_grants" }

// Active reports whether the grant is currently attached.
func (g AccessGrant) IsActive() bool {
	return g.DetachedAt == nil
}

// RoleStore is the read-only accessor over persisted role assignments.
type RoleStore interface {
	RolesFor(ctx context.Context, userID string) ([]RoleAssignment, error)
}

// AgencyLinkStore is the read-only accessor over agency-client
// relationships. Implementations only surface clients that are active as
// organizations, so a deactivated client drops out of every agency's reach.
type AgencyLinkStore interface {
	ActiveClientsOf(ctx context.Context, organizationID string) ([]string, error)
}

// AccessGrantStore is the read-only accessor over application grants.
// Grants belonging to deactivated organizations are not active for
// resolution purposes even while their rows stay attached.
type AccessGrantStore interface {
	ActiveGrantsFor(ctx context.Context, organizationIDs []string) ([]AccessGrant, error)
}
