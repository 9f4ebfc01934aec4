package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pulsemetrics/analytics-gateway/internal/directory"
)

// DirectoryRepository implements the read stores consumed by the access
// resolver plus the administrative write path.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// RolesFor returns every role assignment held by the user, platform-wide
// assignments included, ordered by creation.
func (r *DirectoryRepository) RolesFor(ctx context.Context, userID string) ([]directory.RoleAssignment, error) {
	var assignments []directory.RoleAssignment
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&assignments).Error
	return assignments, err
}

// ActiveClientsOf returns the client organization ids reachable from the
// agency through active links. Clients that have been deactivated as
// organizations are excluded even while the link row stays active.
func (r *DirectoryRepository) ActiveClientsOf(ctx context.Context, organizationID string) ([]string, error) {
	var clients []string
	err := r.db.WithContext(ctx).
		Model(&directory.AgencyLink{}).
		Joins("JOIN organizations ON organizations.id = agency_links.client_id").
		Where("agency_links.agency_id = ? AND agency_links.active = ? AND organizations.active = ?",
			organizationID, true, true).
		Order("agency_links.client_id ASC").
		Pluck("agency_links.client_id", &clients).Error
	return clients, err
}

// ActiveGrantsFor returns all currently attached grants across the given
// organizations. Detached grants are excluded regardless of when detachment
// happened, and so are grants belonging to deactivated organizations;
// access is about current grants, not retroactive revocation.
func (r *DirectoryRepository) ActiveGrantsFor(ctx context.Context, organizationIDs []string) ([]directory.AccessGrant, error) {
	if len(organizationIDs) == 0 {
		return []directory.AccessGrant{}, nil
	}
	var grants []directory.AccessGrant
	err := r.db.WithContext(ctx).
		Model(&directory.AccessGrant{}).
		Select("access_grants.*").
		Joins("JOIN organizations ON organizations.id = access_grants.organization_id").
		Where("access_grants.organization_id IN ? AND access_grants.detached_at IS NULL AND organizations.active = ?",
			organizationIDs, true).
		Order("access_grants.organization_id ASC, access_grants.app_id ASC").
		Find(&grants).Error
	return grants, err
}

// --- administrative write path ---

func (r *DirectoryRepository) CreateOrganization(ctx context.Context, org *directory.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *DirectoryRepository) GetOrganization(ctx context.Context, id string) (*directory.Organization, error) {
	var org directory.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directory.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

// DeactivateOrganization soft-deactivates; organizations are never removed.
func (r *DirectoryRepository) DeactivateOrganization(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Model(&directory.Organization{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return directory.ErrOrganizationNotFound
	}
	return nil
}

func (r *DirectoryRepository) AssignRole(ctx context.Context, assignment *directory.RoleAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *DirectoryRepository) CreateAgencyLink(ctx context.Context, link *directory.AgencyLink) error {
	return r.db.WithContext(ctx).Create(link).Error
}

// SetAgencyLinkActive flips the link's active flag. Deactivation preserves
// the row for audit history.
func (r *DirectoryRepository) SetAgencyLinkActive(ctx context.Context, agencyID, clientID string, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&directory.AgencyLink{}).
		Where("agency_id = ? AND client_id = ?", agencyID, clientID).
		Updates(map[string]interface{}{"active": active, "updated_at": time.Now()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return directory.ErrAgencyLinkNotFound
	}
	return nil
}

func (r *DirectoryRepository) GetActiveGrant(ctx context.Context, organizationID, appID string) (*directory.AccessGrant, error) {
	var grant directory.AccessGrant
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND app_id = ? AND detached_at IS NULL", organizationID, appID).
		First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directory.ErrGrantNotFound
		}
		return nil, err
	}
	return &grant, nil
}

func (r *DirectoryRepository) AttachGrant(ctx context.Context, grant *directory.AccessGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// DetachGrant soft-detaches the active grant by stamping detached_at. Row
// removal would corrupt historical query interpretation, so it never happens.
func (r *DirectoryRepository) DetachGrant(ctx context.Context, organizationID, appID string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&directory.AccessGrant{}).
		Where("organization_id = ? AND app_id = ? AND detached_at IS NULL", organizationID, appID).
		Update("detached_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return directory.ErrGrantNotFound
	}
	return nil
}

func (r *DirectoryRepository) ListGrants(ctx context.Context, organizationID string) ([]directory.AccessGrant, error) {
	var grants []directory.AccessGrant
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("attached_at DESC").
		Find(&grants).Error
	return grants, err
}
