package directory

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// AdminRepository is the write path mutated only by administrative actions.
type AdminRepository interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id string) (*Organization, error)
	DeactivateOrganization(ctx context.Context, id string) error
	AssignRole(ctx context.Context, assignment *RoleAssignment) error
	CreateAgencyLink(ctx context.Context, link *AgencyLink) error
	SetAgencyLinkActive(ctx context.Context, agencyID, clientID string, active bool) error
	GetActiveGrant(ctx context.Context, organizationID, appID string) (*AccessGrant, error)
	AttachGrant(ctx context.Context, grant *AccessGrant) error
	DetachGrant(ctx context.Context, organizationID, appID string, at time.Time) error
	ListGrants(ctx context.Context, organizationID string) ([]AccessGrant, error)
}

// Service implements the administrative actions behind the directory data:
// tenants, role assignments, agency links and application grants.
type Service struct {
	repo   AdminRepository
	logger *slog.Logger
}

func NewService(repo AdminRepository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) CreateOrganization(ctx context.Context, dto CreateOrganizationDTO) (*Organization, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	org := &Organization{
		ID:          dto.ID,
		DisplayName: dto.DisplayName,
		Tier:        dto.Tier,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateOrganization(ctx, org); err != nil {
		s.logger.Error("failed to create organization", "error", err, "organization_id", dto.ID)
		return nil, err
	}

	s.logger.Info("organization created", "organization_id", org.ID, "tier", org.Tier)
	return org, nil
}

func (s *Service) DeactivateOrganization(ctx context.Context, id string) error {
	if err := s.repo.DeactivateOrganization(ctx, id); err != nil {
		s.logger.Error("failed to deactivate organization", "error", err, "organization_id", id)
		return err
	}
	s.logger.Info("organization deactivated", "organization_id", id)
	return nil
}

func (s *Service) AssignRole(ctx context.Context, dto AssignRoleDTO) (*RoleAssignment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if dto.OrganizationID != nil {
		if _, err := s.repo.GetOrganization(ctx, *dto.OrganizationID); err != nil {
			return nil, err
		}
	}

	assignment := &RoleAssignment{
		UserID:         dto.UserID,
		OrganizationID: dto.OrganizationID,
		Role:           dto.Role,
		CreatedAt:      time.Now(),
	}

	if err := s.repo.AssignRole(ctx, assignment); err != nil {
		s.logger.Error("failed to assign role", "error", err, "user_id", dto.UserID, "role", dto.Role)
		return nil, err
	}

	s.logger.Info("role assigned", "user_id", dto.UserID, "role", dto.Role)
	return assignment, nil
}

func (s *Service) LinkAgency(ctx context.Context, dto CreateAgencyLinkDTO) (*AgencyLink, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetOrganization(ctx, dto.AgencyID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetOrganization(ctx, dto.ClientID); err != nil {
		return nil, err
	}

	now := time.Now()
	link := &AgencyLink{
		AgencyID:  dto.AgencyID,
		ClientID:  dto.ClientID,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.CreateAgencyLink(ctx, link); err != nil {
		s.logger.Error("failed to create agency link", "error", err,
			"agency_id", dto.AgencyID, "client_id", dto.ClientID)
		return nil, err
	}

	s.logger.Info("agency link created", "agency_id", link.AgencyID, "client_id", link.ClientID)
	return link, nil
}

func (s *Service) DeactivateAgencyLink(ctx context.Context, agencyID, clientID string) error {
	if err := s.repo.SetAgencyLinkActive(ctx, agencyID, clientID, false); err != nil {
		s.logger.Error("failed to deactivate agency link", "error", err,
			"agency_id", agencyID, "client_id", clientID)
		return err
	}
	s.logger.Info("agency link deactivated", "agency_id", agencyID, "client_id", clientID)
	return nil
}

// AttachApp creates a grant for (organization, app). At most one active
// grant may exist per pair.
func (s *Service) AttachApp(ctx context.Context, organizationID string, dto AttachGrantDTO) (*AccessGrant, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetActiveGrant(ctx, organizationID, dto.AppID)
	if err != nil && !errors.Is(err, ErrGrantNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrGrantAlreadyActive
	}

	grant := &AccessGrant{
		OrganizationID: organizationID,
		AppID:          dto.AppID,
		AttachedAt:     time.Now(),
	}

	if err := s.repo.AttachGrant(ctx, grant); err != nil {
		s.logger.Error("failed to attach grant", "error", err,
			"organization_id", organizationID, "app_id", dto.AppID)
		return nil, err
	}

	s.logger.Info("application attached", "organization_id", organizationID, "app_id", dto.AppID)
	return grant, nil
}

// DetachApp soft-detaches the active grant. The row is kept so time ranges
// before detachment stay interpretable.
func (s *Service) DetachApp(ctx context.Context, organizationID, appID string) error {
	if err := s.repo.DetachGrant(ctx, organizationID, appID, time.Now()); err != nil {
		s.logger.Error("failed to detach grant", "error", err,
			"organization_id", organizationID, "app_id", appID)
		return err
	}
	s.logger.Info("application detached", "organization_id", organizationID, "app_id", appID)
	return nil
}

func (s *Service) ListGrants(ctx context.Context, organizationID string) ([]AccessGrant, error) {
	if _, err := s.repo.GetOrganization(ctx, organizationID); err != nil {
		return nil, err
	}
	return s.repo.ListGrants(ctx, organizationID)
}
