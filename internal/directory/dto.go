package directory

import (
	errors "github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/core/common/validation"
)

type CreateOrganizationDTO struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Tier        string `json:"tier"`
}

func (d *CreateOrganizationDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("id", d.ID).Required().MaxLength(64)
	v.Field("display_name", d.DisplayName).Required().MaxLength(255)
	v.Field("tier", d.Tier).Required().
		OneOf([]string{TierTrial, TierStandard, TierEnterprise}, errors.ErrCodeInvalidOrgTier)
	return v.Validate()
}

type AssignRoleDTO struct {
	UserID         string  `json:"user_id"`
	OrganizationID *string `json:"organization_id,omitempty"`
	Role           string  `json:"role"`
}

func (d *AssignRoleDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("user_id", d.UserID).Required().MaxLength(64)
	v.Field("role", d.Role).Required().
		OneOf([]string{RolePlatform, RoleAdmin, RoleAnalyst}, errors.ErrCodeInvalidRole)
	if err := v.Validate(); err != nil {
		return err
	}

	// Platform-wide roles carry no organization; every other role carries
	// exactly one.
	if d.Role == RolePlatform && d.OrganizationID != nil {
		return errors.NewValidationError("a platform-wide role must not name an organization", errors.ErrCodeInvalidRole)
	}
	if d.Role != RolePlatform && (d.OrganizationID == nil || *d.OrganizationID == "") {
		return errors.NewValidationError("an organization-scoped role requires an organization id", errors.ErrCodeInvalidRole)
	}
	return nil
}

type CreateAgencyLinkDTO struct {
	AgencyID string `json:"agency_id"`
	ClientID string `json:"client_id"`
}

func (d *CreateAgencyLinkDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("agency_id", d.AgencyID).Required().MaxLength(64)
	v.Field("client_id", d.ClientID).Required().MaxLength(64)
	if err := v.Validate(); err != nil {
		return err
	}
	if d.AgencyID == d.ClientID {
		return ErrSelfLink
	}
	return nil
}

type AttachGrantDTO struct {
	AppID string `json:"app_id"`
}

func (d *AttachGrantDTO) Validate() *errors.AppError {
	v := validation.NewValidator()
	v.Field("app_id", d.AppID).Required().MaxLength(128)
	return v.Validate()
}
