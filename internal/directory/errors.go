package directory

import (
	"github.com/pulsemetrics/analytics-gateway/internal"
)

var (
	ErrOrganizationNotFound = internal.NewNotFoundError("organization not found", internal.ErrCodeOrgNotFound)
	ErrGrantNotFound        = internal.NewNotFoundError("active grant not found", internal.ErrCodeGrantNotFound)
	ErrGrantAlreadyActive   = internal.NewConflictError("an active grant already exists for this application", internal.ErrCodeGrantConflict)
	ErrAgencyLinkNotFound   = internal.NewNotFoundError("agency link not found", internal.ErrCodeLinkNotFound)
	ErrSelfLink             = internal.NewValidationError("an organization cannot manage itself", internal.ErrCodeSelfLink)
)
