package access

import (
	"context"
	"log/slog"
	"sort"

	"github.com/pulsemetrics/analytics-gateway/internal"
	"github.com/pulsemetrics/analytics-gateway/internal/directory"
	"github.com/pulsemetrics/analytics-gateway/internal/identity"
)

type Privilege string

const (
	// PrivilegePlatform marks a caller holding a platform-wide role.
	PrivilegePlatform Privilege = "platform"
	// PrivilegeDelegated marks a caller reaching another organization
	// through an active agency link.
	PrivilegeDelegated Privilege = "delegated"
	// PrivilegeMember marks a caller scoped to their own organization.
	PrivilegeMember Privilege = "member"
)

// Decision is the computed access set for a single request. It is ephemeral:
// recomputed fresh per request and never cached.
type Decision struct {
	OrganizationScope []string
	AppIDs            []string
	Privilege         Privilege
}

// Request carries the caller identity and the requested scope.
type Request struct {
	Identity                *identity.Identity
	RequestedOrganizationID string
	AppIDs                  []string
}

// Resolver computes per-request access decisions from the three directory
// stores. It is a pure read path: no mutation, no caching, no hidden state.
type Resolver struct {
	roles  directory.RoleStore
	links  directory.AgencyLinkStore
	grants directory.AccessGrantStore
	logger *slog.Logger
}

func NewResolver(roles directory.RoleStore, links directory.AgencyLinkStore, grants directory.AccessGrantStore, logger *slog.Logger) *Resolver {
	return &Resolver{
		roles:  roles,
		links:  links,
		grants: grants,
		logger: logger,
	}
}

// Resolve computes the organization set and application identifier set the
// caller may query.
//
// Platform callers must name an organization explicitly; the scope is exactly
// that organization. Members anchor at their own organization and the scope
// unions in all active agency clients. A member naming a different
// organization must hold an active agency link to it, and the delegated scope
// is exactly the requested organization (delegation is one level deep, so a
// client's own agency links never chain).
//
// Deactivated organizations contribute nothing: the stores filter them out,
// so a scope made only of inactive organizations resolves to a denial.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Decision, error) {
	if req.Identity == nil || req.Identity.UserID == "" {
		return nil, internal.ErrForbidden
	}

	assignments, err := r.roles.RolesFor(ctx, req.Identity.UserID)
	if err != nil {
		return nil, internal.NewInternalError("failed to load role assignments", err)
	}

	platform, memberOrgs := splitAssignments(assignments)

	var (
		privilege Privilege
		orgScope  []string
	)

	switch {
	case platform:
		if req.RequestedOrganizationID == "" {
			r.logger.Warn("platform caller omitted organization scope", "user_id", req.Identity.UserID)
			return nil, internal.ErrMissingScope
		}
		privilege = PrivilegePlatform
		orgScope = []string{req.RequestedOrganizationID}

	case len(memberOrgs) == 0:
		r.logger.Warn("caller has no role assignments", "user_id", req.Identity.UserID)
		return nil, internal.ErrForbidden

	case req.RequestedOrganizationID == "" || containsString(memberOrgs, req.RequestedOrganizationID):
		anchor := req.RequestedOrganizationID
		if anchor == "" {
			anchor = memberOrgs[0]
		}
		clients, err := r.links.ActiveClientsOf(ctx, anchor)
		if err != nil {
			return nil, internal.NewInternalError("failed to load agency links", err)
		}
		privilege = PrivilegeMember
		orgScope = unionOrgs(anchor, clients)

	default:
		// Requested organization is not the caller's own; only an active
		// agency link from the caller's organization reaches it.
		delegated := false
		for _, own := range memberOrgs {
			clients, err := r.links.ActiveClientsOf(ctx, own)
			if err != nil {
				return nil, internal.NewInternalError("failed to load agency links", err)
			}
			if containsString(clients, req.RequestedOrganizationID) {
				delegated = true
				break
			}
		}
		if !delegated {
			r.logger.Warn("cross-organization request without agency link",
				"user_id", req.Identity.UserID,
				"requested_organization", req.RequestedOrganizationID)
			return nil, internal.ErrForbidden
		}
		privilege = PrivilegeDelegated
		orgScope = []string{req.RequestedOrganizationID}
	}

	activeGrants, err := r.grants.ActiveGrantsFor(ctx, orgScope)
	if err != nil {
		return nil, internal.NewInternalError("failed to load access grants", err)
	}

	resolved := make(map[string]struct{}, len(activeGrants))
	for _, g := range activeGrants {
		resolved[g.AppID] = struct{}{}
	}

	appIDs := make([]string, 0, len(resolved))
	if len(req.AppIDs) > 0 {
		// Identifiers outside the resolved set are dropped silently so a
		// caller cannot probe for grants by observing error behavior.
		seen := make(map[string]struct{}, len(req.AppIDs))
		for _, id := range req.AppIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if _, ok := resolved[id]; ok {
				appIDs = append(appIDs, id)
			}
		}
	} else {
		for id := range resolved {
			appIDs = append(appIDs, id)
		}
	}

	if len(appIDs) == 0 {
		r.logger.Info("access resolved to empty application set",
			"user_id", req.Identity.UserID,
			"organization_scope", orgScope)
		return nil, internal.ErrAccessDenied
	}

	sort.Strings(orgScope)
	sort.Strings(appIDs)

	return &Decision{
		OrganizationScope: orgScope,
		AppIDs:            appIDs,
		Privilege:         privilege,
	}, nil
}

// IsPlatform reports whether the user holds a platform-wide role. Admin
// surfaces reuse this so privilege is computed in exactly one place.
func (r *Resolver) IsPlatform(ctx context.Context, userID string) (bool, error) {
	assignments, err := r.roles.RolesFor(ctx, userID)
	if err != nil {
		return false, internal.NewInternalError("failed to load role assignments", err)
	}
	platform, _ := splitAssignments(assignments)
	return platform, nil
}

// splitAssignments separates platform authority from organization
// memberships. Platform-wide always takes precedence for privilege level.
func splitAssignments(assignments []directory.RoleAssignment) (platform bool, memberOrgs []string) {
	for _, a := range assignments {
		if a.IsPlatform() {
			platform = true
			continue
		}
		if a.OrganizationID != nil && !containsString(memberOrgs, *a.OrganizationID) {
			memberOrgs = append(memberOrgs, *a.OrganizationID)
		}
	}
	return platform, memberOrgs
}

func unionOrgs(anchor string, clients []string) []string {
	scope := []string{anchor}
	for _, c := range clients {
		if !containsString(scope, c) {
			scope = append(scope, c)
		}
	}
	return scope
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
