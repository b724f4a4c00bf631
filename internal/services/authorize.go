package services

import (
	"context"

	"github.com/authgate/backend/internal/models"
	"github.com/authgate/backend/internal/store"
)

// Decision is the outcome of a proxy auth subrequest. The zero value denies,
// so an error path can never fall through to an allow.
type Decision int

const (
	DenyUnauthenticated Decision = iota
	DenyNoSite
	DenyForbidden
	Allow
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyNoSite:
		return "deny_no_site"
	case DenyForbidden:
		return "deny_forbidden"
	default:
		return "deny_unauthenticated"
	}
}

// AuthorizeService answers allow/deny for a session reaching a subdomain.
type AuthorizeService struct {
	Sites store.SiteStore
}

func NewAuthorizeService(sites store.SiteStore) *AuthorizeService {
	return &AuthorizeService{Sites: sites}
}

// Authorize is evaluated fresh on every subrequest; rank and site membership
// can change at any time, so the decision is never cached.
func (a *AuthorizeService) Authorize(ctx context.Context, session *models.Session, subdomain string) (Decision, error) {
	if session == nil || !session.IsValid() {
		return DenyUnauthenticated, nil
	}

	site, err := a.Sites.BySubdomain(ctx, subdomain)
	if err != nil {
		return DenyUnauthenticated, err
	}
	if site == nil {
		return DenyNoSite, nil
	}

	if !site.HasRank(session.User.Rank) {
		return DenyForbidden, nil
	}
	return Allow, nil
}
