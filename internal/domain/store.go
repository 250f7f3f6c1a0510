package domain

import "context"

// TargetWithContext bundles a target with the site and health row it joins
// against, the shape every reconciler query needs together.
type TargetWithContext struct {
	Target Target
	Site   Site
	Health TargetHealth
}

// Store is the state-store contract (C1). All persistent entities are owned
// exclusively by the store; reconcilers only ever read through it except for
// the narrow health-ingest write path.
type Store interface {
	GetOrg(ctx context.Context, orgID string) (*Org, error)
	GetSite(ctx context.Context, siteID string) (*Site, error)
	GetResource(ctx context.Context, resourceID string) (*Resource, error)
	GetTarget(ctx context.Context, targetID string) (*Target, error)

	// ListTargetsForResource returns every target of a resource joined with
	// its site and current health row.
	ListTargetsForResource(ctx context.Context, resourceID string) ([]TargetWithContext, error)
	// ListTargetsForSite returns every target hosted on a site. The resource
	// is not joined in; each Target carries only its ResourceID.
	ListTargetsForSite(ctx context.Context, siteID string) ([]Target, error)
	// ListResourcesForSite returns the distinct resource ids with an
	// enabled target on the given site.
	ListResourcesForSite(ctx context.Context, siteID string) ([]string, error)
	// ListResourceWhitelist returns the allowed emails for a resource.
	ListResourceWhitelist(ctx context.Context, resourceID string) ([]string, error)
	// ListSitesForResource returns the distinct sites hosting enabled
	// targets of a resource.
	ListSitesForResource(ctx context.Context, resourceID string) ([]Site, error)

	// GetNewtBySite returns the Newt bound to a site, if any.
	GetNewtBySite(ctx context.Context, siteID string) (*Newt, error)
	// GetNewtSiteID returns the siteId a connected Newt agent is bound to.
	GetNewtSiteID(ctx context.Context, newtID string) (string, error)
	// ListNewtsForSites returns the Newts bound to the given sites.
	ListNewtsForSites(ctx context.Context, siteIDs []string) ([]Newt, error)
	// ListOlmsForSites returns the distinct Olms whose clients are
	// associated with any of the given sites.
	ListOlmsForSites(ctx context.Context, siteIDs []string) ([]Olm, error)

	// ListClientsForOlm returns the clients owned by an Olm.
	ListClientsForOlm(ctx context.Context, olmID string) ([]Client, error)
	// ListSitesForClient returns the sites a client is associated with.
	ListSitesForClient(ctx context.Context, clientID string) ([]Site, error)
	// GetExitNode loads an exit node by id.
	GetExitNode(ctx context.Context, exitNodeID string) (*ExitNode, error)

	// UpsertTargetHealth updates the reported health status of a target.
	UpsertTargetHealth(ctx context.Context, targetID string, status string) error
	// GetTargetHealth loads the health row for a target.
	GetTargetHealth(ctx context.Context, targetID string) (*TargetHealth, error)
	// ListStaleTargetHealth returns targets whose health row has not been
	// reported against within the given window, for the periodic fallback
	// resync.
	ListStaleTargetHealth(ctx context.Context, olderThanSeconds int) ([]string, error)

	// GetSessionByToken loads a session by its token, only if unexpired.
	GetSessionByToken(ctx context.Context, token string) (*Session, error)
	GetUser(ctx context.Context, userID string) (*User, error)

	Close() error
}
