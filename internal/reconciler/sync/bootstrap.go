// Package sync implements the sync/bootstrap component (C6 part A): on
// every agent (re)connect it rebuilds the agent's current view from
// persistent state and pushes a full bootstrap message, recovering any
// state the agent may have missed while disconnected.
package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/infra/tracer"
	"github.com/tunnelctl/controller/internal/reconciler/authproxy"
	"github.com/tunnelctl/controller/internal/reconciler/dnsauthority"
)

// olmSyncMessage is the olm/sync bootstrap payload.
type olmSyncMessage struct {
	Sites     []siteConfig    `json:"sites"`
	ExitNodes []exitNodeEntry `json:"exitNodes"`
}

type siteConfig struct {
	SiteID              string  `json:"siteId"`
	Name                string  `json:"name"`
	PublicIP            *string `json:"publicIp"`
	DNSAuthorityEnabled bool    `json:"dnsAuthorityEnabled"`
}

type exitNodeEntry struct {
	PublicKey string   `json:"publicKey"`
	RelayPort int      `json:"relayPort"`
	Endpoint  string   `json:"endpoint"`
	SiteIDs   []string `json:"siteIds"`
}

// Bootstrapper implements C6 part A. Register Bootstrapper.OnConnect as the
// bus's ConnectHandler.
type Bootstrapper struct {
	store           domain.Store
	bus             domain.Bus
	events          domain.EventBus
	audit           domain.AuditLogger
	logger          *slog.Logger
	dns             *dnsauthority.Reconciler
	authProxy       *authproxy.Reconciler
	gerbilRelayPort int
}

// New creates a sync bootstrapper. gerbilRelayPort is announced to Olms as
// every exit node's relayPort (gerbil.clients_start_port).
func New(store domain.Store, bus domain.Bus, events domain.EventBus, audit domain.AuditLogger, logger *slog.Logger, dns *dnsauthority.Reconciler, authProxy *authproxy.Reconciler, gerbilRelayPort int) *Bootstrapper {
	return &Bootstrapper{
		store:           store,
		bus:             bus,
		events:          events,
		audit:           audit,
		logger:          logger,
		dns:             dns,
		authProxy:       authProxy,
		gerbilRelayPort: gerbilRelayPort,
	}
}

// OnConnect dispatches to the Newt or Olm bootstrap path. Failures are
// logged and swallowed; the agent recovers on its next reconnect.
func (b *Bootstrapper) OnConnect(ctx context.Context, agentKind domain.AgentKind, agentID string) {
	ctx, span := tracer.ReconcileSpan(ctx, "sync", agentID)
	defer span.End()

	switch agentKind {
	case domain.AgentKindOlm:
		b.bootstrapOlm(ctx, agentID)
	case domain.AgentKindNewt:
		b.bootstrapNewt(ctx, agentID)
	}
	tracer.SetOK(span)
}

// bootstrapNewt pushes the normal auth-proxy config for the newt's site.
// Tunnel-config push itself is an out-of-scope collaborator (§4.5).
func (b *Bootstrapper) bootstrapNewt(ctx context.Context, newtID string) {
	siteID, err := b.store.GetNewtSiteID(ctx, newtID)
	if err != nil {
		b.logger.Warn("sync: failed to resolve newt's site on connect", "newt_id", newtID, "error", err)
		return
	}
	if b.authProxy != nil {
		if err := b.authProxy.UpdateForSite(ctx, siteID); err != nil {
			b.logger.Warn("sync: failed to push auth-proxy config on newt connect", "newt_id", newtID, "site_id", siteID, "error", err)
		}
	}
	b.publishBootstrapped(ctx, siteID)
}

// bootstrapOlm computes the Olm's current site set via its clients'
// ClientSiteAssociation rows, pushes an olm/sync payload, then pushes the
// union of DNS-authority zones those sites should serve.
func (b *Bootstrapper) bootstrapOlm(ctx context.Context, olmID string) {
	clients, err := b.store.ListClientsForOlm(ctx, olmID)
	if err != nil {
		b.logger.Warn("sync: failed to list clients for olm on connect", "olm_id", olmID, "error", err)
		return
	}
	if len(clients) == 0 {
		return
	}

	siteSet := make(map[string]domain.Site)
	exitNodeSites := make(map[string][]string)
	exitNodeByID := make(map[string]domain.ExitNode)

	for _, client := range clients {
		sites, err := b.store.ListSitesForClient(ctx, client.ClientID)
		if err != nil {
			b.logger.Warn("sync: failed to list sites for client", "client_id", client.ClientID, "error", err)
			continue
		}
		for _, site := range sites {
			siteSet[site.SiteID] = site
			if site.ExitNodeID == nil {
				continue
			}
			exitNodeSites[*site.ExitNodeID] = appendDistinct(exitNodeSites[*site.ExitNodeID], site.SiteID)
			if _, ok := exitNodeByID[*site.ExitNodeID]; ok {
				continue
			}
			if node, err := b.store.GetExitNode(ctx, *site.ExitNodeID); err == nil {
				exitNodeByID[*site.ExitNodeID] = *node
			}
		}
	}

	var msg olmSyncMessage
	for _, site := range siteSet {
		msg.Sites = append(msg.Sites, siteConfig{
			SiteID:              site.SiteID,
			Name:                site.Name,
			PublicIP:            site.PublicIP,
			DNSAuthorityEnabled: site.DNSAuthorityEnabled,
		})
	}
	for exitNodeID, siteIDs := range exitNodeSites {
		node, ok := exitNodeByID[exitNodeID]
		if !ok {
			continue
		}
		msg.ExitNodes = append(msg.ExitNodes, exitNodeEntry{
			PublicKey: node.PublicKey,
			RelayPort: b.gerbilRelayPort,
			Endpoint:  node.Endpoint,
			SiteIDs:   siteIDs,
		})
	}

	b.bus.Send(ctx, olmID, domain.MsgOlmSync, msg)

	if b.dns != nil {
		for _, client := range clients {
			if err := b.dns.SendZonesToOlm(ctx, olmID, client.ClientID); err != nil {
				b.logger.Warn("sync: failed to push dns-authority zones on olm connect", "olm_id", olmID, "client_id", client.ClientID, "error", err)
			}
		}
	}

	b.publishBootstrapped(ctx, "")
}

func appendDistinct(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func (b *Bootstrapper) publishBootstrapped(ctx context.Context, siteID string) {
	if b.events != nil {
		b.events.Publish(ctx, domain.Event{Type: domain.EventSyncBootstrapped, Timestamp: time.Now().UTC(), SiteID: siteID})
	}
	if b.audit != nil {
		b.audit.Log(ctx, domain.AuditEvent{Type: domain.AuditSyncBootstrap, Actor: "", Action: "on_connect", Outcome: "success"})
	}
}
