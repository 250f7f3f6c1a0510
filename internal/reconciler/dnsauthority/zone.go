// Package dnsauthority implements the DNS-authority reconciler (C3): it
// rebuilds and dispatches per-resource DNS zone configs to the Newt and Olm
// agents that should answer for them.
package dnsauthority

import (
	"context"
	"net/netip"
	"strings"

	"github.com/miekg/dns"

	"github.com/tunnelctl/controller/internal/domain"
)

// validPublicIP reports whether site.PublicIP is set and parses as an IP
// address. A site whose PublicIP is unset or garbage cannot serve a zone
// target — it is treated the same as "no public IP" rather than dispatched
// to agents as an unresolvable answer.
func validPublicIP(site domain.Site) bool {
	if site.PublicIP == nil {
		return false
	}
	_, err := netip.ParseAddr(*site.PublicIP)
	return err == nil
}

// ZoneTarget is one answer candidate in a zone config. The answer IP is
// always the site's public IP, never the target's internal IP.
type ZoneTarget struct {
	IP       string `json:"ip"`
	Priority int    `json:"priority"`
	Healthy  bool   `json:"healthy"`
	SiteID   string `json:"siteId"`
	SiteName string `json:"siteName"`
}

// ZoneConfig is the DNS-authority config for one resource's domain. A nil
// *ZoneConfig means "remove this zone".
type ZoneConfig struct {
	Enabled       bool         `json:"enabled"`
	Domain        string       `json:"domain"`
	TTL           int          `json:"ttl"`
	RoutingPolicy string       `json:"routingPolicy"`
	Targets       []ZoneTarget `json:"targets"`
}

// BuildZoneConfig constructs the DNS-authority zone config for resource R
// per the construction algorithm: a nil result means the zone should be
// removed (or was never published), with the loaded resource returned
// alongside so callers can still recover R.FullDomain for a remove message.
// A FullDomain that fails RFC 1035 label validation is treated the same as
// an unset domain rather than pushed to agents as an unresolvable zone.
func BuildZoneConfig(ctx context.Context, store domain.Store, resourceID string) (*ZoneConfig, *domain.Resource, error) {
	resource, err := store.GetResource(ctx, resourceID)
	if err != nil {
		return nil, nil, domain.WrapOp("dnsauthority.BuildZoneConfig", err)
	}

	if !resource.DNSAuthorityEnabled || resource.FullDomain == "" {
		return nil, resource, nil
	}

	if _, ok := dns.IsDomainName(resource.FullDomain); !ok {
		return nil, resource, nil
	}
	// dns.IsDomainName only checks label and name lengths; each label must
	// also hold nothing but letters, digits and hyphens.
	for _, label := range strings.Split(strings.TrimSuffix(resource.FullDomain, "."), ".") {
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
				return nil, resource, nil
			}
		}
	}

	targets, err := store.ListTargetsForResource(ctx, resourceID)
	if err != nil {
		return nil, resource, domain.WrapOp("dnsauthority.BuildZoneConfig", err)
	}

	var zoneTargets []ZoneTarget
	for _, twc := range targets {
		if !twc.Target.Enabled || !twc.Site.DNSAuthorityEnabled || !validPublicIP(twc.Site) {
			continue
		}
		zoneTargets = append(zoneTargets, ZoneTarget{
			IP:       *twc.Site.PublicIP,
			Priority: twc.Target.EffectivePriority(),
			Healthy:  twc.Health.IsHealthy(),
			SiteID:   twc.Site.SiteID,
			SiteName: twc.Site.Name,
		})
	}

	if len(zoneTargets) == 0 {
		return nil, resource, nil
	}

	return &ZoneConfig{
		Enabled:       true,
		Domain:        resource.FullDomain,
		TTL:           resource.EffectiveTTL(),
		RoutingPolicy: resource.EffectiveRoutingPolicy(),
		Targets:       zoneTargets,
	}, resource, nil
}

// Recipients computes the DNS-authority recipient sets for resource R: the
// Newts bound to sites hosting an enabled, DNS-authority-eligible target of
// R, and the Olms whose clients are associated with any of those sites.
func Recipients(ctx context.Context, store domain.Store, resourceID string) (newtIDs, olmIDs []string, err error) {
	targets, err := store.ListTargetsForResource(ctx, resourceID)
	if err != nil {
		return nil, nil, domain.WrapOp("dnsauthority.Recipients", err)
	}

	seen := make(map[string]bool)
	var siteIDs []string
	for _, twc := range targets {
		if !twc.Target.Enabled || !twc.Site.DNSAuthorityEnabled || !validPublicIP(twc.Site) {
			continue
		}
		if !seen[twc.Site.SiteID] {
			seen[twc.Site.SiteID] = true
			siteIDs = append(siteIDs, twc.Site.SiteID)
		}
	}
	if len(siteIDs) == 0 {
		return nil, nil, nil
	}

	newts, err := store.ListNewtsForSites(ctx, siteIDs)
	if err != nil {
		return nil, nil, domain.WrapOp("dnsauthority.Recipients", err)
	}
	for _, n := range newts {
		newtIDs = append(newtIDs, n.NewtID)
	}

	olms, err := store.ListOlmsForSites(ctx, siteIDs)
	if err != nil {
		return nil, nil, domain.WrapOp("dnsauthority.Recipients", err)
	}
	for _, o := range olms {
		olmIDs = append(olmIDs, o.OlmID)
	}

	return newtIDs, olmIDs, nil
}
