// Package authproxy implements the auth-proxy reconciler (C4): it builds a
// site's auth-proxy configuration — global authentication parameters plus
// per-resource policy — and pushes it to the Newt managing that site.
package authproxy

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tunnelctl/controller/internal/domain"
)

// AuthConfig is the global authentication parameters shared by every
// resource an auth-proxy config covers.
type AuthConfig struct {
	Enabled              bool   `json:"enabled"`
	PangolinURL          string `json:"pangolinUrl"`
	JWTPublicKey         string `json:"jwtPublicKey"`
	CookieName           string `json:"cookieName"`
	CookieDomain         string `json:"cookieDomain"`
	SessionValidationURL string `json:"sessionValidationUrl"`
}

// ResourceAuthConfig is one resource's gating policy within a site's
// auth-proxy config.
type ResourceAuthConfig struct {
	ResourceID            string   `json:"resourceId"`
	Domain                string   `json:"domain"`
	SSO                   bool     `json:"sso"`
	BlockAccess           bool     `json:"blockAccess"`
	EmailWhitelistEnabled bool     `json:"emailWhitelistEnabled"`
	AllowedEmails         []string `json:"allowedEmails,omitempty"`
	TargetURL             string   `json:"targetUrl"`
	SSL                   bool     `json:"ssl"`
}

// PublicKeySource returns the controller's cached JWT public key, used to
// populate AuthConfig.JWTPublicKey.
type PublicKeySource interface {
	JWTPublicKeyPEM() string
}

// BuildSiteConfig constructs the auth-proxy config for siteID. A nil auth
// result means no push is required: either the site hosts no resource that
// needs gating, or the dashboard URL isn't configured yet (§7 "missing
// dashboard URL" policy).
func BuildSiteConfig(ctx context.Context, store domain.Store, keys PublicKeySource, dashboardURL, secret, siteID string) (*AuthConfig, []ResourceAuthConfig, error) {
	if _, err := store.GetSite(ctx, siteID); err != nil {
		if domain.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, domain.WrapOp("authproxy.BuildSiteConfig", err)
	}

	targets, err := store.ListTargetsForSite(ctx, siteID)
	if err != nil {
		return nil, nil, domain.WrapOp("authproxy.BuildSiteConfig", err)
	}

	var resources []ResourceAuthConfig
	seen := make(map[string]bool)
	for _, t := range targets {
		if !t.Enabled || seen[t.ResourceID] {
			continue
		}

		resource, err := store.GetResource(ctx, t.ResourceID)
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return nil, nil, domain.WrapOp("authproxy.BuildSiteConfig", err)
		}
		if !resource.DNSAuthorityEnabled || !(resource.SSO || resource.BlockAccess || resource.EmailWhitelistEnabled) {
			continue
		}
		seen[t.ResourceID] = true

		var allowed []string
		if resource.EmailWhitelistEnabled {
			allowed, err = store.ListResourceWhitelist(ctx, resource.ResourceID)
			if err != nil {
				return nil, nil, domain.WrapOp("authproxy.BuildSiteConfig", err)
			}
		}

		scheme := "http"
		if t.SSL {
			scheme = "https"
		}
		resources = append(resources, ResourceAuthConfig{
			ResourceID:            resource.ResourceID,
			Domain:                resource.FullDomain,
			SSO:                   resource.SSO,
			BlockAccess:           resource.BlockAccess,
			EmailWhitelistEnabled: resource.EmailWhitelistEnabled,
			AllowedEmails:         allowed,
			TargetURL:             fmt.Sprintf("%s://%s:%d", scheme, t.IP, t.Port),
			SSL:                   t.SSL,
		})
	}

	if len(resources) == 0 {
		return nil, nil, nil
	}
	if dashboardURL == "" {
		return nil, nil, nil
	}

	cookieDomain, err := cookieDomainFor(dashboardURL)
	if err != nil {
		return nil, nil, domain.WrapOp("authproxy.BuildSiteConfig", err)
	}

	var pubKey string
	if keys != nil {
		pubKey = keys.JWTPublicKeyPEM()
	}

	// secret is read here for forward compatibility only; it is never placed
	// in the emitted AuthConfig (§9 open question).
	_ = secret

	auth := &AuthConfig{
		Enabled:              true,
		PangolinURL:          dashboardURL,
		JWTPublicKey:         pubKey,
		CookieName:           "p_session",
		CookieDomain:         cookieDomain,
		SessionValidationURL: strings.TrimRight(dashboardURL, "/") + "/api/v1/auth/session/validate",
	}

	return auth, resources, nil
}

// cookieDomainFor derives a cookie domain from a dashboard URL's host: the
// last two dot-separated labels prefixed with a dot, or the bare host when
// it carries only one label.
func cookieDomainFor(dashboardURL string) (string, error) {
	u, err := url.Parse(dashboardURL)
	if err != nil {
		return "", err
	}
	host := u.Hostname()
	labels := strings.Split(host, ".")
	if len(labels) <= 1 {
		return host, nil
	}
	return "." + strings.Join(labels[len(labels)-2:], "."), nil
}
