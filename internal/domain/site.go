package domain

// Site is a deployment location hosting one tunnel agent (Newt).
//
// Invariant: if DNSAuthorityEnabled is true, PublicIP must be non-nil.
type Site struct {
	SiteID              string  `json:"siteId"`
	OrgID               string  `json:"orgId"`
	NiceID              string  `json:"niceId"`
	Name                string  `json:"name"`
	Type                string  `json:"type"`
	PublicIP            *string `json:"publicIp"`
	ServerPublicIP      *string `json:"serverPublicIp"`
	DockerSocketEnabled bool    `json:"dockerSocketEnabled"`
	DNSAuthorityEnabled bool    `json:"dnsAuthorityEnabled"`
	ExitNodeID          *string `json:"exitNodeId"`
}
