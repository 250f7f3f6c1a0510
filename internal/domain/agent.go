package domain

// AgentKind identifies which kind of edge agent a bus connection belongs to.
type AgentKind string

const (
	AgentKindNewt AgentKind = "newt"
	AgentKindOlm  AgentKind = "olm"
)

// Newt is a tunnel agent, one-to-one or one-to-zero with a Site.
type Newt struct {
	NewtID string `json:"newtId"`
	SiteID string `json:"siteId"`
}

// Olm is a local-resolver agent. It is associated with sites indirectly
// through the clients it owns and their ClientSiteAssociation rows.
type Olm struct {
	OlmID string `json:"olmId"`
}

// Client is a logical client owned by an Olm.
type Client struct {
	ClientID string `json:"clientId"`
	OlmID    string `json:"olmId"`
	PubKey   string `json:"pubKey"`
}

// ClientSiteAssociation records that a client peers with a site; it is a
// derived cache, not an authored relation.
type ClientSiteAssociation struct {
	ClientID string `json:"clientId"`
	SiteID   string `json:"siteId"`
}

// ExitNode is a relay endpoint attached to sites.
type ExitNode struct {
	ExitNodeID string `json:"exitNodeId"`
	PublicKey  string `json:"publicKey"`
	Endpoint   string `json:"endpoint"`
}
