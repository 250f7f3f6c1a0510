// Package store implements the controller's state store (C1) on SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tunnelctl/controller/internal/domain"
)

// SQLiteStore implements domain.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath and runs the schema
// migration.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orgs (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sites (
			id                    TEXT PRIMARY KEY,
			org_id                TEXT NOT NULL,
			nice_id               TEXT NOT NULL,
			name                  TEXT NOT NULL,
			type                  TEXT NOT NULL DEFAULT 'newt',
			public_ip             TEXT,
			server_public_ip      TEXT,
			docker_socket_enabled INTEGER NOT NULL DEFAULT 0,
			dns_authority_enabled INTEGER NOT NULL DEFAULT 0,
			exit_node_id          TEXT,
			UNIQUE(org_id, nice_id)
		)`,
		`CREATE TABLE IF NOT EXISTS resources (
			id                           TEXT PRIMARY KEY,
			org_id                       TEXT NOT NULL,
			name                         TEXT NOT NULL,
			full_domain                  TEXT NOT NULL DEFAULT '',
			ssl                          INTEGER NOT NULL DEFAULT 0,
			http                         INTEGER NOT NULL DEFAULT 1,
			sso                          INTEGER NOT NULL DEFAULT 0,
			block_access                 INTEGER NOT NULL DEFAULT 0,
			email_whitelist_enabled      INTEGER NOT NULL DEFAULT 0,
			dns_authority_enabled        INTEGER NOT NULL DEFAULT 0,
			dns_authority_ttl            INTEGER NOT NULL DEFAULT 60,
			dns_authority_routing_policy TEXT NOT NULL DEFAULT 'failover'
		)`,
		`CREATE TABLE IF NOT EXISTS targets (
			id          TEXT PRIMARY KEY,
			resource_id TEXT NOT NULL,
			site_id     TEXT NOT NULL,
			ip          TEXT NOT NULL,
			port        INTEGER NOT NULL,
			method      TEXT NOT NULL DEFAULT 'http',
			enabled     INTEGER NOT NULL DEFAULT 1,
			priority    INTEGER NOT NULL DEFAULT 100,
			ssl         INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS target_health (
			target_id  TEXT PRIMARY KEY,
			hc_enabled INTEGER NOT NULL DEFAULT 0,
			hc_health  TEXT NOT NULL DEFAULT 'unknown',
			path       TEXT NOT NULL DEFAULT '',
			scheme     TEXT NOT NULL DEFAULT '',
			mode       TEXT NOT NULL DEFAULT '',
			port       INTEGER NOT NULL DEFAULT 0,
			interval   INTEGER NOT NULL DEFAULT 0,
			timeout    INTEGER NOT NULL DEFAULT 0,
			headers    TEXT NOT NULL DEFAULT '{}',
			method     TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS resource_whitelist (
			resource_id TEXT NOT NULL,
			email       TEXT NOT NULL,
			PRIMARY KEY (resource_id, email)
		)`,
		`CREATE TABLE IF NOT EXISTS newts (
			id      TEXT PRIMARY KEY,
			site_id TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS olms (
			id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS clients (
			id      TEXT PRIMARY KEY,
			olm_id  TEXT NOT NULL,
			pub_key TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS client_site_associations (
			client_id TEXT NOT NULL,
			site_id   TEXT NOT NULL,
			PRIMARY KEY (client_id, site_id)
		)`,
		`CREATE TABLE IF NOT EXISTS exit_nodes (
			id         TEXT PRIMARY KEY,
			public_key TEXT NOT NULL,
			endpoint   TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id            TEXT PRIMARY KEY,
			session_token TEXT NOT NULL UNIQUE,
			user_id       TEXT NOT NULL,
			expires_at    TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id    TEXT PRIMARY KEY,
			email TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_targets_resource ON targets(resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_targets_site ON targets(site_id)`,
		`CREATE INDEX IF NOT EXISTS idx_csa_site ON client_site_associations(site_id)`,
		`CREATE INDEX IF NOT EXISTS idx_clients_olm ON clients(olm_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func scanNullableString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func (s *SQLiteStore) GetOrg(ctx context.Context, orgID string) (*domain.Org, error) {
	var o domain.Org
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM orgs WHERE id = ?`, orgID).Scan(&o.OrgID, &o.Name)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetOrg", domain.ErrNotFound, orgID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetOrg", err)
	}
	return &o, nil
}

func (s *SQLiteStore) GetSite(ctx context.Context, siteID string) (*domain.Site, error) {
	var site domain.Site
	var publicIP, serverPublicIP, exitNodeID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, nice_id, name, type, public_ip, server_public_ip,
		       docker_socket_enabled, dns_authority_enabled, exit_node_id
		FROM sites WHERE id = ?`, siteID,
	).Scan(&site.SiteID, &site.OrgID, &site.NiceID, &site.Name, &site.Type,
		&publicIP, &serverPublicIP, &site.DockerSocketEnabled, &site.DNSAuthorityEnabled, &exitNodeID)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetSite", domain.ErrSiteNotFound, siteID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetSite", err)
	}
	site.PublicIP = scanNullableString(publicIP)
	site.ServerPublicIP = scanNullableString(serverPublicIP)
	site.ExitNodeID = scanNullableString(exitNodeID)
	return &site, nil
}

func (s *SQLiteStore) GetResource(ctx context.Context, resourceID string) (*domain.Resource, error) {
	var r domain.Resource
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, full_domain, ssl, http, sso, block_access,
		       email_whitelist_enabled, dns_authority_enabled, dns_authority_ttl,
		       dns_authority_routing_policy
		FROM resources WHERE id = ?`, resourceID,
	).Scan(&r.ResourceID, &r.OrgID, &r.Name, &r.FullDomain, &r.SSL, &r.HTTP, &r.SSO,
		&r.BlockAccess, &r.EmailWhitelistEnabled, &r.DNSAuthorityEnabled, &r.DNSAuthorityTTL,
		&r.DNSAuthorityRoutingPolicy)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetResource", domain.ErrResourceNotFound, resourceID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetResource", err)
	}
	return &r, nil
}

func (s *SQLiteStore) GetTarget(ctx context.Context, targetID string) (*domain.Target, error) {
	var t domain.Target
	err := s.db.QueryRowContext(ctx, `
		SELECT id, resource_id, site_id, ip, port, method, enabled, priority, ssl
		FROM targets WHERE id = ?`, targetID,
	).Scan(&t.TargetID, &t.ResourceID, &t.SiteID, &t.IP, &t.Port, &t.Method, &t.Enabled, &t.Priority, &t.SSL)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetTarget", domain.ErrTargetNotFound, targetID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetTarget", err)
	}
	return &t, nil
}

func (s *SQLiteStore) ListTargetsForResource(ctx context.Context, resourceID string) ([]domain.TargetWithContext, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.resource_id, t.site_id, t.ip, t.port, t.method, t.enabled, t.priority, t.ssl,
		       s.id, s.org_id, s.nice_id, s.name, s.type, s.public_ip, s.server_public_ip,
		       s.docker_socket_enabled, s.dns_authority_enabled, s.exit_node_id,
		       th.target_id, th.hc_enabled, th.hc_health
		FROM targets t
		JOIN sites s ON s.id = t.site_id
		LEFT JOIN target_health th ON th.target_id = t.id
		WHERE t.resource_id = ?`, resourceID,
	)
	if err != nil {
		return nil, domain.WrapOp("store.ListTargetsForResource", err)
	}
	defer rows.Close()

	var out []domain.TargetWithContext
	for rows.Next() {
		var twc domain.TargetWithContext
		var publicIP, serverPublicIP, exitNodeID sql.NullString
		var healthTargetID, healthStatus sql.NullString
		var hcEnabled sql.NullBool
		if err := rows.Scan(
			&twc.Target.TargetID, &twc.Target.ResourceID, &twc.Target.SiteID, &twc.Target.IP,
			&twc.Target.Port, &twc.Target.Method, &twc.Target.Enabled, &twc.Target.Priority, &twc.Target.SSL,
			&twc.Site.SiteID, &twc.Site.OrgID, &twc.Site.NiceID, &twc.Site.Name, &twc.Site.Type,
			&publicIP, &serverPublicIP, &twc.Site.DockerSocketEnabled, &twc.Site.DNSAuthorityEnabled, &exitNodeID,
			&healthTargetID, &hcEnabled, &healthStatus,
		); err != nil {
			return nil, domain.WrapOp("store.ListTargetsForResource", err)
		}
		twc.Site.PublicIP = scanNullableString(publicIP)
		twc.Site.ServerPublicIP = scanNullableString(serverPublicIP)
		twc.Site.ExitNodeID = scanNullableString(exitNodeID)
		twc.Health.TargetID = twc.Target.TargetID
		twc.Health.HCEnabled = hcEnabled.Bool
		if healthStatus.Valid {
			twc.Health.HCHealth = healthStatus.String
		} else {
			twc.Health.HCHealth = domain.HealthStatusUnknown
		}
		out = append(out, twc)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListTargetsForSite(ctx context.Context, siteID string) ([]domain.Target, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, resource_id, site_id, ip, port, method, enabled, priority, ssl
		FROM targets WHERE site_id = ?`, siteID,
	)
	if err != nil {
		return nil, domain.WrapOp("store.ListTargetsForSite", err)
	}
	defer rows.Close()

	var out []domain.Target
	for rows.Next() {
		var t domain.Target
		if err := rows.Scan(&t.TargetID, &t.ResourceID, &t.SiteID, &t.IP, &t.Port, &t.Method, &t.Enabled, &t.Priority, &t.SSL); err != nil {
			return nil, domain.WrapOp("store.ListTargetsForSite", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListResourcesForSite(ctx context.Context, siteID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT resource_id FROM targets WHERE site_id = ? AND enabled = 1`, siteID)
	if err != nil {
		return nil, domain.WrapOp("store.ListResourcesForSite", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var resourceID string
		if err := rows.Scan(&resourceID); err != nil {
			return nil, domain.WrapOp("store.ListResourcesForSite", err)
		}
		out = append(out, resourceID)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListResourceWhitelist(ctx context.Context, resourceID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email FROM resource_whitelist WHERE resource_id = ?`, resourceID)
	if err != nil {
		return nil, domain.WrapOp("store.ListResourceWhitelist", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, domain.WrapOp("store.ListResourceWhitelist", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSitesForResource(ctx context.Context, resourceID string) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT s.id, s.org_id, s.nice_id, s.name, s.type, s.public_ip, s.server_public_ip,
		       s.docker_socket_enabled, s.dns_authority_enabled, s.exit_node_id
		FROM sites s
		JOIN targets t ON t.site_id = s.id
		WHERE t.resource_id = ? AND t.enabled = 1`, resourceID,
	)
	if err != nil {
		return nil, domain.WrapOp("store.ListSitesForResource", err)
	}
	defer rows.Close()
	return scanSites(rows)
}

func scanSites(rows *sql.Rows) ([]domain.Site, error) {
	var out []domain.Site
	for rows.Next() {
		var site domain.Site
		var publicIP, serverPublicIP, exitNodeID sql.NullString
		if err := rows.Scan(&site.SiteID, &site.OrgID, &site.NiceID, &site.Name, &site.Type,
			&publicIP, &serverPublicIP, &site.DockerSocketEnabled, &site.DNSAuthorityEnabled, &exitNodeID); err != nil {
			return nil, domain.WrapOp("store.scanSites", err)
		}
		site.PublicIP = scanNullableString(publicIP)
		site.ServerPublicIP = scanNullableString(serverPublicIP)
		site.ExitNodeID = scanNullableString(exitNodeID)
		out = append(out, site)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetNewtBySite(ctx context.Context, siteID string) (*domain.Newt, error) {
	var n domain.Newt
	err := s.db.QueryRowContext(ctx, `SELECT id, site_id FROM newts WHERE site_id = ?`, siteID).Scan(&n.NewtID, &n.SiteID)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetNewtBySite", domain.ErrNotFound, siteID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetNewtBySite", err)
	}
	return &n, nil
}

func (s *SQLiteStore) GetNewtSiteID(ctx context.Context, newtID string) (string, error) {
	var siteID string
	err := s.db.QueryRowContext(ctx, `SELECT site_id FROM newts WHERE id = ?`, newtID).Scan(&siteID)
	if err == sql.ErrNoRows {
		return "", domain.NewError("store.GetNewtSiteID", domain.ErrNotFound, newtID)
	}
	if err != nil {
		return "", domain.WrapOp("store.GetNewtSiteID", err)
	}
	return siteID, nil
}

func (s *SQLiteStore) ListNewtsForSites(ctx context.Context, siteIDs []string) ([]domain.Newt, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	query, args := inClauseQuery(`SELECT id, site_id FROM newts WHERE site_id IN (%s)`, siteIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapOp("store.ListNewtsForSites", err)
	}
	defer rows.Close()

	var out []domain.Newt
	for rows.Next() {
		var n domain.Newt
		if err := rows.Scan(&n.NewtID, &n.SiteID); err != nil {
			return nil, domain.WrapOp("store.ListNewtsForSites", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListOlmsForSites(ctx context.Context, siteIDs []string) ([]domain.Olm, error) {
	if len(siteIDs) == 0 {
		return nil, nil
	}
	query, args := inClauseQuery(`
		SELECT DISTINCT o.id
		FROM olms o
		JOIN clients c ON c.olm_id = o.id
		JOIN client_site_associations csa ON csa.client_id = c.id
		WHERE csa.site_id IN (%s)`, siteIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapOp("store.ListOlmsForSites", err)
	}
	defer rows.Close()

	var out []domain.Olm
	for rows.Next() {
		var o domain.Olm
		if err := rows.Scan(&o.OlmID); err != nil {
			return nil, domain.WrapOp("store.ListOlmsForSites", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListClientsForOlm(ctx context.Context, olmID string) ([]domain.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, olm_id, pub_key FROM clients WHERE olm_id = ?`, olmID)
	if err != nil {
		return nil, domain.WrapOp("store.ListClientsForOlm", err)
	}
	defer rows.Close()

	var out []domain.Client
	for rows.Next() {
		var c domain.Client
		if err := rows.Scan(&c.ClientID, &c.OlmID, &c.PubKey); err != nil {
			return nil, domain.WrapOp("store.ListClientsForOlm", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListSitesForClient(ctx context.Context, clientID string) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.org_id, s.nice_id, s.name, s.type, s.public_ip, s.server_public_ip,
		       s.docker_socket_enabled, s.dns_authority_enabled, s.exit_node_id
		FROM sites s
		JOIN client_site_associations csa ON csa.site_id = s.id
		WHERE csa.client_id = ?`, clientID,
	)
	if err != nil {
		return nil, domain.WrapOp("store.ListSitesForClient", err)
	}
	defer rows.Close()
	return scanSites(rows)
}

func (s *SQLiteStore) GetExitNode(ctx context.Context, exitNodeID string) (*domain.ExitNode, error) {
	var e domain.ExitNode
	err := s.db.QueryRowContext(ctx, `SELECT id, public_key, endpoint FROM exit_nodes WHERE id = ?`, exitNodeID).
		Scan(&e.ExitNodeID, &e.PublicKey, &e.Endpoint)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetExitNode", domain.ErrNotFound, exitNodeID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetExitNode", err)
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertTargetHealth(ctx context.Context, targetID string, status string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `
		UPDATE target_health SET hc_health = ?, updated_at = ? WHERE target_id = ?`,
		status, now, targetID)
	if err != nil {
		return domain.WrapOp("store.UpsertTargetHealth", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO target_health (target_id, hc_enabled, hc_health, updated_at)
		VALUES (?, 1, ?, ?)`, targetID, status, now)
	if err != nil {
		return domain.WrapOp("store.UpsertTargetHealth", err)
	}
	return nil
}

func (s *SQLiteStore) GetTargetHealth(ctx context.Context, targetID string) (*domain.TargetHealth, error) {
	var h domain.TargetHealth
	err := s.db.QueryRowContext(ctx, `
		SELECT target_id, hc_enabled, hc_health FROM target_health WHERE target_id = ?`, targetID,
	).Scan(&h.TargetID, &h.HCEnabled, &h.HCHealth)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetTargetHealth", domain.ErrNotFound, targetID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetTargetHealth", err)
	}
	return &h, nil
}

func (s *SQLiteStore) ListStaleTargetHealth(ctx context.Context, olderThanSeconds int) ([]string, error) {
	cutoff := time.Now().UTC().Add(-time.Duration(olderThanSeconds) * time.Second).Format(time.RFC3339Nano)
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.resource_id FROM targets t
		JOIN target_health th ON th.target_id = t.id
		WHERE th.hc_enabled = 1 AND (th.updated_at = '' OR th.updated_at < ?)`, cutoff,
	)
	if err != nil {
		return nil, domain.WrapOp("store.ListStaleTargetHealth", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var out []string
	for rows.Next() {
		var resourceID string
		if err := rows.Scan(&resourceID); err != nil {
			return nil, domain.WrapOp("store.ListStaleTargetHealth", err)
		}
		if !seen[resourceID] {
			seen[resourceID] = true
			out = append(out, resourceID)
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetSessionByToken(ctx context.Context, token string) (*domain.Session, error) {
	var sess domain.Session
	var expiresAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_token, user_id, expires_at FROM sessions
		WHERE session_token = ? AND expires_at > ?`,
		token, time.Now().UTC().Format(time.RFC3339Nano),
	).Scan(&sess.SessionID, &sess.SessionToken, &sess.UserID, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetSessionByToken", domain.ErrNotFound, "")
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetSessionByToken", err)
	}
	sess.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return nil, domain.WrapOp("store.GetSessionByToken", err)
	}
	return &sess, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, `SELECT id, email FROM users WHERE id = ?`, userID).Scan(&u.UserID, &u.Email)
	if err == sql.ErrNoRows {
		return nil, domain.NewError("store.GetUser", domain.ErrNotFound, userID)
	}
	if err != nil {
		return nil, domain.WrapOp("store.GetUser", err)
	}
	return &u, nil
}

// inClauseQuery expands a %s placeholder in query into a "?,?,?" list sized
// to ids and returns the matching args.
func inClauseQuery(query string, ids []string) (string, []any) {
	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}
	return fmt.Sprintf(query, placeholders), args
}

var _ domain.Store = (*SQLiteStore)(nil)
