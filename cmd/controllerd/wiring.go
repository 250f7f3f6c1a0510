package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tunnelctl/controller/internal/bus"
	"github.com/tunnelctl/controller/internal/domain"
	"github.com/tunnelctl/controller/internal/eventbus"
	"github.com/tunnelctl/controller/internal/httpapi"
	"github.com/tunnelctl/controller/internal/infra/config"
	"github.com/tunnelctl/controller/internal/infra/logger"
	"github.com/tunnelctl/controller/internal/infra/middleware"
	"github.com/tunnelctl/controller/internal/keypair"
	"github.com/tunnelctl/controller/internal/reconciler/authproxy"
	"github.com/tunnelctl/controller/internal/reconciler/dnsauthority"
	"github.com/tunnelctl/controller/internal/reconciler/health"
	"github.com/tunnelctl/controller/internal/reconciler/sync"
	"github.com/tunnelctl/controller/internal/security"
	"github.com/tunnelctl/controller/internal/store"
)

// app holds every long-lived component wired together at startup.
type app struct {
	store      *store.SQLiteStore
	events     *eventbus.Bus
	audit      *security.FileAuditLogger
	keys       *keypair.Manager
	busServer  *bus.Server
	dns        *dnsauthority.Reconciler
	authProxy  *authproxy.Reconciler
	health     *health.Ingestor
	sync       *sync.Bootstrapper
	httpServer *http.Server
	startedAt  time.Time
	counters   *httpapi.Counters
}

func wire(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, func(), error) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}

	events := eventbus.New(log)

	var audit *security.FileAuditLogger
	if cfg.Security.Audit.Enabled {
		audit, err = security.NewFileAuditLogger(cfg.Security.Audit.Path)
		if err != nil {
			st.Close()
			return nil, nil, fmt.Errorf("audit logger: %w", err)
		}
		maxSize, err := security.ParseRetentionMaxSize(cfg.Security.Audit.Retention.MaxSize)
		if err != nil {
			st.Close()
			audit.Close()
			return nil, nil, fmt.Errorf("audit retention: %w", err)
		}
		audit.SetRetention(security.RetentionPolicy{
			MaxAge:  cfg.Security.Audit.Retention.MaxAge,
			MaxSize: maxSize,
		})
	}

	keys := keypair.NewManager(cfg.Keypair.Dir)
	generated, err := keys.Load()
	if err != nil {
		st.Close()
		if audit != nil {
			audit.Close()
		}
		return nil, nil, fmt.Errorf("keypair: %w", err)
	}
	if generated {
		log.Info("jwt keypair generated", "dir", cfg.Keypair.Dir)
	}

	tokens := make([]bus.TokenEntry, 0, len(cfg.Bus.Tokens))
	for _, t := range cfg.Bus.Tokens {
		var kind domain.AgentKind
		switch t.Kind {
		case "newt":
			kind = domain.AgentKindNewt
		case "olm":
			kind = domain.AgentKindOlm
		}
		tokens = append(tokens, bus.TokenEntry{Token: t.Token, Kind: kind, ID: t.ID})
	}
	auth := bus.NewStaticTokenAuth(tokens)

	var auditLogger domain.AuditLogger
	if audit != nil {
		auditLogger = audit
	}

	busServer := bus.NewServer(events, auditLogger, auth, cfg.Bus.Addr, logger.ForComponent(log, "bus"))
	busServer.SetSendQueueSize(cfg.Bus.SendQueueSize)

	dns := dnsauthority.New(st, busServer, events, auditLogger, logger.ForComponent(log, "dnsauthority"))
	authProxy := authproxy.New(st, busServer, events, auditLogger, logger.ForComponent(log, "authproxy"), keys, cfg.App.DashboardURL, cfg.Server.Secret)
	healthIngestor := health.New(st, events, auditLogger, logger.ForComponent(log, "health"), dns)
	bootstrapper := sync.New(st, busServer, events, auditLogger, logger.ForComponent(log, "sync"), dns, authProxy, cfg.Gerbil.ClientsStartPort)

	busServer.Register(domain.MsgHealthcheckStatus, healthIngestor.Handle)
	busServer.OnConnect(bootstrapper.OnConnect)

	counters := &httpapi.Counters{}
	httpapi.WireCounters(events, counters)
	startedAt := time.Now()
	session := httpapi.NewSessionHandler(st, events, auditLogger, logger.ForComponent(log, "httpapi"))
	status := httpapi.NewStatusHandler(startedAt, counters)
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerMin: cfg.Security.RateLimit.RequestsPerMin,
		BurstSize:      cfg.Security.RateLimit.BurstSize,
		TrustedProxies: cfg.Security.RateLimit.TrustedProxies,
	}
	mux := httpapi.NewMux(ctx, session, status, rateLimitCfg, logger.ForComponent(log, "http"))
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.InternalPort),
		Handler: mux,
	}

	a := &app{
		store:      st,
		events:     events,
		audit:      audit,
		keys:       keys,
		busServer:  busServer,
		dns:        dns,
		authProxy:  authProxy,
		health:     healthIngestor,
		sync:       bootstrapper,
		httpServer: httpServer,
		startedAt:  startedAt,
		counters:   counters,
	}

	cleanup := func() {
		events.Close()
		if audit != nil {
			audit.Close()
		}
		st.Close()
	}

	return a, cleanup, nil
}
