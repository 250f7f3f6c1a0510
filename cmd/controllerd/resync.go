package main

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/tunnelctl/controller/internal/infra/config"
)

// startResync schedules the periodic fallback resync job (§4.7): every
// tick it scans for targets whose health row has gone stale and re-runs
// the DNS-authority reconciler for their resources, recovering from a bus
// message dropped by a full outbound queue that resync-on-reconnect won't
// catch until the agent's next reconnect. Returns a stop function; a no-op
// if resync is disabled.
func startResync(ctx context.Context, cfg config.ResyncConfig, a *app, log *slog.Logger) func() {
	if !cfg.Enabled {
		return func() {}
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Schedule, func() {
		runResyncTick(ctx, a, cfg, log)
	})
	if err != nil {
		log.Error("resync: invalid schedule, periodic fallback disabled", "schedule", cfg.Schedule, "error", err)
		return func() {}
	}

	c.Start()
	return func() {
		stopCtx := c.Stop()
		<-stopCtx.Done()
	}
}

func runResyncTick(ctx context.Context, a *app, cfg config.ResyncConfig, log *slog.Logger) {
	staleTargets, err := a.store.ListStaleTargetHealth(ctx, int(cfg.StaleAfter.Seconds()))
	if err != nil {
		log.Warn("resync: failed to list stale target health", "error", err)
		return
	}
	if len(staleTargets) == 0 {
		return
	}

	seen := make(map[string]bool)
	for _, targetID := range staleTargets {
		target, err := a.store.GetTarget(ctx, targetID)
		if err != nil {
			continue
		}
		if seen[target.ResourceID] {
			continue
		}
		seen[target.ResourceID] = true

		if err := a.dns.UpdateForResource(ctx, target.ResourceID); err != nil {
			log.Warn("resync: failed to reconcile resource", "resource_id", target.ResourceID, "error", err)
		}
	}

	log.Info("resync: fallback tick complete", "stale_targets", len(staleTargets), "resources_reconciled", len(seen))
}
