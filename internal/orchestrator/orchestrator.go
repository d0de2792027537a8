// Package orchestrator wires config, the SNMP client, the template and
// label caches, the scheduler, and a sink together into the warmup +
// scheduling lifecycle described in spec.md §4.5.
package orchestrator

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/netmetrics/snmp-label-exporter/internal/config"
	"github.com/netmetrics/snmp-label-exporter/internal/labelstore"
	"github.com/netmetrics/snmp-label-exporter/internal/scheduler"
	"github.com/netmetrics/snmp-label-exporter/internal/sink"
	"github.com/netmetrics/snmp-label-exporter/internal/snmpclient"
	"github.com/netmetrics/snmp-label-exporter/internal/templatestore"
	"github.com/netmetrics/snmp-label-exporter/models"
)

// Querier is the subset of *snmpclient.Client the orchestrator depends on.
// Tests inject a fake to avoid touching the network.
type Querier interface {
	Query(ctx context.Context, target, community, version, oid string, queryType models.QueryType, storeMethod models.StoreMethod, oidSuffix string, filter *models.Filter) ([]snmpclient.Row, error)
}

// Orchestrator runs the warmup phases of spec.md §4.5 and registers the
// recurring jobs that keep the caches and sink up to date afterwards.
type Orchestrator struct {
	cfg    *config.LoadedConfig
	client Querier
	tpl    *templatestore.Store
	labels *labelstore.Store
	sched  *scheduler.Scheduler
	sink   sink.Sink
	logger *slog.Logger
}

// New builds an Orchestrator. maxThreads bounds the scheduler's worker pool.
func New(cfg *config.LoadedConfig, client Querier, snk sink.Sink, maxThreads int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	return &Orchestrator{
		cfg:    cfg,
		client: client,
		tpl:    templatestore.New(),
		labels: labelstore.New(),
		sched:  scheduler.New(maxThreads, logger),
		sink:   snk,
		logger: logger,
	}
}

// Warmup executes the three sequential warmup phases of spec.md §4.5
// (templates, labels, join registration), registering recurring jobs for
// templates and labels along the way, then registers the metric jobs.
// Each phase's tasks run concurrently and are awaited before the next phase
// starts.
func (o *Orchestrator) Warmup(ctx context.Context) {
	for name, desc := range o.cfg.Description {
		o.sink.AddMetric(name, desc.Type, desc.Description)
	}

	o.warmupTemplates(ctx)
	o.warmupLabels(ctx)
	o.warmupJoins()
	o.registerMetricJobs()
}

// Run starts the scheduler. It blocks until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	o.sched.Start(ctx)
}

// Stop waits for the scheduler's loop to exit.
func (o *Orchestrator) Stop() {
	o.sched.Stop()
}

// Dump renders a deterministic text snapshot of both the template and label
// caches, for the /dump debug endpoint (spec.md §6).
func (o *Orchestrator) Dump() string {
	return "# template store\n" + o.tpl.Dump() + "# label store\n" + o.labels.Dump()
}

// ─────────────────────────────────────────────────────────────────────────────
// Phase 1: templates
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) warmupTemplates(ctx context.Context) {
	var wg sync.WaitGroup
	for _, host := range o.cfg.Hosts {
		for _, moduleName := range host.Modules {
			module := o.cfg.Modules[moduleName]
			for tname, tmpl := range module.TemplateLabels {
				host, module, tname, tmpl := host, module, tname, tmpl
				wg.Add(1)
				go func() {
					defer wg.Done()
					o.updateTemplateLabel(ctx, host, module, tmpl)
				}()

				everySeconds := tmpl.Every
				o.sched.Register(scheduler.Job{
					ID:    "template:" + host.Hostname + ":" + module.Name + ":" + tname,
					Every: time.Duration(everySeconds) * time.Second,
					Run: func(jobCtx context.Context) {
						o.updateTemplateLabel(jobCtx, host, module, tmpl)
					},
				})
			}
		}
	}
	wg.Wait()
}

func (o *Orchestrator) updateTemplateLabel(ctx context.Context, host models.Host, module models.Module, tmpl models.TemplateOID) {
	rows, err := o.client.Query(ctx, host.Hostname, host.Community, host.Version, tmpl.OID, tmpl.QueryType, tmpl.StoreMethod, tmpl.OIDSuffix, tmpl.Filter)
	if err != nil {
		o.logger.Error("orchestrator: template query failed", "host", host.Hostname, "module", module.Name, "template", tmpl.Name, "error", err)
		return
	}

	if tmpl.QueryType == models.QueryGet {
		if len(rows) > 0 {
			o.tpl.SetLabel(host.Hostname, module.Name, tmpl.Name, rows[0].Value, nil)
		}
		return
	}
	for _, r := range rows {
		idx := r.Index
		o.tpl.SetLabel(host.Hostname, module.Name, tmpl.Name, r.Value, &idx)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Phase 2: labels
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) warmupLabels(ctx context.Context) {
	var wg sync.WaitGroup
	for _, host := range o.cfg.Hosts {
		for _, moduleName := range host.Modules {
			module := o.cfg.Modules[moduleName]
			for groupName, group := range module.Labels {
				for _, labelOID := range group {
					host, module, groupName, labelOID := host, module, groupName, labelOID
					wg.Add(1)
					go func() {
						defer wg.Done()
						o.updateLabel(ctx, host, module, groupName, labelOID)
					}()

					o.sched.Register(scheduler.Job{
						ID:    "label:" + host.Hostname + ":" + module.Name + ":" + groupName + ":" + labelOID.Name,
						Every: time.Duration(labelOID.Every) * time.Second,
						Run: func(jobCtx context.Context) {
							o.updateLabel(jobCtx, host, module, groupName, labelOID)
						},
					})
				}
			}
		}
	}
	wg.Wait()
}

func (o *Orchestrator) communityTemplateFor(module models.Module, templateName string) string {
	if templateName == "" {
		return ""
	}
	return module.TemplateLabels[templateName].CommunityTemplate
}

func (o *Orchestrator) updateLabel(ctx context.Context, host models.Host, module models.Module, groupName string, labelOID models.LabelOID) {
	communityTemplate := o.communityTemplateFor(module, labelOID.TemplateName)
	communities := o.tpl.ResolveCommunity(host.Hostname, module.Name, labelOID.TemplateName, communityTemplate, host.Community)

	for _, c := range communities {
		rows, err := o.client.Query(ctx, host.Hostname, c.Community, host.Version, labelOID.OID, labelOID.QueryType, labelOID.StoreMethod, labelOID.OIDSuffix, labelOID.Filter)
		if err != nil {
			o.logger.Error("orchestrator: label query failed", "host", host.Hostname, "module", module.Name, "group", groupName, "name", labelOID.Name, "error", err)
			continue
		}

		if labelOID.QueryType == models.QueryGet {
			if len(rows) > 0 {
				o.labels.SetLabel(host.Hostname, module.Name, groupName, labelOID.Name, rows[0].Value, c.TemplateName, c.TemplateValue, nil)
			}
			continue
		}

		fresh := make(map[string]bool, len(rows))
		for _, r := range rows {
			fresh[r.Index] = true
		}
		o.labels.InvalidateCache(host.Hostname, module.Name, groupName, c.TemplateName, c.TemplateValue, fresh)
		for _, r := range rows {
			idx := r.Index
			o.labels.SetLabel(host.Hostname, module.Name, groupName, labelOID.Name, r.Value, c.TemplateName, c.TemplateValue, &idx)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Phase 3: joins (synchronous — pure schema registration)
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) warmupJoins() {
	for _, module := range o.cfg.Modules {
		for groupName, spec := range module.Joins {
			o.labels.SetJoin(module.Name, groupName, spec)
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Phase 4: metrics
// ─────────────────────────────────────────────────────────────────────────────

func (o *Orchestrator) registerMetricJobs() {
	for _, host := range o.cfg.Hosts {
		for _, moduleName := range host.Modules {
			module := o.cfg.Modules[moduleName]
			for _, metric := range module.Metrics {
				host, module, metric := host, module, metric
				o.sched.Register(scheduler.Job{
					ID:    "metric:" + host.Hostname + ":" + module.Name + ":" + metric.Name,
					Every: time.Duration(metric.Every) * time.Second,
					Run: func(jobCtx context.Context) {
						o.updateMetric(jobCtx, host, module, metric)
					},
				})
			}
		}
	}
}

func (o *Orchestrator) updateMetric(ctx context.Context, host models.Host, module models.Module, metric models.MetricOID) {
	communityTemplate := o.communityTemplateFor(module, metric.TemplateName)
	communities := o.tpl.ResolveCommunity(host.Hostname, module.Name, metric.TemplateName, communityTemplate, host.Community)

	o.sink.Clear(host.Hostname, metric.Name)
	defer o.sink.ReleaseUpdateLock(host.Hostname, metric.Name)

	for _, c := range communities {
		rows, err := o.client.Query(ctx, host.Hostname, c.Community, host.Version, metric.OID, metric.QueryType, metric.StoreMethod, metric.OIDSuffix, metric.Filter)
		if err != nil {
			o.logger.Error("orchestrator: metric query failed", "host", host.Hostname, "module", module.Name, "metric", metric.Name, "error", err)
			continue
		}

		for _, r := range rows {
			var walkIdx *string
			if metric.QueryType != models.QueryGet {
				idx := r.Index
				walkIdx = &idx
			}

			labels := o.labels.ResolveLabelGroupRefs(host.Hostname, module.Name, metric.LabelGroup, c.TemplateName, c.TemplateValue, walkIdx)
			if len(metric.LabelGroup) > 0 && len(labels) == 0 {
				continue // poisoned resolution: drop the whole sample
			}

			merged := models.MergeLabels(host.StaticLabels, labels)

			val, err := strconv.ParseFloat(r.Value, 64)
			if err != nil {
				o.logger.Error("orchestrator: non-numeric metric value", "metric", metric.Name, "value", r.Value, "error", err)
				continue
			}
			o.sink.UpdateMetric(host.Hostname, metric.Name, merged, val)
		}
	}
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
