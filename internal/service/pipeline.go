package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"domainatlas/internal/classify"
	"domainatlas/internal/export"
	"domainatlas/internal/model"
	"domainatlas/internal/storage"
	"domainatlas/internal/utils"
)

// ErrRunInProgress is returned when a run is triggered while another one is
// still active.
var ErrRunInProgress = errors.New("a pipeline run is already in progress")

// RunOptions control how much of the pipeline executes. ClassifyOnly wins
// when both flags are set: it reclassifies the stored snapshot without any
// scraping or network lookups. ImportFile names a previously exported CSV in
// the data directory to reclassify instead of the stored snapshot; it implies
// nothing about scraping and is only honored together with ClassifyOnly.
type RunOptions struct {
	SkipScrape   bool   `json:"skip_scrape" query:"skip_scrape" form:"skip_scrape"`
	ClassifyOnly bool   `json:"classify_only" query:"classify_only" form:"classify_only"`
	ImportFile   string `json:"import_file" query:"import_file" form:"import_file"`
}

// Pipeline runs the full attribution cycle: fetch the organization list,
// resolve per-domain attributes, follow redirects, classify, reconcile
// effective verdicts, and persist the outcome.
type Pipeline struct {
	Store     *storage.Storage
	Directory *DirectoryService
	Resolver  *Resolver
	Redirects *RedirectService
	Bus       *ProgressBus

	Concurrency     int
	CacheTTL        time.Duration
	DataDir         string
	LookupRegistrar bool

	mu sync.Mutex
}

// historySnapshot is the per-domain unit stored in run history. It carries
// attribution only, so diffs between runs show provider changes without
// organization metadata noise.
type historySnapshot struct {
	model.DomainAttributes
	Registrar                string `json:"registrar,omitempty"`
	RedirectStatus           string `json:"redirect_status"`
	FinalDomain              string `json:"final_domain,omitempty"`
	EmailProvider            string `json:"email_provider"`
	DNSCategory              string `json:"dns_category"`
	HostingCategory          string `json:"hosting_category"`
	EffectiveEmailProvider   string `json:"effective_email_provider"`
	EffectiveDNSCategory     string `json:"effective_dns_category"`
	EffectiveHostingCategory string `json:"effective_hosting_category"`
}

// Run executes one pipeline run and returns its summary. Only one run may be
// active at a time; a concurrent trigger gets ErrRunInProgress.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*model.RunSummary, error) {
	if !p.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.mu.Unlock()
	return p.execute(ctx, opts)
}

// Start launches a run in the background, failing fast with ErrRunInProgress.
// The run's outcome is reported through logs, metrics and the progress bus.
func (p *Pipeline) Start(opts RunOptions) error {
	if !p.mu.TryLock() {
		return ErrRunInProgress
	}
	go func() {
		defer p.mu.Unlock()
		_, _ = p.execute(context.Background(), opts)
	}()
	return nil
}

func (p *Pipeline) execute(ctx context.Context, opts RunOptions) (*model.RunSummary, error) {
	start := time.Now()
	p.publish(ProgressEvent{Type: "run", Stage: "started"})

	summary, err := p.run(ctx, opts, start)
	runDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		utils.Log.Error("pipeline run failed", utils.Field("error", err.Error()))
		p.publish(ProgressEvent{Type: "run", Stage: "failed", Message: err.Error()})
		return nil, err
	}
	runsTotal.WithLabelValues("ok").Inc()
	utils.Log.Info("pipeline run finished",
		utils.Field("organizations", summary.Organizations),
		utils.Field("domains", summary.Domains),
		utils.Field("redirects", summary.Redirects),
		utils.Field("duration", time.Since(start).String()))
	p.publish(ProgressEvent{Type: "run", Stage: "finished", Done: summary.Organizations, Total: summary.Organizations})
	return summary, nil
}

func (p *Pipeline) run(ctx context.Context, opts RunOptions, start time.Time) (*model.RunSummary, error) {
	var records []model.Record
	var err error
	switch {
	case opts.ClassifyOnly && opts.ImportFile != "":
		// Only files inside the data directory can be imported.
		path := filepath.Join(p.DataDir, filepath.Base(opts.ImportFile))
		records, err = export.ReadRawCSV(path)
		if err != nil {
			return nil, fmt.Errorf("import snapshot: %w", err)
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("snapshot %s has no rows", path)
		}
	case opts.ClassifyOnly:
		records, err = p.Store.GetResults(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored results: %w", err)
		}
		if len(records) == 0 {
			return nil, errors.New("no stored results to reclassify")
		}
	default:
		records, err = p.collect(ctx, opts)
		if err != nil {
			return nil, err
		}
	}

	p.publish(ProgressEvent{Type: "run", Stage: "classifying", Total: len(records)})
	for i := range records {
		classify.Apply(&records[i])
		classify.Resolve(&records[i])
	}

	summary := buildSummary(records, start)
	updateCategoryGauges(&summary)

	p.publish(ProgressEvent{Type: "run", Stage: "persisting"})
	if err := p.Store.SaveResults(ctx, records); err != nil {
		return nil, fmt.Errorf("save results: %w", err)
	}
	if err := p.Store.SaveSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	for i := range records {
		rec := &records[i]
		snap := historySnapshot{
			DomainAttributes:         rec.Attributes(),
			Registrar:                rec.Registrar,
			RedirectStatus:           rec.RedirectStatus,
			FinalDomain:              rec.FinalDomain,
			EmailProvider:            rec.EmailProvider,
			DNSCategory:              rec.DNSCategory,
			HostingCategory:          rec.HostingCategory,
			EffectiveEmailProvider:   rec.EffectiveEmailProvider,
			EffectiveDNSCategory:     rec.EffectiveDNSCategory,
			EffectiveHostingCategory: rec.EffectiveHostingCategory,
		}
		if err := p.Store.AddHistory(ctx, rec.Domain, snap); err != nil {
			utils.Log.Warn("recording history failed", utils.Field("domain", rec.Domain), utils.Field("error", err.Error()))
		}
	}

	if p.DataDir != "" {
		p.publish(ProgressEvent{Type: "run", Stage: "exporting"})
		csvPath, jsonPath, err := export.Write(p.DataDir, records, time.Now())
		if err != nil {
			return nil, fmt.Errorf("export results: %w", err)
		}
		utils.Log.Info("exported results", utils.Field("csv", csvPath), utils.Field("json", jsonPath))
	}

	return &summary, nil
}

// collect scrapes (or reloads) the organization list and fills in raw
// attributes: redirects per organization URL, then DNS, ASN and registrar
// data per unique domain. Lookup failures degrade to empty attributes.
func (p *Pipeline) collect(ctx context.Context, opts RunOptions) ([]model.Record, error) {
	orgs, err := p.organizations(ctx, opts)
	if err != nil {
		return nil, err
	}

	records := make([]model.Record, 0, len(orgs))
	for _, org := range orgs {
		if strings.TrimSpace(org.Domain) == "" {
			utils.Log.Warn("skipping organization without domain", utils.Field("name", org.NameIcelandic))
			continue
		}
		records = append(records, model.Record{Organization: org})
	}

	p.publish(ProgressEvent{Type: "run", Stage: "redirects", Total: len(records)})
	var mu sync.Mutex
	done := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for i := range records {
		rec := &records[i]
		g.Go(func() error {
			res := p.Redirects.Follow(gctx, rec.URL)
			finalDomain := utils.ExtractDomain(res.FinalURL)
			rec.RedirectCount = res.Hops
			rec.RedirectCodes = res.Codes
			if res.Hops > 0 && finalDomain != rec.Domain {
				rec.FinalURL = res.FinalURL
				rec.FinalDomain = finalDomain
			}
			mu.Lock()
			done++
			n := done
			mu.Unlock()
			p.publish(ProgressEvent{Type: "progress", Stage: "redirects", Domain: rec.Domain, Done: n, Total: len(records)})
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// several organizations share a domain; look each one up once
	unique := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	add := func(domain string) {
		if domain == "" {
			return
		}
		if _, ok := seen[domain]; ok {
			return
		}
		seen[domain] = struct{}{}
		unique = append(unique, domain)
	}
	for i := range records {
		add(records[i].Domain)
		add(records[i].FinalDomain)
	}

	p.publish(ProgressEvent{Type: "run", Stage: "attributes", Total: len(unique)})
	attrs := make(map[string]model.DomainAttributes, len(unique))
	registrars := make(map[string]string, len(unique))
	done = 0
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.limit())
	for _, domain := range unique {
		g.Go(func() error {
			a := p.attributes(gctx, domain)
			var reg string
			if p.LookupRegistrar {
				reg = Registrar(domain)
			}
			mu.Lock()
			attrs[domain] = a
			registrars[domain] = reg
			done++
			n := done
			mu.Unlock()
			p.publish(ProgressEvent{Type: "progress", Stage: "attributes", Domain: domain, Done: n, Total: len(unique)})
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i := range records {
		rec := &records[i]
		rec.SetAttributes(attrs[rec.Domain])
		rec.Registrar = registrars[rec.Domain]
		if rec.FinalDomain != "" {
			rec.SetFinalAttributes(attrs[rec.FinalDomain])
		}
	}
	return records, nil
}

func (p *Pipeline) organizations(ctx context.Context, opts RunOptions) ([]model.Organization, error) {
	if opts.SkipScrape {
		orgs, err := p.Store.GetOrganizations(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored organizations: %w", err)
		}
		if len(orgs) == 0 {
			return nil, errors.New("no stored organizations; run without skip_scrape first")
		}
		return orgs, nil
	}

	p.publish(ProgressEvent{Type: "run", Stage: "scraping"})
	orgs, err := p.Directory.FetchOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape directory: %w", err)
	}
	if err := p.Store.SaveOrganizations(ctx, orgs); err != nil {
		return nil, fmt.Errorf("save organizations: %w", err)
	}
	return orgs, nil
}

// attributes resolves one domain, preferring the Redis cache when a TTL is
// configured. Invalid domains and lookup failures come back empty, never as
// an error; classification turns them into Unknown.
func (p *Pipeline) attributes(ctx context.Context, domain string) model.DomainAttributes {
	if !utils.IsValidDomain(domain) {
		utils.Log.Warn("not looking up invalid domain", utils.Field("domain", domain))
		return model.DomainAttributes{}
	}
	if p.CacheTTL > 0 {
		if cached, err := p.Store.GetCachedAttributes(ctx, domain); err == nil && cached != nil {
			attributeCacheHits.Inc()
			return *cached
		}
	}
	a := p.Resolver.Attributes(ctx, domain)
	domainsResolved.Inc()
	if p.CacheTTL > 0 {
		if err := p.Store.SetCachedAttributes(ctx, domain, a, p.CacheTTL); err != nil {
			utils.Log.Warn("caching attributes failed", utils.Field("domain", domain), utils.Field("error", err.Error()))
		}
	}
	return a
}

func (p *Pipeline) limit() int {
	if p.Concurrency > 0 {
		return p.Concurrency
	}
	return 1
}

func (p *Pipeline) publish(ev ProgressEvent) {
	if p.Bus != nil {
		p.Bus.Publish(ev)
	}
}

func buildSummary(records []model.Record, start time.Time) model.RunSummary {
	s := model.RunSummary{
		StartedAt:     start.UTC().Format(time.RFC3339),
		FinishedAt:    time.Now().UTC().Format(time.RFC3339),
		Organizations: len(records),
		Email:         map[string]int{},
		DNS:           map[string]int{},
		Hosting:       map[string]int{},
		Disclaimers:   map[string]int{},
	}
	domains := make(map[string]struct{}, len(records))
	for i := range records {
		r := &records[i]
		domains[r.Domain] = struct{}{}
		if r.RedirectCount > 0 {
			s.Redirects++
		}
		s.Email[r.EffectiveEmailProvider]++
		s.DNS[r.EffectiveDNSCategory]++
		s.Hosting[r.EffectiveHostingCategory]++
		if r.EmailDisclaimer {
			s.Disclaimers["email"]++
		}
		if r.DNSDisclaimer {
			s.Disclaimers["dns"]++
		}
		if r.HostingDisclaimer {
			s.Disclaimers["hosting"]++
		}
	}
	s.Domains = len(domains)
	return s
}

func updateCategoryGauges(s *model.RunSummary) {
	categoryGauge.Reset()
	for category, n := range s.Email {
		categoryGauge.WithLabelValues("email", category).Set(float64(n))
	}
	for category, n := range s.DNS {
		categoryGauge.WithLabelValues("dns", category).Set(float64(n))
	}
	for category, n := range s.Hosting {
		categoryGauge.WithLabelValues("hosting", category).Set(float64(n))
	}
}
