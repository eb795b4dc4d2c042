// Package scraper refreshes the instance-type catalog from the vendor's
// HTML documentation pages. Two generations exist: HVM (current) and PV
// (previous); each refresh runs the family pass before the type pass so
// the instance_list foreign key always has a target.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/net/html"

	"github.com/stratus-ops/stratus/catalog"
	"github.com/stratus-ops/stratus/telemetry"
)

// Default vendor documentation pages.
const (
	DefaultHVMURL = "https://aws.amazon.com/ec2/instance-types/"
	DefaultPVURL  = "https://aws.amazon.com/ec2/previous-generation/"
)

// Scraper fetches and parses the two vendor pages and upserts the result.
type Scraper struct {
	store  catalog.TypeStore
	client *http.Client
	hvmURL string
	pvURL  string
	logger *telemetry.Logger
}

// New creates a scraper against the default vendor pages.
func New(store catalog.TypeStore) *Scraper {
	return &Scraper{
		store:  store,
		client: &http.Client{Timeout: 60 * time.Second},
		hvmURL: DefaultHVMURL,
		pvURL:  DefaultPVURL,
		logger: telemetry.NewLogger("scraper"),
	}
}

// WithURLs overrides the vendor pages; used by tests.
func (s *Scraper) WithURLs(hvmURL, pvURL string) *Scraper {
	s.hvmURL = hvmURL
	s.pvURL = pvURL
	return s
}

// Run refreshes both generations. Each generation upserts families
// first, then types.
func (s *Scraper) Run(ctx context.Context) error {
	start := time.Now()
	defer func() {
		telemetry.Observe(ctx, telemetry.ScrapeDuration, time.Since(start).Seconds())
	}()

	if err := s.refresh(ctx, s.hvmURL, parseHVM); err != nil {
		return fmt.Errorf("refresh hvm catalog: %w", err)
	}
	if err := s.refresh(ctx, s.pvURL, parsePV); err != nil {
		return fmt.Errorf("refresh pv catalog: %w", err)
	}
	return nil
}

type parseFunc func(*html.Node) ([]catalog.InstanceFamily, []catalog.InstanceType)

func (s *Scraper) refresh(ctx context.Context, url string, parse parseFunc) error {
	doc, err := s.fetch(ctx, url)
	if err != nil {
		return err
	}

	families, instanceTypes := parse(doc)
	s.logger.WithContext(ctx).Info().
		Str("url", url).
		Int("families", len(families)).
		Int("types", len(instanceTypes)).
		Msg("parsed instance-type page")

	for _, family := range families {
		if err := s.store.UpsertFamily(ctx, family); err != nil {
			return err
		}
		telemetry.Count(ctx, telemetry.CatalogUpserts, 1)
	}
	for _, it := range instanceTypes {
		if err := s.store.UpsertInstanceType(ctx, it); err != nil {
			return err
		}
		telemetry.Count(ctx, telemetry.CatalogUpserts, 1)
	}
	return nil
}

func (s *Scraper) fetch(ctx context.Context, url string) (*html.Node, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return doc, nil
}
