package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/internal/crawler"
	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/provider"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/places"
)

// Registry candidates below this confidence are never accepted; the lead
// stays open for a future pass.
const minCandidateConfidence = 0.75

// handleDiscover runs one work unit's text search, creating a lead and a
// detail task for each identifier not already present. Duplicates are
// dropped silently; the raw response is ledgered either way by the
// connector.
func (e *Engine) handleDiscover(ctx context.Context, campaign *model.Campaign, task *model.Task) (json.RawMessage, error) {
	var unit model.WorkUnit
	if err := json.Unmarshal(task.Input, &unit); err != nil {
		return nil, eris.Wrap(err, "engine: decode work unit")
	}

	req := connector.Request{
		TenantID: task.TenantID,
		RunID:    task.RunID,
		Stage:    "discover",
		Endpoint: "places/textsearch",
		Params:   map[string]string{"query": unit.Query},
	}
	body, err := e.placesConn.Call(ctx, req, func(ctx context.Context) ([]byte, error) {
		return e.placesAPI.TextSearch(ctx, unit.Query)
	})
	if err != nil {
		return nil, err
	}
	resp, err := places.ParseTextSearch(body)
	if err != nil {
		return nil, err
	}

	results := resp.Places
	if max := campaign.Config.Limits.MaxPerRegion; max > 0 && len(results) > max {
		results = results[:max]
	}

	created := 0
	for _, place := range results {
		if place.ID == "" {
			continue
		}
		if max := campaign.Config.Limits.MaxLeadsTotal; max > 0 {
			total, err := e.store.CountLeads(ctx, task.TenantID, task.RunID)
			if err != nil {
				return nil, err
			}
			if total >= max {
				zap.L().Info("lead limit reached, dropping remaining results",
					zap.Int64("run_id", task.RunID),
					zap.Int("max_leads_total", max),
				)
				break
			}
		}

		lead := &model.Lead{
			TenantID: task.TenantID,
			RunID:    task.RunID,
			PlaceID:  place.ID,
			Name:     place.DisplayName.Text,
			Address:  place.FormattedAddress,
			City:     unit.Region.City,
			State:    unit.Region.State,
		}
		isNew, row, err := e.store.CreateLeadIfAbsent(ctx, lead)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: create lead %s", place.ID)
		}
		if !isNew {
			continue
		}
		created++
		e.leads.Add(1)

		src := &model.LeadSource{
			LeadID:     row.ID,
			FieldName:  "place_id",
			SourceType: model.SourceDiscovery,
			Value:      place.ID,
			Confidence: 1.0,
			Evidence:   model.Evidence{Provider: "places", Method: "textsearch", Query: unit.Query},
		}
		if err := e.store.AddLeadSource(ctx, src); err != nil {
			return nil, err
		}

		detail := &model.Task{
			TenantID: task.TenantID,
			RunID:    task.RunID,
			Type:     model.TaskDetail,
			Input:    model.MarshalInput(model.DetailInput{PlaceID: place.ID}),
		}
		if _, err := e.store.CreateTask(ctx, detail); err != nil {
			return nil, eris.Wrapf(err, "engine: enqueue detail for %s", place.ID)
		}
		e.enqueued.Add(1)
	}

	return model.MarshalInput(map[string]int{"results": len(resp.Places), "leads_created": created}), nil
}

// handleDetail fetches full place attributes for one lead, transitions it to
// enriched_details, and fans out the enrichment stages: registry_enrich
// unconditionally, contact_crawl only when a domain was resolved.
func (e *Engine) handleDetail(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	var input model.DetailInput
	if err := json.Unmarshal(task.Input, &input); err != nil {
		return nil, eris.Wrap(err, "engine: decode detail input")
	}

	lead, err := e.store.GetLeadByPlace(ctx, task.TenantID, task.RunID, input.PlaceID)
	if err != nil {
		return nil, err
	}

	req := connector.Request{
		TenantID: task.TenantID,
		RunID:    task.RunID,
		Stage:    "detail",
		Endpoint: "places/details",
		Params:   map[string]string{"place_id": input.PlaceID},
	}
	body, err := e.placesConn.Call(ctx, req, func(ctx context.Context) ([]byte, error) {
		return e.placesAPI.Details(ctx, input.PlaceID)
	})
	if err != nil {
		return nil, err
	}
	place, err := places.ParseDetails(body)
	if err != nil {
		return nil, err
	}

	if place.DisplayName.Text != "" {
		lead.Name = place.DisplayName.Text
	}
	if place.FormattedAddress != "" {
		lead.Address = place.FormattedAddress
	}
	lead.Website = place.WebsiteURI
	lead.Domain = resolveDomain(place.WebsiteURI)
	lead.Phone = place.NationalPhoneNumber
	lead.Rating = place.Rating
	lead.ReviewCount = place.UserRatingCount
	lead.Status = model.LeadEnrichedDetails
	if len(place.Types) > 0 {
		if lead.Extra == nil {
			lead.Extra = map[string]any{}
		}
		lead.Extra["place_types"] = strings.Join(place.Types, ",")
	}
	if err := e.store.UpdateLeadDetails(ctx, lead); err != nil {
		return nil, err
	}

	enrich := &model.Task{
		TenantID: task.TenantID,
		RunID:    task.RunID,
		Type:     model.TaskRegistryEnrich,
		Input:    model.MarshalInput(model.EnrichInput{LeadID: lead.ID}),
	}
	if _, err := e.store.CreateTask(ctx, enrich); err != nil {
		return nil, err
	}
	e.enqueued.Add(1)

	if lead.Domain != "" {
		crawl := &model.Task{
			TenantID: task.TenantID,
			RunID:    task.RunID,
			Type:     model.TaskContactCrawl,
			Input:    model.MarshalInput(model.CrawlInput{LeadID: lead.ID, Website: lead.Website}),
		}
		if _, err := e.store.CreateTask(ctx, crawl); err != nil {
			return nil, err
		}
		e.enqueued.Add(1)
	}

	return model.MarshalInput(map[string]any{"lead_id": lead.ID, "domain": lead.Domain}), nil
}

// handleEnrich resolves a registry key for the lead when it has none, then
// enriches by key. Lookup must commit the key before enrich-by-key uses it;
// both writes are transactional with their provenance entries.
func (e *Engine) handleEnrich(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	var input model.EnrichInput
	if err := json.Unmarshal(task.Input, &input); err != nil {
		return nil, eris.Wrap(err, "engine: decode enrich input")
	}

	lead, err := e.store.GetLead(ctx, input.LeadID)
	if err != nil {
		return nil, err
	}

	prov := e.providers.Get(e.opts.DefaultProvider)
	if prov == nil {
		return nil, eris.Errorf("engine: provider %q not registered", e.opts.DefaultProvider)
	}

	if lead.RegistryKey == "" {
		candidates, err := prov.LookupByName(ctx, provider.NameQuery{
			Name:  lead.Name,
			City:  lead.City,
			State: lead.State,
		})
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 || candidates[0].Confidence < minCandidateConfidence {
			// Below threshold is not a failure; the lead stays open
			// for a future pass.
			return model.MarshalInput(map[string]any{"outcome": "no_confident_candidate"}), nil
		}

		best := candidates[0]
		src := model.LeadSource{
			FieldName:  "cnpj_candidate",
			SourceType: model.SourceProviderLookup,
			Value:      best.Key,
			Confidence: best.Confidence,
			Evidence:   model.Evidence{Provider: prov.Name(), Method: "lookup_by_name", Snippet: best.Explanation},
		}
		if err := e.store.AssignRegistryKey(ctx, lead.ID, best.Key, src); err != nil {
			return nil, err
		}
		lead.RegistryKey = best.Key
	}

	data, err := prov.EnrichByKey(ctx, lead.RegistryKey)
	if errors.Is(err, resilience.ErrNoMatch) {
		return model.MarshalInput(map[string]any{"outcome": "key_not_found", "key": lead.RegistryKey}), nil
	}
	if err != nil {
		return nil, err
	}

	band := provider.EstimateEmployees(data.SizeClass)
	extra := map[string]any{
		"legal_name": data.LegalName,
		"size_class": data.SizeClass,
	}
	for k, v := range data.Extra {
		extra[k] = v
	}
	if data.Email != "" {
		extra["registry_email"] = data.Email
	}
	if data.Phone != "" {
		extra["registry_phone"] = data.Phone
	}

	src := model.LeadSource{
		FieldName:  "employees_est",
		SourceType: model.SourceOfficialProvider,
		Value:      data.SizeClass,
		Confidence: 1.0,
		Evidence:   model.Evidence{Provider: prov.Name(), Method: "enrich_by_key", Query: lead.RegistryKey},
	}
	if err := e.store.ApplyEnrichment(ctx, lead.ID, lead.RegistryKey, band, extra, src); err != nil {
		return nil, err
	}

	return model.MarshalInput(map[string]any{
		"outcome":   "enriched",
		"key":       lead.RegistryKey,
		"employees": fmt.Sprintf("%d-%d", band.Min, band.Max),
	}), nil
}

// handleCrawl runs the bounded contact crawl for one lead and commits the
// found email with official_website provenance. Compliance skips complete
// the task with an explicit skipped outcome, distinct from failure.
func (e *Engine) handleCrawl(ctx context.Context, task *model.Task) (json.RawMessage, error) {
	var input model.CrawlInput
	if err := json.Unmarshal(task.Input, &input); err != nil {
		return nil, eris.Wrap(err, "engine: decode crawl input")
	}

	res, err := e.finder.Find(ctx, input.Website)
	if errors.Is(err, resilience.ErrOptedOut) {
		return model.MarshalInput(map[string]any{"outcome": "skipped", "reason": err.Error()}), nil
	}
	if err != nil {
		return nil, err
	}
	if res.Email == "" {
		return model.MarshalInput(map[string]any{"outcome": "no_email", "pages_fetched": res.PagesFetched}), nil
	}

	optedOut, err := e.store.IsOptedOut(ctx, task.TenantID, model.OptOutEmail, res.Email)
	if err != nil {
		return nil, err
	}
	if optedOut {
		return model.MarshalInput(map[string]any{"outcome": "skipped", "reason": "email opted out"}), nil
	}

	src := model.LeadSource{
		FieldName:  "email",
		SourceType: model.SourceOfficialWebsite,
		Value:      res.Email,
		Confidence: 1.0,
		Evidence:   model.Evidence{URL: res.SourceURL},
	}
	if err := e.store.SetLeadContact(ctx, input.LeadID, res.Email, res.SourceURL, src); err != nil {
		return nil, err
	}

	return model.MarshalInput(map[string]any{
		"outcome":       "found",
		"email":         res.Email,
		"source_url":    res.SourceURL,
		"pages_fetched": res.PagesFetched,
	}), nil
}

// resolveDomain extracts the canonical domain from a website URL, or ""
// when none resolves.
func resolveDomain(website string) string {
	if website == "" {
		return ""
	}
	raw := website
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return crawler.CanonicalDomain(u.Host)
}
