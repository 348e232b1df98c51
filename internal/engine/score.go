package engine

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/provider"
)

// ScoreRun applies the campaign's filters and scoring weights to every lead
// in the run. Filtered-out leads are status-transitioned to discarded, never
// deleted.
func (e *Engine) ScoreRun(ctx context.Context, campaign *model.Campaign, run *model.Run) error {
	leads, err := e.store.ListLeads(ctx, e.opts.TenantID, run.ID)
	if err != nil {
		return eris.Wrap(err, "engine: list leads for scoring")
	}

	scored, discarded := 0, 0
	for i := range leads {
		lead := &leads[i]
		score, keep := evaluateLead(lead, campaign.Config)

		status := model.LeadScored
		if !keep {
			status = model.LeadDiscarded
			discarded++
		} else {
			scored++
		}
		if err := e.store.SetLeadScore(ctx, lead.ID, score, status); err != nil {
			return eris.Wrapf(err, "engine: score lead %d", lead.ID)
		}
	}

	zap.L().Info("score pass complete",
		zap.Int64("run_id", run.ID),
		zap.Int("scored", scored),
		zap.Int("discarded", discarded),
	)
	return nil
}

// evaluateLead returns the lead's score and whether it survives the
// campaign filters.
func evaluateLead(lead *model.Lead, cfg model.CampaignConfig) (float64, bool) {
	if !passesKeyFilter(lead.RegistryKey, cfg.Filters.RegistryKey) {
		return 0, false
	}
	if cfg.Filters.Contacts.RequirePhone && lead.Phone == "" {
		return 0, false
	}
	if cfg.Filters.Contacts.RequireEmail && lead.Email == "" {
		return 0, false
	}
	if cfg.Filters.Contacts.RequireWebsite && lead.Website == "" {
		return 0, false
	}

	inRange, keep, zeroScore := applyEmployeeFilter(lead.Employees, cfg.Filters.Employees)
	if !keep {
		return 0, false
	}
	if zeroScore {
		return 0, true
	}

	w := cfg.Weights
	score := 0.0
	if lead.Phone != "" {
		score += float64(w.HasPhone)
	}
	if lead.Email != "" {
		score += float64(w.HasEmail)
	}
	if lead.Website != "" {
		score += float64(w.HasWebsite)
	}
	if inRange {
		score += float64(w.EmployeesInRange)
	}
	if lead.Rating >= 4.0 {
		score += float64(w.Rating)
	}
	if lead.ReviewCount >= 10 {
		score += float64(w.Reviews)
	}
	return score, true
}

// passesKeyFilter applies the registry-key policy: require, allowlist,
// denylist. Exclude wins over Include; keys compare digits-only.
func passesKeyFilter(key string, f model.RegistryKeyFilter) bool {
	k := provider.NormalizeKey(key)
	if k == "" {
		return !f.Require
	}
	for _, ex := range f.Exclude {
		if provider.NormalizeKey(ex) == k {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, in := range f.Include {
		if provider.NormalizeKey(in) == k {
			return true
		}
	}
	return false
}

// applyEmployeeFilter reports whether the employee band is inside the
// configured range, whether the lead survives, and whether the unknown
// policy forces a zero score.
func applyEmployeeFilter(emp model.EmployeeRange, f model.RangeFilter) (inRange, keep, zeroScore bool) {
	if f.Min == nil && f.Max == nil {
		return emp.Known(), true, false
	}

	if !emp.Known() {
		switch f.PolicyUnknown {
		case model.UnknownExclude:
			return false, false, false
		case model.UnknownScoreZero:
			return false, true, true
		default:
			return false, true, false
		}
	}

	// The band and the filter are both ranges; require overlap.
	if f.Min != nil && emp.Max < *f.Min {
		return false, false, false
	}
	if f.Max != nil && emp.Min > *f.Max {
		return false, false, false
	}
	return true, true, false
}
