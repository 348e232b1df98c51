package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/prospector/internal/model"
)

// LoadCampaignFile parses a campaign definition YAML file and applies
// defaults for omitted sections.
func LoadCampaignFile(path string) (*model.CampaignConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read campaign file %s", path)
	}

	var cc model.CampaignConfig
	if err := yaml.Unmarshal(data, &cc); err != nil {
		return nil, eris.Wrapf(err, "config: parse campaign file %s", path)
	}

	ApplyCampaignDefaults(&cc)

	if err := ValidateCampaign(&cc); err != nil {
		return nil, err
	}
	return &cc, nil
}

// ApplyCampaignDefaults fills zero-valued campaign sections with the
// documented defaults.
func ApplyCampaignDefaults(cc *model.CampaignConfig) {
	if cc.Limits.MaxPagesPerDomain == 0 {
		cc.Limits.MaxPagesPerDomain = 3
	}
	if cc.Filters.Employees.PolicyUnknown == "" {
		cc.Filters.Employees.PolicyUnknown = model.UnknownInclude
	}
	if cc.Weights == (model.ScoringWeights{}) {
		cc.Weights = model.ScoringWeights{
			HasPhone:         10,
			HasEmail:         20,
			HasWebsite:       10,
			EmployeesInRange: 15,
			Rating:           5,
			Reviews:          5,
		}
	}
	if len(cc.Exports) == 0 {
		cc.Exports = []string{"csv", "json"}
	}
	for i := range cc.Regions {
		if cc.Regions[i].Country == "" {
			cc.Regions[i].Country = "BR"
		}
		if cc.Regions[i].RadiusKM == 0 {
			cc.Regions[i].RadiusKM = 10
		}
	}
}

// ValidateCampaign rejects campaign documents that cannot produce work.
func ValidateCampaign(cc *model.CampaignConfig) error {
	if cc.Name == "" {
		return eris.New("config: campaign name required")
	}
	if len(cc.Regions) == 0 {
		return eris.New("config: campaign needs at least one region")
	}
	if len(cc.SearchTerms()) == 0 {
		return eris.New("config: campaign needs keywords or included categories")
	}
	switch cc.Filters.Employees.PolicyUnknown {
	case model.UnknownInclude, model.UnknownExclude, model.UnknownScoreZero:
	default:
		return eris.Errorf("config: unknown employees policy %q", cc.Filters.Employees.PolicyUnknown)
	}
	return nil
}
