package provider

import (
	"strings"

	"github.com/sells-group/prospector/internal/model"
)

// Registry size classes map to fixed employee-count bands. An unrecognized
// non-empty class gets the {1,0} sentinel so downstream filters can tell
// "provider said something we don't understand" from "provider said nothing".
var sizeClassBands = map[string]model.EmployeeRange{
	"MEI":    {Min: 1, Max: 1},
	"ME":     {Min: 2, Max: 9},
	"EPP":    {Min: 10, Max: 49},
	"DEMAIS": {Min: 50, Max: 999},
}

// EstimateEmployees converts a registry size-class label into an
// employee-count band.
func EstimateEmployees(sizeClass string) model.EmployeeRange {
	label := strings.ToUpper(strings.TrimSpace(sizeClass))
	if label == "" {
		return model.EmployeeRange{}
	}
	if band, ok := sizeClassBands[label]; ok {
		return band
	}
	// Labels sometimes arrive embedded in longer strings
	// ("MICRO EMPRESA (ME)"). Check the longer tokens first so MEI and
	// DEMAIS are not shadowed by ME.
	for _, key := range []string{"DEMAIS", "MEI", "EPP", "ME"} {
		if strings.Contains(label, key) {
			return sizeClassBands[key]
		}
	}
	return model.EmployeeRange{Min: 1, Max: 0}
}
