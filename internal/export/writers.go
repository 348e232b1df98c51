package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

var columns = []string{
	"name", "address", "city", "state", "phone", "email", "website",
	"registry_key", "employees_min", "employees_max", "rating", "review_count", "score", "status",
}

func leadRow(l model.Lead) []string {
	return []string{
		l.Name, l.Address, l.City, l.State, l.Phone, l.Email, l.Website,
		l.RegistryKey,
		strconv.Itoa(l.Employees.Min), strconv.Itoa(l.Employees.Max),
		strconv.FormatFloat(l.Rating, 'f', 1, 64),
		strconv.Itoa(l.ReviewCount),
		strconv.FormatFloat(l.Score, 'f', 1, 64),
		string(l.Status),
	}
}

func writeCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range leads {
		if err := cw.Write(leadRow(l)); err != nil {
			return eris.Wrap(err, "export: write csv row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// jsonLead is the nested export shape: the lead record plus its full
// provenance ledger.
type jsonLead struct {
	model.Lead
	Sources []model.LeadSource `json:"sources"`
}

func writeJSON(ctx context.Context, st store.Store, w io.Writer, leads []model.Lead) error {
	out := make([]jsonLead, 0, len(leads))
	for _, l := range leads {
		sources, err := st.ListLeadSources(ctx, l.ID)
		if err != nil {
			return eris.Wrapf(err, "export: list sources for lead %d", l.ID)
		}
		out = append(out, jsonLead{Lead: l, Sources: sources})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(out), "export: encode json")
}

func writeXLSX(w io.Writer, leads []model.Lead) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add xlsx sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().Value = col
	}
	for _, l := range leads {
		row := sheet.AddRow()
		for _, v := range leadRow(l) {
			row.AddCell().Value = v
		}
	}
	return eris.Wrap(file.Write(w), "export: write xlsx")
}
