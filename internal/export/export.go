// Package export writes a run's surviving leads to csv, json, or xlsx
// files. The json form nests the full provenance ledger per lead; csv and
// xlsx are flat.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

// Supported formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Run exports one run's leads in the given format into dir, records the
// export in the store, and transitions exported leads' status. Discarded
// leads are never exported.
func Run(ctx context.Context, st store.Store, tenantID string, runID int64, format, dir string) (string, error) {
	rec, err := st.CreateExport(ctx, tenantID, runID, format)
	if err != nil {
		return "", err
	}

	path, err := writeFile(ctx, st, tenantID, runID, format, dir)
	if err != nil {
		if ferr := st.FinishExport(ctx, rec.ID, model.ExportFailed, ""); ferr != nil {
			zap.L().Error("marking export failed", zap.Int64("export_id", rec.ID), zap.Error(ferr))
		}
		return "", err
	}

	if err := st.FinishExport(ctx, rec.ID, model.ExportCompleted, path); err != nil {
		return "", err
	}
	zap.L().Info("export complete",
		zap.Int64("run_id", runID),
		zap.String("format", format),
		zap.String("path", path),
	)
	return path, nil
}

func writeFile(ctx context.Context, st store.Store, tenantID string, runID int64, format, dir string) (string, error) {
	leads, err := exportableLeads(ctx, st, tenantID, runID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "export: create dir %s", dir)
	}
	// Timestamp plus a random token so back-to-back exports of the same run
	// never clobber each other.
	name := fmt.Sprintf("leads_run%d_%s_%s.%s",
		runID, time.Now().UTC().Format("20060102T150405"), uuid.NewString()[:8], format)
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "export: create file %s", path)
	}
	defer f.Close() //nolint:errcheck

	switch format {
	case FormatCSV:
		err = writeCSV(f, leads)
	case FormatJSON:
		err = writeJSON(ctx, st, f, leads)
	case FormatXLSX:
		err = writeXLSX(f, leads)
	default:
		err = eris.Errorf("export: unsupported format %q", format)
	}
	if err != nil {
		return "", err
	}

	for i := range leads {
		if err := st.SetLeadScore(ctx, leads[i].ID, leads[i].Score, model.LeadExported); err != nil {
			return "", err
		}
	}
	return path, nil
}

func exportableLeads(ctx context.Context, st store.Store, tenantID string, runID int64) ([]model.Lead, error) {
	all, err := st.ListLeads(ctx, tenantID, runID)
	if err != nil {
		return nil, eris.Wrap(err, "export: list leads")
	}
	out := make([]model.Lead, 0, len(all))
	for _, l := range all {
		if l.Status == model.LeadDiscarded {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
