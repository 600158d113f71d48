package analysis

import (
	"context"
	"sort"

	"storybible-api/internal/domain/entity"
	wfmodel "storybible-api/internal/workflow/model"
	"storybible-api/pkg/logger"
	"storybible-api/pkg/metrics"
)

// checkDocument runs consistency diagnostics over a synthesized
// document. Findings are logged and counted, never fatal: a thin
// document is still a valid result, but the counters show when a
// prompt revision starts degrading output.
func checkDocument(ctx context.Context, job *entity.AnalysisJob, doc *wfmodel.MasterStoryDocument) {
	record := func(check string, ok bool) {
		status := "ok"
		if !ok {
			status = "failed"
			logger.Warn(ctx, "document check failed", "job_id", job.ID, "check", check)
		}
		metrics.DocumentCheckTotal.WithLabelValues(check, status).Inc()
	}

	record("characters_present", len(doc.Characters) > 0)
	record("narrative_log_present", len(doc.NarrativeLog) > 0)
	record("narrative_log_ordered", sort.SliceIsSorted(doc.NarrativeLog, func(i, j int) bool {
		return doc.NarrativeLog[i].ChapterNumber < doc.NarrativeLog[j].ChapterNumber
	}))
	record("narrative_log_in_range", narrativeLogInRange(doc.NarrativeLog, job.LastChapterNumber))
	record("character_names_unique", characterNamesUnique(doc.Characters))
}

func narrativeLogInRange(log []wfmodel.NarrativeEntry, last int) bool {
	for _, e := range log {
		if e.ChapterNumber < 1 || e.ChapterNumber > last {
			return false
		}
	}
	return true
}

func characterNamesUnique(chars []wfmodel.Character) bool {
	seen := make(map[string]bool, len(chars))
	for _, c := range chars {
		if c.Name == "" || seen[c.Name] {
			return false
		}
		seen[c.Name] = true
	}
	return true
}
