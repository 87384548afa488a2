// Package job contains the recurring ingestion jobs and the scheduler
// that drives them: the continuous forward sync, the historical backfill,
// the recovery sweep over failed enrichments, and the taxonomy
// maintenance agent. All jobs share the progress store for resumable
// cursors and per-job mutual exclusion, and the enrichment stage for
// summarizing and tagging newly ingested stories.
package job
