// Package api exposes the monitoring surface of the ingestion service
// over HTTP: a liveness probe, the per-job sync status, the taxonomy
// proposals awaiting review, and a job reset action for restarting a
// completed backfill. Approving or rejecting proposals is left to
// operators with database access.
package api
