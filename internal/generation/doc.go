// Package generation defines the boundary between the ingestion pipeline
// and the external summarization/tagging service. The Enricher interface
// keeps the jobs independent of any particular LLM provider; the Gemini
// implementation lives under internal/platform/gemini.
package generation
