// Package gemini provides a generation.Enricher implementation backed by
// Google's Gemini API. It issues one JSON-mode call per story batch and
// maps API failures onto the generation package's error sentinels.
package gemini
