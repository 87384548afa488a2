// Package domain contains the core entities of the ingestion subsystem:
// stories fetched from the external content source, their AI-generated
// summaries and tags, taxonomy maintenance proposals, and the per-job
// progress records that track ingestion cursors.
//
// Domain entities validate themselves and carry no persistence or transport
// concerns; those live in the store and platform packages.
package domain
