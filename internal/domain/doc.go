// Package domain contains the core entities of the avatar ingestion service.
// Entities validate their own invariants and carry no infrastructure concerns;
// persistence and orchestration live in the store and ingest packages.
package domain
