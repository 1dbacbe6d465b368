// Package store defines the persistence contracts of the avatar ingestion
// service: the TaskStore that owns all task records and the ProfileStore
// that attaches finished avatars to user profiles. Shared sentinel errors
// live here so services and handlers can classify failures without knowing
// the backing implementation.
package store
