// Package ingest implements the avatar ingestion pipeline and the worker
// pool that drives it. Workers claim pending tasks from the queue store,
// fetch the remote image, upload it to object storage, attach the public
// URL to the user's profile, and write every status transition back through
// the store's update contract.
package ingest
