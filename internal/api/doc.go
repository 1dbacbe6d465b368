// Package api contains the HTTP handlers, request/response models, and
// error mapping for the avatar ingestion endpoints. Handlers validate
// input, read the authenticated user from the request context, and delegate
// to the service layer; they never touch the task store directly.
package api
