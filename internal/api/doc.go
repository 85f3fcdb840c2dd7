// Package api contains the HTTP handlers and request/response models for
// the registration task service. Handlers validate incoming payloads,
// delegate to the service layer, and map service errors onto HTTP status
// codes.
package api
