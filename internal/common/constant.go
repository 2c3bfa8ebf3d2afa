// Package common contains shared constants and sentinel errors used across
// the token bank components.
package common

// ServiceTokenHeaderName is the HTTP header a trusted client app uses to
// present the shared service token on ledger and passport calls.
const ServiceTokenHeaderName = "X-Service-Token"

// IdempotencyKeyHeaderName carries the caller-chosen idempotency key on
// deposit and spend requests.
const IdempotencyKeyHeaderName = "Idempotency-Key"
