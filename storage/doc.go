// Package storage makes "store this blob somewhere" reliable across
// unreliable third-party services. A Gateway walks an ordered list of
// provider adapters until one accepts an upload, feeding every outcome
// into a per-process HealthTracker that biases future attempt order.
// Downloads and deletes address exactly the provider recorded at upload
// time. The vendor adapters themselves live in storage/providers.
package storage
