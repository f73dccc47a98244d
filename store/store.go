// Package store provides persistence backends for workflow state, history
// and sessions. The DynamoDB implementation uses a single-table design;
// the in-memory implementation is intended for tests and local development.
package store
