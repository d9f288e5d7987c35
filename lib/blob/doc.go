// Package blob provides attachment content storage behind the
// IBlobStore interface: two-phase uploads (session token, then content
// redemption), content streaming and metadata lookup. The in-memory
// implementation exists for single-node deployments and tests.
package blob
