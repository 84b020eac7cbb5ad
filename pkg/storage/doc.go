// Package storage defines the persistence contract for user accounts and
// saved presentations, together with the sentinel errors and owner context
// helpers shared by every backend.
//
// Backends live in subpackages: memory (tests and single-process use),
// sqlite (embedded, the default on disk), and postgres (shared deployments).
// Uploaded files are kept on disk by the files subpackage.
package storage
