// Package testutil provides in-memory collaborators for tests and the
// scenario harness: a fake community platform that records every message,
// role edit and board publish, plus store and logger helpers.
package testutil
