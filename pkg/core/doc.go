// Package core defines the shared language of the download bot.
//
// This package contains:
//   - Domain entities (ArtifactRequest, Download)
//   - Service interfaces (Store)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
