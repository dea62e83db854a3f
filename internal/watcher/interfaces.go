// Package watcher reports changes to C sources and headers so an extraction
// can be rerun.
package watcher

import "context"

// SourceWatcher monitors C sources for changes with debouncing and pause/resume support.
type SourceWatcher interface {
	// Start begins watching, calling callback with each debounced batch of changed files.
	Start(ctx context.Context, callback func(files []string)) error

	// Stop stops the watcher and releases its resources.
	Stop() error

	// Pause stops firing callbacks but keeps accumulating changes.
	Pause()

	// Resume resumes firing callbacks. Changes accumulated during pause fire immediately.
	Resume()
}
