// Package dedupe provides webhook delivery deduplication using a
// time-based cache, so retried provider callbacks within the window
// are not recorded twice.
package dedupe
