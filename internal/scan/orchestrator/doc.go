// Package orchestrator drives scan and sweep passes over candidate
// repositories. For every repository it consults the exclusion sets and
// the result cache before spending remote calls, applies a fixed backoff
// after rate-limit rejections, and feeds each decision back into the caches.
package orchestrator
