// Package detection turns fetched repository content into compliance
// verdicts. Collectors perform the remote I/O and detectors are pure
// functions over what the collectors return, so every detector can be
// exercised with canned payloads.
package detection
