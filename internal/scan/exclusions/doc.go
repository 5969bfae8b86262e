// Package exclusions persists the fork, abandoned, and manifest-absent
// repository sets consulted before any network probe.
package exclusions
