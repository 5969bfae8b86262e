// Package tracking reconciles scan findings into a single long-lived GitHub
// issue located by its title. The issue body is fully replaced on every pass.
package tracking
