// Package cli constructs the depscan command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// primitives around the scan and sweep commands.
package cli
