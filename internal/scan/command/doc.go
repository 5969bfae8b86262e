// Package command wires the scan and sweep Cobra commands: it resolves
// configuration and flags, verifies the GitHub CLI and credentials, and
// assembles the scan services over the gh transport.
package command
