// Package execshell provides structured helpers for invoking external tools.
//
// ShellExecutor wraps a CommandRunner with logging, per-command timeouts, and
// injected environment variables. OSCommandRunner is the os/exec backed runner
// used in production; tests substitute recording runners.
package execshell
