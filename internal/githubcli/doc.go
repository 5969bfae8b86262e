// Package githubcli wraps the GitHub CLI for depscan.
//
// Client exposes typed operations for repository listing, raw file and commit
// lookups, code search, pull requests, and issues. Failed invocations are
// wrapped in OperationError and tagged with ErrRateLimited or
// ErrResourceNotFound when the gh standard error identifies either condition.
package githubcli
