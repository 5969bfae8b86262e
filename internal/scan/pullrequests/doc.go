// Package pullrequests locates the remediation pull request for a
// non-compliant repository and summarizes its state.
package pullrequests
