// Package source enumerates the candidate repositories of a scan pass from
// organizations or explicit identifiers.
package source
