// Package shared defines the data model, time sources, and GitHub capability
// interfaces shared by the scan services.
package shared
