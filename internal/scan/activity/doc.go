// Package activity classifies repositories as active or abandoned from the
// timestamp of the last commit on their default branch.
package activity
