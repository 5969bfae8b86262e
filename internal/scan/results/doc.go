// Package results stores per-repository compliance verdicts in a JSON
// envelope that expires as a whole once its freshness window elapses.
package results
