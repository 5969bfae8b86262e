// Package ui renders gh command lifecycle events as concise console messages
// while detailed telemetry continues to flow through structured loggers.
package ui
