package activity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	// NormalizedTimestampLayout is the fixed-width UTC layout whose lexicographic order matches chronological order.
	NormalizedTimestampLayout = "2006-01-02T15:04:05Z"

	fetcherNotConfiguredMessageConstant  = "activity probe commit fetcher not configured"
	timestampParseErrorTemplateConstant  = "unable to parse commit timestamp %q: %w"
	activityIndeterminateMessageConstant = "last commit lookup failed; treating repository as active"
	repositoryFieldNameConstant          = "repository"
	branchFieldNameConstant              = "branch"
	lastCommitFieldNameConstant          = "last_commit"
	cutoffFieldNameConstant              = "cutoff"
	activityAssessedMessageConstant      = "activity assessed"
	statusFieldNameConstant              = "status"
)

// ErrCommitFetcherNotConfigured indicates the probe was constructed without a commit fetcher.
var ErrCommitFetcherNotConfigured = errors.New(fetcherNotConfiguredMessageConstant)

var acceptedTimestampLayouts = []string{time.RFC3339Nano, time.RFC3339, NormalizedTimestampLayout}

// Status classifies repository activity relative to a cutoff.
type Status string

// Activity statuses.
const (
	StatusActive        Status = "active"
	StatusAbandoned     Status = "abandoned"
	StatusIndeterminate Status = "indeterminate"
)

// Assessment is the outcome of Evaluate. Callers treat StatusIndeterminate as active.
type Assessment struct {
	Status              Status
	LastCommitTimestamp string
	Failure             error
}

// IsAbandoned reports whether the assessment is a definitive abandoned verdict.
func (assessment Assessment) IsAbandoned() bool {
	return assessment.Status == StatusAbandoned
}

// Probe determines repository activity from the last commit on the default branch.
type Probe struct {
	fetcher shared.CommitTimestampFetcher
	logger  *zap.Logger
}

// NewProbe constructs a Probe.
func NewProbe(fetcher shared.CommitTimestampFetcher, logger *zap.Logger) (*Probe, error) {
	if fetcher == nil {
		return nil, ErrCommitFetcherNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Probe{fetcher: fetcher, logger: logger}, nil
}

// NormalizeTimestamp converts an ISO-8601 timestamp with any offset into NormalizedTimestampLayout in UTC.
func NormalizeTimestamp(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	var lastParseError error
	for _, layout := range acceptedTimestampLayouts {
		parsed, parseError := time.Parse(layout, trimmed)
		if parseError == nil {
			return parsed.UTC().Format(NormalizedTimestampLayout), nil
		}
		lastParseError = parseError
	}
	return "", fmt.Errorf(timestampParseErrorTemplateConstant, raw, lastParseError)
}

// Cutoff returns the normalized timestamp inactivityWindow before now.
func Cutoff(now time.Time, inactivityWindow time.Duration) string {
	return now.Add(-inactivityWindow).UTC().Format(NormalizedTimestampLayout)
}

// IsFork reports the fork flag from repository metadata.
func IsFork(repository shared.RepoRecord) bool {
	return repository.IsFork
}

// LastCommitTimestamp returns the normalized last-commit timestamp of the default branch.
func (probe *Probe) LastCommitTimestamp(executionContext context.Context, repository shared.RepoRecord) (string, error) {
	rawTimestamp, fetchError := probe.fetcher.FetchLastCommitTimestamp(executionContext, repository.Identifier.String(), repository.DefaultBranch)
	if fetchError != nil {
		return "", fetchError
	}

	return NormalizeTimestamp(rawTimestamp)
}

// Evaluate compares the last commit against cutoff, a NormalizedTimestampLayout string. A commit strictly before
// the cutoff is abandoned. Lookup failures yield StatusIndeterminate.
func (probe *Probe) Evaluate(executionContext context.Context, repository shared.RepoRecord, cutoff string) Assessment {
	lastCommitTimestamp, lookupError := probe.LastCommitTimestamp(executionContext, repository)
	if lookupError != nil {
		probe.logger.Warn(
			activityIndeterminateMessageConstant,
			zap.String(repositoryFieldNameConstant, repository.Identifier.String()),
			zap.String(branchFieldNameConstant, repository.DefaultBranch),
			zap.Error(lookupError),
		)
		return Assessment{Status: StatusIndeterminate, Failure: lookupError}
	}

	status := StatusActive
	if lastCommitTimestamp < cutoff {
		status = StatusAbandoned
	}

	probe.logger.Debug(
		activityAssessedMessageConstant,
		zap.String(repositoryFieldNameConstant, repository.Identifier.String()),
		zap.String(lastCommitFieldNameConstant, lastCommitTimestamp),
		zap.String(cutoffFieldNameConstant, cutoff),
		zap.String(statusFieldNameConstant, string(status)),
	)
	return Assessment{Status: status, LastCommitTimestamp: lastCommitTimestamp}
}
