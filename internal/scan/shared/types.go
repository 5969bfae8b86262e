package shared

import (
	"context"
	"sort"
	"time"

	"github.com/temirov/depscan/internal/githubcli"
)

// RepoRecord describes a candidate repository. It is immutable for the duration of a scan pass.
type RepoRecord struct {
	Identifier    RepositoryIdentifier
	DefaultBranch string
	IsFork        bool
	IsArchived    bool
}

// ComplianceState is the tri-state verdict of a detection.
type ComplianceState string

// Compliance states.
const (
	ComplianceStateNonCompliant  ComplianceState = "non_compliant"
	ComplianceStateCompliant     ComplianceState = "compliant"
	ComplianceStateIndeterminate ComplianceState = "indeterminate"
)

// ErrorCode classifies why a probe did not produce a definitive verdict.
type ErrorCode string

// Error codes recorded with failed probes.
const (
	ErrorCodeNone              ErrorCode = ""
	ErrorCodeNoManifest        ErrorCode = "no_manifest"
	ErrorCodeRateLimit         ErrorCode = "rate_limit"
	ErrorCodeMalformedResponse ErrorCode = "malformed_response"
	ErrorCodeFetchFailed       ErrorCode = "fetch_failed"
)

// ExclusionCategory names one of the durable exclusion sets.
type ExclusionCategory string

// Exclusion categories.
const (
	ExclusionCategoryFork       ExclusionCategory = "fork"
	ExclusionCategoryAbandoned  ExclusionCategory = "abandoned"
	ExclusionCategoryNoManifest ExclusionCategory = "no_manifest"
)

// ExclusionCategories lists every category in a stable order.
var ExclusionCategories = []ExclusionCategory{
	ExclusionCategoryFork,
	ExclusionCategoryAbandoned,
	ExclusionCategoryNoManifest,
}

// PullRequestStatus is the state of the most relevant remediation pull request.
type PullRequestStatus string

// Pull request statuses.
const (
	PullRequestStatusNone   PullRequestStatus = "none"
	PullRequestStatusOpen   PullRequestStatus = "open"
	PullRequestStatusMerged PullRequestStatus = "merged"
	PullRequestStatusClosed PullRequestStatus = "closed"
)

// PullRequestReference describes the remediation pull request attached to a finding.
type PullRequestReference struct {
	Status      PullRequestStatus
	Number      int
	URL         string
	NeedsRebase bool
}

// ScanFinding records a non-compliant repository.
type ScanFinding struct {
	Identifier          RepositoryIdentifier
	Organization        string
	Branch              string
	LastCommitTimestamp string
	PullRequest         PullRequestReference
}

// FindingsByOrganization groups findings under the owner part of their identifiers.
type FindingsByOrganization map[string][]ScanFinding

// Add appends finding under its organization.
func (groups FindingsByOrganization) Add(finding ScanFinding) {
	groups[finding.Organization] = append(groups[finding.Organization], finding)
}

// Organizations returns the organization names sorted alphabetically.
func (groups FindingsByOrganization) Organizations() []string {
	organizations := make([]string, 0, len(groups))
	for organization := range groups {
		organizations = append(organizations, organization)
	}
	sort.Strings(organizations)
	return organizations
}

// Count returns the total number of findings across organizations.
func (groups FindingsByOrganization) Count() int {
	total := 0
	for _, findings := range groups {
		total += len(findings)
	}
	return total
}

// Clock abstracts time acquisition for deterministic testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time source.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Sleeper pauses the pass between probes.
type Sleeper interface {
	Sleep(executionContext context.Context, duration time.Duration) error
}

// ContextSleeper waits on a timer and returns early with the context error when the context ends.
type ContextSleeper struct{}

// Sleep blocks for duration or until the context is done.
func (ContextSleeper) Sleep(executionContext context.Context, duration time.Duration) error {
	if duration <= 0 {
		return executionContext.Err()
	}
	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-executionContext.Done():
		return executionContext.Err()
	case <-timer.C:
		return nil
	}
}

// RepositoryMetadataResolver exposes the GitHub repository listing operations.
type RepositoryMetadataResolver interface {
	ListOrganizationRepositories(executionContext context.Context, organization string) ([]githubcli.RepositoryMetadata, error)
	ResolveRepoMetadata(executionContext context.Context, repository string) (githubcli.RepositoryMetadata, error)
}

// FileContentFetcher exposes raw file retrieval.
type FileContentFetcher interface {
	FetchFileContent(executionContext context.Context, repository string, branch string, filePath string) (string, error)
}

// CommitTimestampFetcher exposes last-commit lookups.
type CommitTimestampFetcher interface {
	FetchLastCommitTimestamp(executionContext context.Context, repository string, branch string) (string, error)
}

// CodeSearcher exposes the code search count.
type CodeSearcher interface {
	SearchCodeTotalCount(executionContext context.Context, query string) (string, error)
}

// PullRequestLister exposes pull request listing.
type PullRequestLister interface {
	ListPullRequests(executionContext context.Context, repository string, options githubcli.PullRequestListOptions) ([]githubcli.PullRequest, error)
}

// IssueManager exposes the issue operations used for tracking records.
type IssueManager interface {
	FindIssueByTitle(executionContext context.Context, repository string, title string) (githubcli.Issue, bool, error)
	CreateIssue(executionContext context.Context, repository string, title string, body string) (githubcli.Issue, error)
	EditIssueBody(executionContext context.Context, repository string, issueNumber int, body string) error
	ReopenIssue(executionContext context.Context, repository string, issueNumber int) error
}
