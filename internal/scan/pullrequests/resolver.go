package pullrequests

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	defaultResultLimitConstant         = 100
	openStateConstant                  = "OPEN"
	mergedStateConstant                = "MERGED"
	closedStateConstant                = "CLOSED"
	behindMergeStateConstant           = "BEHIND"
	dirtyMergeStateConstant            = "DIRTY"
	listFailedMessageConstant          = "unable to list pull requests; reporting none"
	pullRequestResolvedMessageConstant = "pull request resolved"
	repositoryFieldNameConstant        = "repository"
	statusFieldNameConstant            = "status"
	numberFieldNameConstant            = "number"
)

var statusPrecedence = map[shared.PullRequestStatus]int{
	shared.PullRequestStatusNone:   0,
	shared.PullRequestStatusClosed: 1,
	shared.PullRequestStatusMerged: 2,
	shared.PullRequestStatusOpen:   3,
}

// Resolver matches pull request titles against remediation keywords.
type Resolver struct {
	lister   shared.PullRequestLister
	keywords []string
	logger   *zap.Logger
}

// NewResolver constructs a Resolver. Blank keywords are ignored; without keywords every repository resolves to none.
func NewResolver(lister shared.PullRequestLister, keywords []string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalizedKeywords := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		trimmedKeyword := strings.ToLower(strings.TrimSpace(keyword))
		if len(trimmedKeyword) > 0 {
			normalizedKeywords = append(normalizedKeywords, trimmedKeyword)
		}
	}
	return &Resolver{lister: lister, keywords: normalizedKeywords, logger: logger}
}

// Resolve returns the most relevant remediation pull request for repository. Open outranks merged, which outranks
// closed; within a status the highest number wins. Listing failures are logged and resolve to none.
func (resolver *Resolver) Resolve(executionContext context.Context, repository shared.RepositoryIdentifier) shared.PullRequestReference {
	reference := shared.PullRequestReference{Status: shared.PullRequestStatusNone}
	if resolver.lister == nil || len(resolver.keywords) == 0 {
		return reference
	}

	pullRequests, listError := resolver.lister.ListPullRequests(executionContext, repository.String(), githubcli.PullRequestListOptions{
		State:       githubcli.PullRequestStateAll,
		ResultLimit: defaultResultLimitConstant,
	})
	if listError != nil {
		resolver.logger.Warn(listFailedMessageConstant, zap.String(repositoryFieldNameConstant, repository.String()), zap.Error(listError))
		return reference
	}

	for _, pullRequest := range pullRequests {
		if !resolver.matchesKeyword(pullRequest.Title) {
			continue
		}
		candidateStatus := statusFromState(pullRequest.State)
		if candidateStatus == shared.PullRequestStatusNone {
			continue
		}
		if !outranks(candidateStatus, pullRequest.Number, reference) {
			continue
		}
		reference = shared.PullRequestReference{
			Status:      candidateStatus,
			Number:      pullRequest.Number,
			URL:         pullRequest.URL,
			NeedsRebase: candidateStatus == shared.PullRequestStatusOpen && needsRebase(pullRequest.MergeStateStatus),
		}
	}

	resolver.logger.Debug(
		pullRequestResolvedMessageConstant,
		zap.String(repositoryFieldNameConstant, repository.String()),
		zap.String(statusFieldNameConstant, string(reference.Status)),
		zap.Int(numberFieldNameConstant, reference.Number),
	)
	return reference
}

func (resolver *Resolver) matchesKeyword(title string) bool {
	lowerTitle := strings.ToLower(title)
	for _, keyword := range resolver.keywords {
		if strings.Contains(lowerTitle, keyword) {
			return true
		}
	}
	return false
}

func outranks(candidateStatus shared.PullRequestStatus, candidateNumber int, current shared.PullRequestReference) bool {
	candidateRank := statusPrecedence[candidateStatus]
	currentRank := statusPrecedence[current.Status]
	if candidateRank != currentRank {
		return candidateRank > currentRank
	}
	return candidateNumber > current.Number
}

func statusFromState(state string) shared.PullRequestStatus {
	switch strings.ToUpper(strings.TrimSpace(state)) {
	case openStateConstant:
		return shared.PullRequestStatusOpen
	case mergedStateConstant:
		return shared.PullRequestStatusMerged
	case closedStateConstant:
		return shared.PullRequestStatusClosed
	default:
		return shared.PullRequestStatusNone
	}
}

func needsRebase(mergeStateStatus string) bool {
	switch strings.ToUpper(strings.TrimSpace(mergeStateStatus)) {
	case behindMergeStateConstant, dirtyMergeStateConstant:
		return true
	default:
		return false
	}
}
