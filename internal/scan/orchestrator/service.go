package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/activity"
	"github.com/temirov/depscan/internal/scan/detection"
	"github.com/temirov/depscan/internal/scan/results"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	decisionSkipForkConstant            = "skip_fork"
	decisionSkipAbandonedConstant       = "skip_abandoned"
	decisionSkipNoManifestConstant      = "skip_no_manifest"
	decisionCacheHitConstant            = "cache_hit"
	decisionNonCompliantConstant        = "non_compliant"
	decisionCompliantConstant           = "compliant"
	decisionUnableToCheckConstant       = "unable_to_check"
	repositoryDecisionMessageConstant   = "repository evaluated"
	backoffMessageConstant              = "rate limited; backing off"
	verdictPersistFailedMessageConstant = "unable to persist verdict"
	passInterruptedMessageConstant      = "scan pass interrupted"
	passCompletedMessageConstant        = "scan pass completed"
	repositoryFieldNameConstant         = "repository"
	decisionFieldNameConstant           = "decision"
	profileFieldNameConstant            = "profile"
	complianceStateFieldNameConstant    = "compliance_state"
	errorCodeFieldNameConstant          = "error_code"
	delayFieldNameConstant              = "delay"
	totalFieldNameConstant              = "total"
	foundFieldNameConstant              = "found"
	flushErrorTemplateConstant          = "unable to flush exclusions: %w"
	missingDependencyTemplateConstant   = "orchestrator dependency %s not configured"
	exclusionsDependencyNameConstant    = "exclusions"
	resultsDependencyNameConstant       = "results"
	activityDependencyNameConstant      = "activity"
	strategyDependencyNameConstant      = "strategy"
	defaultBackoffDelayConstant         = 5 * time.Second
	defaultInactivityWindowConstant     = 180 * 24 * time.Hour
)

// MissingDependencyError reports a required collaborator that was not provided.
type MissingDependencyError struct {
	Dependency string
}

// Error describes the missing dependency.
func (dependencyError MissingDependencyError) Error() string {
	return fmt.Sprintf(missingDependencyTemplateConstant, dependencyError.Dependency)
}

// Dependencies are the collaborators of a scan pass. PullRequests, Sleeper, Clock, and Logger are optional.
type Dependencies struct {
	Exclusions   ExclusionCache
	Results      ResultCache
	Activity     ActivityProbe
	Strategy     DetectionStrategy
	PullRequests PullRequestResolver
	Sleeper      shared.Sleeper
	Clock        shared.Clock
	Logger       *zap.Logger
}

// Options tune a scan pass.
type Options struct {
	ProfileName      string
	InactivityWindow time.Duration
	BackoffDelay     time.Duration
}

// Report summarizes a scan pass.
type Report struct {
	Total             int
	Scanned           int
	SkippedForks      int
	SkippedAbandoned  int
	SkippedNoManifest int
	UnableToCheck     int
	CacheHits         int
	Found             int
	Findings          shared.FindingsByOrganization
}

// Service runs scan passes.
type Service struct {
	exclusions   ExclusionCache
	results      ResultCache
	activity     ActivityProbe
	strategy     DetectionStrategy
	pullRequests PullRequestResolver
	sleeper      shared.Sleeper
	clock        shared.Clock
	logger       *zap.Logger
	options      Options
}

// NewService validates dependencies and applies option defaults.
func NewService(dependencies Dependencies, options Options) (*Service, error) {
	switch {
	case dependencies.Exclusions == nil:
		return nil, MissingDependencyError{Dependency: exclusionsDependencyNameConstant}
	case dependencies.Results == nil:
		return nil, MissingDependencyError{Dependency: resultsDependencyNameConstant}
	case dependencies.Activity == nil:
		return nil, MissingDependencyError{Dependency: activityDependencyNameConstant}
	case dependencies.Strategy == nil:
		return nil, MissingDependencyError{Dependency: strategyDependencyNameConstant}
	}

	if dependencies.Sleeper == nil {
		dependencies.Sleeper = shared.ContextSleeper{}
	}
	if dependencies.Clock == nil {
		dependencies.Clock = shared.SystemClock{}
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if options.BackoffDelay < 0 {
		options.BackoffDelay = defaultBackoffDelayConstant
	}
	if options.InactivityWindow <= 0 {
		options.InactivityWindow = defaultInactivityWindowConstant
	}

	return &Service{
		exclusions:   dependencies.Exclusions,
		results:      dependencies.Results,
		activity:     dependencies.Activity,
		strategy:     dependencies.Strategy,
		pullRequests: dependencies.PullRequests,
		sleeper:      dependencies.Sleeper,
		clock:        dependencies.Clock,
		logger:       dependencies.Logger,
		options:      options,
	}, nil
}

// Run evaluates candidates sequentially. Exclusions are flushed once when the pass ends, including when the
// context is cancelled; the returned report covers every repository processed before the interruption.
func (service *Service) Run(executionContext context.Context, candidates []shared.RepoRecord) (report Report, runError error) {
	report = Report{Total: len(candidates), Findings: shared.FindingsByOrganization{}}
	cutoff := activity.Cutoff(service.clock.Now(), service.options.InactivityWindow)

	defer func() {
		if flushError := service.exclusions.Flush(); flushError != nil {
			runError = errors.Join(runError, fmt.Errorf(flushErrorTemplateConstant, flushError))
		}
	}()

	for _, repository := range candidates {
		if contextError := executionContext.Err(); contextError != nil {
			service.logger.Warn(passInterruptedMessageConstant, zap.String(profileFieldNameConstant, service.options.ProfileName), zap.Error(contextError))
			return report, contextError
		}
		if evaluationError := service.evaluate(executionContext, repository, cutoff, &report); evaluationError != nil {
			service.logger.Warn(passInterruptedMessageConstant, zap.String(profileFieldNameConstant, service.options.ProfileName), zap.Error(evaluationError))
			return report, evaluationError
		}
	}

	service.logger.Info(
		passCompletedMessageConstant,
		zap.String(profileFieldNameConstant, service.options.ProfileName),
		zap.Int(totalFieldNameConstant, report.Total),
		zap.Int(foundFieldNameConstant, report.Found),
	)
	return report, nil
}

// evaluate applies the skip order to one repository. It only returns an error when the context ends during backoff.
func (service *Service) evaluate(executionContext context.Context, repository shared.RepoRecord, cutoff string, report *Report) error {
	identifier := repository.Identifier

	if service.exclusions.IsExcluded(identifier, shared.ExclusionCategoryFork) {
		report.SkippedForks++
		service.logDecision(identifier, decisionSkipForkConstant)
		return nil
	}
	if activity.IsFork(repository) {
		service.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryFork)
		report.SkippedForks++
		service.logDecision(identifier, decisionSkipForkConstant)
		return nil
	}

	if service.exclusions.IsExcluded(identifier, shared.ExclusionCategoryAbandoned) {
		report.SkippedAbandoned++
		service.logDecision(identifier, decisionSkipAbandonedConstant)
		return nil
	}
	assessment := service.activity.Evaluate(executionContext, repository, cutoff)
	if assessment.IsAbandoned() {
		service.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryAbandoned)
		report.SkippedAbandoned++
		service.logDecision(identifier, decisionSkipAbandonedConstant)
		return nil
	}

	if service.exclusions.IsExcluded(identifier, shared.ExclusionCategoryNoManifest) {
		report.SkippedNoManifest++
		service.logDecision(identifier, decisionSkipNoManifestConstant)
		return nil
	}

	if cachedVerdict, found := service.results.Lookup(identifier); found && cachedVerdict.ProbeSucceeded {
		report.CacheHits++
		report.Scanned++
		service.recordVerdict(executionContext, repository, cachedVerdict.ComplianceState, assessment, report)
		service.logDecision(identifier, decisionCacheHitConstant, zap.String(complianceStateFieldNameConstant, string(cachedVerdict.ComplianceState)))
		return nil
	}

	outcome := service.strategy.Run(executionContext, repository)
	switch {
	case outcome.ErrorCode == shared.ErrorCodeNoManifest:
		service.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryNoManifest)
		report.SkippedNoManifest++
		service.logDecision(identifier, decisionSkipNoManifestConstant)
		return nil
	case !outcome.ProbeSucceeded():
		report.UnableToCheck++
		service.persist(repository, outcome)
		service.logDecision(identifier, decisionUnableToCheckConstant, zap.String(errorCodeFieldNameConstant, string(outcome.ErrorCode)), zap.Error(outcome.Failure))
		if outcome.Retryable {
			return service.backoff(executionContext, identifier)
		}
		return nil
	}

	service.persist(repository, outcome)
	report.Scanned++
	decision := decisionCompliantConstant
	if service.recordVerdict(executionContext, repository, outcome.State, assessment, report) {
		decision = decisionNonCompliantConstant
	}
	service.logDecision(identifier, decision)
	return nil
}

// recordVerdict adds a finding for non-compliant verdicts and reports whether one was added.
func (service *Service) recordVerdict(executionContext context.Context, repository shared.RepoRecord, state shared.ComplianceState, assessment activity.Assessment, report *Report) bool {
	if state != shared.ComplianceStateNonCompliant {
		return false
	}

	finding := shared.ScanFinding{
		Identifier:          repository.Identifier,
		Organization:        repository.Identifier.Owner(),
		Branch:              repository.DefaultBranch,
		LastCommitTimestamp: assessment.LastCommitTimestamp,
		PullRequest:         shared.PullRequestReference{Status: shared.PullRequestStatusNone},
	}
	if service.pullRequests != nil {
		finding.PullRequest = service.pullRequests.Resolve(executionContext, repository.Identifier)
	}
	report.Findings.Add(finding)
	report.Found++
	return true
}

func (service *Service) persist(repository shared.RepoRecord, outcome detection.Outcome) {
	verdict := results.CachedVerdict{
		Identifier:      repository.Identifier,
		ComplianceState: outcome.State,
		ProbeSucceeded:  outcome.ProbeSucceeded(),
		LastChecked:     service.clock.Now().UTC(),
		ErrorCode:       outcome.ErrorCode,
	}
	if storeError := service.results.Store(verdict); storeError != nil {
		service.logger.Error(
			verdictPersistFailedMessageConstant,
			zap.String(repositoryFieldNameConstant, repository.Identifier.String()),
			zap.String(profileFieldNameConstant, service.options.ProfileName),
			zap.Error(storeError),
		)
	}
}

func (service *Service) backoff(executionContext context.Context, identifier shared.RepositoryIdentifier) error {
	service.logger.Warn(
		backoffMessageConstant,
		zap.String(repositoryFieldNameConstant, identifier.String()),
		zap.String(profileFieldNameConstant, service.options.ProfileName),
		zap.Duration(delayFieldNameConstant, service.options.BackoffDelay),
	)
	return service.sleeper.Sleep(executionContext, service.options.BackoffDelay)
}

func (service *Service) logDecision(identifier shared.RepositoryIdentifier, decision string, fields ...zap.Field) {
	baseFields := []zap.Field{
		zap.String(repositoryFieldNameConstant, identifier.String()),
		zap.String(decisionFieldNameConstant, decision),
		zap.String(profileFieldNameConstant, service.options.ProfileName),
	}
	service.logger.Info(repositoryDecisionMessageConstant, append(baseFields, fields...)...)
}
