package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/activity"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	sweepDecisionForkConstant            = "fork"
	sweepDecisionAbandonedConstant       = "abandoned"
	sweepDecisionActiveConstant          = "active"
	sweepDecisionIndeterminateConstant   = "indeterminate"
	sweepRepositoryMessageConstant       = "sweep evaluated repository"
	sweepRebuildMessageConstant          = "rebuilding fork and abandoned exclusions"
	sweepCompletedMessageConstant        = "abandonment sweep completed"
	newlyExcludedFieldNameConstant       = "newly_excluded"
	defaultSweepInactivityWindowConstant = 365 * 24 * time.Hour
)

// SweepDependencies are the collaborators of an abandonment sweep.
type SweepDependencies struct {
	Exclusions ResettableExclusionCache
	Activity   ActivityProbe
	Clock      shared.Clock
	Logger     *zap.Logger
}

// SweepOptions tune an abandonment sweep.
type SweepOptions struct {
	InactivityWindow time.Duration
	Rebuild          bool
}

// SweepReport summarizes an abandonment sweep.
type SweepReport struct {
	Total         int
	Forks         int
	Abandoned     int
	Active        int
	Indeterminate int
	NewlyExcluded int
}

// Sweeper refreshes the fork and abandoned exclusion sets under the long inactivity policy.
type Sweeper struct {
	exclusions ResettableExclusionCache
	activity   ActivityProbe
	clock      shared.Clock
	logger     *zap.Logger
	options    SweepOptions
}

// NewSweeper validates dependencies and applies option defaults.
func NewSweeper(dependencies SweepDependencies, options SweepOptions) (*Sweeper, error) {
	if dependencies.Exclusions == nil {
		return nil, MissingDependencyError{Dependency: exclusionsDependencyNameConstant}
	}
	if dependencies.Activity == nil {
		return nil, MissingDependencyError{Dependency: activityDependencyNameConstant}
	}
	if dependencies.Clock == nil {
		dependencies.Clock = shared.SystemClock{}
	}
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if options.InactivityWindow <= 0 {
		options.InactivityWindow = defaultSweepInactivityWindowConstant
	}
	return &Sweeper{
		exclusions: dependencies.Exclusions,
		activity:   dependencies.Activity,
		clock:      dependencies.Clock,
		logger:     dependencies.Logger,
		options:    options,
	}, nil
}

// rebuiltExclusions collects the fork and abandoned members found by a rebuild sweep until the sweep completes.
type rebuiltExclusions struct {
	forks     []shared.RepositoryIdentifier
	abandoned []shared.RepositoryIdentifier
}

// Run classifies every candidate. With Rebuild the fork and abandoned sets are recomputed from scratch and replace
// the stored sets only after every candidate was classified, which is the only path that removes exclusion
// entries. An interrupted rebuild leaves the stored sets untouched. Exclusions are flushed when the sweep ends.
func (sweeper *Sweeper) Run(executionContext context.Context, candidates []shared.RepoRecord) (report SweepReport, runError error) {
	report = SweepReport{Total: len(candidates)}
	cutoff := activity.Cutoff(sweeper.clock.Now(), sweeper.options.InactivityWindow)

	defer func() {
		if flushError := sweeper.exclusions.Flush(); flushError != nil {
			runError = errors.Join(runError, fmt.Errorf(flushErrorTemplateConstant, flushError))
		}
	}()

	var rebuilt *rebuiltExclusions
	if sweeper.options.Rebuild {
		sweeper.logger.Info(sweepRebuildMessageConstant)
		rebuilt = &rebuiltExclusions{}
	}

	for _, repository := range candidates {
		if contextError := executionContext.Err(); contextError != nil {
			return report, contextError
		}
		sweeper.logDecision(repository.Identifier, sweeper.classify(executionContext, repository, cutoff, rebuilt, &report))
	}

	if rebuilt != nil {
		report.NewlyExcluded = sweeper.replaceExclusions(rebuilt)
	}

	sweeper.logger.Info(
		sweepCompletedMessageConstant,
		zap.Int(totalFieldNameConstant, report.Total),
		zap.Int(newlyExcludedFieldNameConstant, report.NewlyExcluded),
	)
	return report, nil
}

// replaceExclusions swaps the rebuilt members in and returns how many were added to the emptied sets.
func (sweeper *Sweeper) replaceExclusions(rebuilt *rebuiltExclusions) int {
	sweeper.exclusions.Reset(shared.ExclusionCategoryFork)
	sweeper.exclusions.Reset(shared.ExclusionCategoryAbandoned)

	added := 0
	for _, identifier := range rebuilt.forks {
		if sweeper.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryFork) {
			added++
		}
	}
	for _, identifier := range rebuilt.abandoned {
		if sweeper.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryAbandoned) {
			added++
		}
	}
	return added
}

// classify records one verdict. A nil rebuilt marks exclusions immediately and honours the stored sets; a rebuild
// ignores the stored sets and stages its members.
func (sweeper *Sweeper) classify(executionContext context.Context, repository shared.RepoRecord, cutoff string, rebuilt *rebuiltExclusions, report *SweepReport) string {
	identifier := repository.Identifier
	rebuilding := rebuilt != nil

	if activity.IsFork(repository) || (!rebuilding && sweeper.exclusions.IsExcluded(identifier, shared.ExclusionCategoryFork)) {
		if rebuilding {
			rebuilt.forks = append(rebuilt.forks, identifier)
		} else if sweeper.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryFork) {
			report.NewlyExcluded++
		}
		report.Forks++
		return sweepDecisionForkConstant
	}
	if !rebuilding && sweeper.exclusions.IsExcluded(identifier, shared.ExclusionCategoryAbandoned) {
		report.Abandoned++
		return sweepDecisionAbandonedConstant
	}

	assessment := sweeper.activity.Evaluate(executionContext, repository, cutoff)
	switch assessment.Status {
	case activity.StatusAbandoned:
		if rebuilding {
			rebuilt.abandoned = append(rebuilt.abandoned, identifier)
		} else if sweeper.exclusions.MarkExcluded(identifier, shared.ExclusionCategoryAbandoned) {
			report.NewlyExcluded++
		}
		report.Abandoned++
		return sweepDecisionAbandonedConstant
	case activity.StatusIndeterminate:
		report.Indeterminate++
		return sweepDecisionIndeterminateConstant
	default:
		report.Active++
		return sweepDecisionActiveConstant
	}
}

func (sweeper *Sweeper) logDecision(identifier shared.RepositoryIdentifier, decision string) {
	sweeper.logger.Info(
		sweepRepositoryMessageConstant,
		zap.String(repositoryFieldNameConstant, identifier.String()),
		zap.String(decisionFieldNameConstant, decision),
	)
}
