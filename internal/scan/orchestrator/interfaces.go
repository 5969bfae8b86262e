package orchestrator

import (
	"context"

	"github.com/temirov/depscan/internal/scan/activity"
	"github.com/temirov/depscan/internal/scan/detection"
	"github.com/temirov/depscan/internal/scan/results"
	"github.com/temirov/depscan/internal/scan/shared"
)

// ExclusionCache is the subset of exclusions.Store used by a pass.
type ExclusionCache interface {
	IsExcluded(identifier shared.RepositoryIdentifier, category shared.ExclusionCategory) bool
	MarkExcluded(identifier shared.RepositoryIdentifier, category shared.ExclusionCategory) bool
	Flush() error
}

// ResettableExclusionCache additionally supports clearing a category.
type ResettableExclusionCache interface {
	ExclusionCache
	Reset(category shared.ExclusionCategory)
}

// ResultCache is the subset of results.Cache used by a pass.
type ResultCache interface {
	Lookup(identifier shared.RepositoryIdentifier) (results.CachedVerdict, bool)
	Store(verdict results.CachedVerdict) error
}

// ActivityProbe classifies repository activity against a cutoff.
type ActivityProbe interface {
	Evaluate(executionContext context.Context, repository shared.RepoRecord, cutoff string) activity.Assessment
}

// DetectionStrategy produces a compliance verdict for one repository.
type DetectionStrategy interface {
	Run(executionContext context.Context, repository shared.RepoRecord) detection.Outcome
}

// PullRequestResolver reports the remediation pull request of a repository.
type PullRequestResolver interface {
	Resolve(executionContext context.Context, repository shared.RepositoryIdentifier) shared.PullRequestReference
}
