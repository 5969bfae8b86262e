package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	repositoryQualifierTemplateConstant = "repo:%s"
	languageQualifierTemplateConstant   = "language:%s"
	vendorExclusionQualifierConstant    = "NOT path:vendor"
	querySeparatorConstant              = " "
)

// ManifestCollector fetches a manifest file from the default branch.
type ManifestCollector struct {
	Fetcher      shared.FileContentFetcher
	ManifestPath string
}

// Collect returns the manifest content. A missing file is reported as Absent rather than as a failure.
func (collector ManifestCollector) Collect(executionContext context.Context, repository shared.RepoRecord) Input {
	content, fetchError := collector.Fetcher.FetchFileContent(executionContext, repository.Identifier.String(), repository.DefaultBranch, collector.ManifestPath)
	if errors.Is(fetchError, githubcli.ErrResourceNotFound) {
		return Input{Absent: true}
	}
	if fetchError != nil {
		return Input{Failure: fetchError}
	}
	return Input{Content: content}
}

// SearchCollector runs a code search scoped to one repository.
type SearchCollector struct {
	Searcher shared.CodeSearcher
	Pattern  string
	Language string
}

// Query builds the search expression for repository.
func (collector SearchCollector) Query(repository shared.RepoRecord) string {
	queryParts := []string{strings.TrimSpace(collector.Pattern), fmt.Sprintf(repositoryQualifierTemplateConstant, repository.Identifier)}
	if trimmedLanguage := strings.TrimSpace(collector.Language); len(trimmedLanguage) > 0 {
		queryParts = append(queryParts, fmt.Sprintf(languageQualifierTemplateConstant, trimmedLanguage))
	}
	queryParts = append(queryParts, vendorExclusionQualifierConstant)
	return strings.Join(queryParts, querySeparatorConstant)
}

// Collect returns the raw total count payload.
func (collector SearchCollector) Collect(executionContext context.Context, repository shared.RepoRecord) Input {
	totalCount, searchError := collector.Searcher.SearchCodeTotalCount(executionContext, collector.Query(repository))
	if searchError != nil {
		return Input{Failure: searchError}
	}
	return Input{Content: totalCount}
}

// NewManifestStrategy builds the manifest dependency strategy.
func NewManifestStrategy(fetcher shared.FileContentFetcher, manifestPath string, dependency string) Strategy {
	return Strategy{
		Collector: ManifestCollector{Fetcher: fetcher, ManifestPath: manifestPath},
		Detector:  ManifestDetector{Dependency: dependency},
	}
}

// NewSearchStrategy builds the source search strategy.
func NewSearchStrategy(searcher shared.CodeSearcher, pattern string, language string) Strategy {
	return Strategy{
		Collector: SearchCollector{Searcher: searcher, Pattern: pattern, Language: language},
		Detector:  SearchDetector{},
	}
}
