package source

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	resolverNotConfiguredMessageConstant  = "repository metadata resolver not configured"
	organizationListFailedMessageConstant = "unable to list organization repositories"
	repositoryLookupFailedMessageConstant = "unable to resolve repository"
	invalidRepositoryMessageConstant      = "skipping repository with invalid identifier"
	archivedRepositoryMessageConstant     = "skipping archived repository"
	emptyRepositoryMessageConstant        = "skipping repository without a default branch"
	organizationFieldNameConstant         = "organization"
	repositoryFieldNameConstant           = "repository"
)

// ErrResolverNotConfigured indicates the service was constructed without a metadata resolver.
var ErrResolverNotConfigured = errors.New(resolverNotConfiguredMessageConstant)

// Request names the organizations and explicit repositories to enumerate.
type Request struct {
	Organizations []string
	Repositories  []string
}

// IsEmpty reports whether the request names no candidates at all.
func (request Request) IsEmpty() bool {
	return len(nonBlank(request.Organizations)) == 0 && len(nonBlank(request.Repositories)) == 0
}

// Service resolves candidate repositories through GitHub metadata.
type Service struct {
	resolver shared.RepositoryMetadataResolver
	logger   *zap.Logger
}

// NewService constructs a Service.
func NewService(resolver shared.RepositoryMetadataResolver, logger *zap.Logger) (*Service, error) {
	if resolver == nil {
		return nil, ErrResolverNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{resolver: resolver, logger: logger}, nil
}

// Organization lists the non-archived repositories owned by organization, sorted by identifier.
func (service *Service) Organization(executionContext context.Context, organization string) ([]shared.RepoRecord, error) {
	metadataEntries, listError := service.resolver.ListOrganizationRepositories(executionContext, organization)
	if listError != nil {
		return nil, listError
	}
	return service.collect(metadataEntries), nil
}

// Resolution is the outcome of Candidates. Unavailable names the organizations and repositories that could not be
// looked up for a reason other than absence, so the candidate set may be incomplete.
type Resolution struct {
	Records     []shared.RepoRecord
	Unavailable []string
}

// IsComplete reports whether every requested source was looked up.
func (resolution Resolution) IsComplete() bool {
	return len(resolution.Unavailable) == 0
}

// Explicit resolves each identifier individually. Identifiers that fail to resolve are logged and skipped.
func (service *Service) Explicit(executionContext context.Context, identifiers []string) []shared.RepoRecord {
	records, _ := service.explicit(executionContext, identifiers)
	return records
}

func (service *Service) explicit(executionContext context.Context, identifiers []string) ([]shared.RepoRecord, []string) {
	metadataEntries := make([]githubcli.RepositoryMetadata, 0, len(identifiers))
	var unavailable []string
	for _, rawIdentifier := range nonBlank(identifiers) {
		identifier, identifierError := shared.NewRepositoryIdentifier(rawIdentifier)
		if identifierError != nil {
			service.logger.Warn(invalidRepositoryMessageConstant, zap.String(repositoryFieldNameConstant, rawIdentifier), zap.Error(identifierError))
			continue
		}
		metadata, resolveError := service.resolver.ResolveRepoMetadata(executionContext, identifier.String())
		if resolveError != nil {
			service.logger.Warn(repositoryLookupFailedMessageConstant, zap.String(repositoryFieldNameConstant, identifier.String()), zap.Error(resolveError))
			if !errors.Is(resolveError, githubcli.ErrResourceNotFound) {
				unavailable = append(unavailable, identifier.String())
			}
			continue
		}
		if len(strings.TrimSpace(metadata.NameWithOwner)) == 0 {
			metadata.NameWithOwner = identifier.String()
		}
		metadataEntries = append(metadataEntries, metadata)
	}
	return service.collect(metadataEntries), unavailable
}

// Candidates merges every organization listing with the explicit repositories. A source that cannot be looked up
// is logged and reported in Resolution.Unavailable while the remaining sources are still returned. Any organization
// listing failure counts, while an explicit repository that does not exist is only skipped.
func (service *Service) Candidates(executionContext context.Context, request Request) Resolution {
	var resolution Resolution
	var combined []shared.RepoRecord
	for _, organization := range nonBlank(request.Organizations) {
		organizationRecords, listError := service.Organization(executionContext, organization)
		if listError != nil {
			service.logger.Warn(organizationListFailedMessageConstant, zap.String(organizationFieldNameConstant, organization), zap.Error(listError))
			resolution.Unavailable = append(resolution.Unavailable, organization)
			continue
		}
		combined = append(combined, organizationRecords...)
	}

	explicitRecords, unavailableRepositories := service.explicit(executionContext, request.Repositories)
	combined = append(combined, explicitRecords...)
	resolution.Unavailable = append(resolution.Unavailable, unavailableRepositories...)
	resolution.Records = sortAndDeduplicate(combined)
	return resolution
}

func (service *Service) collect(metadataEntries []githubcli.RepositoryMetadata) []shared.RepoRecord {
	records := make([]shared.RepoRecord, 0, len(metadataEntries))
	for _, metadata := range metadataEntries {
		identifier, identifierError := shared.NewRepositoryIdentifier(metadata.NameWithOwner)
		if identifierError != nil {
			service.logger.Warn(invalidRepositoryMessageConstant, zap.String(repositoryFieldNameConstant, metadata.NameWithOwner), zap.Error(identifierError))
			continue
		}
		if metadata.IsArchived {
			service.logger.Debug(archivedRepositoryMessageConstant, zap.String(repositoryFieldNameConstant, identifier.String()))
			continue
		}
		if len(strings.TrimSpace(metadata.DefaultBranch)) == 0 {
			service.logger.Debug(emptyRepositoryMessageConstant, zap.String(repositoryFieldNameConstant, identifier.String()))
			continue
		}
		records = append(records, shared.RepoRecord{
			Identifier:    identifier,
			DefaultBranch: strings.TrimSpace(metadata.DefaultBranch),
			IsFork:        metadata.IsFork,
			IsArchived:    metadata.IsArchived,
		})
	}
	return sortAndDeduplicate(records)
}

func sortAndDeduplicate(records []shared.RepoRecord) []shared.RepoRecord {
	sort.SliceStable(records, func(leftIndex int, rightIndex int) bool {
		return records[leftIndex].Identifier < records[rightIndex].Identifier
	})

	deduplicated := make([]shared.RepoRecord, 0, len(records))
	for _, record := range records {
		if len(deduplicated) > 0 && deduplicated[len(deduplicated)-1].Identifier == record.Identifier {
			continue
		}
		deduplicated = append(deduplicated, record)
	}
	return deduplicated
}

func nonBlank(values []string) []string {
	filtered := make([]string, 0, len(values))
	for _, value := range values {
		if trimmedValue := strings.TrimSpace(value); len(trimmedValue) > 0 {
			filtered = append(filtered, trimmedValue)
		}
	}
	return filtered
}
