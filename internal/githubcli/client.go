package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/temirov/depscan/internal/execshell"
)

const (
	repoSubcommandConstant                        = "repo"
	viewSubcommandConstant                        = "view"
	pullRequestSubcommandConstant                 = "pr"
	listSubcommandConstant                        = "list"
	authSubcommandConstant                        = "auth"
	tokenSubcommandConstant                       = "token"
	jsonFlagConstant                              = "--json"
	repoFlagConstant                              = "--repo"
	stateFlagConstant                             = "--state"
	baseFlagConstant                              = "--base"
	limitFlagConstant                             = "--limit"
	repositoryFieldNameConstant                   = "repository"
	organizationFieldNameConstant                 = "organization"
	stateFieldNameConstant                        = "state"
	requiredValueMessageConstant                  = "value required"
	executorNotConfiguredMessageConstant          = "github cli executor not configured"
	rateLimitedMessageConstant                    = "github api rate limit exceeded"
	resourceNotFoundMessageConstant               = "github resource not found"
	emptyTokenMessageConstant                     = "gh auth token returned an empty token"
	pullRequestLimitDefaultValueConstant          = 100
	repositoryListLimitDefaultValueConstant       = 1000
	pullRequestJSONFieldsConstant                 = "number,title,headRefName,state,url,mergeStateStatus"
	repoViewJSONFieldsConstant                    = "defaultBranchRef,nameWithOwner,description,isFork,isArchived"
	operationErrorMessageTemplateConstant         = "%s operation failed"
	operationErrorWithCauseTemplateConstant       = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant         = "%s response decoding failed: %s"
	invalidInputErrorTemplateConstant             = "%s: %s"
	classifiedErrorTemplateConstant               = "%w: %w"
	repositoryMetadataOperationNameConstant       = OperationName("ResolveRepoMetadata")
	listOrganizationRepositoriesOperationConstant = OperationName("ListOrganizationRepositories")
	listPullRequestsOperationNameConstant         = OperationName("ListPullRequests")
	authenticationTokenOperationNameConstant      = OperationName("AuthenticationToken")
)

var (
	rateLimitStandardErrorMarkers = []string{"rate limit", "abuse detection"}
	notFoundStandardErrorMarkers  = []string{"http 404", "not found", "could not resolve to a repository"}
)

// OperationName describes a named GitHub CLI workflow supported by the client.
type OperationName string

// PullRequestState describes acceptable GitHub pull request states.
type PullRequestState string

// Pull request state enumerations.
const (
	PullRequestStateOpen   PullRequestState = PullRequestState("open")
	PullRequestStateClosed PullRequestState = PullRequestState("closed")
	PullRequestStateMerged PullRequestState = PullRequestState("merged")
	PullRequestStateAll    PullRequestState = PullRequestState("all")
)

// RepositoryMetadata contains key details resolved from GitHub.
type RepositoryMetadata struct {
	NameWithOwner string
	Description   string
	DefaultBranch string
	IsFork        bool
	IsArchived    bool
}

// PullRequest represents minimal PR details returned by GitHub CLI.
type PullRequest struct {
	Number           int
	Title            string
	HeadRefName      string
	State            string
	URL              string
	MergeStateStatus string
}

// PullRequestListOptions configures ListPullRequests queries. BaseBranch is optional.
type PullRequestListOptions struct {
	State       PullRequestState
	BaseBranch  string
	ResultLimit int
}

// GitHubCommandExecutor is the minimal interface required from execshell.ShellExecutor.
type GitHubCommandExecutor interface {
	ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Client coordinates GitHub CLI invocations through execshell.
type Client struct {
	executor GitHubCommandExecutor
}

var (
	// ErrExecutorNotConfigured indicates the client was constructed without an executor.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrRateLimited marks failures caused by GitHub rate limiting.
	ErrRateLimited = errors.New(rateLimitedMessageConstant)
	// ErrResourceNotFound marks failures caused by a missing repository, branch, or file.
	ErrResourceNotFound = errors.New(resourceNotFoundMessageConstant)
	// ErrEmptyToken indicates gh auth token succeeded without printing a token.
	ErrEmptyToken = errors.New(emptyTokenMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// OperationError wraps execution issues for GitHub CLI operations.
type OperationError struct {
	Operation OperationName
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates JSON decoding failures.
type ResponseDecodingError struct {
	Operation OperationName
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// NewClient constructs a GitHub CLI client.
func NewClient(executor GitHubCommandExecutor) (*Client, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Client{executor: executor}, nil
}

type repositoryResponse struct {
	NameWithOwner    string `json:"nameWithOwner"`
	Description      string `json:"description"`
	IsFork           bool   `json:"isFork"`
	IsArchived       bool   `json:"isArchived"`
	DefaultBranchRef struct {
		Name string `json:"name"`
	} `json:"defaultBranchRef"`
}

func (response repositoryResponse) metadata() RepositoryMetadata {
	return RepositoryMetadata{
		NameWithOwner: response.NameWithOwner,
		Description:   response.Description,
		DefaultBranch: response.DefaultBranchRef.Name,
		IsFork:        response.IsFork,
		IsArchived:    response.IsArchived,
	}
}

// ResolveRepoMetadata retrieves canonical metadata for a repository using gh repo view.
func (client *Client) ResolveRepoMetadata(executionContext context.Context, repository string) (RepositoryMetadata, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return RepositoryMetadata{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			viewSubcommandConstant,
			repositoryIdentifier,
			jsonFlagConstant,
			repoViewJSONFieldsConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return RepositoryMetadata{}, OperationError{Operation: repositoryMetadataOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}

	var response repositoryResponse
	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return RepositoryMetadata{}, ResponseDecodingError{Operation: repositoryMetadataOperationNameConstant, Cause: decodingError}
	}

	return response.metadata(), nil
}

// ListOrganizationRepositories enumerates the repositories owned by an organization using gh repo list.
func (client *Client) ListOrganizationRepositories(executionContext context.Context, organization string) ([]RepositoryMetadata, error) {
	organizationName := strings.TrimSpace(organization)
	if len(organizationName) == 0 {
		return nil, InvalidInputError{FieldName: organizationFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			repoSubcommandConstant,
			listSubcommandConstant,
			organizationName,
			limitFlagConstant,
			strconv.Itoa(repositoryListLimitDefaultValueConstant),
			jsonFlagConstant,
			repoViewJSONFieldsConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return nil, OperationError{Operation: listOrganizationRepositoriesOperationConstant, Cause: classifyExecutionError(executionError)}
	}

	var response []repositoryResponse
	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listOrganizationRepositoriesOperationConstant, Cause: decodingError}
	}

	repositories := make([]RepositoryMetadata, 0, len(response))
	for _, repositoryEntry := range response {
		repositories = append(repositories, repositoryEntry.metadata())
	}
	return repositories, nil
}

// ListPullRequests enumerates pull requests using gh pr list.
func (client *Client) ListPullRequests(executionContext context.Context, repository string, options PullRequestListOptions) ([]PullRequest, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return nil, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	if len(options.State) == 0 {
		return nil, InvalidInputError{FieldName: stateFieldNameConstant, Message: requiredValueMessageConstant}
	}

	resultLimit := options.ResultLimit
	if resultLimit <= 0 {
		resultLimit = pullRequestLimitDefaultValueConstant
	}

	arguments := []string{
		pullRequestSubcommandConstant,
		listSubcommandConstant,
		repoFlagConstant,
		repositoryIdentifier,
		stateFlagConstant,
		string(options.State),
	}
	if baseBranch := strings.TrimSpace(options.BaseBranch); len(baseBranch) > 0 {
		arguments = append(arguments, baseFlagConstant, baseBranch)
	}
	arguments = append(arguments, jsonFlagConstant, pullRequestJSONFieldsConstant, limitFlagConstant, strconv.Itoa(resultLimit))

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{Arguments: arguments})
	if executionError != nil {
		return nil, OperationError{Operation: listPullRequestsOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}

	var response []struct {
		Number           int    `json:"number"`
		Title            string `json:"title"`
		HeadRefName      string `json:"headRefName"`
		State            string `json:"state"`
		URL              string `json:"url"`
		MergeStateStatus string `json:"mergeStateStatus"`
	}

	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return nil, ResponseDecodingError{Operation: listPullRequestsOperationNameConstant, Cause: decodingError}
	}

	pullRequests := make([]PullRequest, 0, len(response))
	for _, pullRequestEntry := range response {
		pullRequests = append(pullRequests, PullRequest{
			Number:           pullRequestEntry.Number,
			Title:            pullRequestEntry.Title,
			HeadRefName:      pullRequestEntry.HeadRefName,
			State:            pullRequestEntry.State,
			URL:              pullRequestEntry.URL,
			MergeStateStatus: pullRequestEntry.MergeStateStatus,
		})
	}

	return pullRequests, nil
}

// AuthenticationToken returns the token stored by gh auth login.
func (client *Client) AuthenticationToken(executionContext context.Context) (string, error) {
	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, execshell.CommandDetails{
		Arguments: []string{authSubcommandConstant, tokenSubcommandConstant},
	})
	if executionError != nil {
		return "", OperationError{Operation: authenticationTokenOperationNameConstant, Cause: executionError}
	}

	token := strings.TrimSpace(executionResult.StandardOutput)
	if len(token) == 0 {
		return "", OperationError{Operation: authenticationTokenOperationNameConstant, Cause: ErrEmptyToken}
	}
	return token, nil
}

// classifyExecutionError tags failed gh invocations with ErrRateLimited or ErrResourceNotFound based on standard error.
func classifyExecutionError(executionError error) error {
	var failedError execshell.CommandFailedError
	if !errors.As(executionError, &failedError) {
		return executionError
	}

	standardError := strings.ToLower(failedError.Result.StandardError)
	switch {
	case containsAnyMarker(standardError, rateLimitStandardErrorMarkers):
		return fmt.Errorf(classifiedErrorTemplateConstant, ErrRateLimited, executionError)
	case containsAnyMarker(standardError, notFoundStandardErrorMarkers):
		return fmt.Errorf(classifiedErrorTemplateConstant, ErrResourceNotFound, executionError)
	default:
		return executionError
	}
}

func containsAnyMarker(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
