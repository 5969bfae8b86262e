package githubcli_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depscan/internal/execshell"
	"github.com/temirov/depscan/internal/githubcli"
)

const (
	testRepositoryIdentifierConstant          = "owner/example"
	testOrganizationConstant                  = "owner"
	testBaseBranchConstant                    = "main"
	testManifestPathConstant                  = "go.mod"
	testResolveSuccessCaseNameConstant        = "resolve_success"
	testResolveDecodeFailureCaseNameConstant  = "resolve_decode_failure"
	testResolveCommandFailureCaseNameConstant = "resolve_command_failure"
	testResolveInputFailureCaseNameConstant   = "resolve_input_failure"
	testRateLimitStandardErrorConstant        = "HTTP 403: API rate limit exceeded for user ID 1."
	testNotFoundStandardErrorConstant         = "gh: Not Found (HTTP 404)"
)

type stubGitHubExecutor struct {
	executeFunc     func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error)
	recordedDetails []execshell.CommandDetails
}

func (executor *stubGitHubExecutor) ExecuteGitHubCLI(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recordedDetails = append(executor.recordedDetails, details)
	if executor.executeFunc != nil {
		return executor.executeFunc(executionContext, details)
	}
	return execshell.ExecutionResult{}, nil
}

func respondWith(standardOutput string) *stubGitHubExecutor {
	return &stubGitHubExecutor{executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
		return execshell.ExecutionResult{StandardOutput: standardOutput}, nil
	}}
}

func failWith(standardError string) *stubGitHubExecutor {
	return &stubGitHubExecutor{executeFunc: func(context.Context, execshell.CommandDetails) (execshell.ExecutionResult, error) {
		return execshell.ExecutionResult{}, execshell.CommandFailedError{
			Command: execshell.ShellCommand{Name: execshell.CommandGitHub},
			Result:  execshell.ExecutionResult{ExitCode: 1, StandardError: standardError},
		}
	}}
}

func TestNewClientValidation(testInstance *testing.T) {
	testInstance.Run("nil_executor", func(testInstance *testing.T) {
		client, creationError := githubcli.NewClient(nil)
		require.Error(testInstance, creationError)
		require.ErrorIs(testInstance, creationError, githubcli.ErrExecutorNotConfigured)
		require.Nil(testInstance, client)
	})
}

func TestResolveRepoMetadata(testInstance *testing.T) {
	testCases := []struct {
		name        string
		repository  string
		executor    *stubGitHubExecutor
		expectError bool
		errorType   any
		verify      func(testInstance *testing.T, metadata githubcli.RepositoryMetadata, executor *stubGitHubExecutor)
	}{
		{
			name:       testResolveSuccessCaseNameConstant,
			repository: testRepositoryIdentifierConstant,
			executor:   respondWith(`{"nameWithOwner":"owner/example","description":"Example repo","isFork":true,"isArchived":false,"defaultBranchRef":{"name":"main"}}`),
			verify: func(testInstance *testing.T, metadata githubcli.RepositoryMetadata, executor *stubGitHubExecutor) {
				require.Equal(testInstance, "owner/example", metadata.NameWithOwner)
				require.Equal(testInstance, "Example repo", metadata.Description)
				require.Equal(testInstance, "main", metadata.DefaultBranch)
				require.True(testInstance, metadata.IsFork)
				require.False(testInstance, metadata.IsArchived)
				require.Len(testInstance, executor.recordedDetails, 1)
				require.Contains(testInstance, executor.recordedDetails[0].Arguments, testRepositoryIdentifierConstant)
			},
		},
		{
			name:        testResolveDecodeFailureCaseNameConstant,
			repository:  testRepositoryIdentifierConstant,
			executor:    respondWith("not-json"),
			expectError: true,
			errorType:   githubcli.ResponseDecodingError{},
		},
		{
			name:        testResolveCommandFailureCaseNameConstant,
			repository:  testRepositoryIdentifierConstant,
			executor:    failWith(""),
			expectError: true,
			errorType:   githubcli.OperationError{},
		},
		{
			name:        testResolveInputFailureCaseNameConstant,
			repository:  "  ",
			executor:    &stubGitHubExecutor{},
			expectError: true,
			errorType:   githubcli.InvalidInputError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := githubcli.NewClient(testCase.executor)
			require.NoError(testInstance, creationError)

			metadata, resolutionError := client.ResolveRepoMetadata(context.Background(), testCase.repository)
			if testCase.expectError {
				require.Error(testInstance, resolutionError)
				require.IsType(testInstance, testCase.errorType, resolutionError)
				return
			}

			require.NoError(testInstance, resolutionError)
			if testCase.verify != nil {
				testCase.verify(testInstance, metadata, testCase.executor)
			}
		})
	}
}

func TestListOrganizationRepositories(testInstance *testing.T) {
	executor := respondWith(`[
		{"nameWithOwner":"owner/alpha","isFork":false,"isArchived":false,"defaultBranchRef":{"name":"main"}},
		{"nameWithOwner":"owner/beta","isFork":true,"isArchived":true,"defaultBranchRef":{"name":"master"}}
	]`)
	client, creationError := githubcli.NewClient(executor)
	require.NoError(testInstance, creationError)

	repositories, listError := client.ListOrganizationRepositories(context.Background(), testOrganizationConstant)
	require.NoError(testInstance, listError)
	require.Len(testInstance, repositories, 2)
	require.Equal(testInstance, githubcli.RepositoryMetadata{NameWithOwner: "owner/beta", DefaultBranch: "master", IsFork: true, IsArchived: true}, repositories[1])

	require.Len(testInstance, executor.recordedDetails, 1)
	require.Equal(testInstance, []string{"repo", "list", testOrganizationConstant, "--limit", "1000", "--json", "defaultBranchRef,nameWithOwner,description,isFork,isArchived"}, executor.recordedDetails[0].Arguments)

	_, inputError := client.ListOrganizationRepositories(context.Background(), " ")
	require.IsType(testInstance, githubcli.InvalidInputError{}, inputError)
}

func TestListPullRequests(testInstance *testing.T) {
	testCases := []struct {
		name              string
		options           githubcli.PullRequestListOptions
		executor          *stubGitHubExecutor
		expectErrorType   any
		expectedArguments []string
		expectedCount     int
	}{
		{
			name:              "all_states_without_base",
			options:           githubcli.PullRequestListOptions{State: githubcli.PullRequestStateAll},
			executor:          respondWith(`[{"number":4,"title":"Remove deprecated crypto","headRefName":"cleanup","state":"OPEN","url":"https://github.com/owner/example/pull/4","mergeStateStatus":"BEHIND"}]`),
			expectedArguments: []string{"pr", "list", "--repo", testRepositoryIdentifierConstant, "--state", "all", "--json", "number,title,headRefName,state,url,mergeStateStatus", "--limit", "100"},
			expectedCount:     1,
		},
		{
			name:              "base_branch_filter",
			options:           githubcli.PullRequestListOptions{State: githubcli.PullRequestStateOpen, BaseBranch: testBaseBranchConstant, ResultLimit: 5},
			executor:          respondWith(`[]`),
			expectedArguments: []string{"pr", "list", "--repo", testRepositoryIdentifierConstant, "--state", "open", "--base", testBaseBranchConstant, "--json", "number,title,headRefName,state,url,mergeStateStatus", "--limit", "5"},
		},
		{
			name:            "state_validation",
			options:         githubcli.PullRequestListOptions{},
			executor:        &stubGitHubExecutor{},
			expectErrorType: githubcli.InvalidInputError{},
		},
		{
			name:            "decode_failure",
			options:         githubcli.PullRequestListOptions{State: githubcli.PullRequestStateAll},
			executor:        respondWith("{"),
			expectErrorType: githubcli.ResponseDecodingError{},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := githubcli.NewClient(testCase.executor)
			require.NoError(testInstance, creationError)

			pullRequests, listError := client.ListPullRequests(context.Background(), testRepositoryIdentifierConstant, testCase.options)
			if testCase.expectErrorType != nil {
				require.Error(testInstance, listError)
				require.IsType(testInstance, testCase.expectErrorType, listError)
				return
			}

			require.NoError(testInstance, listError)
			require.Len(testInstance, pullRequests, testCase.expectedCount)
			require.Equal(testInstance, testCase.expectedArguments, testCase.executor.recordedDetails[0].Arguments)
		})
	}
}

func TestFetchFileContent(testInstance *testing.T) {
	testCases := []struct {
		name             string
		executor         *stubGitHubExecutor
		expectedContent  string
		expectedSentinel error
	}{
		{
			name:            "content_returned",
			executor:        respondWith("module example\n"),
			expectedContent: "module example\n",
		},
		{
			name:             "missing_file",
			executor:         failWith(testNotFoundStandardErrorConstant),
			expectedSentinel: githubcli.ErrResourceNotFound,
		},
		{
			name:             "rate_limited",
			executor:         failWith(testRateLimitStandardErrorConstant),
			expectedSentinel: githubcli.ErrRateLimited,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			client, creationError := githubcli.NewClient(testCase.executor)
			require.NoError(testInstance, creationError)

			content, fetchError := client.FetchFileContent(context.Background(), testRepositoryIdentifierConstant, testBaseBranchConstant, testManifestPathConstant)
			require.Equal(testInstance, []string{"api", "repos/owner/example/contents/go.mod?ref=main", "-H", "Accept: application/vnd.github.raw"}, testCase.executor.recordedDetails[0].Arguments)
			if testCase.expectedSentinel != nil {
				require.Error(testInstance, fetchError)
				require.IsType(testInstance, githubcli.OperationError{}, fetchError)
				require.ErrorIs(testInstance, fetchError, testCase.expectedSentinel)
				return
			}
			require.NoError(testInstance, fetchError)
			require.Equal(testInstance, testCase.expectedContent, content)
		})
	}
}

func TestClassificationPrefersRateLimitOverNotFound(testInstance *testing.T) {
	client, creationError := githubcli.NewClient(failWith("HTTP 403: secondary rate limit; resource not found"))
	require.NoError(testInstance, creationError)

	_, searchError := client.SearchCodeTotalCount(context.Background(), "golang.org/x/crypto repo:owner/example")
	require.ErrorIs(testInstance, searchError, githubcli.ErrRateLimited)
	require.False(testInstance, errors.Is(searchError, githubcli.ErrResourceNotFound))

	var failedError execshell.CommandFailedError
	require.ErrorAs(testInstance, searchError, &failedError)
}

func TestFetchLastCommitTimestamp(testInstance *testing.T) {
	executor := respondWith("2024-03-01T10:00:00Z\n")
	client, creationError := githubcli.NewClient(executor)
	require.NoError(testInstance, creationError)

	timestamp, fetchError := client.FetchLastCommitTimestamp(context.Background(), testRepositoryIdentifierConstant, testBaseBranchConstant)
	require.NoError(testInstance, fetchError)
	require.Equal(testInstance, "2024-03-01T10:00:00Z", timestamp)
	require.Equal(testInstance, []string{"api", "repos/owner/example/commits/main", "--jq", ".commit.committer.date"}, executor.recordedDetails[0].Arguments)

	emptyClient, creationError := githubcli.NewClient(respondWith("null\n"))
	require.NoError(testInstance, creationError)
	_, emptyError := emptyClient.FetchLastCommitTimestamp(context.Background(), testRepositoryIdentifierConstant, testBaseBranchConstant)
	require.IsType(testInstance, githubcli.ResponseDecodingError{}, emptyError)

	_, branchError := client.FetchLastCommitTimestamp(context.Background(), testRepositoryIdentifierConstant, "")
	require.IsType(testInstance, githubcli.InvalidInputError{}, branchError)
}

func TestSearchCodeTotalCountReturnsRawPayload(testInstance *testing.T) {
	executor := respondWith(" 3\n")
	client, creationError := githubcli.NewClient(executor)
	require.NoError(testInstance, creationError)

	payload, searchError := client.SearchCodeTotalCount(context.Background(), "ioutil.ReadAll repo:owner/example language:Go NOT path:vendor")
	require.NoError(testInstance, searchError)
	require.Equal(testInstance, "3", payload)

	arguments := executor.recordedDetails[0].Arguments
	require.Equal(testInstance, "search/code", arguments[1])
	require.Equal(testInstance, "q=ioutil.ReadAll repo:owner/example language:Go NOT path:vendor", arguments[5])
	require.True(testInstance, strings.HasSuffix(strings.Join(arguments, " "), "--jq .total_count"))
}

func TestAuthenticationToken(testInstance *testing.T) {
	client, creationError := githubcli.NewClient(respondWith("gho_token\n"))
	require.NoError(testInstance, creationError)

	token, tokenError := client.AuthenticationToken(context.Background())
	require.NoError(testInstance, tokenError)
	require.Equal(testInstance, "gho_token", token)

	emptyClient, creationError := githubcli.NewClient(respondWith("\n"))
	require.NoError(testInstance, creationError)
	_, emptyError := emptyClient.AuthenticationToken(context.Background())
	require.ErrorIs(testInstance, emptyError, githubcli.ErrEmptyToken)
}
