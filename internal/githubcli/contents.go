package githubcli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/temirov/depscan/internal/execshell"
)

const (
	apiSubcommandConstant                 = "api"
	methodFlagConstant                    = "-X"
	httpMethodGetConstant                 = "GET"
	fieldFlagConstant                     = "-f"
	jqFlagConstant                        = "--jq"
	headerFlagConstant                    = "-H"
	rawContentAcceptHeaderConstant        = "Accept: application/vnd.github.raw"
	contentsEndpointTemplateConstant      = "repos/%s/contents/%s?ref=%s"
	commitEndpointTemplateConstant        = "repos/%s/commits/%s"
	codeSearchEndpointConstant            = "search/code"
	codeSearchQueryFieldTemplateConstant  = "q=%s"
	commitDateExpressionConstant          = ".commit.committer.date"
	totalCountExpressionConstant          = ".total_count"
	branchFieldNameConstant               = "branch"
	pathFieldNameConstant                 = "path"
	queryFieldNameConstant                = "query"
	emptyCommitDateMessageConstant        = "commit date missing from response"
	fetchFileContentOperationNameConstant = OperationName("FetchFileContent")
	lastCommitOperationNameConstant       = OperationName("FetchLastCommitTimestamp")
	searchCodeOperationNameConstant       = OperationName("SearchCodeTotalCount")
)

// FetchFileContent downloads the raw content of a file on the given branch. A missing file surfaces as an
// OperationError wrapping ErrResourceNotFound.
func (client *Client) FetchFileContent(executionContext context.Context, repository string, branch string, filePath string) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}
	trimmedPath := strings.Trim(strings.TrimSpace(filePath), "/")
	if len(trimmedPath) == 0 {
		return "", InvalidInputError{FieldName: pathFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(contentsEndpointTemplateConstant, repositoryIdentifier, trimmedPath, url.QueryEscape(branchName)),
			headerFlagConstant,
			rawContentAcceptHeaderConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return "", OperationError{Operation: fetchFileContentOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}
	return executionResult.StandardOutput, nil
}

// FetchLastCommitTimestamp returns the committer date of the branch head as reported by the API.
func (client *Client) FetchLastCommitTimestamp(executionContext context.Context, repository string, branch string) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	branchName := strings.TrimSpace(branch)
	if len(branchName) == 0 {
		return "", InvalidInputError{FieldName: branchFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			fmt.Sprintf(commitEndpointTemplateConstant, repositoryIdentifier, branchName),
			jqFlagConstant,
			commitDateExpressionConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return "", OperationError{Operation: lastCommitOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}

	commitDate := strings.TrimSpace(executionResult.StandardOutput)
	if len(commitDate) == 0 || commitDate == "null" {
		return "", ResponseDecodingError{Operation: lastCommitOperationNameConstant, Cause: errors.New(emptyCommitDateMessageConstant)}
	}
	return commitDate, nil
}

// SearchCodeTotalCount runs a code search and returns the raw total_count payload. Parsing is left to callers so
// malformed payloads can be classified separately from transport failures.
func (client *Client) SearchCodeTotalCount(executionContext context.Context, query string) (string, error) {
	trimmedQuery := strings.TrimSpace(query)
	if len(trimmedQuery) == 0 {
		return "", InvalidInputError{FieldName: queryFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			apiSubcommandConstant,
			codeSearchEndpointConstant,
			methodFlagConstant,
			httpMethodGetConstant,
			fieldFlagConstant,
			fmt.Sprintf(codeSearchQueryFieldTemplateConstant, trimmedQuery),
			jqFlagConstant,
			totalCountExpressionConstant,
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return "", OperationError{Operation: searchCodeOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}
	return strings.TrimSpace(executionResult.StandardOutput), nil
}
