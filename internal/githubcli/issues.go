package githubcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/temirov/depscan/internal/execshell"
)

const (
	issueSubcommandConstant               = "issue"
	createSubcommandConstant              = "create"
	editSubcommandConstant                = "edit"
	reopenSubcommandConstant              = "reopen"
	searchFlagConstant                    = "--search"
	titleFlagConstant                     = "--title"
	bodyFileFlagConstant                  = "--body-file"
	standardInputReferenceConstant        = "-"
	issueStateAllConstant                 = "all"
	issueJSONFieldsConstant               = "number,title,state,url,body"
	issueTitleSearchTemplateConstant      = "%q in:title"
	issueSearchLimitConstant              = 100
	titleFieldNameConstant                = "title"
	issueNumberFieldNameConstant          = "issue_number"
	positiveNumberMessageConstant         = "must be positive"
	issueURLMissingNumberMessageConstant  = "issue number missing from created issue url"
	findIssueOperationNameConstant        = OperationName("FindIssueByTitle")
	createIssueOperationNameConstant      = OperationName("CreateIssue")
	editIssueBodyOperationNameConstant    = OperationName("EditIssueBody")
	reopenIssueOperationNameConstant      = OperationName("ReopenIssue")
	issueStateClosedConstant              = "CLOSED"
	issueURLTrailingSeparatorsConstant    = "/\n\r\t "
	outputLineSeparatorConstant           = "\n"
	issueStateOpenConstant                = "OPEN"
)

// Issue represents the issue fields consumed by tracking reconciliation.
type Issue struct {
	Number int
	Title  string
	State  string
	URL    string
	Body   string
}

// IsClosed reports whether GitHub considers the issue closed.
func (issue Issue) IsClosed() bool {
	return strings.EqualFold(issue.State, issueStateClosedConstant)
}

// FindIssueByTitle searches issues in every state and returns the one whose title matches exactly.
func (client *Client) FindIssueByTitle(executionContext context.Context, repository string, title string) (Issue, bool, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return Issue{}, false, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(title)) == 0 {
		return Issue{}, false, InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			issueSubcommandConstant,
			listSubcommandConstant,
			repoFlagConstant,
			repositoryIdentifier,
			stateFlagConstant,
			issueStateAllConstant,
			searchFlagConstant,
			fmt.Sprintf(issueTitleSearchTemplateConstant, title),
			jsonFlagConstant,
			issueJSONFieldsConstant,
			limitFlagConstant,
			strconv.Itoa(issueSearchLimitConstant),
		},
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return Issue{}, false, OperationError{Operation: findIssueOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}

	var response []struct {
		Number int    `json:"number"`
		Title  string `json:"title"`
		State  string `json:"state"`
		URL    string `json:"url"`
		Body   string `json:"body"`
	}
	decodingError := json.Unmarshal([]byte(executionResult.StandardOutput), &response)
	if decodingError != nil {
		return Issue{}, false, ResponseDecodingError{Operation: findIssueOperationNameConstant, Cause: decodingError}
	}

	for _, issueEntry := range response {
		if issueEntry.Title != title {
			continue
		}
		return Issue{
			Number: issueEntry.Number,
			Title:  issueEntry.Title,
			State:  issueEntry.State,
			URL:    issueEntry.URL,
			Body:   issueEntry.Body,
		}, true, nil
	}
	return Issue{}, false, nil
}

// CreateIssue opens a new issue with the body passed through standard input.
func (client *Client) CreateIssue(executionContext context.Context, repository string, title string, body string) (Issue, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return Issue{}, InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if len(strings.TrimSpace(title)) == 0 {
		return Issue{}, InvalidInputError{FieldName: titleFieldNameConstant, Message: requiredValueMessageConstant}
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			issueSubcommandConstant,
			createSubcommandConstant,
			repoFlagConstant,
			repositoryIdentifier,
			titleFlagConstant,
			title,
			bodyFileFlagConstant,
			standardInputReferenceConstant,
		},
		StandardInput: []byte(body),
	}

	executionResult, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails)
	if executionError != nil {
		return Issue{}, OperationError{Operation: createIssueOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}

	issueURL := lastNonEmptyLine(executionResult.StandardOutput)
	issueNumber, parseError := strconv.Atoi(path.Base(strings.TrimRight(issueURL, issueURLTrailingSeparatorsConstant)))
	if parseError != nil {
		return Issue{}, ResponseDecodingError{Operation: createIssueOperationNameConstant, Cause: errors.Join(errors.New(issueURLMissingNumberMessageConstant), parseError)}
	}

	return Issue{Number: issueNumber, Title: title, State: issueStateOpenConstant, URL: issueURL, Body: body}, nil
}

// EditIssueBody replaces the full body of an existing issue.
func (client *Client) EditIssueBody(executionContext context.Context, repository string, issueNumber int, body string) error {
	repositoryIdentifier, validationError := validateIssueReference(repository, issueNumber)
	if validationError != nil {
		return validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			issueSubcommandConstant,
			editSubcommandConstant,
			strconv.Itoa(issueNumber),
			repoFlagConstant,
			repositoryIdentifier,
			bodyFileFlagConstant,
			standardInputReferenceConstant,
		},
		StandardInput: []byte(body),
	}

	if _, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails); executionError != nil {
		return OperationError{Operation: editIssueBodyOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}
	return nil
}

// ReopenIssue transitions a closed issue back to open.
func (client *Client) ReopenIssue(executionContext context.Context, repository string, issueNumber int) error {
	repositoryIdentifier, validationError := validateIssueReference(repository, issueNumber)
	if validationError != nil {
		return validationError
	}

	commandDetails := execshell.CommandDetails{
		Arguments: []string{
			issueSubcommandConstant,
			reopenSubcommandConstant,
			strconv.Itoa(issueNumber),
			repoFlagConstant,
			repositoryIdentifier,
		},
	}

	if _, executionError := client.executor.ExecuteGitHubCLI(executionContext, commandDetails); executionError != nil {
		return OperationError{Operation: reopenIssueOperationNameConstant, Cause: classifyExecutionError(executionError)}
	}
	return nil
}

func validateIssueReference(repository string, issueNumber int) (string, error) {
	repositoryIdentifier := strings.TrimSpace(repository)
	if len(repositoryIdentifier) == 0 {
		return "", InvalidInputError{FieldName: repositoryFieldNameConstant, Message: requiredValueMessageConstant}
	}
	if issueNumber <= 0 {
		return "", InvalidInputError{FieldName: issueNumberFieldNameConstant, Message: positiveNumberMessageConstant}
	}
	return repositoryIdentifier, nil
}

func lastNonEmptyLine(output string) string {
	lines := strings.Split(output, outputLineSeparatorConstant)
	for lineIndex := len(lines) - 1; lineIndex >= 0; lineIndex-- {
		trimmedLine := strings.TrimSpace(lines[lineIndex])
		if len(trimmedLine) > 0 {
			return trimmedLine
		}
	}
	return ""
}
