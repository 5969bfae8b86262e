package execshell

import (
	"fmt"
	"strings"
)

type messageStage int

const (
	messageStageStart messageStage = iota
	messageStageSuccess
	messageStageFailure
	messageStageExecutionFailure
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	commandArgumentsJoinSeparatorConstant   = " "
	standardErrorSuffixTemplateConstant     = ": %s"
	failureSuffixTemplateConstant           = " (exit code %d%s)"
	executionFailureSuffixTemplateConstant  = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
	fallbackUnknownValueLabelConstant       = "unknown"
	endpointQuerySeparatorConstant          = "?"
	endpointReferenceQueryPrefixConstant    = "ref="
)

const (
	githubRepoSubcommandNameConstant        = "repo"
	githubRepoListSubcommandNameConstant    = "list"
	githubRepoViewSubcommandNameConstant    = "view"
	githubPullRequestSubcommandNameConstant = "pr"
	githubIssueSubcommandNameConstant       = "issue"
	githubIssueListSubcommandNameConstant   = "list"
	githubIssueCreateSubcommandNameConstant = "create"
	githubIssueEditSubcommandNameConstant   = "edit"
	githubIssueReopenSubcommandNameConstant = "reopen"
	githubAPICommandNameConstant            = "api"
	githubRepoFlagConstant                  = "--repo"
	githubTitleFlagConstant                 = "--title"
	githubFieldFlagConstant                 = "-f"
	githubRepositoriesEndpointPrefix        = "repos/"
	githubContentsEndpointSegmentConstant   = "/contents/"
	githubCommitsEndpointSegmentConstant    = "/commits/"
	githubSearchCodeEndpointConstant        = "search/code"
)

// messageTemplates groups the four lifecycle templates of a recognized command. Every template receives the
// command subject as its first argument.
type messageTemplates struct {
	start            string
	success          string
	failure          string
	executionFailure string
}

var (
	repositoryListTemplates = messageTemplates{
		start:            "Listing repositories for %s",
		success:          "Listed repositories for %s",
		failure:          "Failed to list repositories for %s",
		executionFailure: "Unable to list repositories for %s",
	}
	repositoryViewTemplates = messageTemplates{
		start:            "Retrieving repository details for %s",
		success:          "Retrieved repository details for %s",
		failure:          "Failed to retrieve repository details for %s",
		executionFailure: "Unable to retrieve repository details for %s",
	}
	pullRequestListTemplates = messageTemplates{
		start:            "Listing pull requests for %s",
		success:          "Listed pull requests for %s",
		failure:          "Failed to list pull requests for %s",
		executionFailure: "Unable to list pull requests for %s",
	}
	issueListTemplates = messageTemplates{
		start:            "Searching issues in %s",
		success:          "Searched issues in %s",
		failure:          "Failed to search issues in %s",
		executionFailure: "Unable to search issues in %s",
	}
	issueCreateTemplates = messageTemplates{
		start:            "Creating issue %s",
		success:          "Created issue %s",
		failure:          "Failed to create issue %s",
		executionFailure: "Unable to create issue %s",
	}
	issueEditTemplates = messageTemplates{
		start:            "Updating body of issue %s",
		success:          "Updated body of issue %s",
		failure:          "Failed to update body of issue %s",
		executionFailure: "Unable to update body of issue %s",
	}
	issueReopenTemplates = messageTemplates{
		start:            "Reopening issue %s",
		success:          "Reopened issue %s",
		failure:          "Failed to reopen issue %s",
		executionFailure: "Unable to reopen issue %s",
	}
	contentsTemplates = messageTemplates{
		start:            "Fetching %s",
		success:          "Fetched %s",
		failure:          "Failed to fetch %s",
		executionFailure: "Unable to fetch %s",
	}
	commitTemplates = messageTemplates{
		start:            "Reading last commit of %s",
		success:          "Read last commit of %s",
		failure:          "Failed to read last commit of %s",
		executionFailure: "Unable to read last commit of %s",
	}
	codeSearchTemplates = messageTemplates{
		start:            "Searching code for %s",
		success:          "Searched code for %s",
		failure:          "Failed to search code for %s",
		executionFailure: "Unable to search code for %s",
	}
)

// CommandMessageFormatter builds human-readable messages for command lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage formats the message describing a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageStart)
}

// BuildSuccessMessage formats the message describing a completed command with a zero exit code.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return formatter.buildMessage(command, ExecutionResult{}, nil, messageStageSuccess)
}

// BuildFailureMessage formats the message describing a command that returned a non-zero exit code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	return formatter.buildMessage(command, result, nil, messageStageFailure)
}

// BuildExecutionFailureMessage formats the message describing an unexpected execution failure.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	return formatter.buildMessage(command, ExecutionResult{}, failure, messageStageExecutionFailure)
}

func (formatter CommandMessageFormatter) buildMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	if command.Name != CommandGitHub {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	templates, subject, recognized := formatter.describeGitHubCommand(command.Details.Arguments)
	if !recognized {
		return formatter.buildGenericMessage(command, result, failure, stage)
	}

	switch stage {
	case messageStageStart:
		return fmt.Sprintf(templates.start, subject)
	case messageStageSuccess:
		return fmt.Sprintf(templates.success, subject)
	case messageStageFailure:
		return fmt.Sprintf(templates.failure, subject) + fmt.Sprintf(failureSuffixTemplateConstant, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(templates.executionFailure, subject) + fmt.Sprintf(executionFailureSuffixTemplateConstant, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) describeGitHubCommand(arguments []string) (messageTemplates, string, bool) {
	primary := formatter.argumentAtIndex(arguments, 0)
	secondary := formatter.argumentAtIndex(arguments, 1)

	switch primary {
	case githubRepoSubcommandNameConstant:
		switch secondary {
		case githubRepoListSubcommandNameConstant:
			return repositoryListTemplates, formatter.ensureValue(formatter.argumentAtIndex(arguments, 2)), true
		case githubRepoViewSubcommandNameConstant:
			return repositoryViewTemplates, formatter.ensureValue(formatter.argumentAtIndex(arguments, 2)), true
		}
	case githubPullRequestSubcommandNameConstant:
		return pullRequestListTemplates, formatter.ensureValue(findFlagValue(arguments, githubRepoFlagConstant)), true
	case githubIssueSubcommandNameConstant:
		repository := formatter.ensureValue(findFlagValue(arguments, githubRepoFlagConstant))
		switch secondary {
		case githubIssueListSubcommandNameConstant:
			return issueListTemplates, repository, true
		case githubIssueCreateSubcommandNameConstant:
			return issueCreateTemplates, fmt.Sprintf("%q in %s", findFlagValue(arguments, githubTitleFlagConstant), repository), true
		case githubIssueEditSubcommandNameConstant:
			return issueEditTemplates, fmt.Sprintf("#%s in %s", formatter.ensureValue(formatter.argumentAtIndex(arguments, 2)), repository), true
		case githubIssueReopenSubcommandNameConstant:
			return issueReopenTemplates, fmt.Sprintf("#%s in %s", formatter.ensureValue(formatter.argumentAtIndex(arguments, 2)), repository), true
		}
	case githubAPICommandNameConstant:
		return formatter.describeGitHubAPICommand(arguments)
	}

	return messageTemplates{}, emptyStringConstant, false
}

func (formatter CommandMessageFormatter) describeGitHubAPICommand(arguments []string) (messageTemplates, string, bool) {
	endpoint := formatter.argumentAtIndex(arguments, 1)

	switch {
	case endpoint == githubSearchCodeEndpointConstant:
		return codeSearchTemplates, formatter.ensureValue(strings.TrimPrefix(findFlagValue(arguments, githubFieldFlagConstant), "q=")), true
	case strings.HasPrefix(endpoint, githubRepositoriesEndpointPrefix) && strings.Contains(endpoint, githubContentsEndpointSegmentConstant):
		trimmedEndpoint := strings.TrimPrefix(endpoint, githubRepositoriesEndpointPrefix)
		repository, remainder, _ := strings.Cut(trimmedEndpoint, githubContentsEndpointSegmentConstant)
		filePath, query, _ := strings.Cut(remainder, endpointQuerySeparatorConstant)
		reference := strings.TrimPrefix(query, endpointReferenceQueryPrefixConstant)
		if len(reference) == 0 {
			return contentsTemplates, fmt.Sprintf("%s from %s", filePath, repository), true
		}
		return contentsTemplates, fmt.Sprintf("%s from %s@%s", filePath, repository, reference), true
	case strings.HasPrefix(endpoint, githubRepositoriesEndpointPrefix) && strings.Contains(endpoint, githubCommitsEndpointSegmentConstant):
		trimmedEndpoint := strings.TrimPrefix(endpoint, githubRepositoriesEndpointPrefix)
		repository, branch, _ := strings.Cut(trimmedEndpoint, githubCommitsEndpointSegmentConstant)
		return commitTemplates, fmt.Sprintf("%s@%s", repository, branch), true
	default:
		return messageTemplates{}, emptyStringConstant, false
	}
}

func (formatter CommandMessageFormatter) buildGenericMessage(command ShellCommand, result ExecutionResult, failure error, stage messageStage) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch stage {
	case messageStageStart:
		return fmt.Sprintf(genericStartTemplateConstant, commandLabel)
	case messageStageSuccess:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	case messageStageFailure:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	case messageStageExecutionFailure:
		return fmt.Sprintf(genericExecutionFailureTemplateConstant, commandLabel, formatter.describeFailure(failure))
	default:
		return emptyStringConstant
	}
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandLabel := string(command.Name)
	if len(command.Details.Arguments) > 0 {
		commandLabel = commandLabel + commandArgumentsJoinSeparatorConstant + strings.Join(command.Details.Arguments, commandArgumentsJoinSeparatorConstant)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, formatter.formatWorkingDirectorySuffix(command))
}

func (formatter CommandMessageFormatter) formatWorkingDirectorySuffix(command ShellCommand) string {
	trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory)
	if len(trimmedWorkingDirectory) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

func (formatter CommandMessageFormatter) describeFailure(failure error) string {
	if failure == nil {
		return unknownFailureMessageConstant
	}
	return failure.Error()
}

func (formatter CommandMessageFormatter) argumentAtIndex(arguments []string, index int) string {
	if index < 0 || index >= len(arguments) {
		return emptyStringConstant
	}
	return strings.TrimSpace(arguments[index])
}

func (formatter CommandMessageFormatter) ensureValue(value string) string {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return fallbackUnknownValueLabelConstant
	}
	return trimmedValue
}

func findFlagValue(arguments []string, flag string) string {
	for argumentIndex := 0; argumentIndex < len(arguments)-1; argumentIndex++ {
		if strings.TrimSpace(arguments[argumentIndex]) == flag {
			return strings.TrimSpace(arguments[argumentIndex+1])
		}
	}
	return emptyStringConstant
}
