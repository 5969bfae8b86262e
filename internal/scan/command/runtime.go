package command

import (
	"context"
	"io"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/execshell"
	"github.com/temirov/depscan/internal/githubauth"
	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/shared"
	"github.com/temirov/depscan/internal/ui"
	pathutils "github.com/temirov/depscan/internal/utils/path"
)

const gitHubExecutableNameConstant = "gh"

// LoggerProvider supplies a zap logger instance.
type LoggerProvider func() *zap.Logger

// HumanReadableLoggingProvider reports whether console output is formatted for people rather than machines.
type HumanReadableLoggingProvider func() bool

// ExecutableLocator resolves an executable on PATH.
type ExecutableLocator func(executableName string) (string, error)

// RuntimeDependencies are the process-level collaborators shared by the scan and sweep commands. Every field is
// optional; production defaults apply when a field is nil.
type RuntimeDependencies struct {
	LoggerProvider               LoggerProvider
	ConsoleLoggerProvider        LoggerProvider
	HumanReadableLoggingProvider HumanReadableLoggingProvider
	ExecutableLocator            ExecutableLocator
	CommandRunner                execshell.CommandRunner
	Environment                  map[string]string
	Clock                        shared.Clock
	Sleeper                      shared.Sleeper
	OutputWriter                 io.Writer
}

func (dependencies RuntimeDependencies) resolveLogger() *zap.Logger {
	return resolveProvidedLogger(dependencies.LoggerProvider)
}

func (dependencies RuntimeDependencies) resolveConsoleLogger() *zap.Logger {
	if dependencies.ConsoleLoggerProvider == nil {
		return dependencies.resolveLogger()
	}
	return resolveProvidedLogger(dependencies.ConsoleLoggerProvider)
}

func resolveProvidedLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (dependencies RuntimeDependencies) resolveClock() shared.Clock {
	if dependencies.Clock == nil {
		return shared.SystemClock{}
	}
	return dependencies.Clock
}

func (dependencies RuntimeDependencies) resolveSleeper() shared.Sleeper {
	if dependencies.Sleeper == nil {
		return shared.ContextSleeper{}
	}
	return dependencies.Sleeper
}

func (dependencies RuntimeDependencies) resolveOutputWriter(command *cobra.Command) io.Writer {
	if dependencies.OutputWriter != nil {
		return dependencies.OutputWriter
	}
	return command.OutOrStdout()
}

func (dependencies RuntimeDependencies) humanReadableLogging() bool {
	if dependencies.HumanReadableLoggingProvider == nil {
		return false
	}
	return dependencies.HumanReadableLoggingProvider()
}

// prepareGitHubClient verifies the GitHub CLI is installed, resolves a token from the environment or gh auth, and
// returns a client whose every invocation carries that token.
func (dependencies RuntimeDependencies) prepareGitHubClient(executionContext context.Context, commandTimeout time.Duration) (*githubcli.Client, error) {
	executableLocator := dependencies.ExecutableLocator
	if executableLocator == nil {
		executableLocator = exec.LookPath
	}
	if _, locateError := executableLocator(gitHubExecutableNameConstant); locateError != nil {
		return nil, ConfigurationError{Reason: ReasonGitHubCLIMissing, Cause: locateError}
	}

	commandRunner := dependencies.CommandRunner
	if commandRunner == nil {
		commandRunner = execshell.NewOSCommandRunner()
	}

	executorOptions := []execshell.ShellExecutorOption{execshell.WithCommandTimeout(commandTimeout)}
	if dependencies.humanReadableLogging() {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(dependencies.resolveConsoleLogger())))
	}

	logger := dependencies.resolveLogger()
	baseClient, baseClientError := newGitHubClient(logger, commandRunner, executorOptions...)
	if baseClientError != nil {
		return nil, baseClientError
	}

	token, tokenError := githubauth.ResolveTokenWithFallback(executionContext, dependencies.Environment, baseClient)
	if tokenError != nil {
		return nil, ConfigurationError{Reason: ReasonMissingCredentials, Cause: tokenError}
	}

	authenticatedOptions := append(executorOptions, execshell.WithEnvironment(map[string]string{githubauth.EnvGitHubCLIToken: token}))
	return newGitHubClient(logger, commandRunner, authenticatedOptions...)
}

func newGitHubClient(logger *zap.Logger, commandRunner execshell.CommandRunner, executorOptions ...execshell.ShellExecutorOption) (*githubcli.Client, error) {
	shellExecutor, executorError := execshell.NewShellExecutor(logger, commandRunner, executorOptions...)
	if executorError != nil {
		return nil, executorError
	}
	return githubcli.NewClient(shellExecutor)
}

func resolveCacheDirectory(cacheDirectory string) (string, error) {
	resolvedDirectory, resolveError := pathutils.NewHomeExpander().ResolveDirectory(cacheDirectory)
	if resolveError != nil {
		return "", ConfigurationError{Reason: ReasonInvalidCacheDirectory, Cause: resolveError}
	}
	return resolvedDirectory, nil
}
