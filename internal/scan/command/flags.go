package command

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	organizationFlagNameConstant              = "org"
	organizationFlagDescriptionConstant       = "GitHub organization to scan (repeatable or comma-separated)"
	repositoryFlagNameConstant                = "repo"
	repositoryFlagDescriptionConstant         = "Explicit repository owner/name to scan (repeatable or comma-separated)"
	profileFlagNameConstant                   = "profile"
	profileFlagDescriptionConstant            = "Scan profile name from the profile catalog"
	profilesFileFlagNameConstant              = "profiles-file"
	profilesFileFlagDescriptionConstant       = "Path to a YAML profile catalog replacing the built-in catalog"
	cacheDirectoryFlagNameConstant            = "cache-dir"
	cacheDirectoryFlagDescriptionConstant     = "Directory holding exclusion lists and result caches"
	freshnessWindowFlagNameConstant           = "freshness-window"
	freshnessWindowFlagDescriptionConstant    = "Maximum age of a reusable result cache"
	inactivityWindowFlagNameConstant          = "inactivity-window"
	inactivityWindowFlagDescriptionConstant   = "Repositories without commits for this long are treated as abandoned"
	backoffDelayFlagNameConstant              = "backoff-delay"
	backoffDelayFlagDescriptionConstant       = "Pause after a rate-limited probe"
	commandTimeoutFlagNameConstant            = "command-timeout"
	commandTimeoutFlagDescriptionConstant     = "Timeout applied to every gh invocation"
	forceRefreshFlagNameConstant              = "force-refresh"
	forceRefreshFlagDescriptionConstant       = "Ignore cached verdicts and probe every repository again"
	trackingRepositoryFlagNameConstant        = "tracking-repo"
	trackingRepositoryFlagDescriptionConstant = "Repository owner/name holding the tracking issue; empty disables tracking"
	rebuildFlagNameConstant                   = "rebuild"
	rebuildFlagDescriptionConstant            = "Clear the fork and abandoned lists before sweeping"
)

func registerCandidateFlags(command *cobra.Command) {
	command.Flags().StringSlice(organizationFlagNameConstant, nil, organizationFlagDescriptionConstant)
	command.Flags().StringSlice(repositoryFlagNameConstant, nil, repositoryFlagDescriptionConstant)
	command.Flags().String(cacheDirectoryFlagNameConstant, "", cacheDirectoryFlagDescriptionConstant)
	command.Flags().Duration(commandTimeoutFlagNameConstant, 0, commandTimeoutFlagDescriptionConstant)
	command.Flags().Duration(inactivityWindowFlagNameConstant, 0, inactivityWindowFlagDescriptionConstant)
}

// resolveFlagValue prefers an explicitly set flag over the configured value.
func resolveFlagValue[Value any](flagSet *pflag.FlagSet, flagName string, configuredValue Value, read func(string) (Value, error)) (Value, error) {
	if !flagSet.Changed(flagName) {
		return configuredValue, nil
	}
	return read(flagName)
}

// candidateOptions holds the settings shared by scan and sweep.
type candidateOptions struct {
	Organizations    []string
	Repositories     []string
	CacheDirectory   string
	CommandTimeout   time.Duration
	InactivityWindow time.Duration
}

func parseCandidateOptions(flagSet *pflag.FlagSet, configuration ScanConfiguration, configuredInactivityWindow time.Duration) (candidateOptions, error) {
	var options candidateOptions
	var flagError error

	if options.Organizations, flagError = resolveFlagValue(flagSet, organizationFlagNameConstant, configuration.Organizations, flagSet.GetStringSlice); flagError != nil {
		return candidateOptions{}, flagError
	}
	if options.Repositories, flagError = resolveFlagValue(flagSet, repositoryFlagNameConstant, configuration.Repositories, flagSet.GetStringSlice); flagError != nil {
		return candidateOptions{}, flagError
	}
	if options.CacheDirectory, flagError = resolveFlagValue(flagSet, cacheDirectoryFlagNameConstant, configuration.CacheDirectory, flagSet.GetString); flagError != nil {
		return candidateOptions{}, flagError
	}
	if options.CommandTimeout, flagError = resolveFlagValue(flagSet, commandTimeoutFlagNameConstant, configuration.CommandTimeout, flagSet.GetDuration); flagError != nil {
		return candidateOptions{}, flagError
	}
	if options.InactivityWindow, flagError = resolveFlagValue(flagSet, inactivityWindowFlagNameConstant, configuredInactivityWindow, flagSet.GetDuration); flagError != nil {
		return candidateOptions{}, flagError
	}

	options.Organizations = sanitizeEntries(options.Organizations)
	options.Repositories = sanitizeEntries(options.Repositories)
	if len(options.Organizations) == 0 && len(options.Repositories) == 0 {
		return candidateOptions{}, ConfigurationError{Reason: ReasonNoCandidateSource}
	}
	return options, nil
}
