package command

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/activity"
	"github.com/temirov/depscan/internal/scan/exclusions"
	"github.com/temirov/depscan/internal/scan/orchestrator"
	"github.com/temirov/depscan/internal/scan/profiles"
	"github.com/temirov/depscan/internal/scan/pullrequests"
	"github.com/temirov/depscan/internal/scan/results"
	"github.com/temirov/depscan/internal/scan/shared"
	"github.com/temirov/depscan/internal/scan/source"
	"github.com/temirov/depscan/internal/scan/tracking"
)

const (
	scanCommandUseConstant              = "scan"
	scanCommandShortDescriptionConstant = "Scan repositories for a deprecated dependency"
	scanCommandLongDescriptionConstant  = "scan checks every candidate repository against a profile, caches verdicts, and reconciles findings into a tracking issue."
	scanFailedTemplateConstant          = "scan failed: %w"
	trackingFailedTemplateConstant      = "tracking reconciliation failed: %w"
	candidatesResolvedMessageConstant   = "candidate repositories resolved"
	candidateCountFieldNameConstant     = "candidates"
	unavailableCountFieldNameConstant   = "unavailable_sources"
	trackingSkippedMessageConstant      = "tracking reconciliation skipped because the candidate set is incomplete"
)

// ConfigurationProvider returns the current scan and sweep configuration.
type ConfigurationProvider func() Configuration

// ScanCommandBuilder assembles the scan command.
type ScanCommandBuilder struct {
	RuntimeDependencies
	ConfigurationProvider ConfigurationProvider
}

// scanOptions are the resolved settings of one scan invocation.
type scanOptions struct {
	candidateOptions
	Profile            string
	ProfilesFile       string
	FreshnessWindow    time.Duration
	BackoffDelay       time.Duration
	ForceRefresh       bool
	TrackingRepository string
}

// Build constructs the scan command.
func (builder *ScanCommandBuilder) Build() (*cobra.Command, error) {
	scanCommand := &cobra.Command{
		Use:           scanCommandUseConstant,
		Short:         scanCommandShortDescriptionConstant,
		Long:          scanCommandLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          builder.run,
	}

	registerCandidateFlags(scanCommand)
	scanCommand.Flags().String(profileFlagNameConstant, "", profileFlagDescriptionConstant)
	scanCommand.Flags().String(profilesFileFlagNameConstant, "", profilesFileFlagDescriptionConstant)
	scanCommand.Flags().Duration(freshnessWindowFlagNameConstant, 0, freshnessWindowFlagDescriptionConstant)
	scanCommand.Flags().Duration(backoffDelayFlagNameConstant, 0, backoffDelayFlagDescriptionConstant)
	scanCommand.Flags().Bool(forceRefreshFlagNameConstant, false, forceRefreshFlagDescriptionConstant)
	scanCommand.Flags().String(trackingRepositoryFlagNameConstant, "", trackingRepositoryFlagDescriptionConstant)

	return scanCommand, nil
}

func (builder *ScanCommandBuilder) run(command *cobra.Command, _ []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
	}

	catalog, catalogError := profiles.LoadCatalog(options.ProfilesFile)
	if catalogError != nil {
		return ConfigurationError{Reason: ReasonInvalidCatalog, Cause: catalogError}
	}
	profile, profileError := catalog.Profile(options.Profile)
	if profileError != nil {
		return ConfigurationError{Reason: ReasonUnknownProfile, Cause: profileError}
	}
	if len(options.TrackingRepository) > 0 {
		if _, identifierError := shared.NewRepositoryIdentifier(options.TrackingRepository); identifierError != nil {
			return ConfigurationError{Reason: ReasonInvalidTracking, Cause: identifierError}
		}
	}
	cacheDirectory, cacheDirectoryError := resolveCacheDirectory(options.CacheDirectory)
	if cacheDirectoryError != nil {
		return cacheDirectoryError
	}

	executionContext := command.Context()
	if executionContext == nil {
		executionContext = context.Background()
	}

	gitHubClient, clientError := builder.prepareGitHubClient(executionContext, options.CommandTimeout)
	if clientError != nil {
		return clientError
	}

	logger := builder.resolveLogger()
	resolution, candidatesError := resolveCandidates(executionContext, gitHubClient, options.candidateOptions, logger)
	if candidatesError != nil {
		return candidatesError
	}

	clock := builder.resolveClock()
	exclusionStore, exclusionsError := exclusions.Load(cacheDirectory, logger)
	if exclusionsError != nil {
		return fmt.Errorf(scanFailedTemplateConstant, exclusionsError)
	}
	resultCache, resultsError := results.Load(results.Options{
		FilePath:        results.FilePath(cacheDirectory, profile.Name),
		Clock:           clock,
		FreshnessWindow: options.FreshnessWindow,
		ForceRefresh:    options.ForceRefresh,
		Logger:          logger,
	})
	if resultsError != nil {
		return fmt.Errorf(scanFailedTemplateConstant, resultsError)
	}
	activityProbe, probeError := activity.NewProbe(gitHubClient, logger)
	if probeError != nil {
		return fmt.Errorf(scanFailedTemplateConstant, probeError)
	}

	scanService, serviceError := orchestrator.NewService(
		orchestrator.Dependencies{
			Exclusions:   exclusionStore,
			Results:      resultCache,
			Activity:     activityProbe,
			Strategy:     profile.Strategy(gitHubClient, gitHubClient),
			PullRequests: pullrequests.NewResolver(gitHubClient, profile.PullRequestKeywords, logger),
			Sleeper:      builder.resolveSleeper(),
			Clock:        clock,
			Logger:       logger,
		},
		orchestrator.Options{
			ProfileName:      profile.Name,
			InactivityWindow: options.InactivityWindow,
			BackoffDelay:     options.BackoffDelay,
		},
	)
	if serviceError != nil {
		return fmt.Errorf(scanFailedTemplateConstant, serviceError)
	}

	report, runError := scanService.Run(executionContext, resolution.Records)
	report.UnableToCheck += len(resolution.Unavailable)
	outputWriter := builder.resolveOutputWriter(command)
	if summaryError := writeScanSummary(outputWriter, profile.Name, report); summaryError != nil {
		return summaryError
	}
	if summaryError := writeUnavailableSources(outputWriter, resolution.Unavailable); summaryError != nil {
		return summaryError
	}
	if runError != nil {
		return fmt.Errorf(scanFailedTemplateConstant, runError)
	}

	if !resolution.IsComplete() {
		if len(options.TrackingRepository) > 0 {
			logger.Warn(trackingSkippedMessageConstant, zap.Strings(unavailableCountFieldNameConstant, resolution.Unavailable))
			if summaryError := writeTrackingSkipped(outputWriter); summaryError != nil {
				return summaryError
			}
		}
		return fmt.Errorf(scanFailedTemplateConstant, UnavailableSourcesError{Sources: resolution.Unavailable})
	}
	if len(options.TrackingRepository) == 0 {
		return nil
	}
	reconciler, reconcilerError := tracking.NewReconciler(
		gitHubClient,
		tracking.MarkdownTableRenderer{Subject: profile.Subject()},
		tracking.Settings{Repository: options.TrackingRepository, Title: profile.TrackingTitle},
		logger,
	)
	if reconcilerError != nil {
		return ConfigurationError{Reason: ReasonInvalidTracking, Cause: reconcilerError}
	}
	recordReference, reconcileError := reconciler.Reconcile(executionContext, report.Findings)
	if reconcileError != nil {
		return fmt.Errorf(trackingFailedTemplateConstant, reconcileError)
	}
	return writeTrackingSummary(outputWriter, recordReference)
}

func (builder *ScanCommandBuilder) parseOptions(command *cobra.Command) (scanOptions, error) {
	configuration := builder.resolveConfiguration()
	flagSet := command.Flags()

	sharedOptions, sharedError := parseCandidateOptions(flagSet, configuration.Scan, configuration.Scan.InactivityWindow)
	if sharedError != nil {
		return scanOptions{}, sharedError
	}
	options := scanOptions{candidateOptions: sharedOptions}

	var flagError error
	if options.Profile, flagError = resolveFlagValue(flagSet, profileFlagNameConstant, configuration.Scan.Profile, flagSet.GetString); flagError != nil {
		return scanOptions{}, flagError
	}
	if options.ProfilesFile, flagError = resolveFlagValue(flagSet, profilesFileFlagNameConstant, configuration.Scan.ProfilesFile, flagSet.GetString); flagError != nil {
		return scanOptions{}, flagError
	}
	if options.FreshnessWindow, flagError = resolveFlagValue(flagSet, freshnessWindowFlagNameConstant, configuration.Scan.FreshnessWindow, flagSet.GetDuration); flagError != nil {
		return scanOptions{}, flagError
	}
	if options.BackoffDelay, flagError = resolveFlagValue(flagSet, backoffDelayFlagNameConstant, configuration.Scan.BackoffDelay, flagSet.GetDuration); flagError != nil {
		return scanOptions{}, flagError
	}
	if options.ForceRefresh, flagError = resolveFlagValue(flagSet, forceRefreshFlagNameConstant, configuration.Scan.ForceRefresh, flagSet.GetBool); flagError != nil {
		return scanOptions{}, flagError
	}
	if options.TrackingRepository, flagError = resolveFlagValue(flagSet, trackingRepositoryFlagNameConstant, configuration.Scan.TrackingRepository, flagSet.GetString); flagError != nil {
		return scanOptions{}, flagError
	}

	options.Profile = strings.TrimSpace(options.Profile)
	options.TrackingRepository = strings.TrimSpace(options.TrackingRepository)
	return options, nil
}

func (builder *ScanCommandBuilder) resolveConfiguration() Configuration {
	return resolveConfiguration(builder.ConfigurationProvider)
}

func resolveConfiguration(provider ConfigurationProvider) Configuration {
	configuration := DefaultConfiguration()
	if provider != nil {
		configuration = provider()
	}
	return configuration.Sanitize()
}

// resolveCandidates lists organization repositories and explicit repositories. Sources that cannot be looked up
// are returned in Resolution.Unavailable for the caller to report.
func resolveCandidates(executionContext context.Context, gitHubClient *githubcli.Client, options candidateOptions, logger *zap.Logger) (source.Resolution, error) {
	sourceService, sourceError := source.NewService(gitHubClient, logger)
	if sourceError != nil {
		return source.Resolution{}, sourceError
	}
	resolution := sourceService.Candidates(executionContext, source.Request{
		Organizations: options.Organizations,
		Repositories:  options.Repositories,
	})
	logger.Info(
		candidatesResolvedMessageConstant,
		zap.Int(candidateCountFieldNameConstant, len(resolution.Records)),
		zap.Int(unavailableCountFieldNameConstant, len(resolution.Unavailable)),
	)
	return resolution, nil
}
