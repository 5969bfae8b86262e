package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/temirov/depscan/internal/scan/activity"
	"github.com/temirov/depscan/internal/scan/exclusions"
	"github.com/temirov/depscan/internal/scan/orchestrator"
)

const (
	sweepCommandUseConstant              = "sweep"
	sweepCommandShortDescriptionConstant = "Refresh the fork and abandoned exclusion lists"
	sweepCommandLongDescriptionConstant  = "sweep records forks and repositories without recent commits into the exclusion lists consulted by scan."
	sweepFailedTemplateConstant          = "sweep failed: %w"
)

// SweepCommandBuilder assembles the sweep command.
type SweepCommandBuilder struct {
	RuntimeDependencies
	ConfigurationProvider ConfigurationProvider
}

type sweepOptions struct {
	candidateOptions
	Rebuild bool
}

// Build constructs the sweep command.
func (builder *SweepCommandBuilder) Build() (*cobra.Command, error) {
	sweepCommand := &cobra.Command{
		Use:           sweepCommandUseConstant,
		Short:         sweepCommandShortDescriptionConstant,
		Long:          sweepCommandLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          builder.run,
	}

	registerCandidateFlags(sweepCommand)
	sweepCommand.Flags().Bool(rebuildFlagNameConstant, false, rebuildFlagDescriptionConstant)

	return sweepCommand, nil
}

func (builder *SweepCommandBuilder) run(command *cobra.Command, _ []string) error {
	options, optionsError := builder.parseOptions(command)
	if optionsError != nil {
		return optionsError
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
	// A rebuild replaces the stored sets with what it observes, so it needs every source.
	if options.Rebuild && !resolution.IsComplete() {
		return fmt.Errorf(sweepFailedTemplateConstant, UnavailableSourcesError{Sources: resolution.Unavailable})
	}

	exclusionStore, exclusionsError := exclusions.Load(cacheDirectory, logger)
	if exclusionsError != nil {
		return fmt.Errorf(sweepFailedTemplateConstant, exclusionsError)
	}
	activityProbe, probeError := activity.NewProbe(gitHubClient, logger)
	if probeError != nil {
		return fmt.Errorf(sweepFailedTemplateConstant, probeError)
	}

	sweeper, sweeperError := orchestrator.NewSweeper(
		orchestrator.SweepDependencies{
			Exclusions: exclusionStore,
			Activity:   activityProbe,
			Clock:      builder.resolveClock(),
			Logger:     logger,
		},
		orchestrator.SweepOptions{InactivityWindow: options.InactivityWindow, Rebuild: options.Rebuild},
	)
	if sweeperError != nil {
		return fmt.Errorf(sweepFailedTemplateConstant, sweeperError)
	}

	report, runError := sweeper.Run(executionContext, resolution.Records)
	outputWriter := builder.resolveOutputWriter(command)
	if summaryError := writeSweepSummary(outputWriter, report); summaryError != nil {
		return summaryError
	}
	if summaryError := writeUnavailableSources(outputWriter, resolution.Unavailable); summaryError != nil {
		return summaryError
	}
	if runError != nil {
		return fmt.Errorf(sweepFailedTemplateConstant, runError)
	}
	if !resolution.IsComplete() {
		return fmt.Errorf(sweepFailedTemplateConstant, UnavailableSourcesError{Sources: resolution.Unavailable})
	}
	return nil
}

func (builder *SweepCommandBuilder) parseOptions(command *cobra.Command) (sweepOptions, error) {
	configuration := resolveConfiguration(builder.ConfigurationProvider)
	flagSet := command.Flags()

	sharedOptions, sharedError := parseCandidateOptions(flagSet, configuration.Scan, configuration.Sweep.InactivityWindow)
	if sharedError != nil {
		return sweepOptions{}, sharedError
	}
	rebuild, rebuildError := resolveFlagValue(flagSet, rebuildFlagNameConstant, configuration.Sweep.Rebuild, flagSet.GetBool)
	if rebuildError != nil {
		return sweepOptions{}, rebuildError
	}
	return sweepOptions{candidateOptions: sharedOptions, Rebuild: rebuild}, nil
}
