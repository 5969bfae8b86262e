package orchestrator_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/activity"
	"github.com/temirov/depscan/internal/scan/exclusions"
	"github.com/temirov/depscan/internal/scan/orchestrator"
	"github.com/temirov/depscan/internal/scan/shared"
)

// cancellingActivityProbe reports every repository as abandoned and cancels the sweep after the first verdict.
type cancellingActivityProbe struct {
	cancel context.CancelFunc
}

func (probe cancellingActivityProbe) Evaluate(context.Context, shared.RepoRecord, string) activity.Assessment {
	probe.cancel()
	return activity.Assessment{Status: activity.StatusAbandoned, LastCommitTimestamp: "2020-01-01T00:00:00Z"}
}

func newSweeper(testInstance *testing.T, harness *passHarness, activityProbe orchestrator.ActivityProbe, options orchestrator.SweepOptions) *orchestrator.Sweeper {
	testInstance.Helper()

	exclusionStore, loadError := exclusions.Load(harness.cacheDirectory, zap.NewNop())
	require.NoError(testInstance, loadError)
	if activityProbe == nil {
		probe, probeError := activity.NewProbe(harness.github, zap.NewNop())
		require.NoError(testInstance, probeError)
		activityProbe = probe
	}

	sweeper, sweeperError := orchestrator.NewSweeper(orchestrator.SweepDependencies{
		Exclusions: exclusionStore,
		Activity:   activityProbe,
		Clock:      fixedClock{},
	}, options)
	require.NoError(testInstance, sweeperError)
	return sweeper
}

func runSweep(testInstance *testing.T, harness *passHarness, options orchestrator.SweepOptions, candidates ...shared.RepoRecord) orchestrator.SweepReport {
	testInstance.Helper()

	report, runError := newSweeper(testInstance, harness, nil, options).Run(context.Background(), candidates)
	require.NoError(testInstance, runError)
	return report
}

func TestSweepUsesLongInactivityPolicy(testInstance *testing.T) {
	harness := newPassHarness(testInstance)
	harness.github.commits[repositoryNoManifestConstant.String()] = "2023-10-01T00:00:00Z"
	harness.github.commits[repositoryLegacyConstant.String()] = "2022-01-01T00:00:00Z"

	report := runSweep(testInstance, harness, orchestrator.SweepOptions{},
		record(repositoryForkConstant, true),
		record(repositoryNoManifestConstant, false),
		record(repositoryLegacyConstant, false),
		record(repositoryOtherOrgConstant, false),
	)

	require.Equal(testInstance, orchestrator.SweepReport{Total: 4, Forks: 1, Abandoned: 1, Active: 1, Indeterminate: 1, NewlyExcluded: 2}, report)
	require.Equal(testInstance, "acme/alpha\n", harness.exclusionFile(testInstance, shared.ExclusionCategoryFork))
	require.Equal(testInstance, "acme/gamma\n", harness.exclusionFile(testInstance, shared.ExclusionCategoryAbandoned))
	require.Zero(testInstance, harness.github.commitCalls[repositoryForkConstant.String()])
}

func TestSweepRebuildRemovesStaleEntries(testInstance *testing.T) {
	harness := newPassHarness(testInstance)
	require.NoError(testInstance, os.WriteFile(exclusions.FilePath(harness.cacheDirectory, shared.ExclusionCategoryFork), []byte("acme/alpha\nacme/retired\n"), 0o600))
	require.NoError(testInstance, os.WriteFile(exclusions.FilePath(harness.cacheDirectory, shared.ExclusionCategoryAbandoned), []byte("acme/gamma\n"), 0o600))
	require.NoError(testInstance, os.WriteFile(exclusions.FilePath(harness.cacheDirectory, shared.ExclusionCategoryNoManifest), []byte("acme/beta\n"), 0o600))
	harness.github.commits[repositoryLegacyConstant.String()] = "2024-05-01T00:00:00Z"

	report := runSweep(testInstance, harness, orchestrator.SweepOptions{Rebuild: true, InactivityWindow: 365 * 24 * time.Hour},
		record(repositoryForkConstant, true),
		record(repositoryLegacyConstant, false),
	)

	require.Equal(testInstance, 1, report.Forks)
	require.Equal(testInstance, 1, report.Active)
	require.Equal(testInstance, "acme/alpha\n", harness.exclusionFile(testInstance, shared.ExclusionCategoryFork))
	require.Equal(testInstance, "", harness.exclusionFile(testInstance, shared.ExclusionCategoryAbandoned))
	require.Equal(testInstance, "acme/beta\n", harness.exclusionFile(testInstance, shared.ExclusionCategoryNoManifest))
}

func TestSweepWithoutRebuildKeepsExistingEntries(testInstance *testing.T) {
	harness := newPassHarness(testInstance)
	require.NoError(testInstance, os.WriteFile(exclusions.FilePath(harness.cacheDirectory, shared.ExclusionCategoryAbandoned), []byte("acme/gamma\n"), 0o600))

	report := runSweep(testInstance, harness, orchestrator.SweepOptions{}, record(repositoryLegacyConstant, false))

	require.Equal(testInstance, 1, report.Abandoned)
	require.Zero(testInstance, report.NewlyExcluded)
	require.Zero(testInstance, harness.github.commitCalls[repositoryLegacyConstant.String()])
	require.Equal(testInstance, "acme/gamma\n", harness.exclusionFile(testInstance, shared.ExclusionCategoryAbandoned))
}

func TestInterruptedRebuildKeepsStoredExclusions(testInstance *testing.T) {
	testCases := []struct {
		name           string
		cancelUpfront  bool
		expectedReport orchestrator.SweepReport
	}{
		{
			name:           "cancelled_before_start",
			cancelUpfront:  true,
			expectedReport: orchestrator.SweepReport{Total: 2},
		},
		{
			name:           "cancelled_after_first_repository",
			expectedReport: orchestrator.SweepReport{Total: 2, Abandoned: 1},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			harness := newPassHarness(subTest)
			forkPath := exclusions.FilePath(harness.cacheDirectory, shared.ExclusionCategoryFork)
			abandonedPath := exclusions.FilePath(harness.cacheDirectory, shared.ExclusionCategoryAbandoned)
			require.NoError(subTest, os.WriteFile(forkPath, []byte("acme/alpha\n"), 0o600))
			require.NoError(subTest, os.WriteFile(abandonedPath, []byte("acme/gamma\n"), 0o600))

			executionContext, cancel := context.WithCancel(context.Background())
			defer cancel()
			if testCase.cancelUpfront {
				cancel()
			}

			sweeper := newSweeper(subTest, harness, cancellingActivityProbe{cancel: cancel}, orchestrator.SweepOptions{Rebuild: true})
			report, runError := sweeper.Run(executionContext, []shared.RepoRecord{
				record(repositoryLegacyConstant, false),
				record(repositoryOtherOrgConstant, false),
			})

			require.ErrorIs(subTest, runError, context.Canceled)
			require.Equal(subTest, testCase.expectedReport, report)
			require.Equal(subTest, "acme/alpha\n", harness.exclusionFile(subTest, shared.ExclusionCategoryFork))
			require.Equal(subTest, "acme/gamma\n", harness.exclusionFile(subTest, shared.ExclusionCategoryAbandoned))
		})
	}
}
