package results_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/results"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	testIdentifierConstant      = shared.RepositoryIdentifier("acme/widget")
	testFreshnessWindowConstant = 6 * time.Hour
	testProfileNameConstant     = "legacy-logger"
)

type adjustableClock struct {
	current time.Time
}

func (clock *adjustableClock) Now() time.Time {
	return clock.current
}

func loadCache(testInstance *testing.T, cachePath string, clock shared.Clock, forceRefresh bool) *results.Cache {
	testInstance.Helper()
	cache, loadError := results.Load(results.Options{
		FilePath:        cachePath,
		Clock:           clock,
		FreshnessWindow: testFreshnessWindowConstant,
		ForceRefresh:    forceRefresh,
		Logger:          zap.NewNop(),
	})
	require.NoError(testInstance, loadError)
	return cache
}

func compliantVerdict() results.CachedVerdict {
	return results.CachedVerdict{
		Identifier:      testIdentifierConstant,
		ComplianceState: shared.ComplianceStateCompliant,
		ProbeSucceeded:  true,
	}
}

func TestFilePathPlacesProfileUnderResults(testInstance *testing.T) {
	require.Equal(testInstance, filepath.Join("cache", "results", "legacy-logger.json"), results.FilePath("cache", testProfileNameConstant))
}

func TestStoreThenLookupWithinWindow(testInstance *testing.T) {
	cachePath := results.FilePath(testInstance.TempDir(), testProfileNameConstant)
	clock := &adjustableClock{current: time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC)}

	cache := loadCache(testInstance, cachePath, clock, false)
	require.NoError(testInstance, cache.Store(compliantVerdict()))

	clock.current = clock.current.Add(time.Hour)
	reloaded := loadCache(testInstance, cachePath, clock, false)
	verdict, found := reloaded.Lookup(testIdentifierConstant)
	require.True(testInstance, found)
	require.Equal(testInstance, shared.ComplianceStateCompliant, verdict.ComplianceState)
	require.True(testInstance, verdict.ProbeSucceeded)
	require.True(testInstance, time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC).Equal(verdict.LastChecked))
}

func TestLookupMissesOnceWindowElapses(testInstance *testing.T) {
	testCases := []struct {
		name        string
		age         time.Duration
		expectedHit bool
	}{
		{name: "just_inside", age: testFreshnessWindowConstant - time.Second, expectedHit: true},
		{name: "exactly_window", age: testFreshnessWindowConstant, expectedHit: false},
		{name: "well_past", age: 10 * testFreshnessWindowConstant, expectedHit: false},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			cachePath := results.FilePath(subTest.TempDir(), testProfileNameConstant)
			generatedAt := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
			clock := &adjustableClock{current: generatedAt}

			cache := loadCache(subTest, cachePath, clock, false)
			require.NoError(subTest, cache.Store(compliantVerdict()))

			clock.current = generatedAt.Add(testCase.age)
			_, inMemoryHit := cache.Lookup(testIdentifierConstant)
			require.Equal(subTest, testCase.expectedHit, inMemoryHit)

			reloaded := loadCache(subTest, cachePath, clock, false)
			_, reloadedHit := reloaded.Lookup(testIdentifierConstant)
			require.Equal(subTest, testCase.expectedHit, reloadedHit)
		})
	}
}

func TestStaleEnvelopeIsReplacedOnLoad(testInstance *testing.T) {
	cachePath := results.FilePath(testInstance.TempDir(), testProfileNameConstant)
	clock := &adjustableClock{current: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)}

	cache := loadCache(testInstance, cachePath, clock, false)
	require.NoError(testInstance, cache.Store(compliantVerdict()))

	clock.current = clock.current.Add(7 * time.Hour)
	reloaded := loadCache(testInstance, cachePath, clock, false)
	require.Zero(testInstance, reloaded.Len())
	require.True(testInstance, clock.current.Equal(reloaded.GeneratedAt()))
}

func TestForcedRefreshIgnoresFreshEnvelope(testInstance *testing.T) {
	cachePath := results.FilePath(testInstance.TempDir(), testProfileNameConstant)
	clock := &adjustableClock{current: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)}

	cache := loadCache(testInstance, cachePath, clock, false)
	require.NoError(testInstance, cache.Store(compliantVerdict()))

	refreshed := loadCache(testInstance, cachePath, clock, true)
	_, found := refreshed.Lookup(testIdentifierConstant)
	require.False(testInstance, found)

	require.NoError(testInstance, refreshed.Store(compliantVerdict()))
	_, foundAfterStore := refreshed.Lookup(testIdentifierConstant)
	require.False(testInstance, foundAfterStore)
}

func TestFailedVerdictRoundTripsErrorCode(testInstance *testing.T) {
	cachePath := results.FilePath(testInstance.TempDir(), testProfileNameConstant)
	clock := &adjustableClock{current: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)}

	cache := loadCache(testInstance, cachePath, clock, false)
	require.NoError(testInstance, cache.Store(results.CachedVerdict{
		Identifier:      testIdentifierConstant,
		ComplianceState: shared.ComplianceStateIndeterminate,
		ErrorCode:       shared.ErrorCodeRateLimit,
	}))

	reloaded := loadCache(testInstance, cachePath, clock, false)
	verdict, found := reloaded.Lookup(testIdentifierConstant)
	require.True(testInstance, found)
	require.False(testInstance, verdict.ProbeSucceeded)
	require.Equal(testInstance, shared.ErrorCodeRateLimit, verdict.ErrorCode)
}

func TestCorruptEnvelopeStartsFresh(testInstance *testing.T) {
	cachePath := results.FilePath(testInstance.TempDir(), testProfileNameConstant)
	require.NoError(testInstance, os.MkdirAll(filepath.Dir(cachePath), 0o755))
	require.NoError(testInstance, os.WriteFile(cachePath, []byte("{not json"), 0o600))

	cache := loadCache(testInstance, cachePath, &adjustableClock{current: time.Now()}, false)
	require.Zero(testInstance, cache.Len())
}

func TestLoadRequiresClock(testInstance *testing.T) {
	_, loadError := results.Load(results.Options{FilePath: "unused"})
	require.ErrorIs(testInstance, loadError, results.ErrClockNotConfigured)
}
