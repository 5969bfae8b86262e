package profiles_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/depscan/internal/scan/profiles"
	"github.com/temirov/depscan/internal/scan/shared"
)

type stubContentFetcher struct {
	observedPath string
}

func (fetcher *stubContentFetcher) FetchFileContent(_ context.Context, _ string, _ string, filePath string) (string, error) {
	fetcher.observedPath = filePath
	return "require github.com/sirupsen/logrus v1.9.3", nil
}

type stubCodeSearcher struct {
	observedQuery string
}

func (searcher *stubCodeSearcher) SearchCodeTotalCount(_ context.Context, query string) (string, error) {
	searcher.observedQuery = query
	return "0", nil
}

func TestDefaultCatalogIsValid(testInstance *testing.T) {
	catalog, catalogError := profiles.DefaultCatalog()
	require.NoError(testInstance, catalogError)
	require.Equal(testInstance, []string{"ioutil", "logrus", "pkg-errors"}, catalog.Names())

	logrusProfile, profileError := catalog.Profile("logrus")
	require.NoError(testInstance, profileError)
	require.Equal(testInstance, profiles.DetectorKindManifest, logrusProfile.Detector)
	require.Equal(testInstance, "go.mod", logrusProfile.ManifestPath)
	require.Equal(testInstance, []string{"logrus", "structured logging"}, logrusProfile.PullRequestKeywords)
}

func TestParseCatalogValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		content       string
		expectedError string
	}{
		{name: "empty", content: "profiles: []", expectedError: "at least one profile"},
		{name: "malformed", content: "profiles: [", expectedError: "failed to parse"},
		{name: "blank_name", content: "profiles:\n  - detector: search\n    query: x\n", expectedError: "non-empty"},
		{name: "path_in_name", content: "profiles:\n  - name: a/b\n    detector: search\n    query: x\n", expectedError: "path separators"},
		{name: "unknown_detector", content: "profiles:\n  - name: a\n    detector: regex\n", expectedError: "unknown detector"},
		{name: "missing_dependency", content: "profiles:\n  - name: a\n    detector: manifest\n", expectedError: "requires a dependency"},
		{name: "invalid_module_path", content: "profiles:\n  - name: a\n    detector: manifest\n    dependency: \"Not A Module\"\n", expectedError: "not a valid module path"},
		{name: "missing_query", content: "profiles:\n  - name: a\n    detector: search\n", expectedError: "requires a query"},
		{
			name:          "duplicate",
			content:       "profiles:\n  - name: a\n    detector: search\n    query: x\n  - name: a\n    detector: search\n    query: y\n",
			expectedError: "duplicate profile",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			_, parseError := profiles.ParseCatalog([]byte(testCase.content))
			require.Error(subTest, parseError)
			require.ErrorContains(subTest, parseError, testCase.expectedError)
		})
	}
}

func TestParseCatalogFillsDefaults(testInstance *testing.T) {
	catalog, parseError := profiles.ParseCatalog([]byte("profiles:\n  - name: left-pad\n    detector: MANIFEST\n    dependency: left-pad\n    manifest_path: package.json\n"))
	require.NoError(testInstance, parseError)

	profile, profileError := catalog.Profile("left-pad")
	require.NoError(testInstance, profileError)
	require.Equal(testInstance, profiles.DetectorKindManifest, profile.Detector)
	require.Equal(testInstance, "depscan: left-pad", profile.TrackingTitle)
}

func TestProfileReportsUnknownName(testInstance *testing.T) {
	catalog, catalogError := profiles.DefaultCatalog()
	require.NoError(testInstance, catalogError)

	_, profileError := catalog.Profile("missing")
	var unknownError profiles.UnknownProfileError
	require.ErrorAs(testInstance, profileError, &unknownError)
	require.Equal(testInstance, "missing", unknownError.Name)
	require.Contains(testInstance, profileError.Error(), "logrus")
}

func TestLoadCatalogFromFile(testInstance *testing.T) {
	catalogPath := filepath.Join(testInstance.TempDir(), "profiles.yaml")
	require.NoError(testInstance, os.WriteFile(catalogPath, []byte("profiles:\n  - name: only\n    detector: search\n    query: legacy.Call\n"), 0o600))

	catalog, loadError := profiles.LoadCatalog(catalogPath)
	require.NoError(testInstance, loadError)
	require.Equal(testInstance, []string{"only"}, catalog.Names())

	_, missingError := profiles.LoadCatalog(filepath.Join(testInstance.TempDir(), "absent.yaml"))
	require.Error(testInstance, missingError)

	defaultCatalog, defaultError := profiles.LoadCatalog("  ")
	require.NoError(testInstance, defaultError)
	require.Len(testInstance, defaultCatalog.Profiles, 3)
}

func TestProfileStrategySelectsDetector(testInstance *testing.T) {
	catalog, catalogError := profiles.DefaultCatalog()
	require.NoError(testInstance, catalogError)
	repository := shared.RepoRecord{Identifier: shared.RepositoryIdentifier("acme/widget"), DefaultBranch: "main"}

	fetcher := &stubContentFetcher{}
	searcher := &stubCodeSearcher{}

	logrusProfile, _ := catalog.Profile("logrus")
	manifestOutcome := logrusProfile.Strategy(fetcher, searcher).Run(context.Background(), repository)
	require.Equal(testInstance, shared.ComplianceStateNonCompliant, manifestOutcome.State)
	require.Equal(testInstance, "go.mod", fetcher.observedPath)
	require.Empty(testInstance, searcher.observedQuery)

	ioutilProfile, _ := catalog.Profile("ioutil")
	searchOutcome := ioutilProfile.Strategy(fetcher, searcher).Run(context.Background(), repository)
	require.Equal(testInstance, shared.ComplianceStateCompliant, searchOutcome.State)
	require.Equal(testInstance, "\"io/ioutil\" repo:acme/widget language:Go NOT path:vendor", searcher.observedQuery)

	require.Equal(testInstance, "github.com/sirupsen/logrus", logrusProfile.Subject())
	require.Equal(testInstance, "\"io/ioutil\"", ioutilProfile.Subject())
}
