package profiles

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"golang.org/x/mod/module"
	"gopkg.in/yaml.v3"

	"github.com/temirov/depscan/internal/scan/detection"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	goModuleManifestNameConstant              = "go.mod"
	defaultManifestPathConstant               = goModuleManifestNameConstant
	defaultTrackingTitleTemplateConstant      = "depscan: %s"
	catalogLoadErrorTemplateConstant          = "failed to load profile catalog: %w"
	catalogParseErrorTemplateConstant         = "failed to parse profile catalog: %w"
	catalogEmptyMessageConstant               = "profile catalog must define at least one profile"
	profileNameRequiredMessageConstant        = "profile names must be non-empty"
	profileNameInvalidTemplateConstant        = "profile name %q must not contain path separators"
	profileDuplicateTemplateConstant          = "profile catalog defines duplicate profile %q"
	profileDetectorUnknownTemplateConstant    = "profile %q uses unknown detector %q"
	profileDependencyRequiredTemplateConstant = "profile %q requires a dependency"
	profileDependencyInvalidTemplateConstant  = "profile %q dependency %q is not a valid module path: %w"
	profileQueryRequiredTemplateConstant      = "profile %q requires a query"
	unknownProfileTemplateConstant            = "unknown scan profile %q (available: %s)"
	availableProfilesSeparatorConstant        = ", "
	pathSeparatorCharactersConstant           = `/\`
)

//go:embed default_profiles.yaml
var defaultCatalogContent []byte

// DetectorKind selects the detection strategy of a profile.
type DetectorKind string

// Supported detectors.
const (
	DetectorKindManifest DetectorKind = DetectorKind("manifest")
	DetectorKindSearch   DetectorKind = DetectorKind("search")
)

// Profile describes one deprecated dependency or API pattern.
type Profile struct {
	Name                string       `yaml:"name"`
	Detector            DetectorKind `yaml:"detector"`
	Dependency          string       `yaml:"dependency"`
	ManifestPath        string       `yaml:"manifest_path"`
	Query               string       `yaml:"query"`
	Language            string       `yaml:"language"`
	PullRequestKeywords []string     `yaml:"pull_request_keywords"`
	TrackingTitle       string       `yaml:"tracking_title"`
}

// Strategy builds the detection strategy of the profile over the provided transports.
func (profile Profile) Strategy(fetcher shared.FileContentFetcher, searcher shared.CodeSearcher) detection.Strategy {
	if profile.Detector == DetectorKindSearch {
		return detection.NewSearchStrategy(searcher, profile.Query, profile.Language)
	}
	return detection.NewManifestStrategy(fetcher, profile.ManifestPath, profile.Dependency)
}

// Subject names what the profile detects: the dependency of a manifest profile or the query of a search profile.
func (profile Profile) Subject() string {
	if profile.Detector == DetectorKindSearch {
		return profile.Query
	}
	return profile.Dependency
}

// Catalog is a validated set of profiles keyed by name.
type Catalog struct {
	Profiles []Profile `yaml:"profiles"`

	lookup map[string]Profile
}

// UnknownProfileError reports a profile name missing from the catalog.
type UnknownProfileError struct {
	Name      string
	Available []string
}

// Error describes the missing profile.
func (unknownError UnknownProfileError) Error() string {
	return fmt.Sprintf(unknownProfileTemplateConstant, unknownError.Name, strings.Join(unknownError.Available, availableProfilesSeparatorConstant))
}

// DefaultCatalog returns the catalog embedded in the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(defaultCatalogContent)
}

// LoadCatalog reads a catalog from filePath, or the embedded catalog when filePath is blank.
func LoadCatalog(filePath string) (Catalog, error) {
	trimmedPath := strings.TrimSpace(filePath)
	if len(trimmedPath) == 0 {
		return DefaultCatalog()
	}

	contentBytes, readError := os.ReadFile(trimmedPath)
	if readError != nil {
		return Catalog{}, fmt.Errorf(catalogLoadErrorTemplateConstant, readError)
	}
	return ParseCatalog(contentBytes)
}

// ParseCatalog decodes and validates catalog YAML, filling defaults for manifest paths and tracking titles.
func ParseCatalog(contentBytes []byte) (Catalog, error) {
	var catalog Catalog
	if unmarshalError := yaml.Unmarshal(contentBytes, &catalog); unmarshalError != nil {
		return Catalog{}, fmt.Errorf(catalogParseErrorTemplateConstant, unmarshalError)
	}
	if len(catalog.Profiles) == 0 {
		return Catalog{}, errors.New(catalogEmptyMessageConstant)
	}

	catalog.lookup = make(map[string]Profile, len(catalog.Profiles))
	for profileIndex := range catalog.Profiles {
		normalizedProfile, profileError := normalizeProfile(catalog.Profiles[profileIndex])
		if profileError != nil {
			return Catalog{}, profileError
		}
		if _, exists := catalog.lookup[normalizedProfile.Name]; exists {
			return Catalog{}, fmt.Errorf(profileDuplicateTemplateConstant, normalizedProfile.Name)
		}
		catalog.Profiles[profileIndex] = normalizedProfile
		catalog.lookup[normalizedProfile.Name] = normalizedProfile
	}
	return catalog, nil
}

// Names returns the profile names sorted alphabetically.
func (catalog Catalog) Names() []string {
	names := make([]string, 0, len(catalog.Profiles))
	for _, profile := range catalog.Profiles {
		names = append(names, profile.Name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile or UnknownProfileError.
func (catalog Catalog) Profile(name string) (Profile, error) {
	profile, found := catalog.lookup[strings.TrimSpace(name)]
	if !found {
		return Profile{}, UnknownProfileError{Name: name, Available: catalog.Names()}
	}
	return profile, nil
}

func normalizeProfile(profile Profile) (Profile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if len(profile.Name) == 0 {
		return Profile{}, errors.New(profileNameRequiredMessageConstant)
	}
	if strings.ContainsAny(profile.Name, pathSeparatorCharactersConstant) {
		return Profile{}, fmt.Errorf(profileNameInvalidTemplateConstant, profile.Name)
	}

	profile.Detector = DetectorKind(strings.ToLower(strings.TrimSpace(string(profile.Detector))))
	profile.Dependency = strings.TrimSpace(profile.Dependency)
	profile.Query = strings.TrimSpace(profile.Query)
	profile.Language = strings.TrimSpace(profile.Language)
	profile.TrackingTitle = strings.TrimSpace(profile.TrackingTitle)
	if len(profile.TrackingTitle) == 0 {
		profile.TrackingTitle = fmt.Sprintf(defaultTrackingTitleTemplateConstant, profile.Name)
	}

	switch profile.Detector {
	case DetectorKindManifest:
		profile.ManifestPath = strings.TrimSpace(profile.ManifestPath)
		if len(profile.ManifestPath) == 0 {
			profile.ManifestPath = defaultManifestPathConstant
		}
		if len(profile.Dependency) == 0 {
			return Profile{}, fmt.Errorf(profileDependencyRequiredTemplateConstant, profile.Name)
		}
		if path.Base(profile.ManifestPath) == goModuleManifestNameConstant {
			if checkError := module.CheckPath(profile.Dependency); checkError != nil {
				return Profile{}, fmt.Errorf(profileDependencyInvalidTemplateConstant, profile.Name, profile.Dependency, checkError)
			}
		}
	case DetectorKindSearch:
		if len(profile.Query) == 0 {
			return Profile{}, fmt.Errorf(profileQueryRequiredTemplateConstant, profile.Name)
		}
	default:
		return Profile{}, fmt.Errorf(profileDetectorUnknownTemplateConstant, profile.Name, profile.Detector)
	}
	return profile, nil
}
