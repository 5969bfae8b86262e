package command

import (
	"strings"
	"time"

	pathutils "github.com/temirov/depscan/internal/utils/path"
)

const (
	defaultProfileConstant                     = "logrus"
	defaultCacheDirectoryConstant              = "~/.cache/depscan"
	defaultFreshnessWindowConstant             = 6 * time.Hour
	defaultScanInactivityWindowConstant        = 180 * 24 * time.Hour
	defaultSweepInactivityWindowConstant       = 365 * 24 * time.Hour
	defaultBackoffDelayConstant                = 5 * time.Second
	defaultCommandTimeoutConstant              = 60 * time.Second
	organizationsConfigurationKeyConstant      = "organizations"
	repositoriesConfigurationKeyConstant       = "repositories"
	profileConfigurationKeyConstant            = "profile"
	profilesFileConfigurationKeyConstant       = "profiles_file"
	cacheDirectoryConfigurationKeyConstant     = "cache_directory"
	freshnessWindowConfigurationKeyConstant    = "freshness_window"
	inactivityWindowConfigurationKeyConstant   = "inactivity_window"
	backoffDelayConfigurationKeyConstant       = "backoff_delay"
	commandTimeoutConfigurationKeyConstant     = "command_timeout"
	forceRefreshConfigurationKeyConstant       = "force_refresh"
	trackingRepositoryConfigurationKeyConstant = "tracking_repository"
	rebuildConfigurationKeyConstant            = "rebuild"
	configurationKeySeparatorConstant          = "."
	listSeparatorConstant                      = ","
)

var configurationHomeDirectoryExpander = pathutils.NewHomeExpander()

// Configuration aggregates the scan and sweep settings.
type Configuration struct {
	Scan  ScanConfiguration  `mapstructure:"scan"`
	Sweep SweepConfiguration `mapstructure:"sweep"`
}

// ScanConfiguration stores options for scan passes. Sweeps reuse its candidate and transport settings.
type ScanConfiguration struct {
	Organizations      []string      `mapstructure:"organizations"`
	Repositories       []string      `mapstructure:"repositories"`
	Profile            string        `mapstructure:"profile"`
	ProfilesFile       string        `mapstructure:"profiles_file"`
	CacheDirectory     string        `mapstructure:"cache_directory"`
	FreshnessWindow    time.Duration `mapstructure:"freshness_window"`
	InactivityWindow   time.Duration `mapstructure:"inactivity_window"`
	BackoffDelay       time.Duration `mapstructure:"backoff_delay"`
	CommandTimeout     time.Duration `mapstructure:"command_timeout"`
	ForceRefresh       bool          `mapstructure:"force_refresh"`
	TrackingRepository string        `mapstructure:"tracking_repository"`
}

// SweepConfiguration stores options for abandonment sweeps.
type SweepConfiguration struct {
	InactivityWindow time.Duration `mapstructure:"inactivity_window"`
	Rebuild          bool          `mapstructure:"rebuild"`
}

// DefaultConfiguration supplies baseline values.
func DefaultConfiguration() Configuration {
	return Configuration{
		Scan: ScanConfiguration{
			Profile:          defaultProfileConstant,
			CacheDirectory:   defaultCacheDirectoryConstant,
			FreshnessWindow:  defaultFreshnessWindowConstant,
			InactivityWindow: defaultScanInactivityWindowConstant,
			BackoffDelay:     defaultBackoffDelayConstant,
			CommandTimeout:   defaultCommandTimeoutConstant,
		},
		Sweep: SweepConfiguration{
			InactivityWindow: defaultSweepInactivityWindowConstant,
		},
	}
}

// DefaultConfigurationValues returns viper defaults keyed beneath the provided scan and sweep prefixes.
func DefaultConfigurationValues(scanKeyPrefix string, sweepKeyPrefix string) map[string]any {
	defaults := DefaultConfiguration()
	scanKey := func(name string) string {
		return scanKeyPrefix + configurationKeySeparatorConstant + name
	}
	sweepKey := func(name string) string {
		return sweepKeyPrefix + configurationKeySeparatorConstant + name
	}
	return map[string]any{
		scanKey(organizationsConfigurationKeyConstant):      []string{},
		scanKey(repositoriesConfigurationKeyConstant):       []string{},
		scanKey(profileConfigurationKeyConstant):            defaults.Scan.Profile,
		scanKey(profilesFileConfigurationKeyConstant):       "",
		scanKey(cacheDirectoryConfigurationKeyConstant):     defaults.Scan.CacheDirectory,
		scanKey(freshnessWindowConfigurationKeyConstant):    defaults.Scan.FreshnessWindow.String(),
		scanKey(inactivityWindowConfigurationKeyConstant):   defaults.Scan.InactivityWindow.String(),
		scanKey(backoffDelayConfigurationKeyConstant):       defaults.Scan.BackoffDelay.String(),
		scanKey(commandTimeoutConfigurationKeyConstant):     defaults.Scan.CommandTimeout.String(),
		scanKey(forceRefreshConfigurationKeyConstant):       false,
		scanKey(trackingRepositoryConfigurationKeyConstant): "",
		sweepKey(inactivityWindowConfigurationKeyConstant):  defaults.Sweep.InactivityWindow.String(),
		sweepKey(rebuildConfigurationKeyConstant):           false,
	}
}

// Sanitize trims values, drops blank list entries, and restores defaults for non-positive durations.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.Scan.Organizations = sanitizeEntries(configuration.Scan.Organizations)
	sanitized.Scan.Repositories = sanitizeEntries(configuration.Scan.Repositories)
	sanitized.Scan.Profile = strings.TrimSpace(configuration.Scan.Profile)
	if len(sanitized.Scan.Profile) == 0 {
		sanitized.Scan.Profile = defaults.Scan.Profile
	}
	sanitized.Scan.ProfilesFile = configurationHomeDirectoryExpander.Expand(strings.TrimSpace(configuration.Scan.ProfilesFile))
	sanitized.Scan.CacheDirectory = strings.TrimSpace(configuration.Scan.CacheDirectory)
	if len(sanitized.Scan.CacheDirectory) == 0 {
		sanitized.Scan.CacheDirectory = defaults.Scan.CacheDirectory
	}
	sanitized.Scan.TrackingRepository = strings.TrimSpace(configuration.Scan.TrackingRepository)
	sanitized.Scan.FreshnessWindow = positiveOrDefault(configuration.Scan.FreshnessWindow, defaults.Scan.FreshnessWindow)
	sanitized.Scan.InactivityWindow = positiveOrDefault(configuration.Scan.InactivityWindow, defaults.Scan.InactivityWindow)
	sanitized.Scan.CommandTimeout = positiveOrDefault(configuration.Scan.CommandTimeout, defaults.Scan.CommandTimeout)
	if configuration.Scan.BackoffDelay < 0 {
		sanitized.Scan.BackoffDelay = defaults.Scan.BackoffDelay
	}
	sanitized.Sweep.InactivityWindow = positiveOrDefault(configuration.Sweep.InactivityWindow, defaults.Sweep.InactivityWindow)
	return sanitized
}

func sanitizeEntries(entries []string) []string {
	sanitizedEntries := make([]string, 0, len(entries))
	for _, entry := range entries {
		for _, candidate := range strings.Split(entry, listSeparatorConstant) {
			trimmedCandidate := strings.TrimSpace(candidate)
			if len(trimmedCandidate) > 0 {
				sanitizedEntries = append(sanitizedEntries, trimmedCandidate)
			}
		}
	}
	if len(sanitizedEntries) == 0 {
		return nil
	}
	return sanitizedEntries
}

func positiveOrDefault(value time.Duration, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
