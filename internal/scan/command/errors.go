package command

import (
	"fmt"
	"strings"
)

const (
	configurationErrorTemplateConstant          = "configuration error: %s"
	configurationErrorWithCauseTemplateConstant = "configuration error: %s: %v"
	unavailableSourcesErrorTemplateConstant     = "candidate sources unavailable: %s"
	unavailableSourcesSeparatorConstant         = ", "
)

// Configuration error reasons.
const (
	ReasonGitHubCLIMissing      = "gh executable not found on PATH"
	ReasonMissingCredentials    = "GitHub credentials unavailable"
	ReasonInvalidCatalog        = "profile catalog invalid"
	ReasonUnknownProfile        = "scan profile unknown"
	ReasonNoCandidateSource     = "no organizations or repositories configured"
	ReasonInvalidCacheDirectory = "cache directory invalid"
	ReasonInvalidTracking       = "tracking repository invalid"
)

// ConfigurationError reports a startup failure that aborts a command before any repository is probed.
type ConfigurationError struct {
	Reason string
	Cause  error
}

// Error describes the configuration failure.
func (configurationError ConfigurationError) Error() string {
	if configurationError.Cause == nil {
		return fmt.Sprintf(configurationErrorTemplateConstant, configurationError.Reason)
	}
	return fmt.Sprintf(configurationErrorWithCauseTemplateConstant, configurationError.Reason, configurationError.Cause)
}

// Unwrap exposes the underlying cause.
func (configurationError ConfigurationError) Unwrap() error {
	return configurationError.Cause
}

// UnavailableSourcesError reports a pass whose candidate set is incomplete because some organizations or
// repositories could not be looked up.
type UnavailableSourcesError struct {
	Sources []string
}

// Error lists the unavailable sources.
func (unavailableError UnavailableSourcesError) Error() string {
	return fmt.Sprintf(unavailableSourcesErrorTemplateConstant, strings.Join(unavailableError.Sources, unavailableSourcesSeparatorConstant))
}
