package githubauth

import (
	"context"
	"errors"
	"os"
	"strings"
)

// Environment variable names consulted for GitHub credentials, in preference order.
const (
	EnvGitHubCLIToken = "GH_TOKEN"
	EnvGitHubToken    = "GITHUB_TOKEN"
	EnvGitHubAPIToken = "GITHUB_API_TOKEN"
)

const missingCredentialsMessageConstant = "no GitHub credentials found in GH_TOKEN, GITHUB_TOKEN, GITHUB_API_TOKEN, or gh auth"

// ErrMissingCredentials indicates that neither the environment nor the fallback source produced a token.
var ErrMissingCredentials = errors.New(missingCredentialsMessageConstant)

var tokenPreference = []string{
	EnvGitHubCLIToken,
	EnvGitHubToken,
	EnvGitHubAPIToken,
}

// FallbackTokenSource yields a token when no environment variable carries one, typically gh auth token.
type FallbackTokenSource interface {
	AuthenticationToken(executionContext context.Context) (string, error)
}

// ResolveToken returns the first non-empty token from the provided map, then from the process environment.
func ResolveToken(environment map[string]string) (string, bool) {
	for _, key := range tokenPreference {
		if value, ok := lookup(environment, key); ok {
			return value, true
		}
	}
	for _, key := range tokenPreference {
		if value, ok := lookupProcessEnvironment(key); ok {
			return value, true
		}
	}
	return "", false
}

// ResolveTokenWithFallback consults the environment first and the fallback source second. Fallback failures are
// joined with ErrMissingCredentials.
func ResolveTokenWithFallback(executionContext context.Context, environment map[string]string, fallback FallbackTokenSource) (string, error) {
	if token, found := ResolveToken(environment); found {
		return token, nil
	}
	if fallback == nil {
		return "", ErrMissingCredentials
	}

	token, fallbackError := fallback.AuthenticationToken(executionContext)
	if fallbackError != nil {
		return "", errors.Join(ErrMissingCredentials, fallbackError)
	}
	token = strings.TrimSpace(token)
	if len(token) == 0 {
		return "", ErrMissingCredentials
	}
	return token, nil
}

func lookup(environment map[string]string, key string) (string, bool) {
	if environment == nil {
		return "", false
	}
	value, exists := environment[key]
	if !exists {
		return "", false
	}
	return nonEmpty(value)
}

func lookupProcessEnvironment(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return "", false
	}
	return nonEmpty(value)
}

func nonEmpty(value string) (string, bool) {
	trimmedValue := strings.TrimSpace(value)
	if len(trimmedValue) == 0 {
		return "", false
	}
	return trimmedValue, true
}
