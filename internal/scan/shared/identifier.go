package shared

import (
	"fmt"
	"strings"
)

const (
	repositoryIdentifierSeparatorConstant       = "/"
	invalidRepositoryIdentifierTemplateConstant = "invalid repository identifier %q: expected owner/name"
)

// RepositoryIdentifier is an owner/name pair. It preserves case and keys every cache and result map.
type RepositoryIdentifier string

// InvalidRepositoryIdentifierError reports a value that is not an owner/name pair.
type InvalidRepositoryIdentifierError struct {
	Value string
}

// Error describes the invalid identifier.
func (identifierError InvalidRepositoryIdentifierError) Error() string {
	return fmt.Sprintf(invalidRepositoryIdentifierTemplateConstant, identifierError.Value)
}

// NewRepositoryIdentifier trims and validates an owner/name pair.
func NewRepositoryIdentifier(raw string) (RepositoryIdentifier, error) {
	trimmed := strings.TrimSpace(raw)
	owner, name, found := strings.Cut(trimmed, repositoryIdentifierSeparatorConstant)
	if !found || len(owner) == 0 || len(name) == 0 || strings.Contains(name, repositoryIdentifierSeparatorConstant) || strings.ContainsAny(trimmed, " \t\r\n") {
		return "", InvalidRepositoryIdentifierError{Value: raw}
	}
	return RepositoryIdentifier(trimmed), nil
}

// Owner returns the organization or user part of the identifier.
func (identifier RepositoryIdentifier) Owner() string {
	owner, _, _ := strings.Cut(string(identifier), repositoryIdentifierSeparatorConstant)
	return owner
}

// Name returns the repository part of the identifier.
func (identifier RepositoryIdentifier) Name() string {
	_, name, _ := strings.Cut(string(identifier), repositoryIdentifierSeparatorConstant)
	return name
}

// String returns the owner/name form.
func (identifier RepositoryIdentifier) String() string {
	return string(identifier)
}
