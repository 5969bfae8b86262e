package detection

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	lineCommentMarkerConstant        = "//"
	indirectMarkerConstant           = "indirect"
	indirectAnnotationPrefixConstant = "indirect;"
	lineSeparatorConstant            = "\n"
	blockOpenMarkerConstant          = "("
	blockCloseMarkerConstant         = ")"
)

// ignoredDirectives name dependencies without requiring them.
var ignoredDirectives = map[string]bool{"replace": true, "exclude": true, "retract": true}

// Input is what a Collector retrieved for one repository.
type Input struct {
	Content string
	Absent  bool
	Failure error
}

// Outcome is a detector verdict. ErrorCode is empty only for definitive verdicts.
type Outcome struct {
	State       shared.ComplianceState
	ErrorCode   shared.ErrorCode
	Retryable   bool
	MatchedLine string
	Failure     error
}

// ProbeSucceeded reports whether the outcome is a definitive verdict.
func (outcome Outcome) ProbeSucceeded() bool {
	return outcome.ErrorCode == shared.ErrorCodeNone && outcome.State != shared.ComplianceStateIndeterminate
}

// Detector decides compliance from collected input without performing I/O.
type Detector interface {
	Detect(input Input) Outcome
}

// Collector retrieves the input a Detector needs for a repository.
type Collector interface {
	Collect(executionContext context.Context, repository shared.RepoRecord) Input
}

// Strategy pairs a Collector with the Detector that interprets its input.
type Strategy struct {
	Collector Collector
	Detector  Detector
}

// Run collects input for repository and returns the detector verdict.
func (strategy Strategy) Run(executionContext context.Context, repository shared.RepoRecord) Outcome {
	return strategy.Detector.Detect(strategy.Collector.Collect(executionContext, repository))
}

// ManifestDetector reports non-compliance when a manifest requires Dependency directly.
type ManifestDetector struct {
	Dependency string
}

// Detect scans manifest lines for Dependency as a standalone token. Lines marked indirect and lines inside replace,
// exclude, or retract directives do not count.
func (detector ManifestDetector) Detect(input Input) Outcome {
	if input.Failure != nil {
		return failureOutcome(input.Failure)
	}
	if input.Absent {
		return Outcome{State: shared.ComplianceStateIndeterminate, ErrorCode: shared.ErrorCodeNoManifest}
	}

	insideIgnoredBlock := false
	for _, line := range strings.Split(input.Content, lineSeparatorConstant) {
		declaration, comment, _ := strings.Cut(line, lineCommentMarkerConstant)
		fields := strings.Fields(declaration)
		if insideIgnoredBlock {
			if len(fields) > 0 && fields[0] == blockCloseMarkerConstant {
				insideIgnoredBlock = false
			}
			continue
		}
		if len(fields) > 0 && ignoredDirectives[fields[0]] {
			insideIgnoredBlock = len(fields) > 1 && fields[1] == blockOpenMarkerConstant
			continue
		}
		if !containsToken(declaration, detector.Dependency) || isIndirect(comment) {
			continue
		}
		return Outcome{State: shared.ComplianceStateNonCompliant, MatchedLine: strings.TrimSpace(line)}
	}
	return Outcome{State: shared.ComplianceStateCompliant}
}

// isIndirect follows the go.mod convention: the comment is "indirect" or starts with "indirect;".
func isIndirect(comment string) bool {
	trimmedComment := strings.TrimSpace(comment)
	return trimmedComment == indirectMarkerConstant || strings.HasPrefix(trimmedComment, indirectAnnotationPrefixConstant)
}

// SearchDetector interprets a code-search total count.
type SearchDetector struct{}

// Detect parses the count payload. A positive count is non-compliant and zero is compliant.
func (SearchDetector) Detect(input Input) Outcome {
	if input.Failure != nil {
		return failureOutcome(input.Failure)
	}

	totalCount, parseError := strconv.Atoi(strings.TrimSpace(input.Content))
	if parseError != nil || totalCount < 0 {
		if parseError == nil {
			parseError = strconv.ErrSyntax
		}
		return Outcome{State: shared.ComplianceStateIndeterminate, ErrorCode: shared.ErrorCodeMalformedResponse, Failure: parseError}
	}
	if totalCount > 0 {
		return Outcome{State: shared.ComplianceStateNonCompliant, MatchedLine: strconv.Itoa(totalCount)}
	}
	return Outcome{State: shared.ComplianceStateCompliant}
}

func failureOutcome(failure error) Outcome {
	outcome := Outcome{State: shared.ComplianceStateIndeterminate, Failure: failure}

	var decodingError githubcli.ResponseDecodingError
	switch {
	case errors.Is(failure, githubcli.ErrRateLimited):
		outcome.ErrorCode = shared.ErrorCodeRateLimit
		outcome.Retryable = true
	case errors.As(failure, &decodingError):
		outcome.ErrorCode = shared.ErrorCodeMalformedResponse
	default:
		outcome.ErrorCode = shared.ErrorCodeFetchFailed
	}
	return outcome
}

func containsToken(text string, token string) bool {
	if len(token) == 0 {
		return false
	}
	for _, field := range strings.Fields(text) {
		if field == token {
			return true
		}
	}
	return false
}
