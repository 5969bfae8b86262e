package command

import (
	"fmt"
	"io"

	"github.com/temirov/depscan/internal/scan/orchestrator"
	"github.com/temirov/depscan/internal/scan/tracking"
)

const (
	scanSummaryTemplateConstant       = "profile=%s total=%d scanned=%d skipped_forks=%d skipped_abandoned=%d skipped_no_manifest=%d unable_to_check=%d cache_hits=%d found=%d\n"
	findingLineTemplateConstant       = "FOUND %s branch=%s last_commit=%s pull_request=%s\n"
	trackingSummaryTemplateConstant   = "tracking issue #%d %s %s\n"
	trackingReopenedSuffixConstant    = "reopened"
	trackingActionSeparatorConstant   = ","
	sweepSummaryTemplateConstant      = "total=%d forks=%d abandoned=%d active=%d indeterminate=%d newly_excluded=%d\n"
	missingValuePlaceholderConstant   = "unknown"
	pullRequestNumberTemplateConstant = "%s#%d"
	unavailableSourceTemplateConstant = "UNAVAILABLE %s\n"
	trackingSkippedLineConstant       = "tracking issue skipped: candidate set incomplete\n"
)

func writeScanSummary(outputWriter io.Writer, profileName string, report orchestrator.Report) error {
	if _, writeError := fmt.Fprintf(
		outputWriter,
		scanSummaryTemplateConstant,
		profileName,
		report.Total,
		report.Scanned,
		report.SkippedForks,
		report.SkippedAbandoned,
		report.SkippedNoManifest,
		report.UnableToCheck,
		report.CacheHits,
		report.Found,
	); writeError != nil {
		return writeError
	}

	for _, organization := range report.Findings.Organizations() {
		for _, finding := range report.Findings[organization] {
			lastCommit := finding.LastCommitTimestamp
			if len(lastCommit) == 0 {
				lastCommit = missingValuePlaceholderConstant
			}
			pullRequest := string(finding.PullRequest.Status)
			if finding.PullRequest.Number > 0 {
				pullRequest = fmt.Sprintf(pullRequestNumberTemplateConstant, finding.PullRequest.Status, finding.PullRequest.Number)
			}
			if _, writeError := fmt.Fprintf(outputWriter, findingLineTemplateConstant, finding.Identifier, finding.Branch, lastCommit, pullRequest); writeError != nil {
				return writeError
			}
		}
	}
	return nil
}

func writeTrackingSummary(outputWriter io.Writer, reference tracking.RecordReference) error {
	action := string(reference.Action)
	if reference.Reopened {
		action = action + trackingActionSeparatorConstant + trackingReopenedSuffixConstant
	}
	_, writeError := fmt.Fprintf(outputWriter, trackingSummaryTemplateConstant, reference.Number, action, reference.URL)
	return writeError
}

func writeSweepSummary(outputWriter io.Writer, report orchestrator.SweepReport) error {
	_, writeError := fmt.Fprintf(
		outputWriter,
		sweepSummaryTemplateConstant,
		report.Total,
		report.Forks,
		report.Abandoned,
		report.Active,
		report.Indeterminate,
		report.NewlyExcluded,
	)
	return writeError
}

func writeUnavailableSources(outputWriter io.Writer, sources []string) error {
	for _, unavailableSource := range sources {
		if _, writeError := fmt.Fprintf(outputWriter, unavailableSourceTemplateConstant, unavailableSource); writeError != nil {
			return writeError
		}
	}
	return nil
}

func writeTrackingSkipped(outputWriter io.Writer) error {
	_, writeError := io.WriteString(outputWriter, trackingSkippedLineConstant)
	return writeError
}
