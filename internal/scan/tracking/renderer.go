package tracking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	headerTemplateConstant              = "Repositories still depending on `%s`: %d"
	emptyFindingsMessageConstant        = "No repositories currently depend on `%s`."
	organizationHeadingTemplateConstant = "### %s"
	tableHeaderConstant                 = "| Repository | Branch | Last commit | Pull request |"
	tableDividerConstant                = "| --- | --- | --- | --- |"
	tableRowTemplateConstant            = "| [%s](https://github.com/%s) | %s | %s | %s |"
	pullRequestCellTemplateConstant     = "[#%d](%s) %s"
	needsRebaseSuffixConstant           = " (needs rebase)"
	unknownCommitPlaceholderConstant    = "unknown"
	blankLineConstant                   = ""
	lineSeparatorConstant               = "\n"
	pipeCharacterConstant               = "|"
	escapedPipeConstant                 = `\|`
)

// BodyRenderer produces the tracking issue body for a set of findings.
type BodyRenderer interface {
	Render(findings shared.FindingsByOrganization) string
}

// MarkdownTableRenderer renders one table per organization. Organizations are sorted by name and rows by last
// commit, most recent first. Identical findings always render identical bodies.
type MarkdownTableRenderer struct {
	Subject string
}

// Render builds the markdown body.
func (renderer MarkdownTableRenderer) Render(findings shared.FindingsByOrganization) string {
	totalFindings := findings.Count()
	if totalFindings == 0 {
		return fmt.Sprintf(emptyFindingsMessageConstant, renderer.Subject)
	}

	lines := []string{fmt.Sprintf(headerTemplateConstant, renderer.Subject, totalFindings)}
	for _, organization := range findings.Organizations() {
		organizationFindings := findings[organization]
		if len(organizationFindings) == 0 {
			continue
		}
		lines = append(lines,
			blankLineConstant,
			fmt.Sprintf(organizationHeadingTemplateConstant, organization),
			blankLineConstant,
			tableHeaderConstant,
			tableDividerConstant,
		)
		for _, finding := range orderByActivity(organizationFindings) {
			lines = append(lines, renderRow(finding))
		}
	}
	return strings.Join(lines, lineSeparatorConstant)
}

func orderByActivity(findings []shared.ScanFinding) []shared.ScanFinding {
	ordered := make([]shared.ScanFinding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(leftIndex int, rightIndex int) bool {
		return ordered[leftIndex].LastCommitTimestamp > ordered[rightIndex].LastCommitTimestamp
	})
	return ordered
}

func renderRow(finding shared.ScanFinding) string {
	lastCommit := finding.LastCommitTimestamp
	if len(lastCommit) == 0 {
		lastCommit = unknownCommitPlaceholderConstant
	}
	identifier := finding.Identifier.String()
	return fmt.Sprintf(tableRowTemplateConstant, identifier, identifier, escapeCell(finding.Branch), lastCommit, pullRequestCell(finding.PullRequest))
}

func pullRequestCell(reference shared.PullRequestReference) string {
	if reference.Status == shared.PullRequestStatusNone || len(reference.Status) == 0 {
		return string(shared.PullRequestStatusNone)
	}
	cell := fmt.Sprintf(pullRequestCellTemplateConstant, reference.Number, reference.URL, reference.Status)
	if reference.NeedsRebase {
		cell += needsRebaseSuffixConstant
	}
	return cell
}

func escapeCell(value string) string {
	return strings.ReplaceAll(value, pipeCharacterConstant, escapedPipeConstant)
}
