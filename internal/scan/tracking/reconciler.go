package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/scan/shared"
)

const (
	issueManagerNotConfiguredMessageConstant  = "tracking issue manager not configured"
	rendererNotConfiguredMessageConstant      = "tracking body renderer not configured"
	trackingRepositoryRequiredMessageConstant = "tracking repository must be provided"
	trackingTitleRequiredMessageConstant      = "tracking title must be provided"
	findErrorTemplateConstant                 = "unable to locate tracking issue: %w"
	createErrorTemplateConstant               = "unable to create tracking issue: %w"
	reopenErrorTemplateConstant               = "unable to reopen tracking issue #%d: %w"
	editErrorTemplateConstant                 = "unable to update tracking issue #%d: %w"
	trackingReconciledMessageConstant         = "tracking issue reconciled"
	repositoryFieldNameConstant               = "repository"
	titleFieldNameConstant                    = "title"
	numberFieldNameConstant                   = "number"
	actionFieldNameConstant                   = "action"
	windowsLineSeparatorConstant              = "\r\n"
	findingsFieldNameConstant                 = "findings"
)

var (
	// ErrIssueManagerNotConfigured indicates the reconciler was constructed without an issue manager.
	ErrIssueManagerNotConfigured = errors.New(issueManagerNotConfiguredMessageConstant)
	// ErrRendererNotConfigured indicates the reconciler was constructed without a body renderer.
	ErrRendererNotConfigured = errors.New(rendererNotConfiguredMessageConstant)
	// ErrTrackingRepositoryRequired indicates the tracking repository was blank.
	ErrTrackingRepositoryRequired = errors.New(trackingRepositoryRequiredMessageConstant)
	// ErrTrackingTitleRequired indicates the tracking title was blank.
	ErrTrackingTitleRequired = errors.New(trackingTitleRequiredMessageConstant)
)

// Action describes what reconciliation did to the tracking issue.
type Action string

// Reconciliation actions.
const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

// RecordReference identifies the tracking issue after reconciliation.
type RecordReference struct {
	Number   int
	URL      string
	Action   Action
	Reopened bool
}

// Settings locate the tracking issue.
type Settings struct {
	Repository string
	Title      string
}

// Reconciler keeps the tracking issue in sync with the latest findings.
type Reconciler struct {
	issues   shared.IssueManager
	renderer BodyRenderer
	settings Settings
	logger   *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(issues shared.IssueManager, renderer BodyRenderer, settings Settings, logger *zap.Logger) (*Reconciler, error) {
	if issues == nil {
		return nil, ErrIssueManagerNotConfigured
	}
	if renderer == nil {
		return nil, ErrRendererNotConfigured
	}
	settings.Repository = strings.TrimSpace(settings.Repository)
	settings.Title = strings.TrimSpace(settings.Title)
	if len(settings.Repository) == 0 {
		return nil, ErrTrackingRepositoryRequired
	}
	if len(settings.Title) == 0 {
		return nil, ErrTrackingTitleRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{issues: issues, renderer: renderer, settings: settings, logger: logger}, nil
}

// Reconcile finds the issue by exact title and replaces its body, or creates it. A closed issue is reopened when
// findings exist. An unchanged body results in no edit.
func (reconciler *Reconciler) Reconcile(executionContext context.Context, findings shared.FindingsByOrganization) (RecordReference, error) {
	body := reconciler.renderer.Render(findings)

	issue, found, findError := reconciler.issues.FindIssueByTitle(executionContext, reconciler.settings.Repository, reconciler.settings.Title)
	if findError != nil {
		return RecordReference{}, fmt.Errorf(findErrorTemplateConstant, findError)
	}

	if !found {
		createdIssue, createError := reconciler.issues.CreateIssue(executionContext, reconciler.settings.Repository, reconciler.settings.Title, body)
		if createError != nil {
			return RecordReference{}, fmt.Errorf(createErrorTemplateConstant, createError)
		}
		reference := RecordReference{Number: createdIssue.Number, URL: createdIssue.URL, Action: ActionCreated}
		reconciler.logReconciled(reference, findings.Count())
		return reference, nil
	}

	reference := RecordReference{Number: issue.Number, URL: issue.URL, Action: ActionUnchanged}
	if issue.IsClosed() && findings.Count() > 0 {
		if reopenError := reconciler.issues.ReopenIssue(executionContext, reconciler.settings.Repository, issue.Number); reopenError != nil {
			return RecordReference{}, fmt.Errorf(reopenErrorTemplateConstant, issue.Number, reopenError)
		}
		reference.Reopened = true
	}

	if BodyDigest(issue.Body) != BodyDigest(body) {
		if editError := reconciler.issues.EditIssueBody(executionContext, reconciler.settings.Repository, issue.Number, body); editError != nil {
			return RecordReference{}, fmt.Errorf(editErrorTemplateConstant, issue.Number, editError)
		}
		reference.Action = ActionUpdated
	}

	reconciler.logReconciled(reference, findings.Count())
	return reference, nil
}

// BodyDigest hashes a body after trimming surrounding whitespace, which GitHub does not preserve.
func BodyDigest(body string) uint64 {
	return xxhash.Sum64String(strings.TrimSpace(strings.ReplaceAll(body, windowsLineSeparatorConstant, lineSeparatorConstant)))
}

func (reconciler *Reconciler) logReconciled(reference RecordReference, findingCount int) {
	reconciler.logger.Info(
		trackingReconciledMessageConstant,
		zap.String(repositoryFieldNameConstant, reconciler.settings.Repository),
		zap.String(titleFieldNameConstant, reconciler.settings.Title),
		zap.Int(numberFieldNameConstant, reference.Number),
		zap.String(actionFieldNameConstant, string(reference.Action)),
		zap.Int(findingsFieldNameConstant, findingCount),
	)
}
