package tracking_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/depscan/internal/githubcli"
	"github.com/temirov/depscan/internal/scan/shared"
	"github.com/temirov/depscan/internal/scan/tracking"
)

const (
	testTrackingRepositoryConstant = "acme/compliance"
	testTrackingTitleConstant      = "Deprecated dependency: github.com/sirupsen/logrus"
)

type inMemoryIssueManager struct {
	issues      []githubcli.Issue
	findError   error
	createCalls int
	editCalls   int
	reopenCalls int
}

func (manager *inMemoryIssueManager) FindIssueByTitle(_ context.Context, _ string, title string) (githubcli.Issue, bool, error) {
	if manager.findError != nil {
		return githubcli.Issue{}, false, manager.findError
	}
	for _, issue := range manager.issues {
		if issue.Title == title {
			return issue, true, nil
		}
	}
	return githubcli.Issue{}, false, nil
}

func (manager *inMemoryIssueManager) CreateIssue(_ context.Context, repository string, title string, body string) (githubcli.Issue, error) {
	manager.createCalls++
	issueNumber := len(manager.issues) + 1
	issue := githubcli.Issue{
		Number: issueNumber,
		Title:  title,
		State:  "OPEN",
		URL:    fmt.Sprintf("https://github.com/%s/issues/%d", repository, issueNumber),
		Body:   body + "\n",
	}
	manager.issues = append(manager.issues, issue)
	return issue, nil
}

func (manager *inMemoryIssueManager) EditIssueBody(_ context.Context, _ string, issueNumber int, body string) error {
	manager.editCalls++
	manager.issues[issueNumber-1].Body = body
	return nil
}

func (manager *inMemoryIssueManager) ReopenIssue(_ context.Context, _ string, issueNumber int) error {
	manager.reopenCalls++
	manager.issues[issueNumber-1].State = "OPEN"
	return nil
}

func newReconciler(testInstance *testing.T, manager *inMemoryIssueManager) *tracking.Reconciler {
	testInstance.Helper()
	reconciler, reconcilerError := tracking.NewReconciler(
		manager,
		tracking.MarkdownTableRenderer{Subject: testSubjectConstant},
		tracking.Settings{Repository: testTrackingRepositoryConstant, Title: testTrackingTitleConstant},
		zap.NewNop(),
	)
	require.NoError(testInstance, reconcilerError)
	return reconciler
}

func singleFinding() shared.FindingsByOrganization {
	findings := shared.FindingsByOrganization{}
	findings.Add(shared.ScanFinding{Identifier: "acme/gamma", Organization: "acme", Branch: "main", LastCommitTimestamp: "2024-05-30T08:00:00Z"})
	return findings
}

func TestReconcileIsIdempotent(testInstance *testing.T) {
	manager := &inMemoryIssueManager{}
	reconciler := newReconciler(testInstance, manager)

	firstReference, firstError := reconciler.Reconcile(context.Background(), singleFinding())
	require.NoError(testInstance, firstError)
	require.Equal(testInstance, tracking.ActionCreated, firstReference.Action)

	secondReference, secondError := reconciler.Reconcile(context.Background(), singleFinding())
	require.NoError(testInstance, secondError)
	require.Equal(testInstance, tracking.ActionUnchanged, secondReference.Action)
	require.Equal(testInstance, firstReference.Number, secondReference.Number)

	require.Len(testInstance, manager.issues, 1)
	require.Equal(testInstance, 1, manager.createCalls)
	require.Zero(testInstance, manager.editCalls)
	require.Len(testInstance, tableRows(manager.issues[0].Body), 1)
}

func TestReconcileReplacesChangedBody(testInstance *testing.T) {
	manager := &inMemoryIssueManager{issues: []githubcli.Issue{{Number: 1, Title: testTrackingTitleConstant, State: "OPEN", Body: "stale body"}}}
	reconciler := newReconciler(testInstance, manager)

	reference, reconcileError := reconciler.Reconcile(context.Background(), singleFinding())
	require.NoError(testInstance, reconcileError)

	require.Equal(testInstance, tracking.ActionUpdated, reference.Action)
	require.False(testInstance, reference.Reopened)
	require.Equal(testInstance, 1, manager.editCalls)
	require.NotContains(testInstance, manager.issues[0].Body, "stale body")
}

func TestReconcileReopensClosedIssueWithFindings(testInstance *testing.T) {
	manager := &inMemoryIssueManager{issues: []githubcli.Issue{{Number: 1, Title: testTrackingTitleConstant, State: "CLOSED"}}}
	reconciler := newReconciler(testInstance, manager)

	reference, reconcileError := reconciler.Reconcile(context.Background(), singleFinding())
	require.NoError(testInstance, reconcileError)

	require.True(testInstance, reference.Reopened)
	require.Equal(testInstance, 1, manager.reopenCalls)
	require.Equal(testInstance, "OPEN", manager.issues[0].State)
}

func TestReconcileLeavesClosedIssueClosedWithoutFindings(testInstance *testing.T) {
	manager := &inMemoryIssueManager{issues: []githubcli.Issue{{Number: 1, Title: testTrackingTitleConstant, State: "CLOSED"}}}
	reconciler := newReconciler(testInstance, manager)

	reference, reconcileError := reconciler.Reconcile(context.Background(), shared.FindingsByOrganization{})
	require.NoError(testInstance, reconcileError)

	require.False(testInstance, reference.Reopened)
	require.Zero(testInstance, manager.reopenCalls)
	require.Equal(testInstance, 1, manager.editCalls)
}

func TestReconcilePropagatesLookupFailure(testInstance *testing.T) {
	manager := &inMemoryIssueManager{findError: errors.New("boom")}
	reconciler := newReconciler(testInstance, manager)

	_, reconcileError := reconciler.Reconcile(context.Background(), singleFinding())
	require.ErrorContains(testInstance, reconcileError, "boom")
	require.Zero(testInstance, manager.createCalls)
}

func TestNewReconcilerValidation(testInstance *testing.T) {
	renderer := tracking.MarkdownTableRenderer{Subject: testSubjectConstant}
	testCases := []struct {
		name          string
		manager       shared.IssueManager
		renderer      tracking.BodyRenderer
		settings      tracking.Settings
		expectedError error
	}{
		{name: "missing_manager", renderer: renderer, settings: tracking.Settings{Repository: "a/b", Title: "t"}, expectedError: tracking.ErrIssueManagerNotConfigured},
		{name: "missing_renderer", manager: &inMemoryIssueManager{}, settings: tracking.Settings{Repository: "a/b", Title: "t"}, expectedError: tracking.ErrRendererNotConfigured},
		{name: "missing_repository", manager: &inMemoryIssueManager{}, renderer: renderer, settings: tracking.Settings{Title: "t"}, expectedError: tracking.ErrTrackingRepositoryRequired},
		{name: "missing_title", manager: &inMemoryIssueManager{}, renderer: renderer, settings: tracking.Settings{Repository: "a/b", Title: " "}, expectedError: tracking.ErrTrackingTitleRequired},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(subTest *testing.T) {
			_, reconcilerError := tracking.NewReconciler(testCase.manager, testCase.renderer, testCase.settings, nil)
			require.ErrorIs(subTest, reconcilerError, testCase.expectedError)
		})
	}
}

func TestBodyDigestIgnoresSurroundingWhitespace(testInstance *testing.T) {
	require.Equal(testInstance, tracking.BodyDigest("line one\r\nline two\n"), tracking.BodyDigest("line one\nline two"))
	require.NotEqual(testInstance, tracking.BodyDigest("a"), tracking.BodyDigest("b"))
}
