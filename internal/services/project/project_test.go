// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package project_test

import (
	"context"
	"testing"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	"codeberg.org/oliverandrich/planifio/internal/services/project"
	"codeberg.org/oliverandrich/planifio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *project.Service
	repo     *repository.Repository
	owner    *models.User
	admin    *models.User
	member   *models.User
	viewer   *models.User
	outsider *models.User
	ws       *models.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	f := &fixture{
		svc:      project.NewService(repo, activity.NewRecorder(repo, nil)),
		repo:     repo,
		owner:    testutil.NewTestUser(t, repo, "owner@example.com"),
		admin:    testutil.NewTestUser(t, repo, "admin@example.com"),
		member:   testutil.NewTestUser(t, repo, "member@example.com"),
		viewer:   testutil.NewTestUser(t, repo, "viewer@example.com"),
		outsider: testutil.NewTestUser(t, repo, "outsider@example.com"),
	}
	f.ws = testutil.NewTestWorkspace(t, repo, f.owner, map[int64]models.WorkspaceRole{
		f.admin.ID:  models.WorkspaceAdmin,
		f.member.ID: models.WorkspaceMember,
		f.viewer.ID: models.WorkspaceViewer,
	})
	return f
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, f.member.ID, f.ws.ID, project.CreateParams{
		Title:   " Launch ",
		Members: map[int64]models.ProjectRole{f.viewer.ID: models.ProjectViewer},
	})
	require.NoError(t, err)

	assert.Equal(t, "Launch", p.Title)
	assert.Equal(t, models.ProjectPlanning, p.Status)
	assert.Equal(t, f.member.ID, p.CreatedByUserID)
	assert.Equal(t, models.ProjectManager, p.Members[f.member.ID].Role)
	assert.Equal(t, models.ProjectViewer, p.Members[f.viewer.ID].Role)

	entries, err := f.repo.ListActivity(ctx, models.ResourceProject, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionCreatedProject, entries[0].Action)
}

func TestCreate_Denied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.viewer.ID, f.ws.ID, project.CreateParams{Title: "Nope"})
	assert.ErrorIs(t, err, project.ErrForbidden)
	assert.Equal(t, apperr.Authorization, apperr.KindOf(err))

	_, err = f.svc.Create(ctx, f.outsider.ID, f.ws.ID, project.CreateParams{Title: "Nope"})
	assert.ErrorIs(t, err, project.ErrForbidden)

	_, err = f.svc.Create(ctx, f.member.ID, f.ws.ID, project.CreateParams{
		Title:   "Nope",
		Members: map[int64]models.ProjectRole{f.outsider.ID: models.ProjectViewer},
	})
	assert.ErrorIs(t, err, project.ErrNotWorkspaceMember)

	_, err = f.svc.Create(ctx, f.member.ID, f.ws.ID, project.CreateParams{Title: "Nope", Status: "Someday"})
	assert.ErrorIs(t, err, project.ErrInvalidStatus)

	_, err = f.svc.Create(ctx, f.member.ID, f.ws.ID+100, project.CreateParams{Title: "Nope"})
	assert.ErrorIs(t, err, project.ErrWorkspaceNotFound)
}

func TestListAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.NewTestProject(t, f.repo, f.ws, f.owner, nil)

	list, err := f.svc.List(ctx, f.viewer.ID, f.ws.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	got, err := f.svc.Get(ctx, f.viewer.ID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = f.svc.List(ctx, f.outsider.ID, f.ws.ID)
	assert.ErrorIs(t, err, project.ErrForbidden)

	_, err = f.svc.Get(ctx, f.outsider.ID, p.ID)
	assert.ErrorIs(t, err, project.ErrForbidden)

	_, err = f.svc.Get(ctx, f.owner.ID, p.ID+100)
	assert.ErrorIs(t, err, project.ErrNotFound)
}

func TestUpdate_RequiresManager(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.NewTestProject(t, f.repo, f.ws, f.member, map[int64]models.ProjectRole{
		f.viewer.ID: models.ProjectContributor,
	})
	title := "Renamed"

	tests := []struct {
		name    string
		actor   *models.User
		allowed bool
	}{
		{"workspace owner", f.owner, true},
		{"workspace admin", f.admin, true},
		{"project manager", f.member, true},
		{"project contributor", f.viewer, false},
		{"outsider", f.outsider, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, tt.actor.ID, p.ID, project.UpdateParams{Title: &title})
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, project.ErrForbidden)
			}
		})
	}
}

func TestSetStatusAndArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.NewTestProject(t, f.repo, f.ws, f.member, nil)

	_, err := f.svc.SetStatus(ctx, f.viewer.ID, p.ID, "Someday")
	assert.ErrorIs(t, err, project.ErrForbidden)

	_, err = f.svc.SetStatus(ctx, f.member.ID, p.ID, "Someday")
	assert.ErrorIs(t, err, project.ErrInvalidStatus)

	updated, err := f.svc.SetStatus(ctx, f.member.ID, p.ID, models.ProjectInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectInProgress, updated.Status)

	archived, err := f.svc.ToggleArchive(ctx, f.member.ID, p.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	restored, err := f.svc.ToggleArchive(ctx, f.member.ID, p.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)

	entries, err := f.repo.ListActivity(ctx, models.ResourceProject, p.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, activity.ActionUnarchivedProject, entries[0].Action)
}

func TestDelete_WorkspaceAdminOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.NewTestProject(t, f.repo, f.ws, f.member, nil)

	// managing a project is not enough to delete it
	assert.ErrorIs(t, f.svc.Delete(ctx, f.member.ID, p.ID), project.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, f.admin.ID, p.ID))
	_, err := f.svc.Get(ctx, f.owner.ID, p.ID)
	assert.ErrorIs(t, err, project.ErrNotFound)

	entries, err := f.repo.ListActivity(ctx, models.ResourceWorkspace, f.ws.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionDeletedProject, entries[0].Action)
	assert.Equal(t, f.admin.ID, entries[0].UserID)
	assert.Contains(t, entries[0].Details, `"title":"Test Project"`)
}

func TestMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := testutil.NewTestProject(t, f.repo, f.ws, f.member, nil)

	updated, err := f.svc.AddMember(ctx, f.member.ID, p.ID, f.viewer.ID, models.ProjectContributor)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectContributor, updated.Members[f.viewer.ID].Role)

	_, err = f.svc.AddMember(ctx, f.member.ID, p.ID, f.viewer.ID, models.ProjectViewer)
	assert.ErrorIs(t, err, project.ErrAlreadyMember)

	_, err = f.svc.AddMember(ctx, f.member.ID, p.ID, f.outsider.ID, models.ProjectViewer)
	assert.ErrorIs(t, err, project.ErrNotWorkspaceMember)

	_, err = f.svc.AddMember(ctx, f.member.ID, p.ID, f.admin.ID, "boss")
	assert.ErrorIs(t, err, project.ErrInvalidRole)

	_, err = f.svc.AddMember(ctx, f.viewer.ID, p.ID, f.admin.ID, "boss")
	assert.ErrorIs(t, err, project.ErrForbidden)

	// contributors cannot manage membership
	_, err = f.svc.AddMember(ctx, f.viewer.ID, p.ID, f.admin.ID, models.ProjectViewer)
	assert.ErrorIs(t, err, project.ErrForbidden)

	updated, err = f.svc.SetMemberRole(ctx, f.member.ID, p.ID, f.viewer.ID, models.ProjectManager)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectManager, updated.Members[f.viewer.ID].Role)

	_, err = f.svc.SetMemberRole(ctx, f.member.ID, p.ID, f.admin.ID, models.ProjectViewer)
	assert.ErrorIs(t, err, project.ErrNotMember)

	_, err = f.svc.RemoveMember(ctx, f.viewer.ID, p.ID, f.member.ID)
	assert.ErrorIs(t, err, project.ErrCreatorMembership)

	updated, err = f.svc.RemoveMember(ctx, f.member.ID, p.ID, f.viewer.ID)
	require.NoError(t, err)
	_, ok := updated.Members[f.viewer.ID]
	assert.False(t, ok)

	_, err = f.svc.RemoveMember(ctx, f.member.ID, p.ID, f.viewer.ID)
	assert.ErrorIs(t, err, project.ErrNotMember)
}
