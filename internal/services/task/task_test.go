// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package task_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	"codeberg.org/oliverandrich/planifio/internal/services/project"
	"codeberg.org/oliverandrich/planifio/internal/services/task"
	"codeberg.org/oliverandrich/planifio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	fail   error
	folder string
	name   string
}

func (u *fakeUploader) Upload(_ context.Context, _ []byte, folder, fileName string) (string, error) {
	if u.fail != nil {
		return "", u.fail
	}
	u.folder, u.name = folder, fileName
	return "/uploads/" + folder + "/" + fileName, nil
}

type fixture struct {
	svc      *task.Service
	repo     *repository.Repository
	uploader *fakeUploader

	owner       *models.User
	admin       *models.User
	manager     *models.User
	contributor *models.User
	viewer      *models.User
	bystander   *models.User
	outsider    *models.User

	ws      *models.Workspace
	project *models.Project
}

// newFixture builds a workspace where manager, contributor and viewer are
// plain workspace members holding the named project role, and bystander is a
// workspace member outside the project.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	recorder := activity.NewRecorder(repo, nil)
	f := &fixture{
		repo:        repo,
		uploader:    &fakeUploader{},
		owner:       testutil.NewTestUser(t, repo, "owner@example.com"),
		admin:       testutil.NewTestUser(t, repo, "admin@example.com"),
		manager:     testutil.NewTestUser(t, repo, "manager@example.com"),
		contributor: testutil.NewTestUser(t, repo, "contributor@example.com"),
		viewer:      testutil.NewTestUser(t, repo, "viewer@example.com"),
		bystander:   testutil.NewTestUser(t, repo, "bystander@example.com"),
		outsider:    testutil.NewTestUser(t, repo, "outsider@example.com"),
	}
	f.svc = task.NewService(repo, project.NewService(repo, recorder), f.uploader, recorder)
	f.ws = testutil.NewTestWorkspace(t, repo, f.owner, map[int64]models.WorkspaceRole{
		f.admin.ID:       models.WorkspaceAdmin,
		f.manager.ID:     models.WorkspaceMember,
		f.contributor.ID: models.WorkspaceMember,
		f.viewer.ID:      models.WorkspaceMember,
		f.bystander.ID:   models.WorkspaceMember,
	})
	f.project = testutil.NewTestProject(t, repo, f.ws, f.manager, map[int64]models.ProjectRole{
		f.contributor.ID: models.ProjectContributor,
		f.viewer.ID:      models.ProjectViewer,
	})
	return f
}

func (f *fixture) newTask(t *testing.T) *models.Task {
	t.Helper()
	created, err := f.svc.Create(context.Background(), f.manager.ID, f.project.ID, task.CreateParams{Title: "Write docs"})
	require.NoError(t, err)
	return created
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	due := time.Date(2030, 1, 2, 12, 0, 0, 0, time.UTC)

	created, err := f.svc.Create(ctx, f.contributor.ID, f.project.ID, task.CreateParams{
		Title:       " Ship it ",
		Priority:    models.PriorityHigh,
		DueDate:     &due,
		AssigneeIDs: []int64{f.viewer.ID, f.contributor.ID, f.viewer.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "Ship it", created.Title)
	assert.Equal(t, models.TaskToDo, created.Status)
	assert.Equal(t, models.PriorityHigh, created.Priority)
	require.NotNil(t, created.DueDate)
	assert.True(t, due.Equal(*created.DueDate))
	assert.ElementsMatch(t, []int64{f.viewer.ID, f.contributor.ID}, created.AssigneeUserIDs)

	entries, err := f.repo.ListActivity(ctx, models.ResourceTask, created.ID, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, activity.ActionCreatedTask, entries[0].Action)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.manager.ID, f.project.ID, task.CreateParams{Title: "x", Status: "Later"})
	assert.ErrorIs(t, err, task.ErrInvalidStatus)

	_, err = f.svc.Create(ctx, f.manager.ID, f.project.ID, task.CreateParams{Title: "x", Priority: "Urgent"})
	assert.ErrorIs(t, err, task.ErrInvalidPriority)

	_, err = f.svc.Create(ctx, f.manager.ID, f.project.ID, task.CreateParams{
		Title:       "x",
		AssigneeIDs: []int64{f.outsider.ID},
	})
	assert.ErrorIs(t, err, task.ErrAssigneeNotMember)
}

func TestCreate_Permissions(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		actor   func(f *fixture) *models.User
		allowed bool
	}{
		{"workspace owner", func(f *fixture) *models.User { return f.owner }, true},
		{"workspace admin", func(f *fixture) *models.User { return f.admin }, true},
		{"project manager", func(f *fixture) *models.User { return f.manager }, true},
		{"project contributor", func(f *fixture) *models.User { return f.contributor }, true},
		{"project viewer", func(f *fixture) *models.User { return f.viewer }, false},
		{"workspace member outside project", func(f *fixture) *models.User { return f.bystander }, false},
		{"outsider", func(f *fixture) *models.User { return f.outsider }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(context.Background(), tt.actor(f).ID, f.project.ID, task.CreateParams{Title: "t"})
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, task.ErrForbidden)
				assert.Equal(t, apperr.Authorization, apperr.KindOf(err))
			}
		})
	}
}

func TestDelete_Asymmetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	// the project manager may edit but not delete
	_, err := f.svc.Update(ctx, f.manager.ID, created.ID, task.UpdateParams{Title: ptr("Edited")})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.manager.ID, created.ID), task.ErrForbidden)
	assert.ErrorIs(t, f.svc.Delete(ctx, f.contributor.ID, created.ID), task.ErrForbidden)

	require.NoError(t, f.svc.Delete(ctx, f.admin.ID, created.ID))
	_, err = f.svc.Get(ctx, f.owner.ID, created.ID)
	assert.ErrorIs(t, err, task.ErrNotFound)

	entries, err := f.repo.ListActivity(ctx, models.ResourceProject, f.project.ID, 0)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, activity.ActionDeletedTask, entries[0].Action)
	assert.Contains(t, entries[0].Details, fmt.Sprintf(`"task_id":%d`, created.ID))
}

func TestUpdate_ForbiddenBeforeInvalidValue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)
	status := models.TaskStatus("Blocked")
	priority := models.TaskPriority("Urgent")

	for _, actor := range []*models.User{f.viewer, f.bystander, f.outsider} {
		_, err := f.svc.Update(ctx, actor.ID, created.ID, task.UpdateParams{Status: &status})
		assert.ErrorIs(t, err, task.ErrForbidden, actor.Email)
		_, err = f.svc.Update(ctx, actor.ID, created.ID, task.UpdateParams{Priority: &priority})
		assert.ErrorIs(t, err, task.ErrForbidden, actor.Email)
	}

	_, err := f.svc.Update(ctx, f.contributor.ID, created.ID, task.UpdateParams{Status: &status})
	assert.ErrorIs(t, err, task.ErrInvalidStatus)
	_, err = f.svc.Update(ctx, f.contributor.ID, created.ID, task.UpdateParams{Priority: &priority})
	assert.ErrorIs(t, err, task.ErrInvalidPriority)
}

func TestUpdate_LogsEachField(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)
	done := models.TaskDone
	high := models.PriorityHigh

	updated, err := f.svc.Update(ctx, f.contributor.ID, created.ID, task.UpdateParams{
		Title:    ptr("Write better docs"),
		Status:   &done,
		Priority: &high,
	})
	require.NoError(t, err)
	assert.Equal(t, "Write better docs", updated.Title)
	assert.Equal(t, models.TaskDone, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	entries, err := f.repo.ListActivity(ctx, models.ResourceTask, created.ID, 0)
	require.NoError(t, err)
	updates := 0
	for _, e := range entries {
		if e.Action == activity.ActionUpdatedTask {
			updates++
		}
	}
	assert.Equal(t, 3, updates)

	todo := models.TaskToDo
	reopened, err := f.svc.Update(ctx, f.contributor.ID, created.ID, task.UpdateParams{Status: &todo})
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)

	_, err = f.svc.Update(ctx, f.viewer.ID, created.ID, task.UpdateParams{Title: ptr("no")})
	assert.ErrorIs(t, err, task.ErrForbidden)
}

func TestUpdate_NoChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	_, err := f.svc.Update(ctx, f.manager.ID, created.ID, task.UpdateParams{Title: ptr("Write docs")})
	require.NoError(t, err)

	entries, err := f.repo.ListActivity(ctx, models.ResourceTask, created.ID, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSetAssignees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	updated, err := f.svc.SetAssignees(ctx, f.manager.ID, created.ID, []int64{f.bystander.ID, f.contributor.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{f.bystander.ID, f.contributor.ID}, updated.AssigneeUserIDs)

	updated, err = f.svc.SetAssignees(ctx, f.manager.ID, created.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, updated.AssigneeUserIDs)

	_, err = f.svc.SetAssignees(ctx, f.viewer.ID, created.ID, []int64{f.viewer.ID})
	assert.ErrorIs(t, err, task.ErrForbidden)
}

func TestToggleWatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	// watching only needs visibility
	watching, err := f.svc.ToggleWatch(ctx, f.bystander.ID, created.ID)
	require.NoError(t, err)
	assert.True(t, watching)

	got, err := f.svc.Get(ctx, f.bystander.ID, created.ID)
	require.NoError(t, err)
	assert.Contains(t, got.WatcherUserIDs, f.bystander.ID)

	watching, err = f.svc.ToggleWatch(ctx, f.bystander.ID, created.ID)
	require.NoError(t, err)
	assert.False(t, watching)

	_, err = f.svc.ToggleWatch(ctx, f.outsider.ID, created.ID)
	assert.ErrorIs(t, err, task.ErrForbidden)
}

func TestToggleArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	archived, err := f.svc.ToggleArchive(ctx, f.contributor.ID, created.ID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived)

	restored, err := f.svc.ToggleArchive(ctx, f.contributor.ID, created.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsArchived)
}

func TestSubtasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	sub, err := f.svc.AddSubtask(ctx, f.contributor.ID, created.ID, "Outline")
	require.NoError(t, err)
	assert.False(t, sub.Completed)

	done := true
	updated, err := f.svc.UpdateSubtask(ctx, f.contributor.ID, created.ID, sub.ID, task.SubtaskParams{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "Outline", updated.Title)

	_, err = f.svc.UpdateSubtask(ctx, f.contributor.ID, created.ID, sub.ID+100, task.SubtaskParams{Completed: &done})
	assert.ErrorIs(t, err, task.ErrSubtaskNotFound)

	_, err = f.svc.AddSubtask(ctx, f.viewer.ID, created.ID, "Nope")
	assert.ErrorIs(t, err, task.ErrForbidden)

	got, err := f.svc.Get(ctx, f.viewer.ID, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Subtasks, 1)
	assert.True(t, got.Subtasks[0].Completed)
}

func TestAddAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	a, err := f.svc.AddAttachment(ctx, f.contributor.ID, created.ID, task.Upload{
		FileName:    "../../notes.txt",
		ContentType: "text/plain",
		Data:        []byte("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", a.FileName)
	assert.Equal(t, int64(5), a.FileSize)
	assert.Equal(t, f.contributor.ID, a.UploadedByUserID)
	assert.Contains(t, a.FileURL, "notes.txt")

	_, err = f.svc.AddAttachment(ctx, f.contributor.ID, created.ID, task.Upload{FileName: "empty.txt"})
	assert.ErrorIs(t, err, task.ErrEmptyAttachment)

	f.uploader.fail = errors.New("disk full")
	_, err = f.svc.AddAttachment(ctx, f.contributor.ID, created.ID, task.Upload{FileName: "a.txt", Data: []byte("x")})
	assert.ErrorIs(t, err, task.ErrAttachmentDelivery)
	assert.Equal(t, apperr.Dependency, apperr.KindOf(err))

	got, err := f.svc.Get(ctx, f.owner.ID, created.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attachments, 1)
}

func TestAttachment_VisibleToParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	_, err := f.svc.AddAttachment(ctx, f.manager.ID, created.ID, task.Upload{FileName: "plan.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, task.AttachmentFolder(created.ID), f.uploader.folder)

	got, err := f.svc.Attachment(ctx, f.viewer.ID, created.ID, "plan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "plan.pdf", got.FileName)

	_, err = f.svc.Attachment(ctx, f.outsider.ID, created.ID, "plan.pdf")
	assert.ErrorIs(t, err, task.ErrForbidden)

	_, err = f.svc.Attachment(ctx, f.viewer.ID, created.ID, "other.pdf")
	assert.ErrorIs(t, err, task.ErrAttachmentMissing)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)

	c, err := f.svc.AddComment(ctx, f.viewer.ID, created.ID, "  Looks good  ")
	require.NoError(t, err)
	assert.Equal(t, "Looks good", c.Text)

	_, err = f.svc.AddComment(ctx, f.bystander.ID, created.ID, "Me too")
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, f.viewer.ID, created.ID, "   ")
	assert.ErrorIs(t, err, task.ErrEmptyComment)

	_, err = f.svc.AddComment(ctx, f.outsider.ID, created.ID, "   ")
	assert.ErrorIs(t, err, task.ErrForbidden)

	_, err = f.svc.AddComment(ctx, f.outsider.ID, created.ID, "Hi")
	assert.ErrorIs(t, err, task.ErrForbidden)

	comments, err := f.svc.Comments(ctx, f.manager.ID, created.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, f.viewer.ID, comments[0].AuthorUserID)
}

func TestListAndActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.newTask(t)
	_, err := f.svc.AddComment(ctx, f.viewer.ID, created.ID, "First")
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.bystander.ID, f.project.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = f.svc.List(ctx, f.outsider.ID, f.project.ID)
	assert.ErrorIs(t, err, task.ErrForbidden)

	entries, err := f.svc.Activity(ctx, f.viewer.ID, created.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, activity.ActionAddedComment, entries[0].Action)
	assert.Equal(t, activity.ActionCreatedTask, entries[1].Action)
}

func ptr[T any](v T) *T { return &v }
