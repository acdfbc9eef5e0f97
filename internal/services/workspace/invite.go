// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/planifio/internal/apperr"
	"codeberg.org/oliverandrich/planifio/internal/authz"
	"codeberg.org/oliverandrich/planifio/internal/membership"
	"codeberg.org/oliverandrich/planifio/internal/models"
	"codeberg.org/oliverandrich/planifio/internal/repository"
	"codeberg.org/oliverandrich/planifio/internal/services/activity"
	"codeberg.org/oliverandrich/planifio/internal/services/email"
	"codeberg.org/oliverandrich/planifio/internal/token"
)

// InviteResult describes an issued invite.
type InviteResult struct {
	Invitee   *models.User         `json:"invitee"`
	Role      models.WorkspaceRole `json:"role"`
	ExpiresAt time.Time            `json:"expires_at"`
}

// Invite issues a workspace invite to an existing user and emails the accept
// link. An expired invite for the same user is replaced; a pending one fails
// with ErrAlreadyInvited.
func (s *Service) Invite(ctx context.Context, actorID, id int64, inviteeEmail string, role models.WorkspaceRole) (*InviteResult, error) {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Can(authz.InviteMember, ws, nil, actorID) {
		return nil, ErrForbidden
	}
	if !role.Invitable() {
		return nil, ErrInvalidRole
	}

	invitee, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(inviteeEmail)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get invitee: %w", err)
	}
	if membership.IsWorkspaceMember(ws, invitee.ID) {
		return nil, ErrAlreadyMember
	}

	inviter, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inviter: %w", err)
	}

	var issued *token.Issued
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		tokens := s.tokens.WithStore(tx)
		pending, err := tokens.PendingInvite(ctx, invitee.ID, ws.ID)
		switch {
		case errors.Is(err, token.ErrNotFound):
		case err != nil:
			return err
		case !pending.Expired(tokens.Now()):
			return ErrAlreadyInvited
		default:
			if err := tokens.Discard(ctx, pending.ID); err != nil {
				return fmt.Errorf("failed to discard expired invite: %w", err)
			}
		}

		issued, err = tokens.Issue(ctx, invitee.ID, token.WorkspaceInvite{WorkspaceID: ws.ID, Role: role}, s.inviteTTL)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = s.mailer.SendInvite(ctx, email.Invite{
		Invitee:   invitee,
		Inviter:   inviter,
		Workspace: ws,
		Role:      role,
		Token:     issued.Value,
		ExpiresAt: issued.ExpiresAt,
	})
	if err != nil {
		if derr := s.tokens.Discard(ctx, issued.ID); derr != nil {
			slog.Error("invite_discard_failed", "token_id", issued.ID, "error", derr)
		}
		return nil, apperr.Wrap(ErrInviteDelivery, err)
	}

	slog.Info("workspace_invite_sent", "workspace_id", ws.ID, "invitee_id", invitee.ID, "role", role)
	s.record(ctx, actorID, activity.ActionInvitedMember, ws.ID, map[string]any{
		"user_id": invitee.ID,
		"role":    role,
	})
	return &InviteResult{Invitee: invitee, Role: role, ExpiresAt: issued.ExpiresAt}, nil
}

// AcceptInvite adds the actor to the workspace named in the invite token with
// the role it carries, and consumes the token.
func (s *Service) AcceptInvite(ctx context.Context, actorID int64, value string) (*models.Workspace, error) {
	v, err := s.tokens.Verify(ctx, value, token.KindWorkspaceInvite)
	if err != nil {
		return nil, err
	}
	invite, ok := v.Purpose.(token.WorkspaceInvite)
	if !ok {
		return nil, token.ErrWrongPurpose
	}
	if v.SubjectID != actorID {
		return nil, ErrNotInvitee
	}

	ws, err := s.Load(ctx, invite.WorkspaceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.discard(ctx, v.ID)
		}
		return nil, err
	}
	if membership.IsWorkspaceMember(ws, actorID) {
		s.discard(ctx, v.ID)
		return nil, ErrAlreadyMember
	}

	var joined *models.Workspace
	err = s.repo.InTx(ctx, func(tx *repository.Repository) error {
		if err := s.tokens.WithStore(tx).Consume(ctx, value); err != nil {
			return err
		}
		if err := tx.AddWorkspaceMember(ctx, ws.ID, actorID, invite.Role, s.tokens.Now()); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("failed to add member: %w", err)
		}
		var err error
		joined, err = load(ctx, tx, ws.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("workspace_invite_accepted", "workspace_id", ws.ID, "user_id", actorID, "role", invite.Role)
	s.record(ctx, actorID, activity.ActionJoinedWorkspace, ws.ID, map[string]any{
		"role": invite.Role,
		"via":  "invite",
	})
	return joined, nil
}

// Join adds the actor as a plain member without an invite. A pending invite
// for the actor becomes pointless and is removed.
func (s *Service) Join(ctx context.Context, actorID, id int64) (*models.Workspace, error) {
	ws, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if membership.IsWorkspaceMember(ws, actorID) {
		return nil, ErrAlreadyMember
	}

	if err := s.repo.AddWorkspaceMember(ctx, ws.ID, actorID, models.WorkspaceMember, s.tokens.Now()); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	if pending, err := s.tokens.PendingInvite(ctx, actorID, ws.ID); err == nil {
		s.discard(ctx, pending.ID)
	}

	s.record(ctx, actorID, activity.ActionJoinedWorkspace, ws.ID, map[string]any{
		"role": models.WorkspaceMember,
		"via":  "link",
	})
	return s.Load(ctx, ws.ID)
}

func (s *Service) discard(ctx context.Context, id string) {
	if err := s.tokens.Discard(ctx, id); err != nil {
		slog.Error("invite_discard_failed", "token_id", id, "error", err)
	}
}
