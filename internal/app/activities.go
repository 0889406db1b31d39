package app

import (
	"context"
	"strings"
	"time"

	"github.com/hylla/kundkoll/internal/activity"
	"github.com/hylla/kundkoll/internal/domain"
)

// LogActivityInput holds input values for log activity operations.
type LogActivityInput struct {
	ClientID   string
	Type       domain.ActivityType
	Summary    string
	Data       map[string]any
	OccurredAt *time.Time
}

// LogActivity records one activity for a client, attributed to the context actor.
func (s *Service) LogActivity(ctx context.Context, in LogActivityInput) (domain.Activity, error) {
	client, err := s.repo.GetClient(ctx, strings.TrimSpace(in.ClientID))
	if err != nil {
		return domain.Activity{}, err
	}
	if client.ArchivedAt != nil {
		return domain.Activity{}, ErrClientArchived
	}
	actorID := s.actorID(ctx)
	a, err := domain.NewActivity(domain.ActivityInput{
		ID:         s.idGen(),
		ClientID:   client.ID,
		UserID:     actorID,
		Type:       in.Type,
		Summary:    in.Summary,
		Data:       in.Data,
		OccurredAt: in.OccurredAt,
	}, s.clock())
	if err != nil {
		return domain.Activity{}, err
	}
	if err := validateActivityData(a.Type, a.Data); err != nil {
		return domain.Activity{}, err
	}
	if err := s.repo.CreateActivity(ctx, a, actorID); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

// UpdateActivity applies the fields present in payload to one activity.
func (s *Service) UpdateActivity(ctx context.Context, activityID string, payload domain.ActivityPayload) (domain.Activity, error) {
	a, err := s.repo.GetActivity(ctx, strings.TrimSpace(activityID))
	if err != nil {
		return domain.Activity{}, err
	}
	if err := a.Apply(payload, s.clock()); err != nil {
		return domain.Activity{}, err
	}
	if err := validateActivityData(a.Type, a.Data); err != nil {
		return domain.Activity{}, err
	}
	if err := s.repo.UpdateActivity(ctx, a, s.actorID(ctx)); err != nil {
		return domain.Activity{}, err
	}
	return a, nil
}

// DeleteActivity deletes one activity.
func (s *Service) DeleteActivity(ctx context.Context, activityID string) error {
	a, err := s.repo.GetActivity(ctx, strings.TrimSpace(activityID))
	if err != nil {
		return err
	}
	return s.repo.DeleteActivity(ctx, a, s.actorID(ctx))
}

// ListClientActivities lists the confirmed activities of one client, newest first.
func (s *Service) ListClientActivities(ctx context.Context, clientID string) ([]domain.Activity, error) {
	clientID = strings.TrimSpace(clientID)
	if _, err := s.repo.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, clientID)
}

// ListActivityEvents lists the newest activity audit events of one client.
func (s *Service) ListActivityEvents(ctx context.Context, clientID string, limit int) ([]domain.ActivityEvent, error) {
	return s.repo.ListActivityEvents(ctx, strings.TrimSpace(clientID), limit)
}

// ApplyActivityChange confirms one queued change against storage. Deletes
// return the removed activity.
func (s *Service) ApplyActivityChange(ctx context.Context, clientID string, change domain.ActivityChange) (domain.Activity, error) {
	if err := change.Validate(); err != nil {
		return domain.Activity{}, err
	}
	switch change.Kind {
	case domain.ChangeKindCreate:
		summary := ""
		if change.Payload.Summary != nil {
			summary = *change.Payload.Summary
		}
		return s.LogActivity(ctx, LogActivityInput{
			ClientID:   clientID,
			Type:       change.Payload.Type,
			Summary:    summary,
			Data:       change.Payload.Data,
			OccurredAt: change.Payload.OccurredAt,
		})
	case domain.ChangeKindUpdate:
		if err := s.ensureActivityOwner(ctx, clientID, change.ActivityID); err != nil {
			return domain.Activity{}, err
		}
		return s.UpdateActivity(ctx, change.ActivityID, change.Payload)
	default:
		a, err := s.repo.GetActivity(ctx, strings.TrimSpace(change.ActivityID))
		if err != nil {
			return domain.Activity{}, err
		}
		if a.ClientID != strings.TrimSpace(clientID) {
			return domain.Activity{}, ErrNotFound
		}
		if err := s.repo.DeleteActivity(ctx, a, s.actorID(ctx)); err != nil {
			return domain.Activity{}, err
		}
		return a, nil
	}
}

// ensureActivityOwner reports ErrNotFound when the activity belongs to another client.
func (s *Service) ensureActivityOwner(ctx context.Context, clientID, activityID string) error {
	a, err := s.repo.GetActivity(ctx, strings.TrimSpace(activityID))
	if err != nil {
		return err
	}
	if a.ClientID != strings.TrimSpace(clientID) {
		return ErrNotFound
	}
	return nil
}

// ClientActivityView merges the confirmed activities of one client with the
// caller's pending changes into the list the caller should display.
func (s *Service) ClientActivityView(ctx context.Context, clientID string, pending []domain.ActivityChange) ([]activity.Display, error) {
	server, err := s.ListClientActivities(ctx, clientID)
	if err != nil {
		return nil, err
	}
	for _, change := range pending {
		if err := change.Validate(); err != nil {
			return nil, err
		}
	}
	return activity.Merge(server, pending, strings.TrimSpace(clientID), s.actorID(ctx), activity.MergeOptions{
		Now: s.clock,
	}), nil
}
