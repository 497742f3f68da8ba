package usersink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-layoutmap/pkg/activity"
	"github.com/goliatone/go-layoutmap/pkg/activity/usersink"
	usertypes "github.com/goliatone/go-users/pkg/types"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookRecordsCommandLocation(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()

	event := activity.BuildCommandEvent(activity.MappingEventInput{
		ActorID:         actorID.String(),
		UserID:          userID.String(),
		TenantID:        "not-a-uuid",
		DocumentID:      "0",
		Command:         "update_value_in_group",
		MapID:           "m1",
		ImageVariableID: "hero",
		GroupIndex:      0,
		ValueIndex:      1,
		Metadata:        map[string]any{"source": "toolbar"},
		OccurredAt:      now,
	})
	event.Channel = activity.DefaultChannel

	require.NoError(t, hook.Notify(context.Background(), event))
	require.Len(t, sink.records, 1)

	record := sink.records[0]
	assert.Equal(t, actorID, record.ActorID)
	assert.Equal(t, userID, record.UserID)
	assert.Equal(t, uuid.Nil, record.TenantID, "tenant ids that are not uuids map to uuid.Nil")
	assert.Equal(t, "layoutmap.update_value_in_group", record.Verb)
	assert.Equal(t, activity.ObjectImageVariable, record.ObjectType)
	assert.Equal(t, "m1/hero", record.ObjectID)
	assert.Equal(t, "layoutmap", record.Channel)
	assert.Equal(t, now, record.OccurredAt)

	want := map[string]any{
		"command":  "update_value_in_group",
		"document": "0",
		"location": map[string]any{
			activity.MetaMapID:           "m1",
			activity.MetaImageVariableID: "hero",
			activity.MetaGroupIndex:      0,
			activity.MetaValueIndex:      1,
		},
		"source": "toolbar",
	}
	if diff := cmp.Diff(want, record.Data); diff != "" {
		t.Fatalf("record data mismatch (-want +got):\n%s", diff)
	}
}

func TestHookRecordsSaveWithoutLocation(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	require.NoError(t, hook.Notify(context.Background(), activity.BuildSavedEvent(activity.MappingEventInput{DocumentID: "doc-7"}, 3)))
	require.Len(t, sink.records, 1)

	want := map[string]any{"command": "saved", "document": "doc-7", activity.MetaMapCount: 3}
	if diff := cmp.Diff(want, sink.records[0].Data); diff != "" {
		t.Fatalf("record data mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "doc-7", sink.records[0].ObjectID)
	assert.False(t, sink.records[0].OccurredAt.IsZero(), "occurred_at defaults to now")
}

func TestHookDropsLoadsUnlessIncluded(t *testing.T) {
	loaded := activity.BuildLoadedEvent(activity.MappingEventInput{DocumentID: "0"}, 2)

	sink := &recordingSink{}
	require.NoError(t, usersink.Hook{Sink: sink}.Notify(context.Background(), loaded))
	assert.Empty(t, sink.records)

	require.NoError(t, usersink.Hook{Sink: sink, IncludeLoads: true}.Notify(context.Background(), loaded))
	require.Len(t, sink.records, 1)
	assert.Equal(t, "loaded", sink.records[0].Data["command"])
}

func TestHookSkipsForeignAndIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	events := []activity.Event{
		{Verb: "layoutmap.saved"},
		{Verb: "settings.updated", ObjectType: "settings", ObjectID: "1"},
		{Verb: "layoutmap.", ObjectType: activity.ObjectLayoutMap, ObjectID: "m1"},
	}
	for _, event := range events {
		require.NoError(t, hook.Notify(context.Background(), event))
	}
	assert.Empty(t, sink.records)

	err := usersink.Hook{}.Notify(context.Background(), activity.Event{Verb: "layoutmap.saved", ObjectType: "o", ObjectID: "1"})
	assert.NoError(t, err, "a hook without sink is inert")
}

func TestHookPropagatesSinkError(t *testing.T) {
	boom := errors.New("sink down")
	sink := &recordingSink{err: boom}

	err := usersink.Hook{Sink: sink}.Notify(context.Background(), activity.BuildSavedEvent(activity.MappingEventInput{DocumentID: "0"}, 1))
	require.ErrorIs(t, err, boom)
	require.Len(t, sink.records, 1)
}
