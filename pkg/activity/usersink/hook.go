// Package usersink records layoutmap edits in a go-users activity feed.
package usersink

import (
	"context"
	"strings"

	"github.com/goliatone/go-layoutmap/pkg/activity"
	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"
)

// Hook forwards layoutmap events to a go-users ActivitySink. ActivityRecord
// has no slots for the document or the edited location, so they travel in
// Data:
//
//	command   the edit command or "saved" / "loaded"
//	document  the document id
//	location  map_id, image_variable_id, group_index, value_index when set
//
// Remaining event metadata, such as map_count, is copied next to them.
type Hook struct {
	Sink usertypes.ActivitySink
	// IncludeLoads forwards layoutmap.loaded, emitted every time a document
	// is opened. It is dropped otherwise.
	IncludeLoads bool
}

// Notify forwards event. Events outside the layoutmap verb space or missing
// an object are ignored.
func (h Hook) Notify(ctx context.Context, event activity.Event) error {
	if h.Sink == nil {
		return nil
	}
	record, ok := h.record(activity.NormalizeEvent(event))
	if !ok {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return h.Sink.Log(ctx, record)
}

func (h Hook) record(event activity.Event) (usertypes.ActivityRecord, bool) {
	if event.ObjectType == "" || event.ObjectID == "" {
		return usertypes.ActivityRecord{}, false
	}
	command, ok := strings.CutPrefix(event.Verb, activity.VerbPrefix)
	if !ok || command == "" {
		return usertypes.ActivityRecord{}, false
	}
	if command == "loaded" && !h.IncludeLoads {
		return usertypes.ActivityRecord{}, false
	}

	return usertypes.ActivityRecord{
		ActorID:    parseUUID(event.ActorID),
		UserID:     parseUUID(event.UserID),
		TenantID:   parseUUID(event.TenantID),
		Verb:       event.Verb,
		ObjectType: event.ObjectType,
		ObjectID:   event.ObjectID,
		Channel:    event.Channel,
		Data:       recordData(command, event),
		OccurredAt: event.OccurredAt,
	}, true
}

func recordData(command string, event activity.Event) map[string]any {
	data := map[string]any{"command": command}
	if event.DocumentID != "" {
		data["document"] = event.DocumentID
	}

	location := map[string]any{}
	for _, key := range activity.LocationKeys {
		if value, ok := event.Metadata[key]; ok {
			location[key] = value
		}
	}
	if len(location) > 0 {
		data["location"] = location
	}

	for key, value := range event.Metadata {
		if _, isLocation := location[key]; isLocation {
			continue
		}
		if _, reserved := data[key]; reserved {
			continue
		}
		data[key] = value
	}
	return data
}

// parseUUID maps ids that are not UUIDs, including host user names, to
// uuid.Nil.
func parseUUID(input string) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(input))
	if err != nil {
		return uuid.Nil
	}
	return id
}
