package activity

import (
	"strings"
	"time"
)

// Object types carried by mapping events.
const (
	ObjectLayoutMaps    = "layout_maps"
	ObjectLayoutMap     = "layout_map"
	ObjectImageVariable = "image_variable"
)

// Verb prefix shared by every mapping event.
const VerbPrefix = "layoutmap."

// Metadata keys set by the event builders.
const (
	MetaMapID           = "map_id"
	MetaImageVariableID = "image_variable_id"
	MetaGroupIndex      = "group_index"
	MetaValueIndex      = "value_index"
	MetaMapCount        = "map_count"
)

// LocationKeys lists the metadata keys that address a place in the mapping
// tree, outermost first.
var LocationKeys = []string{MetaMapID, MetaImageVariableID, MetaGroupIndex, MetaValueIndex}

// MappingEventInput describes where a change happened. Index fields use -1
// for "not addressed".
type MappingEventInput struct {
	ActorID         string
	UserID          string
	TenantID        string
	DocumentID      string
	Command         string
	MapID           string
	ImageVariableID string
	GroupIndex      int
	ValueIndex      int
	Metadata        map[string]any
	OccurredAt      time.Time
}

// BuildCommandEvent builds the event for an applied edit command. The object
// is the image variable when one is addressed, the map otherwise.
func BuildCommandEvent(input MappingEventInput) Event {
	metadata := cloneMap(input.Metadata)
	objectType := ObjectLayoutMap
	objectID := strings.TrimSpace(input.MapID)
	if input.ImageVariableID != "" {
		objectType = ObjectImageVariable
		objectID = objectID + "/" + strings.TrimSpace(input.ImageVariableID)
		metadata = ensureMetadata(metadata)
		metadata[MetaImageVariableID] = input.ImageVariableID
	}
	if input.MapID != "" {
		metadata = ensureMetadata(metadata)
		metadata[MetaMapID] = input.MapID
	}
	if input.GroupIndex >= 0 {
		metadata = ensureMetadata(metadata)
		metadata[MetaGroupIndex] = input.GroupIndex
	}
	if input.ValueIndex >= 0 {
		metadata = ensureMetadata(metadata)
		metadata[MetaValueIndex] = input.ValueIndex
	}
	if objectID == "" {
		objectID = objectType
	}
	return buildEvent(VerbPrefix+strings.TrimSpace(input.Command), objectType, objectID, metadata, input)
}

// BuildLoadedEvent builds the event emitted when the store is primed.
func BuildLoadedEvent(input MappingEventInput, mapCount int) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	metadata[MetaMapCount] = mapCount
	return buildEvent(VerbPrefix+"loaded", ObjectLayoutMaps, documentObjectID(input), metadata, input)
}

// BuildSavedEvent builds the event emitted after a successful save.
func BuildSavedEvent(input MappingEventInput, mapCount int) Event {
	metadata := ensureMetadata(cloneMap(input.Metadata))
	metadata[MetaMapCount] = mapCount
	return buildEvent(VerbPrefix+"saved", ObjectLayoutMaps, documentObjectID(input), metadata, input)
}

func documentObjectID(input MappingEventInput) string {
	if id := strings.TrimSpace(input.DocumentID); id != "" {
		return id
	}
	return ObjectLayoutMaps
}

func buildEvent(verb, objectType, objectID string, metadata map[string]any, input MappingEventInput) Event {
	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		DocumentID: strings.TrimSpace(input.DocumentID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
