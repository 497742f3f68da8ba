package activity

import "testing"

func TestBuildCommandEventAddressesImageVariable(t *testing.T) {
	evt := BuildCommandEvent(MappingEventInput{
		DocumentID:      "0",
		Command:         "add_value_to_group",
		MapID:           "m1",
		ImageVariableID: "hero",
		GroupIndex:      2,
		ValueIndex:      -1,
	})

	if evt.Verb != "layoutmap.add_value_to_group" {
		t.Fatalf("unexpected verb %q", evt.Verb)
	}
	if evt.ObjectType != ObjectImageVariable || evt.ObjectID != "m1/hero" {
		t.Fatalf("unexpected object %s/%s", evt.ObjectType, evt.ObjectID)
	}
	if evt.Metadata["group_index"] != 2 || evt.Metadata["map_id"] != "m1" {
		t.Fatalf("unexpected metadata %+v", evt.Metadata)
	}
	if _, ok := evt.Metadata["value_index"]; ok {
		t.Fatalf("expected unaddressed value index to be omitted")
	}
}

func TestBuildCommandEventFallsBackToMapObject(t *testing.T) {
	evt := BuildCommandEvent(MappingEventInput{Command: "set_layout_ids", MapID: "m1", GroupIndex: -1, ValueIndex: -1})
	if evt.ObjectType != ObjectLayoutMap || evt.ObjectID != "m1" {
		t.Fatalf("unexpected object %s/%s", evt.ObjectType, evt.ObjectID)
	}

	evt = BuildCommandEvent(MappingEventInput{Command: "add_layout_map", GroupIndex: -1, ValueIndex: -1})
	if evt.ObjectID != ObjectLayoutMap {
		t.Fatalf("expected object id fallback, got %q", evt.ObjectID)
	}
}

func TestBuildLoadedAndSavedEvents(t *testing.T) {
	loaded := BuildLoadedEvent(MappingEventInput{DocumentID: "doc-7"}, 3)
	if loaded.Verb != "layoutmap.loaded" || loaded.ObjectID != "doc-7" || loaded.Metadata["map_count"] != 3 {
		t.Fatalf("unexpected loaded event %+v", loaded)
	}

	saved := BuildSavedEvent(MappingEventInput{}, 0)
	if saved.Verb != "layoutmap.saved" || saved.ObjectType != ObjectLayoutMaps || saved.ObjectID != ObjectLayoutMaps {
		t.Fatalf("unexpected saved event %+v", saved)
	}
}
