package layoutmap

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCodecDecodeNilIsFirstUse(t *testing.T) {
	result, err := NewCodec().Decode(nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.FirstUse {
		t.Fatalf("expected FirstUse")
	}
	if maps := result.Maps(); maps == nil || len(maps) != 0 {
		t.Fatalf("expected empty non-nil maps, got %#v", maps)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	maps := fixtureMaps()
	maps[0].ImageVariables = append(maps[0].ImageVariables, ImageVariable{
		ID: "badge",
		DependentGroups: []DependentGroup{
			NewDependentGroup(
				Literal("badges/"),
				RefTo("tier", RefText, TransformCommand{Find: "\\s+", Replace: "_", ReplaceAll: true, Regex: true}),
				NewListRef(),
				Literal(".png"),
			),
		},
	})

	encoded, err := codec.Encode(maps)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	result, err := codec.Decode(&encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.FirstUse || result.Envelope.Version != CurrentVersion {
		t.Fatalf("unexpected result flags: %+v", result)
	}
	if diff := cmp.Diff(maps, result.Maps(), equateEmpty); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	again, err := codec.Encode(result.Maps())
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if again != encoded {
		t.Fatalf("expected deterministic encoding:\n%s\n%s", encoded, again)
	}
}

func TestCodecWireShape(t *testing.T) {
	encoded, err := NewCodec().Encode([]LayoutMap{{
		ID:        "m1",
		LayoutIDs: []string{"L1"},
		ImageVariables: []ImageVariable{{
			ID:              "hero",
			DependentGroups: []DependentGroup{NewDependentGroup(Literal("a"), NewListRef())},
		}},
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"layoutMaps":[{"id":"m1","layoutIds":["L1"],"imageVariables":[{"id":"hero","dependentGroup":[{"variableValue":["a",{"id":null,"type":"StudioList","transform":[]}]}]}]}],"version":1}`
	if encoded != want {
		t.Fatalf("unexpected wire shape:\nwant %s\n got %s", want, encoded)
	}
}

func TestCodecDecodeErrors(t *testing.T) {
	cases := []struct {
		name   string
		raw    string
		expect string
	}{
		{name: "invalid json", raw: `{"layoutMaps":`, expect: "hydrate: parse"},
		{name: "array payload", raw: `[]`, expect: "hydrate: parse"},
		{name: "null payload", raw: `null`, expect: "payload is nil"},
		{name: "missing layoutMaps", raw: `{"version":1}`, expect: `missing "layoutMaps"`},
		{name: "layoutMaps not array", raw: `{"layoutMaps":{}}`, expect: "must be an array"},
		{name: "unknown reference type", raw: `{"layoutMaps":[{"id":"m","layoutIds":[],"imageVariables":[{"id":"v","dependentGroup":[{"variableValue":[{"id":"x","type":"ConfigString"}]}]}]}]}`, expect: "unknown variable value"},
		{name: "numeric value", raw: `{"layoutMaps":[{"id":"m","layoutIds":[],"imageVariables":[{"id":"v","dependentGroup":[{"variableValue":[42]}]}]}]}`, expect: "unknown variable value"},
		{name: "bad dependents", raw: `{"layoutMaps":[{"id":"m","imageVariables":[{"id":"v","dependents":"x"}]}]}`, expect: "dependents must be an array"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			raw := tc.raw
			_, err := NewCodec().Decode(&raw)
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) || decodeErr.Raw != raw {
				t.Fatalf("expected DecodeError carrying the raw payload, got %#v", err)
			}
			if !strings.Contains(err.Error(), tc.expect) {
				t.Fatalf("expected error containing %q, got %v", tc.expect, err)
			}
		})
	}
}

func TestCodecUpgradesLegacyDependents(t *testing.T) {
	raw := `{
		"version": 1,
		"layoutMaps": [{
			"id": "m1",
			"layoutIds": ["L1"],
			"imageVariables": [
				{"id": "hero", "dependents": [
					{"variableId": "size", "values": ["s", "m"]},
					{"variableId": "", "values": []},
					{"variableId": "color", "values": ["red"]}
				]},
				{"id": "logo", "dependentGroup": [{"variableValue": ["x"]}], "dependents": [
					{"variableId": "tier", "values": []}
				]},
				{"id": "plain", "dependentGroup": [], "dependents": null}
			]
		}]
	}`

	result, err := NewCodec().Decode(&raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Upgraded != 2 {
		t.Fatalf("expected 2 upgraded image variables, got %d", result.Upgraded)
	}
	if result.DroppedValues != 3 {
		t.Fatalf("expected 3 dropped legacy values, got %d", result.DroppedValues)
	}

	want := []LayoutMap{{
		ID:        "m1",
		LayoutIDs: []string{"L1"},
		ImageVariables: []ImageVariable{
			{ID: "hero", DependentGroups: []DependentGroup{
				NewDependentGroup(RefTo("size", RefList)),
				NewDependentGroup(RefTo("color", RefList)),
			}},
			{ID: "logo", DependentGroups: []DependentGroup{
				NewDependentGroup(Literal("x")),
				NewDependentGroup(RefTo("tier", RefList)),
			}},
			{ID: "plain"},
		},
	}}
	if diff := cmp.Diff(want, result.Maps(), equateEmpty); diff != "" {
		t.Fatalf("upgrade mismatch (-want +got):\n%s", diff)
	}

	encoded, err := NewCodec().Encode(result.Maps())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(encoded, "dependents") {
		t.Fatalf("expected legacy shape gone after upgrade, got %s", encoded)
	}
}

func TestCodecCollapsesDuplicateImageVariables(t *testing.T) {
	raw := `{"version":1,"layoutMaps":[{"id":"m1","layoutIds":[],"imageVariables":[
		{"id":"hero","dependentGroup":[{"variableValue":["old"]}]},
		{"id":"logo","dependentGroup":[]},
		{"id":"hero","dependentGroup":[{"variableValue":["new"]}]}
	]}]}`

	result, err := NewCodec().Decode(&raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	variables := result.Maps()[0].ImageVariables
	if len(variables) != 2 || variables[0].ID != "hero" || variables[1].ID != "logo" {
		t.Fatalf("expected hero then logo, got %+v", variables)
	}
	if diff := cmp.Diff([]VariableValue{Literal("new")}, variables[0].DependentGroups[0].Values); diff != "" {
		t.Fatalf("expected later duplicate to win (-want +got):\n%s", diff)
	}
}

func TestEnvelopeKeepsExtensions(t *testing.T) {
	codec := NewCodec()
	env, err := codec.DecodeEnvelope([]byte(`{"version":0,"layoutMaps":[],"theme":{"dark":true},"pinned":["a"]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Version != 0 || len(env.Extensions) != 2 {
		t.Fatalf("unexpected envelope %+v", env)
	}

	env.Version = CurrentVersion
	env.LayoutMaps = []LayoutMap{{ID: "m1"}}
	encoded, err := codec.EncodeEnvelope(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(encoded), &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(fields["theme"]) != `{"dark":true}` || string(fields["pinned"]) != `["a"]` {
		t.Fatalf("extensions lost: %s", encoded)
	}
	if string(fields["version"]) != "1" {
		t.Fatalf("expected version 1, got %s", fields["version"])
	}
}

func TestCodecRoundTripAfterCommands(t *testing.T) {
	store := loadedStore(t)
	ctx := context.Background()
	tier := "tier"

	steps := []func() error{
		func() error {
			_, err := store.AddLayoutMap(ctx, LayoutMap{ID: "m3"})
			return err
		},
		func() error { return store.SetLayoutIDs(ctx, "m2", []string{}) },
		func() error {
			return store.AddOrReplaceImageVariable(ctx, "m3", ImageVariable{ID: "badge", DependentGroups: []DependentGroup{{}}})
		},
		func() error {
			return store.AddValueToGroup(ctx, "m3", "badge", 0, &VariableRef{ID: &tier, Kind: RefText, Transform: []TransformCommand{}})
		},
		func() error { return store.InsertValueInGroup(ctx, "m3", "badge", 0, 0, &VariableRef{Kind: RefList}) },
		func() error { return store.AddGroup(ctx, "m1", "hero", DependentGroup{Values: []VariableValue{}}) },
		func() error { return store.RemoveValueFromGroup(ctx, "m1", "hero", 1, 0) },
		func() error {
			return store.UpdateValueInGroup(ctx, "m1", "hero", 0, 2, RefTo("color", RefText, TransformCommand{Find: " ", Replace: "-"}))
		},
		func() error { return store.ReorderValuesInGroup(ctx, "m1", "hero", 0, 2, 0) },
		func() error { return store.ReorderGroups(ctx, "m1", "hero", 2, 0) },
		func() error { return store.AddOrReplaceImageVariable(ctx, "m2", ImageVariable{ID: "empty"}) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	snapshot := store.Snapshot()
	codec := NewCodec()
	encoded, err := codec.Encode(snapshot)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	result, err := codec.Decode(&encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(snapshot, result.Maps()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !reflect.DeepEqual(snapshot, result.Maps()) {
		t.Fatalf("expected deep equality after round trip")
	}
}
