package layoutmap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goliatone/go-layoutmap/internal/hydrate"
)

// CurrentVersion is the envelope version written by Encode.
const CurrentVersion = 1

// Envelope is the persisted document. Top-level fields other than version
// and layoutMaps belong to other tools sharing the slot and are carried
// through untouched in Extensions.
type Envelope struct {
	Version    int
	LayoutMaps []LayoutMap
	Extensions map[string]json.RawMessage
}

var errMissingLayoutMaps = errors.New(`missing "layoutMaps"`)

// MarshalJSON writes the envelope with sorted keys.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(e.Extensions)+2)
	for key, raw := range e.Extensions {
		out[key] = raw
	}
	version, err := json.Marshal(e.Version)
	if err != nil {
		return nil, err
	}
	maps := e.LayoutMaps
	if maps == nil {
		maps = []LayoutMap{}
	}
	layoutMaps, err := json.Marshal(maps)
	if err != nil {
		return nil, err
	}
	out["version"] = version
	out["layoutMaps"] = layoutMaps
	return json.Marshal(out)
}

// UnmarshalJSON requires an object carrying a layoutMaps array. A missing
// version decodes as 0.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("envelope is null")
	}

	raw, ok := fields["layoutMaps"]
	if !ok {
		return errMissingLayoutMaps
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return fmt.Errorf(`"layoutMaps" must be an array, got %s`, string(trimmed))
	}
	var maps []LayoutMap
	if err := json.Unmarshal(trimmed, &maps); err != nil {
		return fmt.Errorf("layoutMaps: %w", err)
	}

	version := 0
	if rawVersion, ok := fields["version"]; ok {
		if err := json.Unmarshal(rawVersion, &version); err != nil {
			return fmt.Errorf("version: %w", err)
		}
	}

	delete(fields, "layoutMaps")
	delete(fields, "version")
	if len(fields) == 0 {
		fields = nil
	}

	e.Version = version
	e.LayoutMaps = maps
	e.Extensions = fields
	return nil
}

// DecodeResult is the outcome of Codec.Decode.
type DecodeResult struct {
	Envelope Envelope
	// FirstUse is set when nothing was stored yet.
	FirstUse bool
	// Upgraded counts image variables whose legacy dependents were
	// converted into groups.
	Upgraded int
	// DroppedValues counts legacy expected values the upgrade discarded.
	DroppedValues int
}

// Maps returns the decoded layout maps, never nil.
func (r DecodeResult) Maps() []LayoutMap {
	if r.Envelope.LayoutMaps == nil {
		return []LayoutMap{}
	}
	return r.Envelope.LayoutMaps
}

// Codec converts between layout maps and the persisted envelope string.
type Codec struct {
	source hydrate.Context
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithSource labels decode errors with where the payload came from.
func WithSource(documentID, key string) CodecOption {
	return func(c *Codec) {
		c.source = hydrate.Context{DocumentID: documentID, Key: key}
	}
}

func NewCodec(opts ...CodecOption) *Codec {
	c := &Codec{source: hydrate.Context{Key: DefaultStorageKey}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Decode parses a stored payload. A nil payload means the document has never
// been configured: the result is empty with FirstUse set. Anything that is
// not a valid envelope yields a *DecodeError and no state.
func (c *Codec) Decode(raw *string) (DecodeResult, error) {
	if raw == nil {
		return DecodeResult{Envelope: Envelope{Version: CurrentVersion, LayoutMaps: []LayoutMap{}}, FirstUse: true}, nil
	}
	env, upgraded, err := c.decode([]byte(*raw))
	if err != nil {
		return DecodeResult{}, &DecodeError{Raw: *raw, Err: err}
	}
	return DecodeResult{Envelope: env, Upgraded: upgraded.Variables, DroppedValues: upgraded.DroppedValues}, nil
}

// DecodeEnvelope decodes raw bytes, reporting failures as *DecodeError.
func (c *Codec) DecodeEnvelope(raw []byte) (Envelope, error) {
	env, _, err := c.decode(raw)
	if err != nil {
		return Envelope{}, &DecodeError{Raw: string(raw), Err: err}
	}
	return env, nil
}

func (c *Codec) decode(raw []byte) (Envelope, legacyUpgrade, error) {
	var upgraded legacyUpgrade
	decoder := hydrate.NewDecoder[Envelope](
		hydrate.WithPreHook[Envelope](func(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
			n, err := upgradeLegacyDependents(payload)
			upgraded = n
			return payload, err
		}),
		hydrate.WithPostHook[Envelope](collapseDuplicateVariables),
		hydrate.WithPostHook[Envelope](func(_ hydrate.Context, env *Envelope) error {
			env.LayoutMaps = canonicalMaps(env.LayoutMaps)
			return nil
		}),
	)
	env, err := decoder.DecodeBytes(c.source, raw)
	if err != nil {
		return Envelope{}, legacyUpgrade{}, err
	}
	return env, upgraded, nil
}

// Encode serializes maps into a fresh envelope at CurrentVersion.
func (c *Codec) Encode(maps []LayoutMap) (string, error) {
	return c.EncodeEnvelope(Envelope{Version: CurrentVersion, LayoutMaps: maps})
}

// EncodeEnvelope serializes env. The output is deterministic for equal input.
func (c *Codec) EncodeEnvelope(env Envelope) (string, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("layoutmap: encode envelope: %w", err)
	}
	return string(raw), nil
}

// collapseDuplicateVariables keeps one image variable per id within a map.
// A later duplicate replaces the earlier one in place, as an add-or-replace
// would have.
func collapseDuplicateVariables(_ hydrate.Context, env *Envelope) error {
	for mi := range env.LayoutMaps {
		m := &env.LayoutMaps[mi]
		if len(m.ImageVariables) < 2 {
			continue
		}
		index := make(map[string]int, len(m.ImageVariables))
		out := m.ImageVariables[:0:0]
		for _, v := range m.ImageVariables {
			if i, ok := index[v.ID]; ok {
				out[i] = v
				continue
			}
			index[v.ID] = len(out)
			out = append(out, v)
		}
		m.ImageVariables = out
	}
	return nil
}
