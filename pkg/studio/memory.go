package studio

import (
	"context"
	"sync"
)

// MemoryDocument is an in-process Document intended for tests and examples.
// Failure injection fields let callers simulate a lost host integration.
type MemoryDocument struct {
	mu        sync.RWMutex
	layouts   []Layout
	variables []Variable
	private   map[string]PrivateData

	// ReadErr, when set, is returned by Layouts and Variables.
	ReadErr error
	// GetErr, when set, is returned by PrivateData.
	GetErr error
	// SetErr, when set, is returned by SetPrivateData.
	SetErr error
}

func NewMemoryDocument(layouts []Layout, variables []Variable) *MemoryDocument {
	return &MemoryDocument{
		layouts:   append([]Layout(nil), layouts...),
		variables: append([]Variable(nil), variables...),
		private:   map[string]PrivateData{},
	}
}

func (d *MemoryDocument) Layouts(_ context.Context) ([]Layout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ReadErr != nil {
		return nil, d.ReadErr
	}
	return append([]Layout(nil), d.layouts...), nil
}

func (d *MemoryDocument) Variables(_ context.Context) ([]Variable, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.ReadErr != nil {
		return nil, d.ReadErr
	}
	out := make([]Variable, len(d.variables))
	for i, v := range d.variables {
		v.Items = append([]ListItem(nil), v.Items...)
		out[i] = v
	}
	return out, nil
}

// SetVariableValue updates the value of a variable, returning false when the
// id is unknown.
func (d *MemoryDocument) SetVariableValue(id, value string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.variables {
		if d.variables[i].ID == id {
			d.variables[i].Value = value
			return true
		}
	}
	return false
}

func (d *MemoryDocument) PrivateData(_ context.Context, documentID string) (PrivateData, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.GetErr != nil {
		return nil, d.GetErr
	}
	data, ok := d.private[documentID]
	if !ok {
		return PrivateData{}, nil
	}
	return data.Clone(), nil
}

func (d *MemoryDocument) SetPrivateData(_ context.Context, documentID string, data PrivateData) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SetErr != nil {
		return d.SetErr
	}
	if d.private == nil {
		d.private = map[string]PrivateData{}
	}
	d.private[documentID] = data.Clone()
	return nil
}
