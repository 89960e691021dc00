package simulation

import (
	"testing"
	"time"
)

func TestParameterNormalize(t *testing.T) {
	tests := []struct {
		name    string
		param   Parameter
		in      interface{}
		want    interface{}
		wantErr bool
	}{
		{"int from yaml", Parameter{Name: "n", Type: "integer", Min: 1, Max: 100}, 12, 12, false},
		{"int from string", Parameter{Name: "n", Type: "integer"}, "7", 7, false},
		{"int below min", Parameter{Name: "n", Type: "integer", Min: 2}, 1, nil, true},
		{"fractional int", Parameter{Name: "n", Type: "integer"}, 1.5, nil, true},
		{"float from int", Parameter{Name: "f", Type: "float"}, 3, 3.0, false},
		{"float above max", Parameter{Name: "f", Type: "float", Max: 1.0}, 1.5, nil, true},
		{"duration string", Parameter{Name: "d", Type: "duration"}, "90s", 90 * time.Second, false},
		{"bool string", Parameter{Name: "b", Type: "boolean"}, "true", true, false},
		{"option ok", Parameter{Name: "s", Type: "string", Options: []string{"circle", "grid"}}, "grid", "grid", false},
		{"option bad", Parameter{Name: "s", Type: "string", Options: []string{"circle"}}, "line", nil, true},
		{"unknown type", Parameter{Name: "x", Type: "vector"}, 1, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.param.Normalize(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("b", func() Simulation { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", func() Simulation { return nil }); err != nil {
		t.Fatal(err)
	}
	if err := r.Register("a", func() Simulation { return nil }); err == nil {
		t.Error("duplicate registration should fail")
	}
	if names := r.List(); len(names) != 2 || names[0] != "a" {
		t.Errorf("List = %v", names)
	}
	if !r.Has("b") || r.Has("c") {
		t.Error("Has mismatch")
	}
	if _, err := r.Get("c"); err == nil {
		t.Error("Get of unknown simulation should fail")
	}
}
