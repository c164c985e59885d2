package buildinfo

import (
	"testing"
)

func TestContext_Version(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2023-01-01", "abc"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.0.0", "2023-01-01", "abc"), want: "1.0.0"},
		{name: "version with pre-release tag", ctx: NewContext("1.0.0-beta.1", "", ""), want: "1.0.0-beta.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ctx.Version(); got != tt.want {
				t.Errorf("Context.Version() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContext_BuildDateAndRevision(t *testing.T) {
	var nilCtx *Context
	if got := nilCtx.BuildDate(); got != UnknownValue {
		t.Errorf("nil BuildDate() = %v, want %v", got, UnknownValue)
	}
	if got := nilCtx.Revision(); got != UnknownValue {
		t.Errorf("nil Revision() = %v, want %v", got, UnknownValue)
	}

	ctx := NewContext("1.0.0", "2023-01-01", "")
	if got := ctx.BuildDate(); got != "2023-01-01" {
		t.Errorf("BuildDate() = %v, want 2023-01-01", got)
	}
	if got := ctx.Revision(); got != UnknownValue {
		t.Errorf("Revision() = %v, want %v", got, UnknownValue)
	}
}

func TestContext_Release(t *testing.T) {
	if got := NewContext("2.1.0", "", "").Release(); got != "hazardwatch@2.1.0" {
		t.Errorf("Release() = %v", got)
	}
	if got := NewContext("", "", "").Release(); got != "hazardwatch@unknown" {
		t.Errorf("Release() = %v", got)
	}
}

func TestContext_String(t *testing.T) {
	want := "hazardwatch 1.0.0 (built 2023-01-01, revision abc)"
	if got := NewContext("1.0.0", "2023-01-01", "abc").String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
