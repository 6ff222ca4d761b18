package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseContact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		address     string
		wantKind    ContactKind
		wantDest    string
		expectError bool
	}{
		{name: "email", address: "winner@example.com", wantKind: ContactKindEmail, wantDest: "winner@example.com"},
		{name: "email with surrounding space", address: "  winner@example.com ", wantKind: ContactKindEmail, wantDest: "winner@example.com"},
		{name: "discord user", address: "discord:123456789012345678", wantKind: ContactKindDiscord, wantDest: "123456789012345678"},
		{name: "discord non numeric", address: "discord:someone", expectError: true},
		{name: "discord too short", address: "discord:1234", expectError: true},
		{name: "not an email", address: "call me maybe", expectError: true},
		{name: "empty", address: "   ", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			kind, dest, err := ParseContact(tt.address)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantDest, dest)
		})
	}
}
