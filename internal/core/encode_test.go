package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeEventKeepsEmptyArrays(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"init with empty window", Event{Kind: EventInit, Messages: []Message{}}, `{"type":"init","messages":[]}`},
		{"init without messages", Event{Kind: EventInit}, `{"type":"init","messages":[]}`},
		{"user list without users", Event{Kind: EventUserList}, `{"type":"user_list","users":[]}`},
		{"pong", Event{Kind: EventPong}, `{"type":"pong"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := EncodeEvent(tt.ev)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, string(payload))
		})
	}
}
