package types_test

import (
	"encoding/json"
	"testing"

	assert "github.com/stretchr/testify/assert"
	require "github.com/stretchr/testify/require"

	types "github.com/agentmesh/a2a-go/types"
)

func TestUnmarshalPart(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantType types.PartType
		wantErr  bool
	}{
		{
			name:     "text part",
			input:    `{"type":"text","text":"tell me a joke"}`,
			wantType: types.PartTypeText,
		},
		{
			name:     "file part with uri",
			input:    `{"type":"file","file":{"name":"report.pdf","mimeType":"application/pdf","uri":"https://example.com/report.pdf"}}`,
			wantType: types.PartTypeFile,
		},
		{
			name:     "data part",
			input:    `{"type":"data","data":{"answer":42}}`,
			wantType: types.PartTypeData,
		},
		{
			name:    "unknown type tag",
			input:   `{"type":"video","uri":"https://example.com/clip.mp4"}`,
			wantErr: true,
		},
		{
			name:    "missing type tag",
			input:   `{"text":"orphan"}`,
			wantErr: true,
		},
		{
			name:    "text part without text field",
			input:   `{"type":"text"}`,
			wantErr: true,
		},
		{
			name:    "file part without file field",
			input:   `{"type":"file"}`,
			wantErr: true,
		},
		{
			name:    "data part without data field",
			input:   `{"type":"data"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := types.UnmarshalPart([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, part.Type)
		})
	}
}

func TestPartRoundTrip(t *testing.T) {
	original := types.CreateTextPart("hello", map[string]any{"lang": "en"})

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded types.Part
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, types.PartTypeText, decoded.Type)
	require.NotNil(t, decoded.Text)
	assert.Equal(t, "hello", *decoded.Text)
	assert.Equal(t, "en", decoded.Metadata["lang"])
	assert.Nil(t, decoded.File)
	assert.Nil(t, decoded.Data)
}

func TestMessageUnmarshalTypedParts(t *testing.T) {
	input := `{
		"role": "user",
		"parts": [
			{"type": "text", "text": "analyze this"},
			{"type": "data", "data": {"rows": 3}}
		],
		"metadata": {"trace": "abc"}
	}`

	var msg types.Message
	require.NoError(t, json.Unmarshal([]byte(input), &msg))

	assert.Equal(t, types.MessageRoleUser, msg.Role)
	require.Len(t, msg.Parts, 2)
	assert.Equal(t, types.PartTypeText, msg.Parts[0].Type)
	assert.Equal(t, types.PartTypeData, msg.Parts[1].Type)
	assert.Equal(t, "abc", msg.Metadata["trace"])
}

func TestMessageUnmarshalRejectsBadPart(t *testing.T) {
	input := `{"role":"user","parts":[{"type":"hologram"}]}`

	var msg types.Message
	err := json.Unmarshal([]byte(input), &msg)
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	msg := types.NewUserMessage(
		types.CreateTextPart("first"),
		types.CreateDataPart(map[string]any{"skip": true}),
		types.CreateTextPart("second"),
	)

	assert.Equal(t, "first\nsecond", types.ExtractText(msg))
}

func TestTaskStateIsFinal(t *testing.T) {
	tests := []struct {
		state types.TaskState
		final bool
	}{
		{types.TaskStateSubmitted, false},
		{types.TaskStateWorking, false},
		{types.TaskStateInputRequired, false},
		{types.TaskStateCompleted, true},
		{types.TaskStateCanceled, true},
		{types.TaskStateFailed, true},
		{types.TaskStateUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.final, tt.state.IsFinal())
		})
	}
}
