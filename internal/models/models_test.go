package models_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"projecthub/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserDisplayName covers the fallbacks used when rendering transcripts.
func TestUserDisplayName(t *testing.T) {
	tests := []struct {
		name     string
		user     *models.User
		fallback uint
		want     string
	}{
		{name: "named user", user: &models.User{ID: 7, Name: "Mina"}, fallback: 7, want: "Mina"},
		{name: "empty name", user: &models.User{ID: 7}, fallback: 9, want: "user 7"},
		{name: "not loaded", user: nil, fallback: 9, want: "user 9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName(tt.fallback))
		})
	}
}

// TestChatMessageStructTags guards the wire names clients depend on.
func TestChatMessageStructTags(t *testing.T) {
	msgType := reflect.TypeOf(models.ChatMessage{})

	for field, tag := range map[string]string{
		"ID":        "id",
		"Content":   "content",
		"AuthorID":  "authorId",
		"ProjectID": "projectId",
		"CreatedAt": "createdAt",
	} {
		f, found := msgType.FieldByName(field)
		require.True(t, found, field)
		assert.Equal(t, tag, f.Tag.Get("json"), field)
	}

	idField, _ := msgType.FieldByName("ID")
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")
}

func TestRoomKey_Unmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    models.RoomKey
		wantErr bool
	}{
		{name: "string", input: `"42"`, want: "42"},
		{name: "number", input: `42`, want: "42"},
		{name: "trimmed string", input: `" abc "`, want: "abc"},
		{name: "null", input: `null`, want: ""},
		{name: "float", input: `4.5`, wantErr: true},
		{name: "object", input: `{"id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var k models.RoomKey
			err := json.Unmarshal([]byte(tt.input), &k)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, k)
		})
	}
}

func TestRoomKey_MarshalKeepsNumbersNumeric(t *testing.T) {
	data, err := json.Marshal(struct {
		A models.RoomKey `json:"a"`
		B models.RoomKey `json:"b"`
		C models.RoomKey `json:"c"`
	}{A: "42", B: "lobby", C: "007"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":42,"b":"lobby","c":"007"}`, string(data))
}

func TestRoomKey_ProjectID(t *testing.T) {
	id, err := models.RoomKey("42").ProjectID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, models.RoomKey("42"), models.RoomKeyFromProject(id))

	_, err = models.RoomKey("lobby").ProjectID()
	assert.Error(t, err)
}

func TestAIMessage_ErrorFlagOmittedOnSuccess(t *testing.T) {
	data, err := json.Marshal(models.AIMessage{
		ID:          "ai-1",
		AuthorID:    models.AIAuthorID,
		ProjectID:   "42",
		IsAIMessage: true,
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["isAIMessage"])
	assert.NotContains(t, decoded, "isError")
	assert.Equal(t, float64(42), decoded["projectId"])
}
