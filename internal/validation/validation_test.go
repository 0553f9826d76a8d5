package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  string
	}{
		{"valid", "Password123!", ""},
		{"too short", "Pa1!", "at least 12"},
		{"no upper", "password123!", "uppercase"},
		{"no lower", "PASSWORD123!", "lowercase"},
		{"no digit", "Passwordxxx!", "digit"},
		{"no special", "Password1234", "special"},
		{"too long", "Aa1!" + strings.Repeat("x", 130), "exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("tutor_01"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 31)))
	assert.Error(t, ValidateUsername("bad name"))
	assert.Error(t, ValidateUsername("_edge"))
	assert.Error(t, ValidateUsername("edge-"))
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("student@school.edu"))
	assert.Error(t, ValidateEmail("student@"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@x.com"))
}

func TestValidateRoomInput(t *testing.T) {
	assert.NoError(t, ValidateRoomTitle("Algebra revision"))
	assert.Error(t, ValidateRoomTitle("   "))
	assert.Error(t, ValidateRoomTitle(strings.Repeat("t", MaxRoomTitle+1)))

	assert.NoError(t, ValidateRoomDescription(""))
	assert.Error(t, ValidateRoomDescription(strings.Repeat("d", MaxRoomDescription+1)))

	assert.NoError(t, ValidateSubjectName("Physics"))
	assert.Error(t, ValidateSubjectName(""))
}

func TestValidateChatContent(t *testing.T) {
	assert.NoError(t, ValidateChatContent("hello"))
	assert.Error(t, ValidateChatContent(" \n\t"))
	assert.Error(t, ValidateChatContent(strings.Repeat("x", MaxChatMessage+1)))
}
