package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	MaxRoomTitle       = 100
	MaxRoomDescription = 500
	MaxSubjectName     = 50
	MaxChatMessage     = 2000
)

// ValidateRoomTitle requires a non-blank title of at most MaxRoomTitle characters.
func ValidateRoomTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > MaxRoomTitle {
		return fmt.Errorf("title must not exceed %d characters", MaxRoomTitle)
	}
	return nil
}

// ValidateRoomDescription bounds the description length.
func ValidateRoomDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxRoomDescription {
		return fmt.Errorf("description must not exceed %d characters", MaxRoomDescription)
	}
	return nil
}

// ValidateSubjectName requires a non-blank subject name of at most MaxSubjectName characters.
func ValidateSubjectName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("subject name is required")
	}
	if utf8.RuneCountInString(name) > MaxSubjectName {
		return fmt.Errorf("subject name must not exceed %d characters", MaxSubjectName)
	}
	return nil
}

// ValidateChatContent requires non-blank content of at most MaxChatMessage characters.
func ValidateChatContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxChatMessage {
		return fmt.Errorf("message must not exceed %d characters", MaxChatMessage)
	}
	return nil
}
