package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns: SQL/NoSQL fragments that should never appear in a user query.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // NoSQL operator injection
}

const maxQueryLength = 2000

// ValidateQuery validates a user question before it enters the retrieval or
// agent layer. An empty query is valid here: retrieval treats it as no-match
// rather than an error.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)

	if utf8.RuneCountInString(text) > maxQueryLength {
		return NewValidationError("text", string([]rune(text)[:32])+"...", ErrQueryTooLong)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}

	return nil
}

// ValidateChunk checks that an ingested chunk is storable.
func ValidateChunk(c Chunk) error {
	if c.ID == "" {
		return NewValidationError("id", c.ID, ErrInvalidQuery)
	}
	if strings.TrimSpace(c.Text) == "" {
		return NewValidationError("text", c.ID, ErrInvalidQuery)
	}
	if c.Metadata.DoorCategory != "" && !ValidDoorCategories[c.Metadata.DoorCategory] {
		return NewValidationError("door_category", string(c.Metadata.DoorCategory), ErrInvalidQuery)
	}
	if c.Metadata.DoorType != "" && !ValidDoorTypes[c.Metadata.DoorType] {
		return NewValidationError("door_type", string(c.Metadata.DoorType), ErrInvalidQuery)
	}
	if c.Metadata.ContentType != "" && !ValidContentTypes[c.Metadata.ContentType] {
		return NewValidationError("content_type", string(c.Metadata.ContentType), ErrInvalidQuery)
	}
	return nil
}
