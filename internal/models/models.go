package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Thread is one conversation. Deleting a thread cascades to its
// messages and documents (and transitively their embeddings).
type Thread struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const DefaultThreadTitle = "New Conversation"

// Message is a single immutable turn in a thread.
type Message struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ThreadID        uuid.UUID       `json:"thread_id" db:"thread_id"`
	Role            string          `json:"role" db:"role"`
	Content         string          `json:"content" db:"content"`
	ToolInvocations json.RawMessage `json:"tool_invocations,omitempty" db:"tool_invocations"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleFunction  = "function"
	RoleSystem    = "system"
	RoleData      = "data"
)

var validRoles = map[string]bool{
	RoleUser:      true,
	RoleAssistant: true,
	RoleTool:      true,
	RoleFunction:  true,
	RoleSystem:    true,
	RoleData:      true,
}

// ValidRole reports whether role belongs to the closed role enumeration.
func ValidRole(role string) bool {
	return validRoles[role]
}

// Document is uploaded or pasted content attached to a thread.
type Document struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ThreadID  uuid.UUID `json:"thread_id" db:"thread_id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	FileType  string    `json:"file_type" db:"file_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	FileTypePlainText = "text/plain"
	FileTypeMarkdown  = "text/markdown"
	FileTypeCSV       = "text/csv"
	FileTypeJSON      = "application/json"
	FileTypePDF       = "application/pdf"
)

var validFileTypes = map[string]bool{
	FileTypePlainText: true,
	FileTypeMarkdown:  true,
	FileTypeCSV:       true,
	FileTypeJSON:      true,
	FileTypePDF:       true,
}

// ValidFileType reports whether fileType is an accepted document type.
func ValidFileType(fileType string) bool {
	return validFileTypes[fileType]
}

// Embedding is one vectorized chunk of a document. ThreadID is
// denormalized from the owning document for query-time filtering.
type Embedding struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	ThreadID   uuid.UUID `json:"thread_id" db:"thread_id"`
	Content    string    `json:"content" db:"content"`
	Vector     []float32 `json:"-" db:"embedding"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
