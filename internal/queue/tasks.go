package queue

const (
	TypeDocumentIngest = "document:ingest"
	TypeThreadName     = "thread:name"
)

// DocumentIngestPayload carries an uploaded document to the ingest
// worker. Content is the already-extracted text.
type DocumentIngestPayload struct {
	ThreadID string `json:"thread_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	FileType string `json:"file_type"`
}

// ThreadNamePayload asks the naming worker to title a thread from its
// first user message.
type ThreadNamePayload struct {
	ThreadID     string `json:"thread_id"`
	FirstMessage string `json:"first_message"`
}
