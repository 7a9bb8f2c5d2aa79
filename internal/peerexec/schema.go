package peerexec

import (
	"embed"
	"fmt"
	"os"

	"github.com/local/assistantbridge/internal/store"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

// schemaFor selects the output schema by message type, per spec.md §4.8.
func schemaFor(messageType store.MessageType) ([]byte, error) {
	name := "general.json"
	switch messageType {
	case store.MessageTypeResearchRequest:
		name = "research.json"
	case store.MessageTypeReviewRequest:
		name = "review.json"
	}
	return schemaFiles.ReadFile("schemas/" + name)
}

// writeSchemaFile materialises the selected schema to a temp file so it can
// be passed as a --output-schema path to the child process; the caller is
// responsible for removing the returned path.
func writeSchemaFile(messageType store.MessageType) (string, error) {
	contents, err := schemaFor(messageType)
	if err != nil {
		return "", fmt.Errorf("load schema: %w", err)
	}

	f, err := os.CreateTemp("", "assistantbridge-schema-*.json")
	if err != nil {
		return "", fmt.Errorf("create schema temp file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(contents); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write schema temp file: %w", err)
	}
	return f.Name(), nil
}
