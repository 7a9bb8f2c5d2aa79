package peerexec

import (
	"os"
	"strings"
	"testing"

	"github.com/local/assistantbridge/internal/store"
)

func TestSchemaForSelectsByMessageType(t *testing.T) {
	cases := []struct {
		messageType store.MessageType
		wantField   string
	}{
		{store.MessageTypeResearchRequest, `"findings"`},
		{store.MessageTypeReviewRequest, `"verdict"`},
		{store.MessageTypeMessage, `"response"`},
	}
	for _, tc := range cases {
		contents, err := schemaFor(tc.messageType)
		if err != nil {
			t.Fatalf("schemaFor(%s): %v", tc.messageType, err)
		}
		if !strings.Contains(string(contents), tc.wantField) {
			t.Errorf("schemaFor(%s) missing %s", tc.messageType, tc.wantField)
		}
	}
}

func TestWriteSchemaFileProducesReadableTempFile(t *testing.T) {
	path, err := writeSchemaFile(store.MessageTypeResearchRequest)
	if err != nil {
		t.Fatalf("writeSchemaFile: %v", err)
	}
	defer os.Remove(path)

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(contents) == 0 {
		t.Fatal("expected non-empty schema file")
	}
}
