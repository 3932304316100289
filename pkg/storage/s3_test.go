package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordingKey(t *testing.T) {
	assert.Equal(t, "recordings/u1/note.m4a", RecordingKey("u1", "note.m4a"))
	// path traversal in the name is stripped to its base
	assert.Equal(t, "recordings/u1/evil.m4a", RecordingKey("u1", "../../evil.m4a"))
}

func TestContentTypeForFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"a.m4a", "audio/m4a"},
		{"a.MP3", "audio/mpeg"},
		{"a.wav", "audio/wav"},
		{"a.flac", "audio/flac"},
		{"a.unknown", DefaultAudioContentType},
		{"noext", DefaultAudioContentType},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ContentTypeForFilename(tt.filename), tt.filename)
	}
}
