package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		failure Failure
		want    Category
	}{
		{
			name:    "websocket closure",
			failure: Failure{Message: "WebSocket closed unexpectedly"},
			want:    ConnectionFailed,
		},
		{
			name:    "connection refused",
			failure: Failure{Message: "dial tcp: connection refused"},
			want:    ConnectionFailed,
		},
		{
			name:    "classification via code",
			failure: Failure{Message: "upstream gone", Code: "CONNECTION_FAILED"},
			want:    ConnectionFailed,
		},
		{
			name:    "media engine crash",
			failure: Failure{Message: "media engine crashed during startup"},
			want:    MediaEngineError,
		},
		{
			name:    "bare engine keyword",
			failure: Failure{Message: "engine init aborted"},
			want:    MediaEngineError,
		},
		{
			name:    "thumbnail generation",
			failure: Failure{Message: "thumbnail generation failed for segment 4"},
			want:    ThumbnailFailed,
		},
		{
			name:    "fetch failure",
			failure: Failure{Message: "fetch aborted: timeout"},
			want:    NetworkError,
		},
		{
			name:    "network outranks playback keywords",
			failure: Failure{Message: "network error during media load"},
			want:    NetworkError,
		},
		{
			name:    "playback stall",
			failure: Failure{Message: "video playback stalled at 00:42"},
			want:    MediaPlaybackError,
		},
		{
			name:    "case insensitive",
			failure: Failure{Message: "NETWORK TIMEOUT"},
			want:    NetworkError,
		},
		{
			name:    "no keyword match",
			failure: Failure{Message: "disk quota exceeded"},
			want:    Unknown,
		},
		{
			name:    "empty failure",
			failure: Failure{},
			want:    Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.failure))
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	f := Failure{Message: "websocket network media thumbnail engine"}

	first := Classify(f)
	for range 100 {
		assert.Equal(t, first, Classify(f))
	}

	// Several subsystems mentioned: the earliest keyword set wins.
	assert.Equal(t, ConnectionFailed, first)
}
