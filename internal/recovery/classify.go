package recovery

import "strings"

// Category is the closed set of failure classifications.
type Category string

const (
	ConnectionFailed   Category = "CONNECTION_FAILED"
	MediaEngineError   Category = "MEDIA_ENGINE_ERROR"
	ThumbnailFailed    Category = "THUMBNAIL_FAILED"
	NetworkError       Category = "NETWORK_ERROR"
	MediaPlaybackError Category = "MEDIA_PLAYBACK_ERROR"
	Unknown            Category = "UNKNOWN"
)

// Failure is a raw failure signal from the connection, the media engine
// or the thumbnail pipeline.
type Failure struct {
	Message  string
	Code     string
	Context  map[string]any
	Critical bool
}

// keywordSet ties a category to the substrings that select it.
type keywordSet struct {
	category Category
	keywords []string
}

// classifyOrder is evaluated top to bottom; the first matching category
// wins. Matching is a heuristic case-insensitive substring search over
// message and code, so a failure mentioning several subsystems lands in
// whichever set comes first here.
var classifyOrder = []keywordSet{
	{ConnectionFailed, []string{"websocket", "connection", "connect"}},
	{MediaEngineError, []string{"media engine", "engine"}},
	{ThumbnailFailed, []string{"thumbnail"}},
	{NetworkError, []string{"network", "fetch", "offline"}},
	{MediaPlaybackError, []string{"playback", "media", "video"}},
}

// Classify maps a failure to exactly one category. Deterministic and
// total: the same message/code pair always yields the same category,
// and a failure matching no keyword set is Unknown.
func Classify(f Failure) Category {
	msg := strings.ToLower(f.Message)
	code := strings.ToLower(f.Code)

	for _, set := range classifyOrder {
		for _, kw := range set.keywords {
			if strings.Contains(msg, kw) || strings.Contains(code, kw) {
				return set.category
			}
		}
	}

	return Unknown
}
