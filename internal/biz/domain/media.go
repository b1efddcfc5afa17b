package domain

// MediaKind is the closed set of content kinds a whisper item can carry
type MediaKind string

const (
	MediaText     MediaKind = "text"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
)

// Valid reports whether the kind is one of the known variants
func (k MediaKind) Valid() bool {
	switch k {
	case MediaText, MediaPhoto, MediaVideo, MediaDocument, MediaAudio, MediaVoice:
		return true
	}
	return false
}

// Groupable reports whether items of this kind can be batched into one
// grouped delivery unit (album)
func (k MediaKind) Groupable() bool {
	return k == MediaPhoto || k == MediaVideo
}

// MediaItem is one ordered content element of a whisper
type MediaItem struct {
	Kind    MediaKind `json:"kind"`
	FileRef string    `json:"file_ref,omitempty"` // opaque transport content reference
	Caption string    `json:"caption,omitempty"`
	Text    string    `json:"text,omitempty"` // inline text, only for MediaText
}

// IsEmpty reports whether the item carries no content at all
func (m MediaItem) IsEmpty() bool {
	if m.Kind == MediaText {
		return m.Text == ""
	}
	return m.FileRef == ""
}

// TextItem builds an inline text item
func TextItem(text string) MediaItem {
	return MediaItem{Kind: MediaText, Text: text}
}

// HasContent reports whether the item list contains anything deliverable
func HasContent(items []MediaItem) bool {
	for _, item := range items {
		if !item.IsEmpty() {
			return true
		}
	}
	return false
}
