package types

import (
	"fmt"
	"time"
)

type MediaKind string

const (
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAudio     MediaKind = "audio"
	MediaDocument  MediaKind = "document"
	MediaVoice     MediaKind = "voice"
	MediaVideoNote MediaKind = "video_note"
	MediaSticker   MediaKind = "sticker"
	MediaAnimation MediaKind = "animation"
	MediaText      MediaKind = "text"
)

var MediaKinds = []MediaKind{
	MediaPhoto, MediaVideo, MediaAudio, MediaDocument, MediaVoice,
	MediaVideoNote, MediaSticker, MediaAnimation, MediaText,
}

func ParseMediaKind(s string) (MediaKind, error) {
	for _, k := range MediaKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown media kind: %s", s)
}

type EntityKind string

const (
	EntityMention     EntityKind = "mention"
	EntityTextMention EntityKind = "text_mention"
	EntityURL         EntityKind = "url"
	EntityTextLink    EntityKind = "text_link"
	EntityOther       EntityKind = "other"
)

type Entity struct {
	Kind   EntityKind
	Offset int
	Length int
	URL    string
	UserID int64
}

// Message is the platform-neutral view of an observed message.
// ChatID uses the Bot API convention: channels and supergroups carry the -100 prefix.
type Message struct {
	ChatID            int64
	ID                int
	SenderID          int64
	Text              string // text body or media caption
	Media             MediaKind
	Entities          []Entity
	Forwarded         bool
	HasInlineKeyboard bool
	Size              int64
	Date              time.Time

	// TenantID is set when the message was observed through a tenant's user session.
	TenantID int64

	// Raw holds the platform-native message when available (e.g. *tg.Message).
	Raw any
}

func (m Message) Key() string {
	return fmt.Sprintf("%d:%d", m.ChatID, m.ID)
}

func (m Message) String() string {
	return fmt.Sprintf("[%d:%d]:%s", m.ChatID, m.ID, m.Media)
}

type JobKind string

const (
	JobForward JobKind = "forward"
	JobCopy    JobKind = "copy"
)

func (k JobKind) Valid() bool {
	return k == JobForward || k == JobCopy
}

type ChatKind string

const (
	ChatPrivate    ChatKind = "private"
	ChatSupergroup ChatKind = "supergroup_or_channel"
	ChatGroup      ChatKind = "group"
)
