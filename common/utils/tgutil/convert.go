package tgutil

import (
	"time"

	"github.com/gotd/td/tg"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

// FromTG converts an MTProto message. Raw keeps the original for copy emission.
func FromTG(m *tg.Message) types.Message {
	chatID := ChatIDFromPeer(m.PeerID)
	sender := chatID
	if from, ok := m.GetFromID(); ok {
		sender = ChatIDFromPeer(from)
	}
	_, fwd := m.GetFwdFrom()
	_, inline := m.ReplyMarkup.(*tg.ReplyInlineMarkup)
	kind, size := MediaOf(m.Media)
	return types.Message{
		ChatID:            chatID,
		ID:                m.ID,
		SenderID:          sender,
		Text:              m.Message,
		Media:             kind,
		Entities:          entitiesOf(m.Entities),
		Forwarded:         fwd,
		HasInlineKeyboard: inline,
		Size:              size,
		Date:              time.Unix(int64(m.Date), 0).UTC(),
		Raw:               m,
	}
}

// MediaOf classifies media by its document attributes. Media without a
// file (polls, locations, link previews) counts as text.
func MediaOf(media tg.MessageMediaClass) (types.MediaKind, int64) {
	switch media := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := media.Photo.AsNotEmpty()
		if !ok {
			return types.MediaPhoto, 0
		}
		return types.MediaPhoto, largestPhotoSize(photo.Sizes)
	case *tg.MessageMediaDocument:
		doc, ok := media.Document.AsNotEmpty()
		if !ok {
			return types.MediaDocument, 0
		}
		return documentKind(doc.Attributes), doc.Size
	}
	return types.MediaText, 0
}

func documentKind(attrs []tg.DocumentAttributeClass) types.MediaKind {
	var sticker, animated, round, video, voice, audio bool
	for _, a := range attrs {
		switch a := a.(type) {
		case *tg.DocumentAttributeSticker:
			sticker = true
		case *tg.DocumentAttributeAnimated:
			animated = true
		case *tg.DocumentAttributeVideo:
			video = true
			round = a.RoundMessage
		case *tg.DocumentAttributeAudio:
			audio = true
			voice = a.Voice
		}
	}
	switch {
	case sticker:
		return types.MediaSticker
	case animated:
		return types.MediaAnimation
	case round:
		return types.MediaVideoNote
	case video:
		return types.MediaVideo
	case voice:
		return types.MediaVoice
	case audio:
		return types.MediaAudio
	}
	return types.MediaDocument
}

func largestPhotoSize(sizes []tg.PhotoSizeClass) int64 {
	var best int
	for _, s := range sizes {
		switch s := s.(type) {
		case *tg.PhotoSize:
			best = max(best, s.Size)
		case *tg.PhotoSizeProgressive:
			if n := len(s.Sizes); n > 0 {
				best = max(best, s.Sizes[n-1])
			}
		}
	}
	return int64(best)
}

func entitiesOf(in []tg.MessageEntityClass) []types.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]types.Entity, 0, len(in))
	for _, e := range in {
		ent := types.Entity{Kind: types.EntityOther, Offset: e.GetOffset(), Length: e.GetLength()}
		switch e := e.(type) {
		case *tg.MessageEntityMention:
			ent.Kind = types.EntityMention
		case *tg.MessageEntityMentionName:
			ent.Kind = types.EntityTextMention
			ent.UserID = e.UserID
		case *tg.InputMessageEntityMentionName:
			ent.Kind = types.EntityTextMention
		case *tg.MessageEntityURL:
			ent.Kind = types.EntityURL
		case *tg.MessageEntityTextURL:
			ent.Kind = types.EntityTextLink
			ent.URL = e.URL
		}
		out = append(out, ent)
	}
	return out
}
