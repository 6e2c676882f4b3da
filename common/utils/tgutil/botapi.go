package tgutil

import (
	"time"

	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

// BotAPIUpdate is the subset of a webhook update the relay reads.
type BotAPIUpdate struct {
	UpdateID          int64          `json:"update_id"`
	Message           *BotAPIMessage `json:"message,omitempty"`
	ChannelPost       *BotAPIMessage `json:"channel_post,omitempty"`
	EditedMessage     *BotAPIMessage `json:"edited_message,omitempty"`
	EditedChannelPost *BotAPIMessage `json:"edited_channel_post,omitempty"`
}

// Incoming returns the new message of the update, ignoring edits.
func (u BotAPIUpdate) Incoming() *BotAPIMessage {
	if u.Message != nil {
		return u.Message
	}
	return u.ChannelPost
}

type BotAPIUser struct {
	ID int64 `json:"id"`
}

type BotAPIChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type BotAPIEntity struct {
	Type   string      `json:"type"`
	Offset int         `json:"offset"`
	Length int         `json:"length"`
	URL    string      `json:"url,omitempty"`
	User   *BotAPIUser `json:"user,omitempty"`
}

type BotAPIFile struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size,omitempty"`
}

type BotAPIMessage struct {
	MessageID       int            `json:"message_id"`
	From            *BotAPIUser    `json:"from,omitempty"`
	SenderChat      *BotAPIChat    `json:"sender_chat,omitempty"`
	Chat            BotAPIChat     `json:"chat"`
	Date            int64          `json:"date"`
	Text            string         `json:"text,omitempty"`
	Caption         string         `json:"caption,omitempty"`
	Entities        []BotAPIEntity `json:"entities,omitempty"`
	CaptionEntities []BotAPIEntity `json:"caption_entities,omitempty"`
	ForwardOrigin   map[string]any `json:"forward_origin,omitempty"`
	ForwardDate     int64          `json:"forward_date,omitempty"`
	ReplyMarkup     *struct{}      `json:"reply_markup,omitempty"`
	Photo           []BotAPIFile   `json:"photo,omitempty"`
	Video           *BotAPIFile    `json:"video,omitempty"`
	Audio           *BotAPIFile    `json:"audio,omitempty"`
	Document        *BotAPIFile    `json:"document,omitempty"`
	Voice           *BotAPIFile    `json:"voice,omitempty"`
	VideoNote       *BotAPIFile    `json:"video_note,omitempty"`
	Sticker         *BotAPIFile    `json:"sticker,omitempty"`
	Animation       *BotAPIFile    `json:"animation,omitempty"`
}

// ToMessage converts a webhook message. Raw stays nil; copy emission fetches it over MTProto.
func (m BotAPIMessage) ToMessage() types.Message {
	sender := m.Chat.ID
	switch {
	case m.From != nil:
		sender = m.From.ID
	case m.SenderChat != nil:
		sender = m.SenderChat.ID
	}
	text, ents := m.Text, m.Entities
	if text == "" {
		text, ents = m.Caption, m.CaptionEntities
	}
	kind, size := m.media()
	out := types.Message{
		ChatID:            m.Chat.ID,
		ID:                m.MessageID,
		SenderID:          sender,
		Text:              text,
		Media:             kind,
		Forwarded:         m.ForwardOrigin != nil || m.ForwardDate != 0,
		HasInlineKeyboard: m.ReplyMarkup != nil,
		Size:              size,
		Date:              time.Unix(m.Date, 0).UTC(),
	}
	for _, e := range ents {
		ent := types.Entity{Kind: types.EntityOther, Offset: e.Offset, Length: e.Length, URL: e.URL}
		switch e.Type {
		case "mention":
			ent.Kind = types.EntityMention
		case "text_mention":
			ent.Kind = types.EntityTextMention
			if e.User != nil {
				ent.UserID = e.User.ID
			}
		case "url":
			ent.Kind = types.EntityURL
		case "text_link":
			ent.Kind = types.EntityTextLink
		}
		out.Entities = append(out.Entities, ent)
	}
	return out
}

func (m BotAPIMessage) media() (types.MediaKind, int64) {
	// animations also carry a document field, so they are checked first
	switch {
	case m.Animation != nil:
		return types.MediaAnimation, m.Animation.FileSize
	case m.Sticker != nil:
		return types.MediaSticker, m.Sticker.FileSize
	case len(m.Photo) > 0:
		return types.MediaPhoto, m.Photo[len(m.Photo)-1].FileSize
	case m.Video != nil:
		return types.MediaVideo, m.Video.FileSize
	case m.VideoNote != nil:
		return types.MediaVideoNote, m.VideoNote.FileSize
	case m.Voice != nil:
		return types.MediaVoice, m.Voice.FileSize
	case m.Audio != nil:
		return types.MediaAudio, m.Audio.FileSize
	case m.Document != nil:
		return types.MediaDocument, m.Document.FileSize
	}
	return types.MediaText, 0
}
