package tgsender

import (
	"github.com/gotd/td/tg"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
)

// InputMedia maps received media to a re-sendable reference. Media without a
// file (webpage previews, polls, locations) yields nil and is sent as text.
func InputMedia(media tg.MessageMediaClass) tg.InputMediaClass {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		if m.Photo == nil {
			return nil
		}
		p, ok := m.Photo.AsNotEmpty()
		if !ok {
			return nil
		}
		return &tg.InputMediaPhoto{
			ID: &tg.InputPhoto{ID: p.ID, AccessHash: p.AccessHash, FileReference: p.FileReference},
		}
	case *tg.MessageMediaDocument:
		if m.Document == nil {
			return nil
		}
		d, ok := m.Document.AsNotEmpty()
		if !ok {
			return nil
		}
		return &tg.InputMediaDocument{
			ID: &tg.InputDocument{ID: d.ID, AccessHash: d.AccessHash, FileReference: d.FileReference},
		}
	}
	return nil
}

// Markup lays out one button per row.
func Markup(buttons []types.Button) *tg.ReplyInlineMarkup {
	rows := make([]tg.KeyboardButtonRow, 0, len(buttons))
	for _, b := range buttons {
		var btn tg.KeyboardButtonClass
		switch {
		case b.URL != "":
			btn = &tg.KeyboardButtonURL{Text: b.Text, URL: b.URL}
		default:
			btn = &tg.KeyboardButtonCallback{Text: b.Text, Data: []byte(b.CallbackData)}
		}
		rows = append(rows, tg.KeyboardButtonRow{Buttons: []tg.KeyboardButtonClass{btn}})
	}
	return &tg.ReplyInlineMarkup{Rows: rows}
}

// SentID extracts the id of the message created by a send with randomID.
func SentID(upd tg.UpdatesClass, randomID int64) int {
	switch u := upd.(type) {
	case *tg.UpdateShortSentMessage:
		return u.ID
	case *tg.Updates:
		return idFromUpdates(u.Updates, randomID)
	case *tg.UpdatesCombined:
		return idFromUpdates(u.Updates, randomID)
	}
	return 0
}

func idFromUpdates(updates []tg.UpdateClass, randomID int64) int {
	for _, u := range updates {
		if m, ok := u.(*tg.UpdateMessageID); ok && m.RandomID == randomID {
			return m.ID
		}
	}
	for _, u := range updates {
		switch m := u.(type) {
		case *tg.UpdateNewMessage:
			return m.Message.GetID()
		case *tg.UpdateNewChannelMessage:
			return m.Message.GetID()
		}
	}
	return 0
}
