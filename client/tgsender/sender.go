// Package tgsender emits relay output over MTProto. The same implementation
// serves the service bot and tenant user sessions; only peer resolution differs.
package tgsender

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/types"
	"github.com/rs/xid"
)

var (
	// ErrAlreadySent is returned when the platform rejects a retried emission
	// whose random id it has already seen.
	ErrAlreadySent = errors.New("emission already delivered")
	ErrEmpty       = errors.New("nothing to send")
)

type Sender interface {
	// Forward relays msgID from one chat to another and returns the new message id.
	Forward(ctx context.Context, eventID string, from int64, msgID int, to int64) (int, error)
	// Copy sends msg as a new message with text as body or caption.
	Copy(ctx context.Context, eventID string, msg types.Message, text string, to int64) (int, error)
	SetButtons(ctx context.Context, chatID int64, msgID int, buttons []types.Button) error
	SendText(ctx context.Context, chatID int64, text string) error
}

// Peers resolves Bot API style chat ids to input peers.
type Peers interface {
	InputPeer(ctx context.Context, chatID int64) (tg.InputPeerClass, error)
}

type MTProto struct {
	api   *tg.Client
	peers Peers
}

var _ Sender = (*MTProto)(nil)

func New(api *tg.Client, peers Peers) *MTProto {
	return &MTProto{api: api, peers: peers}
}

// RandomID derives the platform random id from an event id, so that a
// retry of the same emission is deduplicated by the server.
func RandomID(eventID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(eventID))
	return int64(h.Sum64() &^ (1 << 63))
}

func (s *MTProto) Forward(ctx context.Context, eventID string, from int64, msgID int, to int64) (int, error) {
	fromPeer, err := s.peers.InputPeer(ctx, from)
	if err != nil {
		return 0, err
	}
	toPeer, err := s.peers.InputPeer(ctx, to)
	if err != nil {
		return 0, err
	}
	rid := RandomID(eventID)
	upd, err := s.api.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: fromPeer,
		ID:       []int{msgID},
		RandomID: []int64{rid},
		ToPeer:   toPeer,
	})
	if err != nil {
		return 0, sendErr(err)
	}
	return SentID(upd, rid), nil
}

func (s *MTProto) Copy(ctx context.Context, eventID string, msg types.Message, text string, to int64) (int, error) {
	toPeer, err := s.peers.InputPeer(ctx, to)
	if err != nil {
		return 0, err
	}
	raw, err := s.rawMessage(ctx, msg)
	if err != nil {
		return 0, err
	}
	// original formatting only survives when the text is unchanged
	var entities []tg.MessageEntityClass
	if text == raw.Message {
		entities = raw.Entities
	}
	rid := RandomID(eventID)

	media := InputMedia(raw.Media)
	if media == nil {
		if text == "" {
			return 0, ErrEmpty
		}
		upd, err := s.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
			Peer:     toPeer,
			Message:  text,
			RandomID: rid,
			Entities: entities,
		})
		if err != nil {
			return 0, sendErr(err)
		}
		return SentID(upd, rid), nil
	}
	upd, err := s.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:     toPeer,
		Media:    media,
		Message:  text,
		RandomID: rid,
		Entities: entities,
	})
	if err != nil {
		return 0, sendErr(err)
	}
	return SentID(upd, rid), nil
}

func (s *MTProto) SetButtons(ctx context.Context, chatID int64, msgID int, buttons []types.Button) error {
	if len(buttons) == 0 {
		return nil
	}
	peer, err := s.peers.InputPeer(ctx, chatID)
	if err != nil {
		return err
	}
	_, err = s.api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:        peer,
		ID:          msgID,
		ReplyMarkup: Markup(buttons),
	})
	if err != nil && !tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return err
	}
	return nil
}

func (s *MTProto) SendText(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return ErrEmpty
	}
	peer, err := s.peers.InputPeer(ctx, chatID)
	if err != nil {
		return err
	}
	_, err = s.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: RandomID(xid.New().String()),
	})
	return sendErr(err)
}

func sendErr(err error) error {
	if err == nil {
		return nil
	}
	if tgerr.Is(err, "RANDOM_ID_DUPLICATE") {
		return fmt.Errorf("%w: %w", ErrAlreadySent, err)
	}
	return err
}

// rawMessage returns the MTProto message behind msg, fetching it when the
// message was observed through the Bot API.
func (s *MTProto) rawMessage(ctx context.Context, msg types.Message) (*tg.Message, error) {
	if m, ok := msg.Raw.(*tg.Message); ok && m != nil {
		return m, nil
	}
	peer, err := s.peers.InputPeer(ctx, msg.ChatID)
	if err != nil {
		return nil, err
	}
	ids := []tg.InputMessageClass{&tg.InputMessageID{ID: msg.ID}}
	var res tg.MessagesMessagesClass
	if ch, ok := peer.(*tg.InputPeerChannel); ok {
		res, err = s.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{ChannelID: ch.ChannelID, AccessHash: ch.AccessHash},
			ID:      ids,
		})
	} else {
		res, err = s.api.MessagesGetMessages(ctx, ids)
	}
	if err != nil {
		return nil, err
	}
	modified, ok := res.AsModified()
	if !ok {
		return nil, fmt.Errorf("message %s not available", msg.Key())
	}
	for _, m := range modified.GetMessages() {
		if tm, ok := m.(*tg.Message); ok && tm.ID == msg.ID {
			return tm, nil
		}
	}
	return nil, fmt.Errorf("message %s not found", msg.Key())
}
