package tgutil

import (
	"fmt"
	"sync"

	"github.com/gotd/td/tg"
)

// Chat ids follow the Bot API convention: users are positive, basic groups
// are -id and channels/supergroups are -100<id>.
const channelOffset int64 = 1_000_000_000_000

type PeerKind int

const (
	PeerUser PeerKind = iota
	PeerChat
	PeerChannel
)

func ChatIDFromPeer(p tg.PeerClass) int64 {
	switch p := p.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return -p.ChatID
	case *tg.PeerChannel:
		return -channelOffset - p.ChannelID
	}
	return 0
}

// SplitChatID returns the peer kind and the raw MTProto id of a Bot API chat id.
func SplitChatID(chatID int64) (PeerKind, int64) {
	switch {
	case chatID > 0:
		return PeerUser, chatID
	case chatID < -channelOffset:
		return PeerChannel, -chatID - channelOffset
	default:
		return PeerChat, -chatID
	}
}

// RawID is the id gotgproto's peer storage is keyed by.
func RawID(chatID int64) int64 {
	_, id := SplitChatID(chatID)
	return id
}

// PeerCache remembers access hashes seen in updates so a raw client can address peers.
type PeerCache struct {
	mu       sync.RWMutex
	users    map[int64]int64
	channels map[int64]int64
}

func NewPeerCache() *PeerCache {
	return &PeerCache{users: make(map[int64]int64), channels: make(map[int64]int64)}
}

func (c *PeerCache) AddUser(u *tg.User) {
	if u == nil || u.AccessHash == 0 {
		return
	}
	c.mu.Lock()
	c.users[u.ID] = u.AccessHash
	c.mu.Unlock()
}

func (c *PeerCache) AddChannel(ch *tg.Channel) {
	if ch == nil || ch.AccessHash == 0 {
		return
	}
	c.mu.Lock()
	c.channels[ch.ID] = ch.AccessHash
	c.mu.Unlock()
}

// AddEntities records every user and channel of an update.
func (c *PeerCache) AddEntities(e tg.Entities) {
	for _, u := range e.Users {
		c.AddUser(u)
	}
	for _, ch := range e.Channels {
		c.AddChannel(ch)
	}
}

// AddChats records users and chats returned by list-style API calls.
func (c *PeerCache) AddChats(users []tg.UserClass, chats []tg.ChatClass) {
	for _, u := range users {
		if u, ok := u.(*tg.User); ok {
			c.AddUser(u)
		}
	}
	for _, ch := range chats {
		if ch, ok := ch.(*tg.Channel); ok {
			c.AddChannel(ch)
		}
	}
}

func (c *PeerCache) InputPeer(chatID int64) (tg.InputPeerClass, error) {
	kind, id := SplitChatID(chatID)
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch kind {
	case PeerChat:
		return &tg.InputPeerChat{ChatID: id}, nil
	case PeerChannel:
		hash, ok := c.channels[id]
		if !ok {
			return nil, fmt.Errorf("peer %d not known to this client", chatID)
		}
		return &tg.InputPeerChannel{ChannelID: id, AccessHash: hash}, nil
	default:
		hash, ok := c.users[id]
		if !ok {
			return nil, fmt.Errorf("peer %d not known to this client", chatID)
		}
		return &tg.InputPeerUser{UserID: id, AccessHash: hash}, nil
	}
}
