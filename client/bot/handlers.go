package bot

import (
	"strings"

	"github.com/celestix/gotgproto/dispatcher"
	"github.com/celestix/gotgproto/dispatcher/handlers"
	"github.com/celestix/gotgproto/dispatcher/handlers/filters"
	"github.com/celestix/gotgproto/ext"
	"github.com/charmbracelet/log"
	"github.com/gotd/td/tg"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/i18n/i18nk"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/common/utils/tgutil"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/database"
	"github.com/hidarfaqeeh/v0-telegram-bot-project-sub000/pkg/relayerr"
)

type commandHandler struct {
	Cmd     string
	Desc    i18nk.Key
	handler func(b *Bot, ctx *ext.Context, u *ext.Update) error
}

var commandHandlers = []commandHandler{
	{"start", i18nk.BotMsgCmdStart, (*Bot).handleStart},
	{"session", i18nk.BotMsgCmdSession, (*Bot).handleSession},
	{"logout", i18nk.BotMsgCmdLogout, (*Bot).handleLogout},
	{"cancel", i18nk.BotMsgCmdCancel, (*Bot).handleCancel},
}

func (b *Bot) register(disp dispatcher.Dispatcher) {
	disp.AddHandler(handlers.NewMessage(filters.Message.All, b.checkTenant))
	for _, info := range commandHandlers {
		disp.AddHandler(handlers.NewCommand(info.Cmd, func(ctx *ext.Context, u *ext.Update) error {
			if !private(u) {
				return dispatcher.ContinueGroups
			}
			return info.handler(b, ctx, u)
		}))
	}
	disp.AddHandler(handlers.NewMessage(filters.Message.Text, b.handleInput))
	if !b.opts.Webhook {
		disp.AddHandler(handlers.NewMessage(filters.Message.All, b.handleRelay))
	}
}

func private(u *ext.Update) bool {
	if u.EffectiveMessage == nil || u.EffectiveMessage.Message == nil {
		return false
	}
	_, ok := u.EffectiveMessage.Message.PeerID.(*tg.PeerUser)
	return ok
}

func (b *Bot) reply(ctx *ext.Context, u *ext.Update, text string) {
	if _, err := ctx.Reply(u, ext.ReplyTextString(text), nil); err != nil {
		log.FromContext(ctx).Warn("Failed to reply", "chat", u.EffectiveChat().GetID(), "error", err)
	}
}

func (b *Bot) lang(ctx *ext.Context, tenantID int64) string {
	ts, err := b.store.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return i18n.DefaultLang
	}
	return ts.UILanguage
}

// checkTenant registers whoever writes to the bot in private and stops
// banned tenants there.
func (b *Bot) checkTenant(ctx *ext.Context, u *ext.Update) error {
	if !private(u) {
		return dispatcher.ContinueGroups
	}
	user := u.EffectiveUser()
	if user == nil || user.Bot {
		return dispatcher.EndGroups
	}
	err := b.store.UpsertTenant(ctx, &database.Tenant{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Locale:    localeOf(user.LangCode),
		IsActive:  true,
	})
	if err != nil {
		log.FromContext(ctx).Error("Failed to register tenant", "tenant", user.ID, "error", err)
		return dispatcher.EndGroups
	}
	t, err := b.store.GetTenant(ctx, user.ID)
	if err != nil {
		return dispatcher.EndGroups
	}
	if t.IsBanned || !t.IsActive {
		b.reply(ctx, u, i18n.TL(t.Locale, i18nk.BotMsgBanned))
		return dispatcher.EndGroups
	}
	return dispatcher.ContinueGroups
}

func localeOf(code string) string {
	code, _, _ = strings.Cut(strings.ToLower(code), "-")
	for _, l := range i18n.Languages() {
		if l == code {
			return code
		}
	}
	return i18n.DefaultLang
}

func (b *Bot) handleStart(ctx *ext.Context, u *ext.Update) error {
	user := u.EffectiveUser()
	b.reply(ctx, u, i18n.TL(b.lang(ctx, user.ID), i18nk.BotMsgStart, map[string]any{"Name": user.FirstName}))
	return dispatcher.EndGroups
}

func (b *Bot) handleSession(ctx *ext.Context, u *ext.Update) error {
	tenantID := u.EffectiveUser().ID
	b.reply(ctx, u, b.sessions.Begin(ctx, tenantID, b.lang(ctx, tenantID)))
	return dispatcher.EndGroups
}

func (b *Bot) handleLogout(ctx *ext.Context, u *ext.Update) error {
	tenantID := u.EffectiveUser().ID
	lang := b.lang(ctx, tenantID)
	err := b.sessions.Logout(ctx, tenantID)
	switch {
	case err == nil:
		b.reply(ctx, u, i18n.TL(lang, i18nk.SessionDisconnected))
	case relayerr.IsKind(err, relayerr.KindNotFound):
		b.reply(ctx, u, i18n.TL(lang, i18nk.BotMsgNoSession))
	default:
		log.FromContext(ctx).Error("Failed to log out session", "tenant", tenantID, "error", err)
		b.reply(ctx, u, relayerr.Message(lang, err))
	}
	return dispatcher.EndGroups
}

func (b *Bot) handleCancel(ctx *ext.Context, u *ext.Update) error {
	tenantID := u.EffectiveUser().ID
	key := i18nk.BotMsgNothingToCancel
	if b.sessions.Cancel(tenantID) {
		key = i18nk.BotMsgCancelled
	}
	b.reply(ctx, u, i18n.TL(b.lang(ctx, tenantID), key))
	return dispatcher.EndGroups
}

// handleInput hands private text to a session setup in progress.
func (b *Bot) handleInput(ctx *ext.Context, u *ext.Update) error {
	if !private(u) {
		return dispatcher.ContinueGroups
	}
	text := u.EffectiveMessage.Message.Message
	if strings.HasPrefix(text, "/") {
		return dispatcher.ContinueGroups
	}
	reply, handled := b.sessions.Input(ctx, u.EffectiveUser().ID, text)
	if !handled {
		return dispatcher.ContinueGroups
	}
	// the message may carry a code or password
	_, err := b.client.API().MessagesDeleteMessages(ctx, &tg.MessagesDeleteMessagesRequest{
		Revoke: true,
		ID:     []int{u.EffectiveMessage.ID},
	})
	if err != nil {
		log.FromContext(ctx).Debug("Failed to delete session input", "error", err)
	}
	b.reply(ctx, u, reply)
	return dispatcher.EndGroups
}

func (b *Bot) handleRelay(ctx *ext.Context, u *ext.Update) error {
	switch u.UpdateClass.(type) {
	case *tg.UpdateEditChannelMessage, *tg.UpdateEditMessage:
		return dispatcher.EndGroups
	}
	if u.EffectiveMessage == nil || u.EffectiveMessage.Message == nil || u.EffectiveMessage.Out {
		return dispatcher.EndGroups
	}
	msg := tgutil.FromTG(u.EffectiveMessage.Message)
	b.ingest.Dispatch(ctx, msg)
	return dispatcher.EndGroups
}
