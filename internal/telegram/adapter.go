package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/gopherchat/internal/render"
	"github.com/user/gopherchat/internal/stream"
	"github.com/user/gopherchat/internal/types"
)

const maxTelegramMessage = 4096

// Adapter bridges Telegram chats to streaming conversations. Each chat
// gets its own conversation; replies carry the final assistant text.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	client *stream.Client
	store  types.ConversationStore

	// send delivers one message part to a chat.
	send func(chatID int64, text string)

	// turnMu serializes turns: the client carries a single session, so
	// only one chat may hold the active conversation at a time.
	turnMu sync.Mutex

	mu    sync.Mutex
	chats map[int64]types.ConversationID
}

// New creates a Telegram adapter.
func New(token string, client *stream.Client, store types.ConversationStore) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := &Adapter{
		bot:    bot,
		client: client,
		store:  store,
		chats:  make(map[int64]types.ConversationID),
	}
	a.send = a.sendViaBot
	return a, nil
}

// Start begins long-polling for Telegram updates. Blocks until ctx is
// cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	convID, err := a.conversationFor(ctx, chatID)
	if err != nil {
		slog.Error("conversation lookup failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
		return
	}

	// Stream in the background so /cancel stays responsive.
	go a.runTurn(ctx, chatID, convID, msg.Text)
}

func (a *Adapter) runTurn(ctx context.Context, chatID int64, convID types.ConversationID, text string) {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()

	a.client.SetActiveConversation(convID)
	a.client.SendAndStream(ctx, convID, text)

	session := a.client.Session()
	if kind, message := session.Err(); kind != "" {
		slog.Warn("stream failed", "chat_id", chatID, "kind", kind, "error", message)
		a.sendResponse(chatID, "Sorry, something went wrong: "+message)
		return
	}

	conv, err := a.store.Get(ctx, convID)
	if err != nil {
		slog.Error("conversation fetch failed", "chat_id", chatID, "error", err)
		return
	}
	last := conv.LastMessage()
	if last == nil || last.Role != types.RoleAssistant {
		return
	}
	reply := render.FinalText(last.Blocks)
	if reply == "" {
		return
	}
	a.sendResponse(chatID, reply)
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm Gopherchat. Send me a message to start a conversation.")

	case "cancel":
		a.mu.Lock()
		convID, ok := a.chats[chatID]
		a.mu.Unlock()
		if !ok {
			a.sendResponse(chatID, "Nothing to cancel.")
			return
		}
		a.client.CancelStream(convID)
		a.sendResponse(chatID, "Cancelled.")

	case "status":
		a.mu.Lock()
		convID, ok := a.chats[chatID]
		a.mu.Unlock()
		if !ok {
			a.sendResponse(chatID, "No conversation yet.")
			return
		}
		session := a.client.Session()
		status := session.Status()
		if session.ConversationID() != convID {
			status = stream.StatusIdle
		}
		a.sendResponse(chatID, fmt.Sprintf("Conversation: %s\nStatus: %s", convID, status))

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /cancel, /status")
	}
}

// conversationFor resolves the chat's conversation, creating one on
// first contact.
func (a *Adapter) conversationFor(ctx context.Context, chatID int64) (types.ConversationID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if id, ok := a.chats[chatID]; ok {
		return id, nil
	}

	conv := &types.Conversation{
		ID:    types.NewConversationID(),
		Title: "telegram:" + strconv.FormatInt(chatID, 10),
	}
	if err := a.store.Put(ctx, conv); err != nil {
		return "", err
	}
	a.chats[chatID] = conv.ID
	return conv.ID, nil
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		a.send(chatID, part)
	}
}

func (a *Adapter) sendViaBot(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := a.bot.Send(msg); err != nil {
		// Retry without markdown if it fails
		msg.ParseMode = ""
		if _, err := a.bot.Send(msg); err != nil {
			slog.Warn("send message failed", "chat_id", chatID, "error", err)
		}
	}
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
