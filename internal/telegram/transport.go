// Package telegram adapts the Telegram Bot API to the engine's event
// and responder boundary. No other package imports the bot library.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"transitlab-bot/internal/engine"
	"transitlab-bot/internal/prompt"
)

// Telegram caps bot downloads at 20 MB; tracks are far smaller.
const maxDocumentBytes = 20 << 20

type Transport struct {
	bot       *tgbotapi.BotAPI
	http      *http.Client
	videoPath string
	prompts   *prompt.Catalog

	mu      sync.Mutex
	lastMsg map[int64]int // chat id -> most recent message id, for edits
}

func New(token, videoPath string, prompts *prompt.Catalog) (*Transport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Printf("authorized as @%s", bot.Self.UserName)
	return &Transport{
		bot:       bot,
		http:      &http.Client{Timeout: 60 * time.Second},
		videoPath: videoPath,
		prompts:   prompts,
		lastMsg:   make(map[int64]int),
	}, nil
}

// Run delivers updates to handle one at a time until ctx is canceled.
// Sequential dispatch keeps each user's events in arrival order; the
// engine's own per-user lock covers any concurrent caller.
func (t *Transport) Run(ctx context.Context, handle func(context.Context, engine.Event)) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			ev, ok := t.toEvent(ctx, upd)
			if !ok {
				continue
			}
			handle(ctx, ev)
		}
	}
}

func (t *Transport) toEvent(ctx context.Context, upd tgbotapi.Update) (engine.Event, bool) {
	if cb := upd.CallbackQuery; cb != nil {
		if _, err := t.bot.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			log.Printf("answer callback: %v", err)
		}
		if cb.Message != nil {
			t.rememberMessage(cb.Message.Chat.ID, cb.Message.MessageID)
		}
		return engine.Event{
			Kind:     engine.KindButton,
			UserID:   cb.From.ID,
			Username: cb.From.UserName,
			Data:     cb.Data,
		}, true
	}

	m := upd.Message
	if m == nil || m.From == nil {
		return engine.Event{}, false
	}
	ev := engine.Event{UserID: m.From.ID, Username: m.From.UserName}

	switch {
	case m.Location != nil:
		ev.Kind = engine.KindLocation
		ev.Lat = m.Location.Latitude
		ev.Lon = m.Location.Longitude
	case m.Document != nil:
		data, err := t.download(ctx, m.Document.FileID)
		if err != nil {
			log.Printf("download document %s: %v", m.Document.FileName, err)
			return engine.Event{}, false
		}
		ev.Kind = engine.KindDocument
		ev.FileName = m.Document.FileName
		ev.FileData = data
	case m.Text != "":
		ev.Kind = engine.KindText
		ev.Text = m.Text
	default:
		return engine.Event{}, false
	}
	return ev, true
}

func (t *Transport) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download status %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
}

// Send delivers p as a new message. In private chats the chat id is
// the user id.
func (t *Transport) Send(ctx context.Context, userID int64, p prompt.Prompt) error {
	msg := tgbotapi.NewMessage(userID, p.Text)
	if p.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	switch {
	case len(p.Keyboard) > 0:
		msg.ReplyMarkup = inlineKeyboard(p.Keyboard)
	case p.RequestLocation:
		msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation(t.prompts.ShareLocationButton())),
			tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(t.prompts.CancelText())),
		)
	case p.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	sent, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	t.rememberMessage(userID, sent.MessageID)
	return nil
}

// Edit rewrites the most recent message in the chat; when none is
// known (or the prompt needs a reply keyboard, which edits cannot
// carry) it falls back to Send.
func (t *Transport) Edit(ctx context.Context, userID int64, p prompt.Prompt) error {
	msgID, ok := t.recentMessage(userID)
	if !ok || p.RequestLocation {
		return t.Send(ctx, userID, p)
	}
	edit := tgbotapi.NewEditMessageText(userID, msgID, p.Text)
	if p.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if len(p.Keyboard) > 0 {
		kb := inlineKeyboard(p.Keyboard)
		edit.ReplyMarkup = &kb
	}
	if _, err := t.bot.Send(edit); err != nil {
		return fmt.Errorf("edit message %d: %w", msgID, err)
	}
	return nil
}

// SendVideo sends the intro video, or the unavailable notice when the
// file is missing.
func (t *Transport) SendVideo(ctx context.Context, userID int64, caption string) error {
	if _, err := os.Stat(t.videoPath); err != nil {
		return t.Send(ctx, userID, t.prompts.VideoUnavailable())
	}
	video := tgbotapi.NewVideo(userID, tgbotapi.FilePath(t.videoPath))
	video.Caption = caption
	if _, err := t.bot.Send(video); err != nil {
		return fmt.Errorf("send video: %w", err)
	}
	return nil
}

func (t *Transport) rememberMessage(chatID int64, msgID int) {
	t.mu.Lock()
	t.lastMsg[chatID] = msgID
	t.mu.Unlock()
}

func (t *Transport) recentMessage(chatID int64) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.lastMsg[chatID]
	return id, ok
}

func inlineKeyboard(rows [][]prompt.Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Data))
		}
		kb = append(kb, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}
