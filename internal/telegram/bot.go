// Package telegram serves the meal plan viewer, chat and tips over a
// Telegram webhook.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutrilanka/internal/app"
	"nutrilanka/internal/body"
	"nutrilanka/internal/config"
	"nutrilanka/internal/mealplan"
)

const (
	generateTimeout = 2 * time.Minute
	requestTimeout  = 30 * time.Second
	metricsDays     = 7
)

const helpText = `🥗 *NutriLanka*

/plan - show today's meals from your plan
/generate [goal] - create a new plan (e.g. /generate Weight Loss)
/profile <gender> <weight kg> <height cm> [somatotype] - save your measurements
/shopping - what to buy for your plan
/tips - today's health tips
/metrics - usage report

Anything else is answered by the nutrition assistant.`

// Bot wraps the Telegram API and the app services.
type Bot struct {
	api *tgbotapi.BotAPI
	app *app.App
	cfg *config.Config
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(cfg *config.Config, a *app.App) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("failed to build webhook for %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{api: bot, app: a, cfg: cfg}, nil
}

// RegisterHandlers registers the webhook handler on mux.
func (b *Bot) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/webhook", b.handleWebhook)
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if query := update.CallbackQuery; query != nil {
		if !b.cfg.IsAllowed(query.From.ID) {
			log.Printf("⚠️ Unauthorized callback from UserID: %d (@%s)", query.From.ID, query.From.UserName)
			return
		}
		go b.handleCallbackQuery(query)
		return
	}

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !b.cfg.IsAllowed(msg.From.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", msg.From.ID, msg.From.UserName)
		return
	}

	go b.processMessage(msg)
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	if !msg.IsCommand() {
		b.handleChat(msg.Chat.ID, userID, msg.Text)
		return
	}

	switch msg.Command() {
	case "start", "help":
		b.sendMarkdown(msg.Chat.ID, helpText)
	case "plan":
		b.handlePlan(msg.Chat.ID, userID)
	case "generate":
		b.handleGenerate(msg.Chat.ID, userID, strings.TrimSpace(msg.CommandArguments()))
	case "profile":
		b.handleProfile(msg.Chat.ID, userID, msg.CommandArguments())
	case "shopping":
		b.handleShopping(msg.Chat.ID, userID)
	case "tips":
		b.handleTips(msg.Chat.ID)
	case "metrics":
		b.handleMetrics(msg.Chat.ID)
	default:
		b.sendMarkdown(msg.Chat.ID, helpText)
	}
}

func (b *Bot) handlePlan(chatID int64, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	view, err := b.app.DayView(ctx, userID, 1)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatDayMarkdown(view))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = dayKeyboard(view)
	b.send(msg)
}

func (b *Bot) handleGenerate(chatID int64, userID, goal string) {
	statusText := "🧑‍🍳 *Thinking...* \n(Building your meal plan)"
	replyMsg := tgbotapi.NewMessage(chatID, statusText)
	replyMsg.ParseMode = tgbotapi.ModeMarkdown
	sentMsg, err := b.api.Send(replyMsg)
	if err != nil {
		log.Printf("Failed to send initial reply: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), generateTimeout)
	defer cancel()

	if _, err := b.app.GeneratePlan(ctx, userID, goal); err != nil {
		log.Printf("Error generating plan: %v", err)
		edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, errorText(err))
		edit.ParseMode = tgbotapi.ModeMarkdown
		b.send(edit)
		return
	}

	view, err := b.app.DayView(ctx, userID, 1)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	keyboard := dayKeyboard(view)
	edit := tgbotapi.NewEditMessageText(chatID, sentMsg.MessageID, formatDayMarkdown(view))
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = &keyboard
	b.send(edit)
}

func (b *Bot) handleProfile(chatID int64, userID, args string) {
	m, somatotype, err := parseProfileArgs(args)
	if err != nil {
		b.sendMarkdown(chatID, "Usage: `/profile <male|female> <weight kg> <height cm> [somatotype]`")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	rec, err := b.app.SaveMeasurement(ctx, userID, m, somatotype)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMarkdown(chatID, fmt.Sprintf("✅ *Profile saved*\nBMI: %.2f (%s)\nBody type: %s\n\nSend /generate for a plan that fits it.",
		rec.BMI, rec.BMICategory, escape(rec.Somatotype)))
}

func (b *Bot) handleShopping(chatID int64, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	items, err := b.app.ShoppingList(ctx, userID)
	if err != nil {
		b.sendError(chatID, err)
		return
	}
	b.sendMarkdown(chatID, formatShoppingMarkdown(items))
}

func (b *Bot) handleTips(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	b.sendMarkdown(chatID, formatTipsMarkdown(b.app.Tips(ctx)))
}

func (b *Bot) handleMetrics(chatID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	report, err := b.app.MetricsReport(ctx, metricsDays)
	if err != nil {
		log.Printf("Error fetching metrics: %v", err)
		b.send(tgbotapi.NewMessage(chatID, "❌ Error fetching metrics."))
		return
	}
	b.send(tgbotapi.NewMessage(chatID, report))
}

func (b *Bot) handleChat(chatID int64, userID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	reply, err := b.app.Chat(ctx, userID, text)
	if err != nil {
		log.Printf("Error answering chat for user %s: %v", userID, err)
		b.send(tgbotapi.NewMessage(chatID, "Sorry, I couldn't answer that right now. Please try again."))
		return
	}
	b.send(tgbotapi.NewMessage(chatID, reply))
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	// Answer callback to remove spinner
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	if query.Message == nil {
		return
	}
	cb, err := parseCallback(query.Data)
	if err != nil {
		log.Printf("Ignoring callback %q: %v", query.Data, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	userID := strconv.FormatInt(query.From.ID, 10)
	var view *app.DayView
	switch cb.Action {
	case actionDay:
		view, err = b.app.DayView(ctx, userID, cb.Day)
	case actionSwap:
		view, err = b.app.Swap(ctx, userID, cb.Day, cb.Slot)
	}
	if err != nil {
		b.sendError(query.Message.Chat.ID, err)
		return
	}

	keyboard := dayKeyboard(view)
	edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, formatDayMarkdown(view))
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.ReplyMarkup = &keyboard
	b.send(edit)
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	b.send(msg)
}

func (b *Bot) sendError(chatID int64, err error) {
	b.sendMarkdown(chatID, errorText(err))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		log.Printf("Failed to send telegram message: %v", err)
	}
}

// errorText turns an app error into a user-facing message.
func errorText(err error) string {
	var nf *mealplan.NotFoundError
	switch {
	case errors.Is(err, app.ErrNoPlan):
		return "You have no meal plan yet. Send /generate to create one."
	case errors.As(err, &nf):
		return fmt.Sprintf("🤷 %s", escape(nf.Error()))
	}
	safeErr := strings.ReplaceAll(err.Error(), "`", "'")
	return fmt.Sprintf("❌ *Something went wrong:*\n```\n%v\n```", safeErr)
}

func parseProfileArgs(args string) (body.Measurements, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 || len(fields) > 4 {
		return body.Measurements{}, "", fmt.Errorf("expected 3 or 4 arguments, got %d", len(fields))
	}
	weight, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return body.Measurements{}, "", fmt.Errorf("invalid weight %q: %w", fields[1], err)
	}
	height, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return body.Measurements{}, "", fmt.Errorf("invalid height %q: %w", fields[2], err)
	}
	var somatotype string
	if len(fields) == 4 {
		r, size := utf8.DecodeRuneInString(fields[3])
		somatotype = string(unicode.ToUpper(r)) + strings.ToLower(fields[3][size:])
	}
	return body.Measurements{Gender: strings.ToLower(fields[0]), WeightKg: weight, HeightCm: height}, somatotype, nil
}
