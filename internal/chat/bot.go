// Package chat is the Telegram front-end: it walks users through /process and /analyze
// and relays their input to the HTTP API.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jonathan/meeting-analyzer/internal/analysis"
	"github.com/jonathan/meeting-analyzer/internal/types"
)

const (
	// MaxMessageLen is the longest text sent in one chat message.
	MaxMessageLen = 4000
	// MinTranscriptLen is the shortest transcript accepted for analysis.
	MinTranscriptLen = 100
	// ReportFilename names the JSON document sent after an analysis.
	ReportFilename = "meeting_report.json"
)

const helpText = `🤖 Welcome to Meeting Bot, the sales call analyzer!

Available commands:
/process - analyze a live meeting
/analyze - analyze a transcript
/status - bot status
/cancel - cancel the current command`

// Messenger delivers replies to a chat.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, filename string, data []byte) error
}

// Message is an incoming chat message.
type Message struct {
	ChatID int64
	Text   string
}

// Bot holds per-chat conversations and turns messages into API calls.
type Bot struct {
	api    API
	out    Messenger
	states *States
	apiURL string
	logger *slog.Logger
}

// NewBot creates a Bot. apiURL is only shown by /status.
func NewBot(api API, out Messenger, apiURL string, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:    api,
		out:    out,
		states: NewStates(),
		apiURL: apiURL,
		logger: logger,
	}
}

// States exposes the conversation table.
func (b *Bot) States() *States {
	return b.states
}

// Handle processes one incoming message.
func (b *Bot) Handle(ctx context.Context, msg Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, msg.ChatID, text)
		return
	}

	conv, ok := b.states.Get(msg.ChatID)
	if !ok {
		return
	}
	if text == "" {
		b.reply(ctx, msg.ChatID, "Please send a text message.")
		return
	}

	switch conv.Step {
	case StepAwaitingMeetingURL:
		b.acceptMeetingURL(ctx, msg.ChatID, text)
	case StepAwaitingLeadID:
		b.runMeeting(ctx, msg.ChatID, text)
	case StepAwaitingTranscript:
		b.analyzeTranscript(ctx, msg.ChatID, text)
	case StepRunning:
		b.reply(ctx, msg.ChatID, "⏳ Still working on your previous request. Send /cancel to start over.")
	default:
		b.states.Delete(msg.ChatID)
	}
}

// commandName strips arguments and a "@botname" suffix.
func commandName(text string) string {
	name := strings.Fields(text)[0]
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func (b *Bot) handleCommand(ctx context.Context, chatID int64, text string) {
	switch commandName(text) {
	case "/start", "/help":
		b.reply(ctx, chatID, helpText)
	case "/process":
		b.states.Set(chatID, Conversation{Step: StepAwaitingMeetingURL})
		b.reply(ctx, chatID, "Send the meeting link:")
	case "/analyze":
		b.states.Set(chatID, Conversation{Step: StepAwaitingTranscript})
		b.reply(ctx, chatID, "Send the meeting transcript to analyze.")
	case "/status":
		b.status(ctx, chatID)
	case "/cancel":
		b.states.Delete(chatID)
		b.reply(ctx, chatID, "Cancelled. Send /process or /analyze to start again.")
	default:
		b.reply(ctx, chatID, helpText)
	}
}

func (b *Bot) status(ctx context.Context, chatID int64) {
	if err := b.api.Health(ctx); err != nil {
		b.reply(ctx, chatID, fmt.Sprintf("🔴 API unavailable at %s: %v", b.apiURL, err))
		return
	}
	b.reply(ctx, chatID, fmt.Sprintf("🟢 Bot is active\nAPI: %s\nReady to analyze meetings!", b.apiURL))
}

func (b *Bot) acceptMeetingURL(ctx context.Context, chatID int64, text string) {
	u, err := url.Parse(text)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		b.reply(ctx, chatID, "That does not look like a meeting link. Send an http(s) URL or /cancel.")
		return
	}
	b.states.Set(chatID, Conversation{Step: StepAwaitingLeadID, MeetingURL: text})
	b.reply(ctx, chatID, "Now send the Bitrix lead ID:")
}

func (b *Bot) runMeeting(ctx context.Context, chatID int64, leadID string) {
	conv, ok := b.states.Begin(chatID, StepAwaitingLeadID)
	if !ok {
		return
	}
	defer b.states.Finish(chatID, conv.Run)
	b.reply(ctx, chatID, "🚀 Joining the meeting... This can take a while.")

	res, err := b.api.Join(ctx, types.MeetingRequest{MeetingURL: conv.MeetingURL, LeadID: leadID})
	if err != nil {
		b.fail(ctx, chatID, "Meeting processing failed", err)
		return
	}

	b.replyChunks(ctx, chatID, FormatJoinResult(res))
}

func (b *Bot) analyzeTranscript(ctx context.Context, chatID int64, transcript string) {
	if len([]rune(transcript)) < MinTranscriptLen {
		b.reply(ctx, chatID, "The transcript is too short. Send a more detailed record of the meeting.")
		return
	}
	conv, ok := b.states.Begin(chatID, StepAwaitingTranscript)
	if !ok {
		return
	}
	defer b.states.Finish(chatID, conv.Run)
	b.reply(ctx, chatID, "🔍 Analyzing the meeting against the 12-point checklist...")

	sc, err := b.api.Analyze(ctx, transcript)
	if err != nil {
		b.fail(ctx, chatID, "Analysis failed", err)
		return
	}

	b.replyChunks(ctx, chatID, FormatReport(sc))

	doc, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		b.logger.Error("failed to encode report", "chat_id", chatID, "error", err)
		return
	}
	if err := b.out.SendDocument(ctx, chatID, ReportFilename, doc); err != nil {
		b.logger.Error("failed to send report document", "chat_id", chatID, "error", err)
	}
}

// fail reports err to the user.
func (b *Bot) fail(ctx context.Context, chatID int64, what string, err error) {
	b.logger.Warn(strings.ToLower(what), "chat_id", chatID, "error", err)
	b.reply(ctx, chatID, fmt.Sprintf("❌ %s: %v", what, err))
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.out.SendText(ctx, chatID, text); err != nil {
		b.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) replyChunks(ctx context.Context, chatID int64, text string) {
	for _, chunk := range SplitMessage(text, MaxMessageLen) {
		b.reply(ctx, chatID, chunk)
	}
}

// FormatJoinResult renders a finished meeting run.
func FormatJoinResult(res *types.JoinResponse) string {
	var sb strings.Builder
	sb.WriteString("✅ Meeting analysis complete!\n\n")
	sb.WriteString(fmt.Sprintf("Lead ID: %s\n", res.LeadID))
	sb.WriteString(fmt.Sprintf("Transcript length: %d characters\n", res.TranscriptChars))
	if res.Analysis != nil {
		sb.WriteString(fmt.Sprintf("Overall score: %d/100\n", res.Analysis.OverallScore))
		sb.WriteString(fmt.Sprintf("Client category: %s\n", res.Analysis.Category))
	}
	if !res.CRMUpdated {
		sb.WriteString(fmt.Sprintf("⚠️ CRM was not updated: %s\n", orDefault(res.CRMError, "unknown error")))
	}
	for _, w := range res.Warnings {
		sb.WriteString(fmt.Sprintf("⚠️ %s\n", w))
	}
	if res.Analysis != nil && res.Analysis.Summary != "" {
		sb.WriteString(fmt.Sprintf("\n💡 Summary:\n%s", res.Analysis.Summary))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatReport renders a scorecard with every rubric point.
func FormatReport(sc *types.Scorecard) string {
	var sb strings.Builder
	sb.WriteString("📊 MEETING REPORT\n\n")
	sb.WriteString(fmt.Sprintf("Overall score: %d/100\n", sc.OverallScore))
	sb.WriteString(fmt.Sprintf("Client category: %s\n\n", sc.Category))
	for _, i := range sc.SortedIndexes() {
		p := sc.Points[i]
		title := p.Title
		if title == "" {
			title = analysis.Title(i)
		}
		sb.WriteString(fmt.Sprintf("%d. %s: %d/10\n", i, title, p.Score))
	}
	if sc.Summary != "" {
		sb.WriteString(fmt.Sprintf("\n💡 Recommendations:\n%s", sc.Summary))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// SplitMessage cuts text into chunks of at most limit runes, preferring line breaks.
func SplitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}
