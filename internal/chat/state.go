package chat

import "sync"

// Step is where a chat is in a multi-message command.
type Step string

// Conversation steps.
const (
	StepAwaitingMeetingURL Step = "awaiting_meeting_url"
	StepAwaitingLeadID     Step = "awaiting_lead_id"
	StepAwaitingTranscript Step = "awaiting_transcript"
	// StepRunning means an API call for the chat is in flight.
	StepRunning Step = "running"
)

// Conversation is the per-chat state of an unfinished command.
type Conversation struct {
	Step       Step
	MeetingURL string
	// Run identifies the in-flight call while Step is StepRunning.
	Run uint64
}

// States maps chat IDs to conversations. It is safe for concurrent use.
type States struct {
	mu    sync.Mutex
	chats map[int64]Conversation
	runs  uint64
}

// NewStates creates an empty state table.
func NewStates() *States {
	return &States{chats: make(map[int64]Conversation)}
}

// Get returns the conversation of chatID, if any.
func (s *States) Get(chatID int64) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	return c, ok
}

// Set replaces the conversation of chatID.
func (s *States) Set(chatID int64, c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chatID] = c
}

// Delete forgets chatID.
func (s *States) Delete(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chats, chatID)
}

// Begin moves chatID from step to StepRunning and returns the running conversation.
// It reports false when the chat is not at step, so only one message can start a call.
func (s *States) Begin(chatID int64, step Step) (Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok || c.Step != step {
		return Conversation{}, false
	}
	s.runs++
	c.Step = StepRunning
	c.Run = s.runs
	s.chats[chatID] = c
	return c, true
}

// Finish forgets chatID if it is still on the given run. A conversation started
// after /cancel is left alone.
func (s *States) Finish(chatID int64, run uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok && c.Step == StepRunning && c.Run == run {
		delete(s.chats, chatID)
	}
}

// Len returns the number of chats with an unfinished command.
func (s *States) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}
