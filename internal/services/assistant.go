package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/learncircle/backend/internal/ai"
	"github.com/learncircle/backend/internal/models"
	"github.com/learncircle/backend/pkg/logger"
	"gorm.io/gorm"
)

const (
	// historyTurns is how many prior conversation turns are replayed into
	// each new question's context, oldest first.
	historyTurns = 10
	// contextCharBudget truncates the minutes/transcript context so the
	// prompt stays bounded regardless of meeting length.
	contextCharBudget = 4000
)

const assistantPersona = "You are a patient learning companion for a small study group. " +
	"Answer questions using the meeting notes provided. Keep answers short, " +
	"concrete and encouraging, and say so plainly when the notes do not cover " +
	"the question."

// AssistantService answers meeting-grounded questions and keeps the ordered
// conversation history.
type AssistantService struct {
	DB   *gorm.DB
	Chat ChatCompleter
}

func NewAssistantService(db *gorm.DB, chat ChatCompleter) *AssistantService {
	return &AssistantService{DB: db, Chat: chat}
}

// Ask builds the bounded context for the question, calls the chat
// collaborator and persists both turns. A collaborator failure degrades to a
// deterministic fallback answer instead of surfacing an error: the feature is
// supplementary and must not break the page.
func (s *AssistantService) Ask(ctx context.Context, meetingID, userID uuid.UUID, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", validationError("question is required")
	}

	messages := []ai.Message{{Role: ai.RoleSystem, Content: assistantPersona}}

	if notes := s.meetingNotes(ctx, meetingID); notes != "" {
		messages = append(messages, ai.Message{
			Role:    ai.RoleSystem,
			Content: "Meeting notes:\n" + truncate(notes, contextCharBudget),
		})
	}

	history, err := s.recentTurns(ctx, meetingID, historyTurns)
	if err != nil {
		return "", err
	}
	for _, turn := range history {
		role := ai.RoleUser
		if turn.IsAI {
			role = ai.RoleAssistant
		}
		messages = append(messages, ai.Message{Role: role, Content: turn.Message})
	}
	messages = append(messages, ai.Message{Role: ai.RoleUser, Content: question})

	answer, err := s.Chat.Complete(ctx, messages)
	if err != nil {
		logger.Warn("assistant_fallback", map[string]interface{}{
			"meeting_id": meetingID.String(),
			"reason":     err.Error(),
		})
		answer = fallbackAnswer(question, err)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userTurn := models.ChatMessage{MeetingID: meetingID, UserID: userID, Message: question}
		if err := tx.Create(&userTurn).Error; err != nil {
			return err
		}
		aiTurn := models.ChatMessage{MeetingID: meetingID, UserID: userID, Message: answer, IsAI: true}
		return tx.Create(&aiTurn).Error
	})
	if err != nil {
		return "", err
	}

	return answer, nil
}

// History returns every turn for the meeting in creation order.
func (s *AssistantService) History(ctx context.Context, meetingID uuid.UUID) ([]models.ChatMessage, error) {
	var turns []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Preload("User").
		Where("meeting_id = ?", meetingID).
		Order("id ASC").
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}

// ClearHistory deletes every turn for the meeting and returns how many were
// removed.
func (s *AssistantService) ClearHistory(ctx context.Context, meetingID uuid.UUID) (int64, error) {
	result := s.DB.WithContext(ctx).Where("meeting_id = ?", meetingID).Delete(&models.ChatMessage{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// meetingNotes prefers the generated minutes and falls back to the raw
// transcript.
func (s *AssistantService) meetingNotes(ctx context.Context, meetingID uuid.UUID) string {
	var recording models.Recording
	if err := s.DB.WithContext(ctx).First(&recording, "meeting_id = ?", meetingID).Error; err != nil {
		return ""
	}
	if recording.Summary != nil && strings.TrimSpace(*recording.Summary) != "" {
		return *recording.Summary
	}
	return recording.Transcript
}

func (s *AssistantService) recentTurns(ctx context.Context, meetingID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	var turns []models.ChatMessage
	err := s.DB.WithContext(ctx).
		Where("meeting_id = ?", meetingID).
		Order("id DESC").
		Limit(limit).
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	// Reverse into oldest-first order for the prompt.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// truncate caps s at limit characters, never cutting inside a multi-byte
// rune.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// fallbackAnswer is a deterministic rule table keyed by intent category, used
// when the chat collaborator is unavailable.
var fallbackRules = []struct {
	keywords []string
	answer   string
}{
	{
		keywords: []string{"detail", "more", "explain", "tell me"},
		answer: "I can't reach the assistant service right now, but the meeting " +
			"minutes on this page cover the discussion. For a deeper dive, try " +
			"re-asking once the service is back, or raise it at the next meeting.",
	},
	{
		keywords: []string{"how", "method", "way", "steps"},
		answer: "The assistant service is unavailable at the moment. As a general " +
			"approach: start with the simplest version, try it yourself, and note " +
			"what worked to share with the group.",
	},
	{
		keywords: []string{"example", "concrete", "instance"},
		answer: "I can't generate fresh examples right now because the assistant " +
			"service is unavailable. The transcript on this page lists the examples " +
			"discussed in the meeting.",
	},
	{
		keywords: []string{"difficult", "hard", "confused", "don't understand"},
		answer: "That's completely normal when learning something new. The " +
			"assistant service is unavailable right now, so consider asking your " +
			"group host, or bring the question to the next meeting.",
	},
	{
		keywords: []string{"thank", "thanks"},
		answer:   "You're welcome! Keep the questions coming.",
	},
}

func fallbackAnswer(question string, cause error) string {
	lower := strings.ToLower(question)
	for _, rule := range fallbackRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.answer
			}
		}
	}
	reason := "the assistant service is unavailable"
	if cause != nil {
		reason = "the assistant service reported: " + cause.Error()
	}
	return "I couldn't process that question right now (" + reason + "). " +
		"The meeting minutes on this page may already answer it; otherwise " +
		"please try again later."
}
