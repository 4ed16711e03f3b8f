package support

import (
	"time"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
)

// Role distinguishes bank clients from staff.
type Role string

const (
	RoleUser     Role = "user"
	RoleEmployee Role = "employee"
)

// Mode says who answers the user's messages.
type Mode string

const (
	ModeBot      Mode = "bot"
	ModeOperator Mode = "operator"
)

// Session is the per-user dialogue state.
type Session struct {
	UserID       int64     `json:"userId"`
	Role         Role      `json:"role"`
	Mode         Mode      `json:"mode"`
	LLMEnabled   bool      `json:"llmEnabled"`
	LastQuestion string    `json:"lastQuestion,omitempty"`
	LastAnswer   string    `json:"lastAnswer,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// newSession is the state of a user the bot has not seen before.
func newSession(userID int64, role Role) Session {
	s := Session{UserID: userID, Role: role, Mode: ModeBot, LLMEnabled: true}
	if role == RoleEmployee {
		s.Mode = ModeOperator
		s.LLMEnabled = false
	}
	return s
}

// ReplyKind classifies how a message was handled.
type ReplyKind string

const (
	ReplyIgnored     ReplyKind = "ignored"
	ReplyForwarded   ReplyKind = "forwarded"
	ReplyRefused     ReplyKind = "refused"
	ReplyNoMatch     ReplyKind = "no_match"
	ReplyUnavailable ReplyKind = "unavailable"
	ReplyAnswer      ReplyKind = "answer"
)

// Reply is the orchestrator's decision for one incoming message.
type Reply struct {
	Kind          ReplyKind         `json:"kind"`
	Text          string            `json:"text,omitempty"`
	Matches       []knowledge.Match `json:"matches,omitempty"`
	Links         []Link            `json:"links,omitempty"`
	OfferOperator bool              `json:"offerOperator,omitempty"`
	AskRating     bool              `json:"askRating,omitempty"`
	// Code is the error code behind an unavailable reply.
	Code  string `json:"code,omitempty"`
	Cause error  `json:"-"`
}

// Ticket is an operator handoff request.
type Ticket struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rating is a 1..5 grade of a bot answer.
type Rating struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingSummary aggregates stored ratings.
type RatingSummary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
}

// Message is one chat turn sent to the LLM.
type Message struct {
	Role    string
	Content string
}

// User facing texts.
const (
	TextRefused     = "Я помогаю только с вопросами по продуктам и сервисам банка."
	TextNoMatch     = "К сожалению, в базе знаний нет точного ответа на ваш вопрос.\nЯ могу подключить оператора поддержки, который продолжит диалог."
	TextUnavailable = "Сервис временно недоступен. Пожалуйста, попробуйте позже или обратитесь к оператору."
	TextNoQuestion  = "Вопрос не найден"
)
