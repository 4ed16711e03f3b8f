package support

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/yanqian/bank-support/internal/domain/knowledge"
	apperrors "github.com/yanqian/bank-support/pkg/errors"
	"github.com/yanqian/bank-support/pkg/metrics"
	"github.com/yanqian/bank-support/pkg/util"
)

// Service is the dialogue orchestrator.
type Service interface {
	Register(ctx context.Context, userID int64, role Role) (Session, error)
	HandleMessage(ctx context.Context, userID int64, text string) (Reply, error)
	CallOperator(ctx context.Context, userID int64) (Ticket, error)
	EndDialog(ctx context.Context, userID int64) (Session, error)
	Rate(ctx context.Context, userID int64, score int) (Rating, error)
	Tickets(ctx context.Context, limit int) ([]Ticket, error)
	RatingSummary(ctx context.Context) (RatingSummary, error)
}

// Dependencies groups the collaborators of the orchestrator. LLM and Archive
// are optional: without an LLM the best FAQ answer is returned verbatim and
// classification and recommendations are skipped.
type Dependencies struct {
	Retriever Retriever
	LLM       LLM
	Sessions  SessionStore
	Desk      OperatorDesk
	Tickets   TicketRepository
	Ratings   RatingRepository
	Archive   RatingArchive
	Metrics   *metrics.Recorder
	Clock     util.Clock
}

type service struct {
	cfg    Config
	deps   Dependencies
	now    util.Clock
	logger *slog.Logger
}

// NewService wires up the orchestrator.
func NewService(cfg Config, deps Dependencies, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		cfg:    cfg.withDefaults(),
		deps:   deps,
		now:    deps.Clock.OrNow(),
		logger: logger.With("component", "support.service"),
	}
}

func (s *service) Register(ctx context.Context, userID int64, role Role) (Session, error) {
	if role != RoleUser && role != RoleEmployee {
		return Session{}, apperrors.Wrap(CodeInvalidInput, fmt.Sprintf("unknown role %q", role), nil)
	}
	session := newSession(userID, role)
	if err := s.save(ctx, &session); err != nil {
		return Session{}, err
	}
	s.logger.Info("user registered", "userID", userID, "role", role)
	return session, nil
}

func (s *service) HandleMessage(ctx context.Context, userID int64, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, apperrors.Wrap(CodeInvalidInput, "message cannot be empty", nil)
	}
	session, err := s.load(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if session.Role == RoleEmployee {
		return s.reply(Reply{Kind: ReplyIgnored}), nil
	}

	session.LastQuestion = text
	if err := s.save(ctx, &session); err != nil {
		return Reply{}, err
	}
	if session.Mode == ModeOperator {
		return s.reply(Reply{Kind: ReplyForwarded, Text: text}), nil
	}
	if !session.LLMEnabled {
		return s.reply(Reply{Kind: ReplyIgnored}), nil
	}

	if s.cfg.Policy.Classification && s.deps.LLM != nil && !s.isBankQuestion(ctx, text) {
		return s.reply(Reply{Kind: ReplyRefused, Text: TextRefused}), nil
	}

	outcome, err := s.deps.Retriever.Retrieve(ctx, text)
	if err != nil {
		return s.unavailable(userID, err), nil
	}
	if !outcome.Found() {
		return s.reply(Reply{
			Kind:          ReplyNoMatch,
			Text:          TextNoMatch,
			OfferOperator: s.cfg.Policy.OperatorHandoff,
		}), nil
	}

	answer, err := s.answer(ctx, text, outcome)
	if err != nil {
		return s.unavailable(userID, apperrors.Wrap(CodeLLM, "generate answer", err)), nil
	}
	if err := s.rememberAnswer(ctx, userID, answer); err != nil {
		return Reply{}, err
	}

	out := Reply{
		Kind:      ReplyAnswer,
		Text:      answer,
		Matches:   outcome.Matches,
		AskRating: s.cfg.Policy.Ratings,
	}
	if s.cfg.Policy.Recommendations && s.deps.LLM != nil {
		out.Links = s.recommend(ctx, text, answer)
	}
	return s.reply(out), nil
}

func (s *service) CallOperator(ctx context.Context, userID int64) (Ticket, error) {
	if !s.cfg.Policy.OperatorHandoff {
		return Ticket{}, apperrors.Wrap(CodeFeatureDisabled, "operator handoff is disabled", nil)
	}
	session, err := s.load(ctx, userID)
	if err != nil {
		return Ticket{}, err
	}
	if session.Role == RoleEmployee {
		return Ticket{}, apperrors.Wrap(CodeInvalidInput, "employees cannot call the operator", nil)
	}

	acquired, err := s.deps.Desk.Acquire(ctx, userID)
	if err != nil {
		return Ticket{}, apperrors.Wrap(CodeSession, "acquire operator desk", err)
	}
	if !acquired {
		return Ticket{}, apperrors.Wrap(CodeOperatorBusy, "operator is helping another client", nil)
	}

	question := session.LastQuestion
	if question == "" {
		question = TextNoQuestion
	}
	ticket := Ticket{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  question,
		CreatedAt: s.now(),
	}
	if err := s.deps.Tickets.CreateTicket(ctx, ticket); err != nil {
		s.releaseDesk(ctx, userID)
		return Ticket{}, apperrors.Wrap(CodeStorage, "create ticket", err)
	}

	session.Mode = ModeOperator
	session.LLMEnabled = false
	if err := s.save(ctx, &session); err != nil {
		s.releaseDesk(ctx, userID)
		return Ticket{}, err
	}
	s.logger.Info("operator handoff", "userID", userID, "ticketID", ticket.ID)
	return ticket, nil
}

func (s *service) EndDialog(ctx context.Context, userID int64) (Session, error) {
	if err := s.deps.Desk.Release(ctx, userID); err != nil {
		return Session{}, apperrors.Wrap(CodeSession, "release operator desk", err)
	}
	session, err := s.load(ctx, userID)
	if err != nil {
		return Session{}, err
	}
	if session.Role == RoleEmployee {
		return session, nil
	}
	session.Mode = ModeBot
	session.LLMEnabled = true
	session.LastQuestion = ""
	if err := s.save(ctx, &session); err != nil {
		return Session{}, err
	}
	return session, nil
}

func (s *service) Rate(ctx context.Context, userID int64, score int) (Rating, error) {
	if !s.cfg.Policy.Ratings {
		return Rating{}, apperrors.Wrap(CodeFeatureDisabled, "ratings are disabled", nil)
	}
	if score < 1 || score > 5 {
		return Rating{}, apperrors.Wrap(CodeInvalidInput, fmt.Sprintf("rating must be within 1..5, got %d", score), nil)
	}
	session, err := s.load(ctx, userID)
	if err != nil {
		return Rating{}, err
	}
	rating := Rating{
		ID:        uuid.NewString(),
		UserID:    userID,
		Question:  session.LastQuestion,
		Answer:    session.LastAnswer,
		Score:     score,
		CreatedAt: s.now(),
	}
	if err := s.deps.Ratings.SaveRating(ctx, rating); err != nil {
		return Rating{}, apperrors.Wrap(CodeStorage, "save rating", err)
	}
	if s.deps.Archive != nil {
		if err := s.deps.Archive.Archive(ctx, rating); err != nil {
			s.logger.Warn("rating archive failed", "ratingID", rating.ID, "error", err)
		}
	}
	return rating, nil
}

func (s *service) Tickets(ctx context.Context, limit int) ([]Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	tickets, err := s.deps.Tickets.ListTickets(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(CodeStorage, "list tickets", err)
	}
	return tickets, nil
}

func (s *service) RatingSummary(ctx context.Context) (RatingSummary, error) {
	if !s.cfg.Policy.Ratings {
		return RatingSummary{}, apperrors.Wrap(CodeFeatureDisabled, "ratings are disabled", nil)
	}
	summary, err := s.deps.Ratings.RatingSummary(ctx)
	if err != nil {
		return RatingSummary{}, apperrors.Wrap(CodeStorage, "rating summary", err)
	}
	return summary, nil
}

func (s *service) load(ctx context.Context, userID int64) (Session, error) {
	session, ok, err := s.deps.Sessions.Get(ctx, userID)
	if err != nil {
		return Session{}, apperrors.Wrap(CodeSession, "load session", err)
	}
	if !ok {
		// unregistered users are treated as clients
		return newSession(userID, RoleUser), nil
	}
	return session, nil
}

func (s *service) save(ctx context.Context, session *Session) error {
	session.UpdatedAt = s.now()
	if err := s.deps.Sessions.Save(ctx, *session); err != nil {
		return apperrors.Wrap(CodeSession, "save session", err)
	}
	return nil
}

// rememberAnswer reloads the session so a handoff made while the answer was
// being generated is not overwritten; the answer is only kept in bot mode.
func (s *service) rememberAnswer(ctx context.Context, userID int64, answer string) error {
	session, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if session.Mode != ModeBot {
		s.logger.Info("dialog moved to operator during answer", "userID", userID)
		return nil
	}
	session.LastAnswer = answer
	return s.save(ctx, &session)
}

func (s *service) releaseDesk(ctx context.Context, userID int64) {
	if err := s.deps.Desk.Release(ctx, userID); err != nil {
		s.logger.Warn("release operator desk failed", "userID", userID, "error", err)
	}
}

func (s *service) reply(r Reply) Reply {
	s.deps.Metrics.ObserveReply(string(r.Kind))
	return r
}

func (s *service) unavailable(userID int64, err error) Reply {
	s.logger.Error("answer unavailable", "userID", userID, "code", apperrors.CodeOf(err), "error", err)
	return s.reply(Reply{
		Kind:          ReplyUnavailable,
		Text:          TextUnavailable,
		OfferOperator: s.cfg.Policy.OperatorHandoff,
		Code:          apperrors.CodeOf(err),
		Cause:         err,
	})
}

// answer asks the LLM to phrase a reply from the retrieved context; without an
// LLM the best FAQ answer is returned as is.
func (s *service) answer(ctx context.Context, question string, outcome knowledge.Outcome) (string, error) {
	if s.deps.LLM == nil {
		best, _ := outcome.Best()
		return best.Answer, nil
	}
	content := question + "\n\nКонтекст из базы знаний (используй его, если он помогает ответить на вопрос):\n" + outcome.Context()
	answer, err := s.deps.LLM.Chat(ctx, []Message{
		{Role: "system", Content: s.cfg.SystemPrompt},
		{Role: "user", Content: content},
	})
	if err != nil {
		return "", err
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", fmt.Errorf("llm returned an empty answer")
	}
	return answer, nil
}

// isBankQuestion classifies text; a failed classification lets the question
// through.
func (s *service) isBankQuestion(ctx context.Context, text string) bool {
	label, err := s.deps.LLM.Chat(ctx, []Message{
		{Role: "system", Content: s.cfg.ClassifyPrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		s.logger.Warn("classification failed", "error", err)
		return true
	}
	return !strings.Contains(strings.ToUpper(label), "NON_BANK")
}

func (s *service) recommend(ctx context.Context, question, answer string) []Link {
	raw, err := s.deps.LLM.Chat(ctx, []Message{
		{Role: "system", Content: s.cfg.RecommendPrompt},
		{Role: "user", Content: "Вопрос: " + question + "\nОтвет: " + answer},
	})
	if err != nil {
		s.logger.Warn("recommendation failed", "error", err)
		return nil
	}
	return parseLinks(raw, s.cfg.Links)
}

// parseLinks maps a comma separated tag list to known links, keeping the
// order of first mention and dropping unknown tags.
func parseLinks(raw string, links map[string]Link) []Link {
	fields := strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == ' '
	})
	seen := make(map[string]bool)
	var out []Link
	for _, tag := range fields {
		tag = strings.Trim(tag, ".\"'`")
		link, ok := links[tag]
		if !ok || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, link)
	}
	return out
}
