package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/cybergenix/niva/backend/internal/analysis/expression"
	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/model/chat"
	"github.com/cybergenix/niva/backend/internal/model/persona"
	"github.com/cybergenix/niva/backend/internal/service/history"
	"github.com/cybergenix/niva/backend/internal/service/notify"
)

const (
	fallbackText = "Sorry i was not able to hear you, could you please repeat your query!"
	networkText  = "Sorry I am facing some network issue while resolving your query"
)

// stopSequence 阻止模型继续输出 markdown 代码块。
var stopSequence = []string{"```"}

// Source tells where a reply came from.
type Source string

const (
	SourceModel     Source = "model"
	SourceIntro     Source = "intro"
	SourceKnowledge Source = "knowledge"
	SourceFallback  Source = "fallback"
)

// Knowledge answers a query when the chat model is unreachable.
type Knowledge interface {
	Summary(ctx context.Context, query string) (string, error)
}

// Options tunes the reply loop.
type Options struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	// AttemptTimeout 限制单次模型调用，0 表示不限制
	AttemptTimeout time.Duration
	ContextLimit   int
	IntroShortcut  bool
	DefaultID      string
}

// OptionsFromConfig collects the reply settings spread over the config sections.
func OptionsFromConfig(llm config.LLMConfig, hist config.HistoryConfig) Options {
	return Options{
		MaxAttempts:    llm.MaxAttempts,
		RetryBackoff:   llm.RetryBackoff,
		AttemptTimeout: llm.Timeout,
		ContextLimit:   hist.ContextLimit,
		IntroShortcut:  llm.IntroShortcut,
		DefaultID:      hist.DefaultID,
	}
}

// Dependencies are the collaborators the service talks to. Knowledge and
// Context are optional.
type Dependencies struct {
	History   history.Store
	Personas  persona.Store
	Notifier  notify.Notifier
	Knowledge Knowledge
	Context   []*schema.Message
}

// Query is one user turn.
type Query struct {
	ConversationID string
	Text           string
	PersonaID      string
}

// Reply is the validated answer for a query.
type Reply struct {
	ConversationID string
	Persona        persona.Persona
	Messages       []chat.Message
	Source         Source
}

// Service encapsulates AI-powered chat functionality
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	deps  Dependencies
	opts  Options

	sleep func(ctx context.Context, d time.Duration) error
	pick  func(n int) int
}

// NewService compiles the prompt chain around chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel, deps Dependencies, opts Options) (*Service, error) {
	if deps.History == nil || deps.Personas == nil {
		return nil, errors.New("ai service requires a history store and personas")
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.DefaultID == "" {
		opts.DefaultID = "default"
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("examples", true),
		schema.MessagesPlaceholder("context", true),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain: runnable,
		deps:  deps,
		opts:  opts,
		sleep: sleepContext,
		pick:  rand.IntN,
	}, nil
}

// Reply answers q. Malformed model output is retried with backoff and ends in a
// canned apology; an unreachable model falls back to the knowledge source when
// one is configured and is returned as an error otherwise.
func (s *Service) Reply(ctx context.Context, q Query) (*Reply, error) {
	id := strings.TrimSpace(q.ConversationID)
	if id == "" {
		id = s.opts.DefaultID
	}
	if err := history.ValidateConversationID(id); err != nil {
		return nil, err
	}

	p := s.resolvePersona(q.PersonaID)
	reply := &Reply{ConversationID: id, Persona: p}

	log.Printf("[ai] user(%s): %s", id, q.Text)
	s.deps.Notifier.Notify(notify.Input(q.Text))

	if s.isIntroRequest(p, q.Text) {
		line := p.IntroLines[s.pick(len(p.IntroLines))]
		log.Printf("[ai] intro shortcut for persona=%s", p.ID)
		reply.Messages = []chat.Message{line}
		reply.Source = SourceIntro
		return reply, nil
	}

	input, err := s.buildChainInput(ctx, id, p, q.Text)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.sleep(ctx, s.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err := s.invoke(ctx, input)
		if err != nil {
			return s.upstreamFailure(ctx, reply, q.Text, err)
		}

		messages, err := ParseReply(resp.Content)
		if err != nil {
			log.Printf("[ai] attempt %d/%d: %v", attempt, s.opts.MaxAttempts, err)
			s.deps.Notifier.Notify(notify.Error(fmt.Sprintf("error: attempt %d: %v", attempt, err)))
			continue
		}

		log.Printf("LLM: %s", time.Since(started).Round(time.Millisecond))
		reply.Messages = messages
		reply.Source = SourceModel
		s.persist(ctx, id, q.Text, messages)
		return reply, nil
	}

	log.Printf("[ai] giving up after %d malformed responses", s.opts.MaxAttempts)
	reply.Messages = []chat.Message{{
		Text:             fallbackText,
		FacialExpression: chat.ExpressionSad,
		Animation:        chat.AnimationCrying,
	}}
	reply.Source = SourceFallback
	return reply, nil
}

// invoke runs one model call bounded by AttemptTimeout.
func (s *Service) invoke(ctx context.Context, input map[string]any) (*schema.Message, error) {
	if s.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AttemptTimeout)
		defer cancel()
	}
	return s.chain.Invoke(ctx, input, compose.WithChatModelOption(model.WithStop(stopSequence)))
}

func (s *Service) resolvePersona(id string) persona.Persona {
	if id != "" {
		if p, ok := s.deps.Personas.FindByID(id); ok {
			return p
		}
	}
	return s.deps.Personas.Default()
}

func (s *Service) isIntroRequest(p persona.Persona, text string) bool {
	if !s.opts.IntroShortcut || len(p.IntroLines) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	return strings.Contains(lower, "intro") && strings.Contains(lower, "yourself")
}

func (s *Service) buildChainInput(ctx context.Context, id string, p persona.Persona, text string) (map[string]any, error) {
	examples, err := exampleMessages(p)
	if err != nil {
		return nil, err
	}

	var turns []chat.Turn
	if s.opts.ContextLimit > 0 {
		turns, err = s.deps.History.Recent(ctx, id, s.opts.ContextLimit)
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
	}

	return map[string]any{
		"system":   BuildSystemPrompt(p),
		"examples": examples,
		"context":  s.deps.Context,
		"history":  historyMessages(turns),
		"query":    text,
	}, nil
}

func (s *Service) upstreamFailure(ctx context.Context, reply *Reply, text string, cause error) (*Reply, error) {
	log.Printf("[ai] chat model failed: %v", cause)
	s.deps.Notifier.Notify(notify.Error(fmt.Sprintf("error: %v", cause)))

	if ctx.Err() != nil || s.deps.Knowledge == nil {
		return nil, fmt.Errorf("failed to run AI chain: %w", cause)
	}

	reply.Source = SourceKnowledge
	summary, err := s.deps.Knowledge.Summary(ctx, text)
	if err != nil {
		log.Printf("[ai] knowledge fallback failed: %v", err)
		reply.Messages = []chat.Message{{
			Text:             networkText,
			FacialExpression: chat.ExpressionSad,
			Animation:        chat.AnimationCrying,
		}}
		return reply, nil
	}

	mood := expression.Analyze(text, summary)
	reply.Messages = []chat.Message{{
		Text:             summary,
		FacialExpression: mood.Expression,
		Animation:        mood.Animation,
	}}
	return reply, nil
}

// persist stores the turn. Failures are reported but never fail the reply.
// The write survives a client that disconnects after the model answered.
func (s *Service) persist(ctx context.Context, id, text string, messages []chat.Message) {
	ctx = context.WithoutCancel(ctx)
	encoded, err := encodeReply(messages)
	if err == nil {
		s.deps.Notifier.Notify(notify.Output(encoded))
		err = s.deps.History.Append(ctx, id, chat.NewTurn(text, encoded))
	}
	if err != nil {
		log.Printf("[history] append %s: %v", id, err)
		s.deps.Notifier.Notify(notify.Error(fmt.Sprintf("history: %v", err)))
	}
}

// backoff doubles the base delay per retry and adds up to 50% jitter.
func (s *Service) backoff(retry int) time.Duration {
	base := s.opts.RetryBackoff
	if base <= 0 {
		return 0
	}
	d := base << (retry - 1)
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
