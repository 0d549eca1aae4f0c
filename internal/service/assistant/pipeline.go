package assistant

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cybergenix/niva/backend/internal/config"
	"github.com/cybergenix/niva/backend/internal/model/chat"
	"github.com/cybergenix/niva/backend/internal/service/ai"
	"github.com/cybergenix/niva/backend/internal/service/notify"
)

// Replier produces the text of an answer.
type Replier interface {
	Reply(ctx context.Context, q ai.Query) (*ai.Reply, error)
}

// Renderer attaches audio (and mouth cues) to one message in place.
type Renderer interface {
	Render(ctx context.Context, index int, msg *chat.Message, voice string) error
}

// Pipeline turns a user message into spoken assistant messages: one model
// call, then one synthesis task per message, joined before returning.
type Pipeline struct {
	replier  Replier
	renderer Renderer
	notifier notify.Notifier
	policy   string
}

// New wires a pipeline. policy is config.FailurePolicyStrict or
// config.FailurePolicyDegrade.
func New(replier Replier, renderer Renderer, notifier notify.Notifier, policy string) *Pipeline {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if policy != config.FailurePolicyDegrade {
		policy = config.FailurePolicyStrict
	}
	return &Pipeline{replier: replier, renderer: renderer, notifier: notifier, policy: policy}
}

// Result is a fully rendered reply.
type Result struct {
	ConversationID string
	Messages       []chat.Message
	Source         ai.Source
}

// Chat answers req and waits for every message to be rendered.
func (p *Pipeline) Chat(ctx context.Context, req chat.Request) (*Result, error) {
	return p.run(ctx, req, nil)
}

// ChatStream behaves like Chat but calls emit as soon as each message is
// rendered. emit is never called concurrently.
func (p *Pipeline) ChatStream(ctx context.Context, req chat.Request, emit func(index int, msg chat.Message) error) (*Result, error) {
	return p.run(ctx, req, emit)
}

func (p *Pipeline) run(ctx context.Context, req chat.Request, emit func(int, chat.Message) error) (*Result, error) {
	reply, err := p.replier.Reply(ctx, ai.Query{
		ConversationID: req.ChatID,
		Text:           req.Message,
		PersonaID:      req.Persona,
	})
	if err != nil {
		return nil, err
	}

	messages := reply.Messages
	started := time.Now()

	var emitCh chan int
	var emitDone chan error
	if emit != nil {
		emitCh = make(chan int, len(messages))
		emitDone = make(chan error, 1)
		go func() {
			var firstErr error
			for i := range emitCh {
				if firstErr == nil {
					firstErr = emit(i, messages[i])
				}
			}
			emitDone <- firstErr
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range messages {
		g.Go(func() error {
			if err := p.renderer.Render(gctx, i, &messages[i], reply.Persona.VoiceID); err != nil {
				if p.policy == config.FailurePolicyStrict {
					return err
				}
				log.Printf("[chat] degrading message %d: %v", i, err)
				p.notifier.Notify(notify.Error(fmt.Sprintf("tts: %v", err)))
				messages[i].Audio = nil
				messages[i].Lipsync = nil
			}
			if emitCh != nil {
				emitCh <- i
			}
			return nil
		})
	}

	err = g.Wait()
	var emitErr error
	if emitCh != nil {
		close(emitCh)
		emitErr = <-emitDone
	}
	if err != nil {
		log.Printf("[chat] synthesis failed: %v", err)
		p.notifier.Notify(notify.Error(fmt.Sprintf("tts: %v", err)))
		return nil, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}
	if emitErr != nil {
		return nil, emitErr
	}

	log.Printf("TTS: %s", time.Since(started).Round(time.Millisecond))
	return &Result{
		ConversationID: reply.ConversationID,
		Messages:       messages,
		Source:         reply.Source,
	}, nil
}
