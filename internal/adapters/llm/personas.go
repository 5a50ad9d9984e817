package llm

import (
	"context"
	"fmt"

	"github.com/mduval/tutor-agent/internal/domain"
)

const plannerSystemPrompt = `You are the Study Manager.
Your role:
1. Analyze the learning goal and any attached document.
2. Break the learning down into numbered steps.
3. Stay concise. Do not teach the material itself; only plan it.`

const explainerSystemPrompt = `You are an Expert Professor.
Your guide is this study plan: %s
Explain clearly, step by step. If the student asks about a sub-topic summary,
weave it into the lesson.`

const examinerSystemPrompt = `You are the Examiner.
Ask 3 questions (multiple choice or trick questions) about what was just
discussed to check understanding. Do not reveal the answers right away.`

const coachSystemPrompt = `You are the Study Coach.
Look at the conversation. Give one piece of method advice (for example the
Pomodoro technique) and one punchy motivational sentence. Be brief.`

const scribeFicheSystemPrompt = `You are the Scribe.
Write a clean revision sheet in Markdown with definitions and key points
from this conversation.`

const scribeFusionSystemPrompt = `You are the Scribe.
Write a dense summary of this sub-topic for its parent folder. Start with a
short paragraph of what was covered, then list the key points learned.`

func (g *Gateway) Plan(ctx context.Context, goal, documentText string) (string, error) {
	input := fmt.Sprintf("Goal: %s", goal)
	if documentText != "" {
		input = fmt.Sprintf("%s\n\nDocument context: %s", input, truncateDocument(documentText))
	}
	return g.generate(ctx, plannerSystemPrompt, nil, input)
}

func (g *Gateway) Explain(ctx context.Context, history []*domain.Message, question, plan string) (string, error) {
	system := fmt.Sprintf(explainerSystemPrompt, plan)
	return g.generate(ctx, system, history, question)
}

func (g *Gateway) Quiz(ctx context.Context, history []*domain.Message) (string, error) {
	return g.generate(ctx, examinerSystemPrompt, history, "Test me now.")
}

func (g *Gateway) Encourage(ctx context.Context, history []*domain.Message) (string, error) {
	return g.generate(ctx, coachSystemPrompt, history, "I need motivation.")
}

func (g *Gateway) Summarize(ctx context.Context, history []*domain.Message, mode domain.SummaryMode) (string, error) {
	system := scribeFicheSystemPrompt
	if mode == domain.SummaryFusion {
		system = scribeFusionSystemPrompt
	}
	return g.generate(ctx, system, history, "Write the requested summary now.")
}

var _ domain.PersonaGateway = (*Gateway)(nil)
