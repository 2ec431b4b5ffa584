package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"

	"github.com/Daiyanurrehmankhan/tauqeer-ali-khan-chatbot/internal/prompt"
)

// Generator streams chat completions.
type Generator struct {
	clients *ClientProvider
	model   string
}

func NewGenerator(clients *ClientProvider, model string) *Generator {
	return &Generator{clients: clients, model: model}
}

// Stream sends msg after history and calls emit for every non-empty text
// fragment as it arrives. It returns the full reply. An error from emit
// stops the stream.
func (g *Generator) Stream(ctx context.Context, system string, history []prompt.Message, msg string, emit func(string) error) (string, error) {
	client, err := g.clients.Client(ctx)
	if err != nil {
		return "", err
	}

	model := client.GenerativeModel(g.model)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	for _, m := range history {
		cs.History = append(cs.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Text)},
		})
	}

	var full strings.Builder
	iter := cs.SendMessageStream(ctx, genai.Text(msg))
	for {
		resp, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return full.String(), fmt.Errorf("generate: %w", err)
		}
		text := responseText(resp)
		if text == "" {
			continue
		}
		full.WriteString(text)
		if err := emit(text); err != nil {
			return full.String(), err
		}
	}
	return full.String(), nil
}
