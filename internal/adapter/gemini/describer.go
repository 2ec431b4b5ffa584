package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// Describer asks a multimodal model for a text description of an image.
type Describer struct {
	clients     *ClientProvider
	model       string
	instruction string
}

func NewDescriber(clients *ClientProvider, model, instruction string) *Describer {
	return &Describer{clients: clients, model: model, instruction: instruction}
}

func (d *Describer) DescribeImage(ctx context.Context, data []byte, mimeType string) (string, error) {
	client, err := d.clients.Client(ctx)
	if err != nil {
		return "", err
	}
	format := strings.TrimPrefix(mimeType, "image/")

	resp, err := client.GenerativeModel(d.model).GenerateContent(ctx,
		genai.ImageData(format, data),
		genai.Text(d.instruction),
	)
	if err != nil {
		return "", fmt.Errorf("describe image: %w", err)
	}
	return strings.TrimSpace(responseText(resp)), nil
}
