// Package gemini provides a reply.Client backed by Google's Gemini API,
// for deployments that run without the hosted reply endpoint.
package gemini

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"google.golang.org/genai"

	"github.com/mindpex/sanctum/reply"
)

const DefaultModel = "gemini-2.0-flash"

// systemPreamble keeps Gemini answers in the companion's register: short,
// warm, no diagnosis.
const systemPreamble = "You are a gentle emotional-wellness companion. " +
	"Respond briefly and warmly to what the person shares. " +
	"Never diagnose, never lecture, never give medical advice."

func init() {
	// Load .env file if it exists (not present in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
}

// Client implements reply.Client against the Gemini API.
type Client struct {
	Model string // defaults to DefaultModel
}

// NewClient creates a Gemini-backed reply client.
func NewClient(model string) *Client {
	return &Client{Model: model}
}

// Send generates one reply for the utterance. The identity only scopes the
// conversation; it is not sent to Gemini.
func (c *Client) Send(ctx context.Context, identity, text string) (reply.Reply, error) {
	if strings.TrimSpace(identity) == "" {
		return reply.Reply{}, &reply.Error{
			Kind:    reply.KindUnknown,
			Message: "no identity: please re-authenticate",
		}
	}

	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return reply.Reply{}, &reply.Error{
			Kind:    reply.KindNetwork,
			Message: fmt.Sprintf("failed to create Gemini client: %v", err),
		}
	}

	model := c.Model
	if model == "" {
		model = DefaultModel
	}

	prompt := systemPreamble + "\n\nThey said: " + text
	result, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return reply.Reply{}, &reply.Error{
			Kind:    reply.KindOf(err),
			Message: err.Error(),
		}
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return reply.Reply{}, &reply.Error{
			Kind:    reply.KindInvalidResponse,
			Message: "invalid reply: no candidates in Gemini response",
		}
	}

	var sb strings.Builder
	for _, part := range result.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return reply.Reply{Text: strings.TrimSpace(sb.String())}, nil
}
