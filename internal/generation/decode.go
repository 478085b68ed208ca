package generation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// responseEnvelope covers the response shapes of the supported
// backends. Exactly one branch is populated per server flavor.
type responseEnvelope struct {
	// OpenAI-compatible chat completions and legacy completions.
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`

	// Ollama-native chat.
	Message struct {
		Content string `json:"content"`
	} `json:"message"`

	// Bare single-field shapes some servers emit.
	Content  string `json:"content"`
	Response string `json:"response"`
}

// extractText pulls the generated text out of a backend response.
//
// Shapes are checked in a fixed order so a response carrying several
// populated fields decodes deterministically:
// choices[0].message.content, choices[0].text, message.content,
// content, response.
func extractText(body []byte) (string, error) {
	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if len(envelope.Choices) > 0 {
		if content := envelope.Choices[0].Message.Content; content != "" {
			return content, nil
		}
		if text := envelope.Choices[0].Text; text != "" {
			return text, nil
		}
	}
	if content := envelope.Message.Content; content != "" {
		return content, nil
	}
	if envelope.Content != "" {
		return envelope.Content, nil
	}
	if envelope.Response != "" {
		return envelope.Response, nil
	}

	if strings.TrimSpace(string(body)) == "" {
		return "", ErrEmptyResponse
	}
	return "", fmt.Errorf("%w: unrecognized response shape: %s", ErrEmptyResponse, truncateBody(body))
}
