package ai

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/qizhangumich/acams/internal/models"
)

// completionTimeout bounds each upstream call. The provider can take several
// seconds; past this the request fails without persisting anything.
const completionTimeout = 30 * time.Second

// Service answers study questions through the Gemini API, scoped to a single
// exam question at a time.
type Service struct {
	client *genai.Client
	model  string
}

// NewService creates the AI client.
func NewService(apiKey, model string) (*Service, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log.Println("AI Service Initialized Successfully")
	return &Service{client: client, model: model}, nil
}

// Chat sends the user's message with the prior conversation for this question
// and returns the assistant reply. The system prompt pins the model to the
// given question; it never sees any other user's data.
func (s *Service) Chat(ctx context.Context, question *models.Question, history []models.QuestionChat, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		role := "user"
		if turn.Role == models.ChatRoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: turn.Content}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: message}},
	})

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt(question)}},
		},
		Temperature:     genai.Ptr[float32](0.7),
		MaxOutputTokens: 500,
	}

	started := time.Now()
	result, err := s.client.Models.GenerateContent(ctx, s.model, contents, config)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			log.Printf("ERROR: AI completion timed out after %v", time.Since(started))
		}
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("empty response from AI")
	}

	log.Printf("INFO: AI completion for question %d finished in %v", question.ID, time.Since(started))
	return text, nil
}

func systemPrompt(question *models.Question) string {
	keys := make([]string, 0, len(question.Options))
	for key := range question.Options {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var options strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&options, "%s: %s\n", key, question.Options[key])
	}

	return fmt.Sprintf(`You are a helpful assistant for an Anti-Money Laundering (AML) exam preparation system.

You are helping a student understand a specific exam question. Your role is to:
1. Answer questions ONLY about the current question
2. Provide explanations that help understand the correct answer
3. Stay within the scope of AML/compliance knowledge
4. Do NOT provide answers directly - guide the student to understand

Current Question Context:
- Question ID: %d
- Domain: %s
- Question: %s
- Options:
%s- Correct Answer(s): %s

IMPORTANT RULES:
- You MUST only discuss the current question (Question ID: %d)
- You MUST NOT discuss other questions
- You MUST NOT change or modify the question
- You MUST NOT provide direct answers without explanation
- You MUST stay within AML/compliance scope
- You MUST keep responses concise and focused`,
		question.ID, question.Domain, question.QuestionText, options.String(),
		strings.Join(question.CorrectAnswers, ", "), question.ID)
}
