package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"faciliroom/internal/models"
)

// AgendaService is the AI-facing side of the facilitator: it turns a topic
// and a total duration into an ordered list of facilitation steps, and
// reacts to chat messages during a running discussion. When an API key is
// configured it asks an OpenAI-compatible chat-completions endpoint;
// otherwise agenda generation falls back to a built-in structure and chat
// reactions are disabled, so the product works without any external model.
type AgendaService struct {
	httpClient *http.Client
	apiKey     string
	apiURL     string
	model      string
}

func NewAgendaService(apiKey, apiURL, model string) *AgendaService {
	return &AgendaService{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		apiURL:     apiURL,
		model:      model,
	}
}

func (s *AgendaService) IsAvailable() bool {
	return s.apiKey != ""
}

type aiAgendaStep struct {
	StepName       string `json:"step_name"`
	PromptQuestion string `json:"prompt_question"`
	AllocatedTime  int    `json:"allocated_time"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are a discussion facilitator. The user gives you a discussion topic and a total time limit in minutes. You must respond with ONLY valid JSON (no markdown, no code fences, no explanations) in the following format:

[
  {"step_name": "Short phase label", "prompt_question": "The question participants should answer in this phase?", "allocated_time": 5}
]

Rules:
- Generate 3-6 steps that guide a small group from divergent idea gathering to a concrete conclusion
- allocated_time is in minutes; the times must sum to the user's total time limit
- Every step needs exactly one open, concrete prompt_question
- Write everything in the same language as the user's topic
- Return ONLY the JSON array, nothing else`

const facilitatorPrompt = `You are the AI facilitator of a small-group discussion. You receive the discussion topic and the most recent chat messages. Reply with one short reaction for the group: acknowledge what was said, deepen it with a follow-up question, or gently steer the conversation back to the topic. At most two sentences, plain text, in the same language as the messages.`

func (s *AgendaService) Generate(topic string, duration int) ([]models.AgendaStep, error) {
	if !s.IsAvailable() {
		return fallbackAgenda(topic, duration), nil
	}

	prompt := fmt.Sprintf("Topic: %s\nTotal time limit: %d minutes", topic, duration)
	content, err := s.chat([]chatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	content = stripCodeFences(content)

	var aiSteps []aiAgendaStep
	if err := json.Unmarshal([]byte(content), &aiSteps); err != nil {
		return nil, fmt.Errorf("AI returned malformed agenda: %w", err)
	}

	steps := make([]models.AgendaStep, 0, len(aiSteps))
	for _, st := range aiSteps {
		if st.PromptQuestion == "" || st.AllocatedTime <= 0 {
			continue
		}
		if st.StepName == "" {
			st.StepName = fmt.Sprintf("Step %d", len(steps)+1)
		}
		steps = append(steps, models.AgendaStep{
			StepName:       st.StepName,
			PromptQuestion: st.PromptQuestion,
			AllocatedTime:  st.AllocatedTime,
		})
	}
	if len(steps) == 0 {
		return nil, errors.New("AI returned an empty agenda")
	}
	fitDuration(steps, duration)

	return steps, nil
}

// FacilitatorReply produces the facilitator's reaction to the latest chat
// messages of a discussion. history is ordered oldest first.
func (s *AgendaService) FacilitatorReply(topic string, history []models.Message) (string, error) {
	if !s.IsAvailable() {
		return "", errors.New("no AI API key configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nRecent messages:\n", topic)
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Author, msg.Text)
	}

	reply, err := s.chat([]chatMessage{
		{Role: "system", Content: facilitatorPrompt},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.New("AI returned an empty reply")
	}
	return reply, nil
}

func (s *AgendaService) chat(messages []chatMessage) (string, error) {
	jsonBody, err := json.Marshal(chatRequest{Model: s.model, Messages: messages})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequest(http.MethodPost, s.apiURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("AI request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("invalid AI response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("AI error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", errors.New("AI returned no choices")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// fitDuration rescales step times proportionally when the model's total does
// not match the requested duration. Every step keeps at least a minute;
// rounding leftovers go to the last step.
func fitDuration(steps []models.AgendaStep, duration int) {
	total := 0
	for _, st := range steps {
		total += st.AllocatedTime
	}
	if total == duration || total == 0 || duration <= 0 {
		return
	}

	scaled := 0
	for i := range steps {
		t := steps[i].AllocatedTime * duration / total
		if t < 1 {
			t = 1
		}
		steps[i].AllocatedTime = t
		scaled += t
	}
	if diff := duration - scaled; diff > 0 {
		steps[len(steps)-1].AllocatedTime += diff
	}
}

// fallbackAgenda is a fixed three-phase structure with the total time split
// roughly 40/40/20 across divergence, convergence and wrap-up.
func fallbackAgenda(topic string, duration int) []models.AgendaStep {
	first := duration * 2 / 5
	if first < 1 {
		first = 1
	}
	second := duration * 2 / 5
	if second < 1 {
		second = 1
	}
	last := duration - first - second
	if last < 1 {
		last = 1
	}

	return []models.AgendaStep{
		{
			StepName:       "Gather ideas",
			PromptQuestion: fmt.Sprintf("What comes to mind first when you think about %q? Write down every idea, no filtering.", topic),
			AllocatedTime:  first,
		},
		{
			StepName:       "Dig deeper",
			PromptQuestion: "Pick the idea you find most promising. Why that one, and what would it take to make it real?",
			AllocatedTime:  second,
		},
		{
			StepName:       "Wrap up",
			PromptQuestion: "What is the one concrete next action the group agrees on?",
			AllocatedTime:  last,
		},
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
