package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"studykit-worker/internal/config"
	"studykit-worker/internal/logger"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Flashcard is one generated question/answer pair.
type Flashcard struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Tags     []string `json:"tags,omitempty"`
}

// QuizQuestion is one generated quiz item.
type QuizQuestion struct {
	Type        string   `json:"type"`
	Prompt      string   `json:"prompt"`
	Options     []string `json:"options,omitempty"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// StudySet is the structured payload returned by a generation call.
type StudySet struct {
	Flashcards []Flashcard    `json:"flashcards"`
	Quiz       []QuizQuestion `json:"quiz"`
	Summary    string         `json:"summary,omitempty"`
	Notes      []string       `json:"notes,omitempty"`
}

// Usage carries the provider's token counters for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// Request describes one study-set generation call.
type Request struct {
	Corpus         string
	Title          string
	Tags           []string
	FlashcardCount int
	QuizCount      int
}

// Invoker is the external generative capability. It is slow and can fail;
// callers own the retry policy.
type Invoker interface {
	GenerateStudySet(ctx context.Context, req Request) (*StudySet, Usage, error)
	GenerateText(ctx context.Context, prompt string) (string, Usage, error)
	ModelName() string
}

// LLMInvoker backs Invoker with a langchaingo chat model.
type LLMInvoker struct {
	llm       llms.Model
	modelName string
	log       *logger.Logger
}

func NewLLMInvoker(cfg *config.GenerationConfig, log *logger.Logger) (*LLMInvoker, error) {
	var model llms.Model
	var err error

	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
	case "ollama":
		model, err = ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.Provider)
	}

	return &LLMInvoker{llm: model, modelName: cfg.Model, log: log}, nil
}

func (i *LLMInvoker) ModelName() string {
	return i.modelName
}

const studySetSystemPrompt = `You are a study-material author. From the provided course material you produce flashcards and quiz questions.
Respond with a single JSON object and nothing else, no prose, no markdown fences, matching exactly:
{"flashcards":[{"question":"...","answer":"...","tags":["..."]}],"quiz":[{"type":"multiple_choice|true_false|short_answer","prompt":"...","options":["..."],"answer":"...","explanation":"...","tags":["..."]}],"summary":"...","notes":["..."]}
Ground every item strictly in the material. Never invent facts.`

func (i *LLMInvoker) GenerateStudySet(ctx context.Context, req Request) (*StudySet, Usage, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, studySetSystemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, buildStudySetPrompt(req)),
	}

	response, err := i.llm.GenerateContent(ctx, messages, llms.WithTemperature(0.3))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("generation call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return nil, Usage{}, fmt.Errorf("generation returned no choices")
	}

	choice := response.Choices[0]
	usage := usageFromChoice(choice)

	studySet, err := parseStudySet(choice.Content)
	if err != nil {
		i.log.Warn("Generation output was not parseable", "model", i.modelName, "error", err)
		return nil, usage, err
	}
	return studySet, usage, nil
}

func (i *LLMInvoker) GenerateText(ctx context.Context, prompt string) (string, Usage, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	response, err := i.llm.GenerateContent(ctx, messages)
	if err != nil {
		return "", Usage{}, fmt.Errorf("generation call failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("generation returned no choices")
	}
	choice := response.Choices[0]
	return choice.Content, usageFromChoice(choice), nil
}

func buildStudySetPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Produce %d flashcards and %d quiz questions", req.FlashcardCount, req.QuizCount)
	if req.Title != "" {
		fmt.Fprintf(&b, " for the study set %q", req.Title)
	}
	if len(req.Tags) > 0 {
		fmt.Fprintf(&b, " (topics: %s)", strings.Join(req.Tags, ", "))
	}
	b.WriteString(".\n\nMaterial:\n")
	b.WriteString(req.Corpus)
	return b.String()
}

func usageFromChoice(choice *llms.ContentChoice) Usage {
	if choice.GenerationInfo == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     intFromInfo(choice.GenerationInfo, "PromptTokens"),
		CompletionTokens: intFromInfo(choice.GenerationInfo, "CompletionTokens"),
	}
}

func intFromInfo(info map[string]any, key string) int {
	switch v := info[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// parseStudySet decodes the model output, tolerating markdown fences and
// leading/trailing prose around the JSON object.
func parseStudySet(content string) (*StudySet, error) {
	raw := extractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in generation output")
	}

	var studySet StudySet
	if err := json.Unmarshal([]byte(raw), &studySet); err != nil {
		return nil, fmt.Errorf("invalid JSON in generation output: %w", err)
	}
	if len(studySet.Flashcards) == 0 && len(studySet.Quiz) == 0 {
		return nil, fmt.Errorf("generation output contains no artifacts")
	}
	return &studySet, nil
}

func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}
