package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/study-assistant/backend/internal/model"
)

// MaxFlashcards caps the cards returned from one request.
const MaxFlashcards = 15

// stripCodeFence removes a surrounding ```json ... ``` block.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// outermostObject returns the text between the first '{' and the last '}'.
func outermostObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

type structuredSummary struct {
	Summary string   `json:"summary"`
	Style   string   `json:"style"`
	TLDR    string   `json:"tl_dr"`
	Outline []string `json:"outline"`
}

// parseSummary reads {summary, style}. An outline-shaped reply is flattened
// and anything else is used verbatim.
func parseSummary(text, style string) (*SummaryResult, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty summary", model.ErrUnexpectedAgentOutput)
	}

	if obj, ok := outermostObject(cleaned); ok {
		var s structuredSummary
		if err := json.Unmarshal([]byte(obj), &s); err == nil {
			summary := strings.TrimSpace(s.Summary)
			if summary == "" && s.TLDR != "" {
				summary = flattenOutline(s.TLDR, s.Outline)
			}
			if summary != "" {
				if s.Style == "" {
					s.Style = style
				}
				return &SummaryResult{Summary: summary, Style: s.Style}, nil
			}
		}
	}

	return &SummaryResult{Summary: cleaned, Style: style}, nil
}

func flattenOutline(tldr string, outline []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(tldr))
	for _, point := range outline {
		if point = strings.TrimSpace(point); point != "" {
			b.WriteString("\n- ")
			b.WriteString(point)
		}
	}
	return b.String()
}

// parseFlashcards tries, in order: {"flashcards": [...]}, a bare JSON
// array, and alternating question and answer lines.
func parseFlashcards(text string) ([]model.Flashcard, error) {
	cleaned := stripCodeFence(text)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty flashcard reply", model.ErrUnexpectedAgentOutput)
	}

	var wrapped struct {
		Flashcards []model.Flashcard `json:"flashcards"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err == nil && wrapped.Flashcards != nil {
		return filterCards(wrapped.Flashcards), nil
	}

	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err == nil {
		items, _ := raw.([]any)
		cards := make([]model.Flashcard, 0, len(items))
		for _, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			cards = append(cards, model.Flashcard{
				Question: stringField(obj["question"]),
				Answer:   stringField(obj["answer"]),
			})
		}
		return filterCards(cards), nil
	}

	return linePairs(cleaned), nil
}

func stringField(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func filterCards(cards []model.Flashcard) []model.Flashcard {
	out := make([]model.Flashcard, 0, min(len(cards), MaxFlashcards))
	for _, c := range cards {
		if c.Question == "" || c.Answer == "" {
			continue
		}
		out = append(out, c)
		if len(out) == MaxFlashcards {
			break
		}
	}
	return out
}

func linePairs(text string) []model.Flashcard {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	cards := make([]model.Flashcard, 0, (len(lines)+1)/2)
	for i := 0; i < len(lines) && len(cards) < MaxFlashcards; i += 2 {
		card := model.Flashcard{Question: lines[i], Answer: "Answer missing"}
		if i+1 < len(lines) {
			card.Answer = lines[i+1]
		}
		cards = append(cards, card)
	}
	return cards
}
