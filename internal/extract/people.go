package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/salvage"
)

// Batch sizes for per-person context extraction.
const (
	largeContextBatchSize = 10
	smallContextBatchSize = 5
)

// minContextLength is the shortest per-person context not worth a warning.
const minContextLength = 5

// BatchSizeForModel returns how many people are asked about in one prompt.
func BatchSizeForModel(model string, largeContextModels []string) int {
	for _, prefix := range largeContextModels {
		if strings.HasPrefix(model, prefix) {
			return largeContextBatchSize
		}
	}
	return smallContextBatchSize
}

// ExtractPeople lists the people the speaker talked to in transcript. Too
// short input yields no people; too long input is truncated first.
func (f *Filler) ExtractPeople(ctx context.Context, transcript string) ([]string, error) {
	tokens := f.tokenizer.Count(transcript)
	zap.L().Info("extract: extracting people",
		zap.Int("tokens", tokens),
		zap.Int("chars", len(transcript)),
	)
	if len(transcript) < 5 || tokens <= 1 {
		zap.L().Warn("extract: transcript too short")
		return nil, nil
	}
	transcript, _ = TruncateToBudget(transcript, f.tokenizer, f.cfg.MaxTranscriptTokens)

	raw, err := f.runner.RunDefault(ctx, fmt.Sprintf(peoplePrompt, transcript))
	if err != nil {
		return nil, eris.Wrap(err, "extract: people")
	}

	parsed, ok := salvage.Parse(raw)
	if !ok {
		zap.L().Warn("extract: likely no people found in transcript", zap.String("response", truncate(raw)))
		return nil, &ExtractionError{Op: "extract_people", Expected: "list", Response: raw}
	}
	if _, isList := parsed.([]any); !isList {
		zap.L().Error("extract: could not parse people into a list", zap.String("response", truncate(raw)))
	}

	var people []string
	for _, p := range salvage.ToStringList(raw) {
		if p = strings.TrimSpace(p); p != "" {
			people = append(people, p)
		}
	}
	zap.L().Info("extract: people talked to", zap.Strings("people", people))
	return people, nil
}

// ExtractContextPerPerson maps every person to the parts of transcript that
// mention them. People are asked about in batches sized for the primary
// model. A batch answer that cannot be parsed fails the call; a batch that
// returns a different number of people only logs a warning.
func (f *Filler) ExtractContextPerPerson(ctx context.Context, transcript string, people []string) (map[string]string, error) {
	result := make(map[string]string)
	if len(people) == 0 {
		return result, nil
	}

	size := BatchSizeForModel(f.runner.PrimaryModel(), f.cfg.LargeContextModels)
	for _, batch := range chunk(people, size) {
		query := fmt.Sprintf(contextPerPersonPrompt, strings.Join(batch, "\n  * "), transcript)
		raw, err := f.runner.RunDefault(ctx, query)
		if err != nil {
			return nil, eris.Wrap(err, "extract: context per person")
		}

		parsed, ok := salvage.Parse(raw)
		if !ok {
			return nil, &ExtractionError{Op: "extract_context_per_person", Expected: "object", Response: raw}
		}
		mentions, isObj := parsed.(map[string]any)
		if !isObj {
			zap.L().Warn("extract: person contexts are not an object, skipping batch",
				zap.Strings("people", batch),
				zap.String("response", truncate(raw)),
			)
			continue
		}
		if len(mentions) != len(batch) {
			zap.L().Warn("extract: mentions size differs from input size",
				zap.Int("mentions", len(mentions)),
				zap.Int("input", len(batch)),
			)
		}
		for name, v := range mentions {
			text := ""
			if v != nil {
				text = salvage.Flatten(v)
			}
			if len(text) < minContextLength {
				zap.L().Warn("extract: extracted context is too short",
					zap.String("person", name),
					zap.String("context", text),
				)
			}
			result[name] = text
		}
	}
	return result, nil
}

// OrderedNames returns the keys of contexts, people first in their given
// order, then any extra names the model added in sorted order.
func OrderedNames(people []string, contexts map[string]string) []string {
	seen := make(map[string]bool, len(contexts))
	out := make([]string, 0, len(contexts))
	for _, p := range people {
		if _, ok := contexts[p]; ok && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	var extra []string
	for name := range contexts {
		if !seen[name] {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func chunk(items []string, size int) [][]string {
	var out [][]string
	for size < len(items) {
		items, out = items[size:], append(out, items[:size:size])
	}
	return append(out, items)
}

// SummarizeNote condenses a meeting note. A JSON answer is flattened to
// plain text.
func (f *Filler) SummarizeNote(ctx context.Context, note string) (string, error) {
	raw, err := f.runner.RunDefault(ctx, fmt.Sprintf(summarizePrompt, note))
	if err != nil {
		return "", eris.Wrap(err, "extract: summarize note")
	}
	return salvage.ToPlaintext(raw), nil
}

// DraftRequest describes the follow up message to draft.
type DraftRequest struct {
	Name         string
	ResponseItem string
	MessageType  string // email, linkedin, whatsapp or sms
	Note         string
}

var messageTemplates = map[string]string{
	"email":    "400 characters easy-to-read email to the point; as a casual, calm, friendly executive person",
	"linkedin": "300 characters linkedin outreach no bullshit; as a casual, calm, friendly, professional person",
	"whatsapp": "200 characters sms message; as a friendly, to the point, yet professional person",
	"sms":      "150 characters message; as a witty, to the point, friendly, yet professional person",
}

// GenerateDraft drafts a follow up message. It returns "" without asking
// the model when there is nothing to respond to. Unknown message types are
// drafted as email.
func (f *Filler) GenerateDraft(ctx context.Context, req DraftRequest) (string, error) {
	if strings.TrimSpace(req.ResponseItem) == "" {
		zap.L().Warn("extract: no suggested response item", zap.String("person", req.Name))
		return "", nil
	}
	template, ok := messageTemplates[req.MessageType]
	if !ok {
		template = messageTemplates["email"]
	}

	raw, err := f.runner.RunDefault(ctx, fmt.Sprintf(draftPrompt, template, req.Name, req.ResponseItem, req.Note))
	if err != nil {
		return "", eris.Wrapf(err, "extract: draft for %s", req.Name)
	}
	draft := salvage.ToPlaintext(raw)
	if draft != raw {
		zap.L().Warn("extract: draft came back as JSON, flattened", zap.String("person", req.Name))
	}
	return draft, nil
}
