// Package pipeline chains extraction steps into the end-to-end flows run on
// a transcript: the networking flow that turns a meeting note into one
// contact card per person, and the food log flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/extract"
	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/formlib"
)

// Length thresholds in characters.
const (
	minTranscriptLength       = 100
	minPersonTranscriptLength = 140
	minNoteLengthToSummarize  = 200
)

// PersonEntry is the result for one person mentioned in a transcript.
type PersonEntry struct {
	Name       string     `json:"name"`
	Transcript string     `json:"transcript"`
	Form       *form.Data `json:"form,omitempty"`
	Summary    string     `json:"summary,omitempty"`
	Draft      string     `json:"draft,omitempty"`

	// ParsingError is a human readable reason the contact card is missing.
	ParsingError string `json:"parsing_error,omitempty"`
}

// ShowFullContactCard reports whether the entry has a filled contact form.
func (p *PersonEntry) ShowFullContactCard() bool {
	return p.ParsingError == "" && p.Form != nil
}

// ShouldDraft reports whether a follow up message should be drafted.
func (p *PersonEntry) ShouldDraft() bool {
	return p.ShowFullContactCard() && p.Form.String("suggested_response_item") != ""
}

// Networking runs the contacts flow.
type Networking struct {
	filler   *extract.Filler
	contacts *form.Definition
}

// NewNetworking creates the flow on top of filler.
func NewNetworking(filler *extract.Filler) (*Networking, error) {
	def, err := formlib.Get(formlib.Contacts)
	if err != nil {
		return nil, err
	}
	return &Networking{filler: filler, contacts: def}, nil
}

// Run extracts everyone the speaker talked to, the part of the transcript
// about each of them, and a contact card per person. Unparseable model
// answers degrade single entries; only model failures abort the run.
// Entries come back with full contact cards first, most urgent first.
func (n *Networking) Run(ctx context.Context, transcript string) ([]PersonEntry, error) {
	log := zap.L().With(zap.String("flow", "networking"))
	if len(transcript) < minTranscriptLength {
		log.Warn("pipeline: transcript is short, results may be made up",
			zap.Int("chars", len(transcript)),
			zap.Int("min_chars", minTranscriptLength),
		)
	}

	people, err := n.filler.ExtractPeople(ctx, transcript)
	if err != nil {
		if isExtractionError(err) {
			log.Warn("pipeline: no people found", zap.Error(err))
			return nil, nil
		}
		return nil, eris.Wrap(err, "pipeline: extract people")
	}
	if len(people) == 0 {
		return nil, nil
	}

	contexts, err := n.filler.ExtractContextPerPerson(ctx, transcript, people)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract context per person")
	}

	entries := make([]PersonEntry, 0, len(contexts))
	for _, name := range extract.OrderedNames(people, contexts) {
		entry, err := n.person(ctx, name, contexts[name])
		if err != nil {
			return nil, err
		}
		if entry.ShouldDraft() {
			if err := n.draft(ctx, &entry); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}

	SortEntries(entries)
	log.Info("pipeline: networking flow complete", zap.Int("people", len(entries)))
	return entries, nil
}

func (n *Networking) person(ctx context.Context, name, note string) (PersonEntry, error) {
	entry := PersonEntry{Name: name, Transcript: note}
	if len(note) < minPersonTranscriptLength {
		zap.L().Info("pipeline: skipping summary, transcript too short",
			zap.String("person", name),
			zap.Int("chars", len(note)),
			zap.Int("min_chars", minPersonTranscriptLength),
		)
		entry.ParsingError = fmt.Sprintf("Thanks for mentioning %s! Unfortunately there is too little info to summarize from.", name)
		return entry, nil
	}

	data, err := n.filler.FillInForm(ctx, n.contacts, note)
	if err != nil {
		if !isExtractionError(err) {
			return entry, eris.Wrapf(err, "pipeline: contact card for %s", name)
		}
		zap.L().Error("pipeline: could not parse contact card, defaulting to hand-crafted",
			zap.String("person", name),
			zap.Error(err),
		)
		entry.ParsingError = err.Error()
		return entry, nil
	}

	summary := note
	if len(note) >= minNoteLengthToSummarize {
		if summary, err = n.filler.SummarizeNote(ctx, note); err != nil {
			return entry, eris.Wrapf(err, "pipeline: summary for %s", name)
		}
	}
	entry.Summary = summary
	entry.Form = data
	if err := data.Set("name", name); err != nil {
		return entry, err
	}
	if err := data.Set("summarized_note", summary); err != nil {
		return entry, err
	}
	return entry, nil
}

func (n *Networking) draft(ctx context.Context, entry *PersonEntry) error {
	draft, err := n.filler.GenerateDraft(ctx, extract.DraftRequest{
		Name:         entry.Name,
		ResponseItem: entry.Form.String("suggested_response_item"),
		MessageType:  entry.Form.String("response_message_type"),
		Note:         entry.Transcript,
	})
	if err != nil {
		return eris.Wrapf(err, "pipeline: draft for %s", entry.Name)
	}
	entry.Draft = draft
	return entry.Form.Set("next_draft", draft)
}

// priorityRank orders suggested_revisit values; unknown values sort last.
var priorityRank = map[string]int{"P0": 0, "P1": 1, "P2": 2}

// SortEntries orders entries with full contact cards first, then by
// suggested revisit priority, then longest transcript first.
func SortEntries(entries []PersonEntry) {
	rank := func(p *PersonEntry) int {
		if !p.ShowFullContactCard() {
			return len(priorityRank)
		}
		if r, ok := priorityRank[p.Form.String("suggested_revisit")]; ok {
			return r
		}
		return len(priorityRank)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.ShowFullContactCard() != b.ShowFullContactCard() {
			return a.ShowFullContactCard()
		}
		if ra, rb := rank(a), rank(b); ra != rb {
			return ra < rb
		}
		return len(a.Transcript) > len(b.Transcript)
	})
}

func isExtractionError(err error) bool {
	var xerr *extract.ExtractionError
	return errors.As(err, &xerr)
}
