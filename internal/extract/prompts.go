package extract

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/form"
)

const fillInFormPrompt = `The following is a definition of form,
given as a list of form field labels, description and type (or options of possible values):
%s
Using this note:
%s
Fill in the form.
Return a valid JSON dictionary where keys are form labels, and values are filled in results.
For unknown field values just use null.
%s`

const fillInMultiEntryFormPrompt = `The following is a definition of form,
described as a list of form field labels, description and type (or options of possible values):
%s

Below is the text which is one or multiple answers to the form.
Fill in the form and return a valid JSON list of dictionaries. Only return that JSON list of dictionaries.
For each form response, return one list item, every list item is represented as a dictionary,
where keys are form labels and values are filled in results.
For unknown field values just use null.
If there are no form responses at all or the text is irrelevant, then just return an empty list.

This the answer text:
%s

%s`

const peoplePrompt = `This is a voice note from a meeting or event where I talked to one or multiple people.
List everybody I have directly talked to, omit mentions of other people in our conversation.
Output a valid json list of strings of the people I have directly talked to
- sometimes I don't recall their names so use a short description.
Voice transcript of our meeting: %s`

const contextPerPersonPrompt = `For each of the following people, extract all substrings which mention them in my notes.
Be careful to include all full original substrings with enough context merged into one text per person listed.
* Input format: list of people names comma separated
* Output format: a valid json map with key is persons name and value is all the concatenated text, include everyone from the input
* People:
  * %s
* My notes: %s`

const summarizePrompt = `Summarize my following meeting note into a short concise structured output,
make sure to include all facts, if needed label those facts
so I can review this in a year and know what happened.
Only output the result.
My raw notes: %s`

const draftPrompt = `Being my personal executive assistant,
based on my attached notes,
please draft a up to %s to %s i met as a response to address %s
adjusted to the talking style from my note.
Keep it on topic, tone it down.

Please make sure that:
* to mention one thing I have enjoyed OR appreciated in the conversation to show that i care
* include one fact from our conversation to show i that i am listening
* omit sensitive information like money
* do not use buzzwords or filler words like interesting, meaningful, intriguing

My note %s`

// currentTimeLayout omits minutes so prompts built within the same hour
// share a cache entry.
const currentTimeLayout = "2006-01-02 03 PM MST"

// fieldPrompt renders one field as a `"name": "..."` line, or "" for fields
// hidden from the model.
func fieldPrompt(f *form.FieldDefinition, maxOptions int) string {
	if f.IgnoreInPrompt() {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, `"%s": "%s field representing %s`, f.Name(), f.Type(), f.Label())
	if f.Description() != "" {
		b.WriteString(" described as " + f.Description())
	}
	if opts := f.Options(); len(opts) > 0 {
		if len(opts) > maxOptions {
			zap.L().Warn("extract: too many options, shortening",
				zap.String("field", f.Name()),
				zap.Int("options", len(opts)),
				zap.Int("max", maxOptions),
			)
			opts = opts[:maxOptions]
		}
		b.WriteString(" restricted to these options defined as a list of (label, value) ")
		b.WriteString(optionList(opts))
		b.WriteString(" pick the most suitable value.")
	}
	b.WriteString(`"`)
	return b.String()
}

// formPrompt joins the field prompts of def.
func formPrompt(def *form.Definition, maxOptions int) string {
	lines := make([]string, 0, len(def.Fields()))
	for _, f := range def.Fields() {
		if p := fieldPrompt(f, maxOptions); p != "" {
			lines = append(lines, p)
		}
	}
	return strings.Join(lines, ",\n")
}

// optionList renders options as [('Label', 'value'), ...].
func optionList(opts []form.Option) string {
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = "(" + quote(o.Label) + ", " + quote(o.Value) + ")"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func quote(s string) string {
	if strings.Contains(s, "'") {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}

// currentTimeContext returns the extra prompt line carrying the hour of now
// in the reference timezone.
func currentTimeContext(now time.Time) string {
	local := now.In(form.CurrentSettings().Location)
	return "\nGeneral context: Current time is " + local.Format(currentTimeLayout)
}
