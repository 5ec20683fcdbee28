package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/prompt"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) RunDefault(ctx context.Context, p string) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}

func (m *mockRunner) PrimaryModel() string {
	return m.Called().String(0)
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func newTestFiller(r PromptRunner, opts ...Option) *Filler {
	return New(r, DefaultConfig(), append([]Option{WithTokenizer(WordCounter{})}, opts...)...)
}

var taskForm = form.MustDefinition("task",
	form.FieldSpec{Name: "name", Type: form.TypeText, Label: "Task Title"},
	form.FieldSpec{
		Name:  "priority",
		Type:  form.TypeSelect,
		Label: "Priority",
		Options: []form.Option{
			{Label: "P0 (today)", Value: "P0"},
			{Label: "P1 (this week)", Value: "P1"},
			{Label: "P2 (later)", Value: "P2"},
		},
	},
)

var foodForm = form.MustDefinition("food_log",
	form.FieldSpec{Name: "ingredient", Type: form.TypeText, Label: "Ingredient"},
	form.FieldSpec{Name: "amount", Type: form.TypeText, Label: "Amount"},
)

// --- FillInForm ---

func TestFillInForm_SalvagesPythonishOutput(t *testing.T) {
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).
		Return("Output:\n{'name': 'Jane Doe', 'priority': {'label': 'P0 (today)', 'value': 'P0'}}", nil).Once()

	data, err := newTestFiller(r).FillInForm(context.Background(), taskForm, "call Jane today")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Jane Doe", "priority": "P0"}, data.ToDict())
	r.AssertExpectations(t)
}

func TestFillInForm_Refusal(t *testing.T) {
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).
		Return("Sorry, as an AI language model I can't fill in this form.", nil).Once()

	data, err := newTestFiller(r).FillInForm(context.Background(), taskForm, "hmm")
	require.Error(t, err)
	require.NotNil(t, data)
	assert.True(t, data.IsEmpty())
	assert.Empty(t, data.ToDict())

	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "fill_in_form", xerr.Op)
	assert.Contains(t, err.Error(), "not a JSON object")
}

func TestFillInForm_ListIsNotAnObject(t *testing.T) {
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).Return(`[{"name": "a"}]`, nil).Once()

	data, err := newTestFiller(r).FillInForm(context.Background(), taskForm, "x")
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.True(t, data.IsEmpty())
}

func TestFillInForm_EngineFailure(t *testing.T) {
	r := &mockRunner{}
	failure := &prompt.Failure{Kind: prompt.ErrPermanent, Model: "m", Attempts: 1, Err: errors.New("bad request")}
	r.On("RunDefault", mock.Anything, mock.Anything).Return("", failure).Once()

	data, err := newTestFiller(r).FillInForm(context.Background(), taskForm, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, prompt.ErrPermanent)
	assert.True(t, data.IsEmpty())

	var xerr *ExtractionError
	assert.False(t, errors.As(err, &xerr))
}

func TestFillInForm_DropsUnknownFields(t *testing.T) {
	logs := observeLogs(t)
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).
		Return(`{"name": "Ship it", "priority": "P1", "assignee": "Bob"}`, nil).Once()

	data, err := newTestFiller(r).FillInForm(context.Background(), taskForm, "x")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ship it", "priority": "P1"}, data.ToDict())
	assert.Equal(t, 1, logs.FilterMessage("form: skipping unknown field").Len())
}

func TestFillInForm_PromptContents(t *testing.T) {
	r := &mockRunner{}
	var sent string
	r.On("RunDefault", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { sent = args.String(1) }).
		Return(`{}`, nil).Once()

	clock := func() time.Time { return time.Date(2024, 3, 5, 22, 41, 0, 0, time.UTC) }
	_, err := newTestFiller(r, WithClock(clock)).FillInForm(context.Background(), taskForm, "my note", WithCurrentTime())
	require.NoError(t, err)

	assert.Contains(t, sent, `"name": "text field representing Task Title"`)
	assert.Contains(t, sent,
		`"priority": "select field representing Priority restricted to these options defined as a list of (label, value) `+
			`[('P0 (today)', 'P0'), ('P1 (this week)', 'P1'), ('P2 (later)', 'P2')] pick the most suitable value."`)
	assert.Contains(t, sent, "Using this note:\nmy note")
	// 22:41 UTC is 14:41 PST.
	assert.Contains(t, sent, "General context: Current time is 2024-03-05 02 PM PST")
}

func TestFillInForm_NoCurrentTimeByDefault(t *testing.T) {
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.MatchedBy(func(p string) bool {
		return !strings.Contains(p, "General context")
	})).Return(`{}`, nil).Once()

	_, err := newTestFiller(r).FillInForm(context.Background(), taskForm, "note")
	require.NoError(t, err)
	r.AssertExpectations(t)
}

// --- FillInMultiEntryForm ---

func TestFillInMultiEntryForm_DropsUnknownKey(t *testing.T) {
	logs := observeLogs(t)
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).Return(`[
		{"ingredient": "eggs", "amount": "two"},
		{"ingredient": "toast", "amount": "a slice", "foo": "bar"},
		{"ingredient": "coffee", "amount": null}
	]`, nil).Once()

	rows, err := newTestFiller(r).FillInMultiEntryForm(context.Background(), foodForm, "breakfast")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		_, ok := row.ToDict()["foo"]
		assert.False(t, ok)
	}
	assert.Equal(t, "toast", rows[1].String("ingredient"))
	assert.Equal(t, 1, logs.FilterMessage("form: skipping unknown field").Len())
}

func TestFillInMultiEntryForm_SkipsNonObjects(t *testing.T) {
	logs := observeLogs(t)
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).
		Return(`[{"ingredient": "eggs"}, "just a string", 42]`, nil).Once()

	rows, err := newTestFiller(r).FillInMultiEntryForm(context.Background(), foodForm, "x")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, logs.FilterMessage("extract: form entry is not an object, skipping").Len())
}

func TestFillInMultiEntryForm_NotAList(t *testing.T) {
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).Return(`{"ingredient": "eggs"}`, nil).Once()

	rows, err := newTestFiller(r).FillInMultiEntryForm(context.Background(), foodForm, "x")
	var xerr *ExtractionError
	require.ErrorAs(t, err, &xerr)
	assert.Equal(t, "list", xerr.Expected)
	assert.Empty(t, rows)
}

func TestFillInMultiEntryForm_EmptyList(t *testing.T) {
	r := &mockRunner{}
	r.On("RunDefault", mock.Anything, mock.Anything).Return(`[]`, nil).Once()

	rows, err := newTestFiller(r).FillInMultiEntryForm(context.Background(), foodForm, "irrelevant")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// --- prompt construction ---

func TestFieldPrompt_TruncatesOptions(t *testing.T) {
	logs := observeLogs(t)
	opts := make([]form.Option, 12)
	for i := range opts {
		opts[i] = form.Option{Label: string(rune('A' + i)), Value: string(rune('a' + i))}
	}
	def := form.MustDefinition("letters", form.FieldSpec{Name: "letter", Type: form.TypeRadio, Label: "Letter", Options: opts})

	p := fieldPrompt(def.Fields()[0], DefaultMaxOptions)
	assert.Contains(t, p, "('J', 'j')")
	assert.NotContains(t, p, "('K', 'k')")
	assert.Equal(t, 1, logs.FilterMessage("extract: too many options, shortening").Len())
}

func TestFormPrompt_SkipsIgnoredFields(t *testing.T) {
	def := form.MustDefinition("f",
		form.FieldSpec{Name: "a", Type: form.TypeText, Label: "A", Description: "first"},
		form.FieldSpec{Name: "hidden", Type: form.TypeText, Label: "Hidden", IgnoreInPrompt: true},
		form.FieldSpec{Name: "b", Type: form.TypeNumber, Label: "B"},
	)
	assert.Equal(t,
		"\"a\": \"text field representing A described as first\",\n\"b\": \"number field representing B\"",
		formPrompt(def, DefaultMaxOptions))
}

func TestOptionList_QuotesApostrophes(t *testing.T) {
	assert.Equal(t, `[("Don't", 'no')]`, optionList([]form.Option{{Label: "Don't", Value: "no"}}))
}
