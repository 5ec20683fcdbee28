package extract

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/salvage"
)

type fillOptions struct {
	currentTime bool
}

// FillOption adjusts a single fill call.
type FillOption func(*fillOptions)

// WithCurrentTime tells the model the current hour, for forms whose dates
// are relative ("this morning", "yesterday").
func WithCurrentTime() FillOption {
	return func(o *fillOptions) { o.currentTime = true }
}

func (f *Filler) extraContext(opts []FillOption) string {
	var o fillOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.currentTime {
		return ""
	}
	return currentTimeContext(f.now())
}

// FillInForm fills one record of def from text. When the model answer
// cannot be read as a JSON object the returned record is empty and the error
// is an *ExtractionError. A model failure returns an empty record and the
// wrapped engine error.
func (f *Filler) FillInForm(ctx context.Context, def *form.Definition, text string, opts ...FillOption) (*form.Data, error) {
	query := fmt.Sprintf(fillInFormPrompt, formPrompt(def, f.cfg.MaxOptions), text, f.extraContext(opts))

	raw, err := f.runner.RunDefault(ctx, query)
	if err != nil {
		return form.NewData(def), eris.Wrapf(err, "extract: fill in form %s", def.Name())
	}

	parsed, ok := salvage.Parse(raw)
	obj, isObj := parsed.(map[string]any)
	if !ok || !isObj {
		xerr := &ExtractionError{Op: "fill_in_form", Expected: "object", Response: raw}
		zap.L().Error("extract: model answer is not a form object",
			zap.String("form", def.Name()),
			zap.String("response", truncate(raw)),
		)
		return form.NewData(def), xerr
	}

	data := form.NewData(def)
	data.Populate(obj)
	return data, nil
}

// FillInMultiEntryForm fills one record of def per entry the model finds in
// text. Entries that are not JSON objects are skipped with a warning.
func (f *Filler) FillInMultiEntryForm(ctx context.Context, def *form.Definition, text string, opts ...FillOption) ([]*form.Data, error) {
	query := fmt.Sprintf(fillInMultiEntryFormPrompt, formPrompt(def, f.cfg.MaxOptions), text, f.extraContext(opts))

	raw, err := f.runner.RunDefault(ctx, query)
	if err != nil {
		return []*form.Data{}, eris.Wrapf(err, "extract: fill in multi entry form %s", def.Name())
	}

	parsed, ok := salvage.Parse(raw)
	items, isList := parsed.([]any)
	if !ok || !isList {
		zap.L().Error("extract: model answer is not a list of form entries",
			zap.String("form", def.Name()),
			zap.String("response", truncate(raw)),
		)
		return []*form.Data{}, &ExtractionError{Op: "fill_in_multi_entry_form", Expected: "list", Response: raw}
	}

	out := make([]*form.Data, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			zap.L().Warn("extract: form entry is not an object, skipping",
				zap.String("form", def.Name()),
				zap.Int("index", i),
				zap.Any("entry", item),
			)
			continue
		}
		data := form.NewData(def)
		data.Populate(obj)
		out = append(out, data)
	}
	return out, nil
}
