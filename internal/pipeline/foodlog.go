package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/formfill-cli/internal/extract"
	"github.com/sells-group/formfill-cli/internal/form"
	"github.com/sells-group/formfill-cli/internal/formlib"
)

// FoodLog turns a spoken food diary entry into one row per item eaten.
type FoodLog struct {
	filler *extract.Filler
	def    *form.Definition
}

// NewFoodLog creates the flow on top of filler.
func NewFoodLog(filler *extract.Filler) (*FoodLog, error) {
	def, err := formlib.Get(formlib.FoodLog)
	if err != nil {
		return nil, err
	}
	return &FoodLog{filler: filler, def: def}, nil
}

// Run returns the food log rows found in transcript. The model is told the
// current time so relative times resolve. An unparseable answer yields no
// rows and an *extract.ExtractionError.
func (f *FoodLog) Run(ctx context.Context, transcript string) ([]*form.Data, error) {
	rows, err := f.filler.FillInMultiEntryForm(ctx, f.def, transcript, extract.WithCurrentTime())
	if err != nil {
		if isExtractionError(err) {
			return rows, err
		}
		return nil, eris.Wrap(err, "pipeline: food log")
	}
	zap.L().Info("pipeline: food log flow complete", zap.Int("rows", len(rows)))
	return rows, nil
}
