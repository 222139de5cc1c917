package report

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-strategy/internal/model"
)

// JSON writes the full report as indented JSON.
type JSON struct {
	W io.Writer
}

func (j *JSON) Emit(_ context.Context, r *model.Report) error {
	enc := json.NewEncoder(j.W)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(r), "report: encode json")
}
