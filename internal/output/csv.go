package output

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/i474232898/frost-ingest/internal/weather"
)

// CSVHeader is the first record of every file.
var CSVHeader = []string{"station_id", "station_name", "el_area", "reference_time", "precipitation_mm", "quality_code"}

// CSVWriter is a weather.Sink rendering rows as CSV into a FileStorage.
// Missing values become empty cells.
type CSVWriter struct {
	path    string
	storage FileStorage
	logger  zerolog.Logger
}

func NewCSVWriter(path string, storage FileStorage, logger zerolog.Logger) *CSVWriter {
	if storage == nil {
		storage = LocalStorage{}
	}
	return &CSVWriter{path: path, storage: storage, logger: logger}
}

func (w *CSVWriter) Name() string { return "csv" }

// Write replaces the file at path with rows. The range is not used.
func (w *CSVWriter) Write(ctx context.Context, _, _ time.Time, rows []weather.Observation) (int, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, rows); err != nil {
		return 0, err
	}
	w.logger.Info().Str("path", w.path).Int("rows", len(rows)).Msg("Writing CSV")
	if err := w.storage.Store(ctx, w.path, &buf); err != nil {
		return 0, errors.WithMessage(err, "store csv")
	}
	return len(rows), nil
}

// EncodeCSV writes the header followed by one record per row.
func EncodeCSV(buf *bytes.Buffer, rows []weather.Observation) error {
	cw := csv.NewWriter(buf)
	if err := cw.Write(CSVHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range rows {
		var precip, quality string
		if r.PrecipitationMM != nil {
			precip = strconv.FormatFloat(*r.PrecipitationMM, 'f', -1, 64)
		}
		if r.QualityCode != nil {
			quality = strconv.Itoa(*r.QualityCode)
		}
		if err := cw.Write([]string{r.StationID, r.StationName, string(r.Area), r.Date, precip, quality}); err != nil {
			return errors.Wrapf(err, "write csv record for %s %s", r.StationID, r.Date)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}
