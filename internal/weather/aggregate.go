package weather

import (
	"sort"
)

// Aggregate folds task outcomes into a single result. If any task failed, all
// rows are discarded and an *AggregateError lists the failures in plan order.
// Row order across tasks is unspecified.
func Aggregate(outcomes []TaskOutcome) ([]Observation, error) {
	var (
		failed []TaskOutcome
		total  int
	)

	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
			continue
		}
		total += len(o.Rows)
	}

	if len(failed) > 0 {
		sort.SliceStable(failed, func(i, j int) bool {
			return failed[i].Item.Index < failed[j].Item.Index
		})
		failures := make([]*FetchError, 0, len(failed))
		for _, o := range failed {
			failures = append(failures, &FetchError{
				StationID: o.Item.Station.ID,
				Chunk:     o.Item.Chunk,
				Err:       o.Err,
			})
		}
		return nil, &AggregateError{Failures: failures}
	}

	rows := make([]Observation, 0, total)
	for _, o := range outcomes {
		rows = append(rows, o.Rows...)
	}
	return rows, nil
}
