package weather

// Plan returns one WorkItem per (station, chunk) pair, stations outer and
// chunks inner. An empty chunk list yields an empty plan.
func Plan(stations []Station, chunks []DateChunk) ([]WorkItem, error) {
	if len(stations) == 0 {
		return nil, ErrEmptyInput
	}

	items := make([]WorkItem, 0, len(stations)*len(chunks))
	for _, st := range stations {
		for _, ch := range chunks {
			items = append(items, WorkItem{
				Index:   len(items),
				Station: st,
				Chunk:   ch,
			})
		}
	}
	return items, nil
}
