package domain

// DaySummary is the two-field completion state rendered in a calendar cell.
type DaySummary struct {
	Remaining int  `json:"remaining"`
	IsAllDone bool `json:"isAllDone"`
}

// Summarize derives the completion summary for one day by flattening every
// category. A day with zero tasks is never all done.
func Summarize(r DayRecord) DaySummary {
	total := 0
	remaining := 0
	for _, seq := range r.Tasks {
		total += len(seq)
		for _, t := range seq {
			if !t.Done {
				remaining++
			}
		}
	}
	return DaySummary{
		Remaining: remaining,
		IsAllDone: total > 0 && remaining == 0,
	}
}

// ComputeSummaries rebuilds the date-keyed summary map from a full collection
// snapshot. Recomputation from scratch is deliberate: it is cheap at this
// scale and cannot drift from the stored records.
func ComputeSummaries(records map[string]DayRecord) map[string]DaySummary {
	out := make(map[string]DaySummary, len(records))
	for date, rec := range records {
		out[date] = Summarize(rec)
	}
	return out
}
