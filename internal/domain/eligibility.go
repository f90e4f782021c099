package domain

// NoDataMessage is reported when no record passes the completeness check.
const NoDataMessage = "No complete and valid reviews found."

// IsComplete reports whether rec carries a reviewer name, a candidate
// name, a final recommendation, at least one criterion score and a raw
// total. Only complete records are aggregated.
func IsComplete(rec RawRecord, f FieldMap) bool {
	if !rec.Has(f.Reviewer) || !rec.Has(f.Candidate) || !rec.Has(f.Recommendation) || !rec.Has(f.Total) {
		return false
	}
	for _, field := range f.Scores {
		if rec.Has(field) {
			return true
		}
	}
	return false
}

// CompleteRecords returns the records that pass IsComplete, in input
// order.
func CompleteRecords(records []RawRecord, f FieldMap) []RawRecord {
	out := make([]RawRecord, 0, len(records))
	for _, rec := range records {
		if IsComplete(rec, f) {
			out = append(out, rec)
		}
	}
	return out
}
