package mailprobe

import "github.com/mailprobe/mailprobe/types"

// Summary tallies a batch of records by outcome.
type Summary struct {
	Total    int                   `json:"total"`
	ByStatus map[types.Outcome]int `json:"by_status"`
}

// Summarize builds the end-of-batch statistics block.
func Summarize(records []types.Record) Summary {
	s := Summary{Total: len(records), ByStatus: make(map[types.Outcome]int)}
	for _, r := range records {
		s.ByStatus[r.Status]++
	}
	return s
}

// Count returns how many records ended with the given outcome.
func (s Summary) Count(o types.Outcome) int {
	return s.ByStatus[o]
}
