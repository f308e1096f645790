package dashboard

import (
	"github.com/montanaflynn/stats"

	"partsdash/internal/backend"
)

// Summary describes the predicted monthly demand across a Top-100 list.
type Summary struct {
	Count  int     `json:"count"`
	Total  float64 `json:"total"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
	Max    float64 `json:"max"`
}

// Summarize computes the demand summary. An empty list yields zeros.
func Summarize(entries []backend.Top100Entry) (Summary, error) {
	if len(entries) == 0 {
		return Summary{}, nil
	}
	data := make([]float64, len(entries))
	for i, e := range entries {
		data[i] = e.PredictedMonthly.InexactFloat64()
	}

	var (
		s   = Summary{Count: len(entries)}
		err error
	)
	if s.Total, err = stats.Sum(data); err != nil {
		return Summary{}, err
	}
	if s.Mean, err = stats.Mean(data); err != nil {
		return Summary{}, err
	}
	if s.Median, err = stats.Median(data); err != nil {
		return Summary{}, err
	}
	if s.P90, err = stats.Percentile(data, 90); err != nil {
		return Summary{}, err
	}
	if s.Max, err = stats.Max(data); err != nil {
		return Summary{}, err
	}
	return s, nil
}
