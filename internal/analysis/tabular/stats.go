package tabular

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// ColumnSummary is the per-column statistical profile shown in the report.
// Numeric measures are present only when the column holds at least one
// parseable number.
type ColumnSummary struct {
	Name     string
	Count    int
	Nulls    int
	Distinct int

	Numeric bool
	Min     float64
	Max     float64
	Mean    float64
	StdDev  float64

	// TopValues holds up to five most frequent values for non-numeric
	// columns, most frequent first.
	TopValues []ValueCount
}

type ValueCount struct {
	Value string
	Count int
}

// summarize profiles every column of the table.
func summarize(t *Table) []ColumnSummary {
	summaries := make([]ColumnSummary, len(t.Columns))
	for i, name := range t.Columns {
		summaries[i] = summarizeColumn(t, i, name)
	}
	return summaries
}

func summarizeColumn(t *Table, idx int, name string) ColumnSummary {
	s := ColumnSummary{Name: name}

	var values []float64
	freq := make(map[string]int)

	for _, row := range t.Rows {
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			s.Nulls++
			continue
		}
		s.Count++
		freq[cell]++

		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			values = append(values, v)
		}
	}

	s.Distinct = len(freq)

	// a column is numeric when every non-empty cell parses as a number
	if len(values) > 0 && len(values) == s.Count {
		s.Numeric = true
		s.Min, s.Max, s.Mean, s.StdDev = describe(values)
		return s
	}

	s.TopValues = topValues(freq, 5)
	return s
}

func describe(values []float64) (min, max, mean, stddev float64) {
	min = values[0]
	max = values[0]
	sum := 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	if len(values) > 1 {
		stddev = math.Sqrt(sq / float64(len(values)-1))
	}
	return min, max, mean, stddev
}

func topValues(freq map[string]int, n int) []ValueCount {
	out := make([]ValueCount, 0, len(freq))
	for v, c := range freq {
		out = append(out, ValueCount{Value: v, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Value < out[j].Value
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
