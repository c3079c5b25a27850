package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/and161185/pto-keeper/internal/model"
)

// parseYears parses "2024=3,2025=1.5" into years. An empty string yields an empty map.
func parseYears(s string) (model.Years, error) {
	years := model.Years{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("bad year entry %q (want YEAR=DAYS)", part)
		}
		year, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("bad year %q", k)
		}
		days, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("bad days %q for %d", v, year)
		}
		if _, dup := years[year]; dup {
			return nil, fmt.Errorf("year %d given twice", year)
		}
		years[year] = model.YearEntry{Days: days}
	}
	return years, nil
}

// formatYears is the inverse of parseYears, ordered by year.
func formatYears(y model.Years) string {
	keys := make([]int, 0, len(y))
	for k := range y {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d=%s", k, strconv.FormatFloat(y[k].Days, 'f', -1, 64)))
	}
	return strings.Join(parts, ",")
}
