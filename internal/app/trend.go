package app

import "airbnb_kpi/internal/domain"

// GrowthRate is the percent change from prev to cur.
//
// Growth from zero is 100 (it "grew from nothing"); zero to zero is 0.
// A nil on either side yields nil.
func GrowthRate(prev, cur *float64) *float64 {
	if prev == nil || cur == nil {
		return nil
	}
	if *prev == 0 {
		if *cur == 0 {
			return ptr(0.0)
		}
		return ptr(100.0)
	}
	return ptr((*cur - *prev) / *prev * 100)
}

// Growth derives period-over-period growth for each dimension of s.
// Points must be in chronological order; the first period of every
// dimension has no predecessor and gets a nil value. A dimension that skips
// a month is compared with its last month that has data.
func Growth(name string, s domain.Series) domain.Series {
	out := domain.Series{Name: name, Dimension: s.Dimension, Points: make([]domain.Point, 0, len(s.Points))}
	prev := make(map[string]domain.Point)
	for _, p := range s.Points {
		g := domain.Point{Month: p.Month, Dimension: p.Dimension}
		if last, ok := prev[p.Dimension]; ok {
			g.Value = GrowthRate(last.Value, p.Value)
		}
		prev[p.Dimension] = p
		out.Points = append(out.Points, g)
	}
	return out
}
