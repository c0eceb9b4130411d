package model

import "time"

// Span is a closed time interval [Start, End] in epoch seconds.
type Span struct {
	Start float64
	End   float64
}

// NewSpan builds a span, swapping the bounds if they arrive reversed.
func NewSpan(start, end float64) Span {
	if end < start {
		start, end = end, start
	}
	return Span{Start: start, End: end}
}

// IsZero reports whether the span is the zero value.
func (s Span) IsZero() bool {
	return s.Start == 0 && s.End == 0
}

// Contains reports whether t falls within the closed interval.
func (s Span) Contains(t float64) bool {
	return t >= s.Start && t <= s.End
}

// Touches reports whether the two closed intervals overlap or share an
// endpoint, i.e. whether their union is a single interval.
func (s Span) Touches(o Span) bool {
	return s.Start <= o.End && o.Start <= s.End
}

// Union returns the smallest span covering both s and o.
func (s Span) Union(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// Duration returns the span length.
func (s Span) Duration() time.Duration {
	return time.Duration((s.End - s.Start) * float64(time.Second))
}
