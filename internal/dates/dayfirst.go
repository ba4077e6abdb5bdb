package dates

import (
	"regexp"
	"strconv"
)

// Verdict is the outcome of GuessDayFirst.
type Verdict int

const (
	Undetermined Verdict = iota
	DayFirst
	MonthFirst
)

func (v Verdict) String() string {
	switch v {
	case DayFirst:
		return "day-first"
	case MonthFirst:
		return "month-first"
	}
	return "undetermined"
}

// MaxGuessSamples bounds how many values GuessDayFirst looks at.
const MaxGuessSamples = 200

var (
	abcRx     = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	dayLikeRx = regexp.MustCompile(`\b(1[3-9]|2[0-9]|3[01])\b`)
)

// GuessDayFirst votes over samples shaped A/B/C. A sample with A in 13..31
// and B <= 12 is a day-first vote. A sample with both A and B <= 12 votes
// day-first only when another number in the string lies in 13..31. The result
// is DayFirst when votes reach a third of the hits (at least one).
func GuessDayFirst(samples []string) Verdict {
	hits, votes, monthProof := 0, 0, 0
	for i, s := range samples {
		if i >= MaxGuessSamples {
			break
		}
		m := abcRx.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		switch {
		case a <= 12 && b <= 12:
			hits++
			if dayLikeRx.MatchString(s) {
				votes++
			}
		case a >= 13 && a <= 31 && b <= 12:
			hits++
			votes++
		case a <= 12 && b >= 13 && b <= 31:
			hits++
			monthProof++
		}
	}
	if hits == 0 {
		return Undetermined
	}
	need := hits / 3
	if need < 1 {
		need = 1
	}
	if votes >= need {
		return DayFirst
	}
	if monthProof > 0 {
		return MonthFirst
	}
	return Undetermined
}
