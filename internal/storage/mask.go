package storage

// Mask is a boolean selection vector aligned 1:1 with table rows.
type Mask []bool

// NewMask returns a mask of n rows all set to v.
func NewMask(n int, v bool) Mask {
	m := make(Mask, n)
	if v {
		for i := range m {
			m[i] = true
		}
	}
	return m
}

// Count returns the number of selected rows.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Or returns the element-wise union of m and o.
func (m Mask) Or(o Mask) Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = m[i] || (i < len(o) && o[i])
	}
	return out
}

// And returns the element-wise intersection of m and o.
func (m Mask) And(o Mask) Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = m[i] && i < len(o) && o[i]
	}
	return out
}

// Positions returns the zero-based positions of selected rows.
func (m Mask) Positions() []int {
	var out []int
	for i, v := range m {
		if v {
			out = append(out, i)
		}
	}
	return out
}

// Pick returns a mask that selects only the given positions.
// Positions outside [0, n) are skipped.
func Pick(n int, positions []int) Mask {
	out := make(Mask, n)
	for _, p := range positions {
		if p >= 0 && p < n {
			out[p] = true
		}
	}
	return out
}

// LabelsOf returns the row labels selected by m, capped at limit (0 = no cap).
func (t *Table) LabelsOf(m Mask, limit int) []int {
	out := []int{}
	for i, v := range m {
		if !v {
			continue
		}
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, t.Labels[i])
	}
	return out
}
