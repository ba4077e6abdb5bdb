package executor

import "strings"

// expandTemplate converts a replacement written with backslash group
// references (\1, \g<1>, \g<name>) into a regexp.Expand template. Literal
// dollars are escaped; \n, \t and \\ become their characters.
func expandTemplate(rep string) string {
	if !strings.ContainsAny(rep, `\$`) {
		return rep
	}
	var b strings.Builder
	for i := 0; i < len(rep); i++ {
		c := rep[i]
		if c == '$' {
			b.WriteString("$$")
			continue
		}
		if c != '\\' || i+1 >= len(rep) {
			b.WriteByte(c)
			continue
		}
		next := rep[i+1]
		switch {
		case next >= '0' && next <= '9':
			j := i + 1
			for j < len(rep) && j < i+3 && rep[j] >= '0' && rep[j] <= '9' {
				j++
			}
			b.WriteString("${" + rep[i+1:j] + "}")
			i = j - 1
		case next == 'g' && i+2 < len(rep) && rep[i+2] == '<':
			end := strings.IndexByte(rep[i+3:], '>')
			if end < 0 {
				b.WriteString(`\g`)
				i++
				continue
			}
			b.WriteString("${" + rep[i+3:i+3+end] + "}")
			i += 3 + end
		case next == 'n':
			b.WriteByte('\n')
			i++
		case next == 't':
			b.WriteByte('\t')
			i++
		case next == '\\':
			b.WriteByte('\\')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
