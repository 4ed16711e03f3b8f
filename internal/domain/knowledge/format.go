package knowledge

import (
	"fmt"
	"strings"
)

// FormatMatches renders ranked matches as numbered blocks separated by a
// blank line. The block is forwarded verbatim into the LLM context.
func FormatMatches(matches []Match) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("%d. Вопрос: %s\nСходство: %.3f\nОтвет: %s", i+1, m.Question, m.Score, m.Answer)
	}
	return strings.Join(blocks, "\n\n")
}
