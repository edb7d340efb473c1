package agent

import (
	"fmt"
	"regexp"
	"strings"
)

const systemPrompt = `You are an expert Python coding agent. Your job is to write correct, working Python code to achieve a given goal.

Rules you must follow:
1. Always wrap your code in ` + "```python ... ```" + ` markdown blocks
2. Write complete, runnable code - no placeholders or TODOs
3. Only use the Python standard library - no external packages
4. Keep code simple and focused on the goal
5. If you are given an error from a previous attempt, fix it

When you respond, always:
- Briefly explain what you are doing (1-2 sentences)
- Then provide the complete code block`

var codeBlockRe = regexp.MustCompile("(?s)```python\n(.*?)```")

// ExtractCode pulls the first Python code block out of a markdown
// response. Returns the empty string when no block is present.
func ExtractCode(text string) string {
	m := codeBlockRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// buildUserPrompt combines the goal with the memory's reflection
// digest. The first iteration gets the bare goal; later iterations see
// what already went wrong.
func buildUserPrompt(goal string, iteration int, mem interface{ Reflection() string }) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", goal)

	reflection := ""
	if mem != nil {
		reflection = mem.Reflection()
	}
	if iteration == 1 || reflection == "" {
		b.WriteString("This is your first attempt. Write code to achieve the goal.")
		return b.String()
	}

	b.WriteString(reflection)
	b.WriteString("\nAnalyze the failures above and write a corrected version of the code.")
	return b.String()
}
