// Package safety implements the static pre-execution check for
// generated code. It is a substring blocklist: fast, predictable, and
// deliberately dumb. It has false positives (a pattern inside a string
// literal or comment) and false negatives (aliased or obfuscated
// forms). It is an advisory gate only — the resource-limited sandbox
// process is the actual isolation boundary.
package safety

import (
	"fmt"
	"strings"
)

// Rule pairs a literal pattern with the category of behavior it flags.
type Rule struct {
	Pattern  string
	Category string
}

// Violation reports the first blocklist rule matched in a code sample.
type Violation struct {
	Pattern  string
	Category string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("blocked: code contains %q (%s)", v.Pattern, v.Category)
}

// DefaultRules is the ordered blocklist applied by NewScanner. Order
// matters: scanning stops at the first match.
var DefaultRules = []Rule{
	{"import shutil", "filesystem manipulation"},
	{"rmdir", "directory deletion"},
	{"os.remove", "file deletion"},
	{"subprocess", "subprocess spawning"},
	{"__import__", "dynamic imports"},
	{"eval(", "dynamic code evaluation"},
	{"exec(", "dynamic code execution"},
	{"open(", "file system access"},
	{"socket", "network access"},
	{"requests", "network access"},
	{"urllib", "network access"},
}

// Scanner checks code samples against an ordered blocklist.
type Scanner struct {
	rules []Rule
}

// NewScanner returns a scanner using DefaultRules.
func NewScanner() *Scanner {
	return &Scanner{rules: DefaultRules}
}

// NewScannerWithRules returns a scanner using a custom ordered rule list.
func NewScannerWithRules(rules []Rule) *Scanner {
	return &Scanner{rules: rules}
}

// Check scans the literal source text and returns whether it is safe to
// execute, plus a human-readable reason. Pure function of the text; no
// side effects.
func (s *Scanner) Check(code string) (bool, string) {
	if v := s.Scan(code); v != nil {
		return false, v.Error()
	}
	return true, "code passed safety check"
}

// Scan returns the first matching violation in rule order, or nil if no
// rule matches. Substring containment, not syntactic analysis.
func (s *Scanner) Scan(code string) *Violation {
	for _, r := range s.rules {
		if strings.Contains(code, r.Pattern) {
			return &Violation{Pattern: r.Pattern, Category: r.Category}
		}
	}
	return nil
}
