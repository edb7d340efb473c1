package safety

import (
	"strings"
	"testing"
)

func TestCheckBlocksDangerousPatterns(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		pattern  string
		category string
	}{
		{"subprocess", "import subprocess\nsubprocess.run(['ls'])", "subprocess", "subprocess spawning"},
		{"shutil", "import shutil\nshutil.rmtree('/tmp/x')", "import shutil", "filesystem manipulation"},
		{"eval", "x = eval('1+1')", "eval(", "dynamic code evaluation"},
		{"exec", "exec('print(1)')", "exec(", "dynamic code execution"},
		{"open", "f = open('data.txt')", "open(", "file system access"},
		{"socket", "import socket", "socket", "network access"},
		{"requests", "import requests", "requests", "network access"},
		{"urllib", "from urllib import request", "urllib", "network access"},
		{"dynamic import", "__import__('os')", "__import__", "dynamic imports"},
		{"os.remove", "import os\nos.remove('x')", "os.remove", "file deletion"},
		{"rmdir", "import os\nos.rmdir('x')", "rmdir", "directory deletion"},
	}

	s := NewScanner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, reason := s.Check(tt.code)
			if safe {
				t.Fatalf("expected code to be blocked, got safe (%s)", reason)
			}
			if !strings.Contains(reason, tt.pattern) {
				t.Errorf("reason %q does not name pattern %q", reason, tt.pattern)
			}
			if !strings.Contains(reason, tt.category) {
				t.Errorf("reason %q does not name category %q", reason, tt.category)
			}
		})
	}
}

func TestCheckAllowsSafeCode(t *testing.T) {
	code := "def fib(n):\n    a, b = 0, 1\n    for _ in range(n):\n        a, b = b, a + b\n    return a\n\nprint(fib(10))"
	safe, reason := NewScanner().Check(code)
	if !safe {
		t.Fatalf("expected safe, got blocked: %s", reason)
	}
}

func TestCheckFirstMatchWins(t *testing.T) {
	// "rmdir" precedes "os.remove" in the rule list and both appear.
	code := "import os\nos.rmdir('a')\nos.remove('b')"
	v := NewScanner().Scan(code)
	if v == nil {
		t.Fatal("expected a violation")
	}
	if v.Pattern != "rmdir" {
		t.Errorf("expected first-listed pattern %q to win, got %q", "rmdir", v.Pattern)
	}
}

func TestCheckMatchesInsideStringsAndComments(t *testing.T) {
	// Substring containment is the documented contract: false positives
	// inside comments are expected, not a bug.
	code := "# do not call eval( anything\nprint('ok')"
	if safe, _ := NewScanner().Check(code); safe {
		t.Fatal("expected a comment mention of a pattern to be blocked")
	}
}

func TestScanIsPure(t *testing.T) {
	s := NewScanner()
	code := "import socket"
	first := s.Scan(code)
	second := s.Scan(code)
	if first == nil || second == nil || *first != *second {
		t.Fatalf("expected identical violations, got %v and %v", first, second)
	}
}

func TestCustomRuleOrder(t *testing.T) {
	s := NewScannerWithRules([]Rule{
		{"bbb", "second"},
		{"aaa", "first"},
	})
	v := s.Scan("aaa bbb")
	if v == nil || v.Pattern != "bbb" {
		t.Fatalf("expected rule-list order to decide the match, got %v", v)
	}
}
