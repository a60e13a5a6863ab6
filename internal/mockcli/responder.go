// Package mockcli is a canned-response stand-in for the cloud CLI that
// validated scripts call. It never touches the network: every command line
// is answered from a fixed, ordered rule table.
package mockcli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule answers command lines it matches. Exactly one of Exact or Contains is
// set. Contains is an ordered list of substrings that must appear in that
// order, the same semantics as the shell pattern *'a'*'b'*.
type Rule struct {
	Name     string   `yaml:"name"`
	Exact    string   `yaml:"exact"`
	Contains []string `yaml:"contains"`
	Stdout   string   `yaml:"stdout"`
	Stderr   string   `yaml:"stderr"`
	ExitCode int      `yaml:"exit_code"`
}

func (r Rule) matches(line string) bool {
	if r.Exact != "" {
		return line == r.Exact
	}
	rest := line
	for _, part := range r.Contains {
		i := strings.Index(rest, part)
		if i < 0 {
			return false
		}
		rest = rest[i+len(part):]
	}
	return true
}

type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Responder holds an immutable rule table for one command name.
//
// Scripts only ever talk to the bash rendering from Script, installed by
// Install. Match and Respond evaluate the same table in Go; they are the
// reference the rendered script is tested against and are not called on
// the validation path.
type Responder struct {
	command string
	rules   []Rule
}

// New validates rules and returns a Responder. Rules are tried in order.
func New(command string, rules []Rule) (*Responder, error) {
	if command == "" || strings.ContainsRune(command, '/') {
		return nil, fmt.Errorf("invalid mock command name %q", command)
	}
	for i, r := range rules {
		if (r.Exact == "") == (len(r.Contains) == 0) {
			return nil, fmt.Errorf("rule %d (%s): exactly one of exact or contains is required", i, r.Name)
		}
		for _, part := range r.Contains {
			if part == "" {
				return nil, fmt.Errorf("rule %d (%s): empty contains pattern", i, r.Name)
			}
		}
		if r.ExitCode < 0 || r.ExitCode > 255 {
			return nil, fmt.Errorf("rule %d (%s): exit code %d out of range", i, r.Name, r.ExitCode)
		}
	}
	return &Responder{command: command, rules: append([]Rule(nil), rules...)}, nil
}

// NewDefault returns a Responder over DefaultRules.
func NewDefault(command string) (*Responder, error) {
	return New(command, DefaultRules())
}

func (r *Responder) Command() string { return r.command }

// Match returns the first rule matching line. The installed script must
// pick the same rule.
func (r *Responder) Match(line string) (Rule, bool) {
	for _, rule := range r.rules {
		if rule.matches(line) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Respond answers line. Unmatched lines are echoed on stderr with exit 0.
func (r *Responder) Respond(line string) Response {
	if rule, ok := r.Match(line); ok {
		return Response{Stdout: rule.Stdout, Stderr: rule.Stderr, ExitCode: rule.ExitCode}
	}
	return Response{Stderr: fmt.Sprintf("Mock %s - Command: %s\n", r.command, line)}
}

// Install writes an executable responder named after the command into dir
// and returns its path. dir must be private to one evaluation.
func (r *Responder) Install(dir string) (string, error) {
	path := filepath.Join(dir, r.command)
	if err := os.WriteFile(path, []byte(r.Script()), 0o755); err != nil {
		return "", fmt.Errorf("writing mock %s: %w", r.command, err)
	}
	// WriteFile honours umask; the responder must stay executable.
	if err := os.Chmod(path, 0o755); err != nil {
		return "", fmt.Errorf("chmod mock %s: %w", r.command, err)
	}
	return path, nil
}

// Script renders the rule table as a bash case statement over "$*".
func (r *Responder) Script() string {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	fmt.Fprintf(&b, "# mock %s generated by scriptgate\n\n", r.command)
	b.WriteString("case \"$*\" in\n")
	for _, rule := range r.rules {
		fmt.Fprintf(&b, "    %s)\n", casePattern(rule))
		if rule.Stdout != "" {
			fmt.Fprintf(&b, "        printf '%%s' %s\n", shellQuote(rule.Stdout))
		}
		if rule.Stderr != "" {
			fmt.Fprintf(&b, "        printf '%%s' %s >&2\n", shellQuote(rule.Stderr))
		}
		fmt.Fprintf(&b, "        exit %d\n        ;;\n", rule.ExitCode)
	}
	b.WriteString("    *)\n")
	fmt.Fprintf(&b, "        printf 'Mock %%s - Command: %%s\\n' %s \"$*\" >&2\n", shellQuote(r.command))
	b.WriteString("        exit 0\n        ;;\nesac\n")
	return b.String()
}

func casePattern(rule Rule) string {
	if rule.Exact != "" {
		return shellQuote(rule.Exact)
	}
	parts := make([]string, len(rule.Contains))
	for i, p := range rule.Contains {
		parts[i] = shellQuote(p)
	}
	return "*" + strings.Join(parts, "*") + "*"
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules file of the form {rules: [...]}.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock rules %s: %w", path, err)
	}
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing mock rules %s: %w", path, err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("mock rules %s: no rules defined", path)
	}
	return f.Rules, nil
}
