package validation

import "strings"

// ComplianceChecks is the contribution checklist applied to a script's raw
// text. Adding a row changes the denominator of the compliance score.
var ComplianceChecks = []Check[string]{
	{
		ID:          "bash_shell",
		Description: "Uses bash shell",
		Pass:        func(s string) bool { return strings.HasPrefix(s, "#!/bin/bash") },
	},
	{
		ID:          "test_date",
		Description: "Contains test date",
		Pass:        func(s string) bool { return strings.Contains(s, "Last tested:") },
	},
	{
		ID:          "test_method",
		Description: "Contains test method",
		Pass:        func(s string) bool { return strings.Contains(s, "Test method:") },
	},
	{
		ID:          "random_resources",
		Description: "Uses random resource naming",
		Pass: func(s string) bool {
			return strings.Contains(s, "randomSuffix") &&
				(strings.Contains(s, "$RANDOM") || strings.Contains(s, "shuf"))
		},
	},
	{
		// Weak heuristic kept for compatibility with existing reports: a
		// placeholder password plus more than two mentions of "password".
		ID:          "no_hardcoded_secrets",
		Description: "No hardcoded secrets",
		Pass: func(s string) bool {
			return !strings.Contains(s, "your-password") || strings.Count(s, "password") <= 2
		},
	},
	{
		ID:          "environment_variables",
		Description: "Supports environment variables",
		Pass:        func(s string) bool { return strings.Contains(s, ":-") },
	},
	{
		ID:          "non_interactive",
		Description: "Non-interactive execution",
		Pass:        func(s string) bool { return !strings.Contains(s, "read -p") },
	},
	{
		ID:          "azure_cli_version",
		Description: "Specifies Azure CLI version",
		Pass:        func(s string) bool { return strings.Contains(s, "Azure CLI version") },
	},
	{
		ID:          "proper_parameters",
		Description: "Uses proper Azure CLI parameters",
		Pass: func(s string) bool {
			return strings.Contains(s, "--resource-group") && strings.Contains(s, "--query")
		},
	},
}

// Compliance scores script text against ComplianceChecks.
func Compliance(content string) (score float64, passed, failed []string) {
	return runChecks(ComplianceChecks, content)
}
