package safety

import (
	"regexp"
)

type denyRule struct {
	name string
	re   *regexp.Regexp
}

func rule(name, pattern string) denyRule {
	return denyRule{name: name, re: regexp.MustCompile(`(?i)` + pattern)}
}

// denyList contains patterns that must never be typed into a session, whatever
// the voice agent was told. Matching is case-insensitive.
var denyList = []denyRule{
	// rm variants
	rule("recursive delete", `rm\s+-rf`),
	rule("recursive delete", `rm\s+.*-r.*-f`),
	rule("recursive delete", `rm\s+.*-f.*-r`),
	rule("recursive delete", `rm\s+-r\s+/`),
	rule("recursive delete", `rm\s+--recursive`),
	// privilege escalation
	rule("privilege escalation", `sudo\s+`),
	rule("privilege escalation", `su\s+-c`),
	rule("privilege escalation", `doas\s+`),
	rule("privilege escalation", `pkexec\s+`),
	// git
	rule("force push", `git\s+push\s+.*--force`),
	rule("force push", `git\s+push\s+.*-f\b`),
	// database
	rule("destructive sql", `drop\s+table`),
	rule("destructive sql", `drop\s+database`),
	rule("destructive sql", `delete\s+from\s+`),
	rule("destructive sql", `truncate\s+`),
	// disk
	rule("disk write", `mkfs`),
	rule("disk write", `dd\s+if=`),
	rule("disk write", `>\s*/dev/`),
	rule("permission widening", `chmod\s+777`),
	// remote code execution
	rule("pipe to shell", `curl\s+.*\|\s*(bash|sh|zsh)`),
	rule("pipe to shell", `wget\s+.*\|\s*(bash|sh|zsh)`),
	rule("pipe to shell", `curl\s+.*\|\s*python`),
	rule("pipe to shell", `wget\s+.*\|\s*python`),
	rule("pipe to shell", `eval\s+\$\(`),
	// inline interpreters
	rule("inline script", `python[23]?\s+-c\s+`),
	rule("inline script", `perl\s+-e\s+`),
	rule("inline script", `ruby\s+-e\s+`),
	rule("inline script", `node\s+-e\s+`),
	// system
	rule("system shutdown", `shutdown\s+`),
	rule("system shutdown", `reboot\b`),
	rule("process kill", `kill\s+-9\s+`),
	rule("process kill", `killall\s+`),
	rule("fork bomb", `:\(\)\s*\{\s*:\|:&\s*\};:`),
	// reverse shells
	rule("reverse shell", `\bnc\s+.*-e`),
	rule("reverse shell", `\bncat\s+.*-e`),
}

// tmuxTarget is the accepted shape of a tmux session or pane address
// ("main", "work:0.1", "%12").
var tmuxTarget = regexp.MustCompile(`^[\w:.%-]+$`)

// IsSafe returns false if the instruction matches any denied pattern. Call it
// when an instruction is submitted and again right before it is delivered.
func IsSafe(instruction string) bool {
	_, blocked := BlockedBy(instruction)
	return !blocked
}

// BlockedBy returns the name of the first denied pattern the instruction
// matches, for logging.
func BlockedBy(instruction string) (string, bool) {
	for _, r := range denyList {
		if r.re.MatchString(instruction) {
			return r.name, true
		}
	}
	return "", false
}

// ValidTarget reports whether s looks like a tmux session or pane address.
func ValidTarget(s string) bool {
	return tmuxTarget.MatchString(s)
}
