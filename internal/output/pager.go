package output

import (
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ShouldPage reports whether content is taller than the terminal and stdout
// is interactive.
func ShouldPage(content string, termHeight int) bool {
	if !isTerminal() || termHeight <= 0 {
		return false
	}
	return strings.Count(content, "\n") > termHeight
}

// Page pipes content through $PAGER, or "less -SR" so wide result grids
// scroll sideways and keep their colors.
func Page(content string) error {
	pager := os.Getenv("PAGER")
	args := []string{}
	if pager == "" {
		pager, args = "less", []string{"-SR"}
	}
	fields := strings.Fields(pager)
	cmd := exec.Command(fields[0], append(fields[1:], args...)...)
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// TermHeight reads $LINES, falling back to 24 rows.
func TermHeight() int {
	if n, err := strconv.Atoi(os.Getenv("LINES")); err == nil && n > 0 {
		return n
	}
	return 24
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
