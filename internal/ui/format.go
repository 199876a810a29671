package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"

	"cmdwh/pkg/errors"
)

var (
	// Check if output supports colors
	supportsColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color functions
	ColorSuccess  = colorFunc(ansi.Green)
	ColorError    = colorFunc(ansi.Red)
	ColorWarning  = colorFunc(ansi.Yellow)
	ColorInfo     = colorFunc(ansi.Cyan)
	ColorProgress = colorFunc(ansi.Blue)
	ColorBold     = colorFunc("default+b")
	ColorDim      = colorFunc("default+h")
)

// Output is where every Show/Print helper writes.
var Output io.Writer = os.Stdout

// colorFunc returns a function that colors text if supported
func colorFunc(color string) func(string) string {
	return func(text string) string {
		if supportsColor {
			return ansi.Color(text, color)
		}
		return text
	}
}

// ColorEnabled reports whether ANSI colors are written.
func ColorEnabled() bool {
	return supportsColor
}

// SetColor forces colors on or off (--no-color).
func SetColor(enabled bool) {
	supportsColor = enabled
	color.NoColor = !enabled
}

// ShowHeader displays a formatted header
func ShowHeader(title string) {
	width := 80
	fmt.Fprintln(Output, "\n"+strings.Repeat("=", width))
	fmt.Fprintln(Output, ColorBold(title))
	fmt.Fprintln(Output, strings.Repeat("=", width))
}

// ShowError displays an error with its suggestions. AppErrors carry their
// own; other errors get one from the message when it is recognizable.
func ShowError(err error) {
	fmt.Fprintf(Output, "\n%s %s\n", ColorError("✗"), ColorError("Error"))

	lines := strings.Split(err.Error(), "\n")
	for i, line := range lines {
		if i == 0 {
			fmt.Fprintf(Output, "  %s\n", line)
		} else {
			fmt.Fprintf(Output, "  %s\n", ColorDim(line))
		}
	}

	var suggestions []string
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		suggestions = appErr.Suggestions
	}
	if len(suggestions) == 0 {
		if s := getSuggestion(err.Error()); s != "" {
			suggestions = []string{s}
		}
	}
	for _, s := range suggestions {
		fmt.Fprintf(Output, "\n  %s %s\n", ColorInfo("TIP:"), s)
	}
}

// ShowSuccess displays a success message
func ShowSuccess(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorSuccess("✓"), message)
}

// ShowWarning displays a warning message
func ShowWarning(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorWarning("⚠"), ColorWarning(message))
}

// ShowInfo displays an info message
func ShowInfo(message string) {
	fmt.Fprintf(Output, "%s %s\n", ColorInfo("ℹ"), message)
}

// PrintSection prints a section header
func PrintSection(title string) {
	fmt.Fprintf(Output, "\n%s %s\n", ColorBold("▶"), ColorBold(title))
	fmt.Fprintln(Output, strings.Repeat("─", 50))
}

// PrintKeyValue prints a key-value pair in a formatted way
func PrintKeyValue(key, value string) {
	fmt.Fprintf(Output, "  %-20s %s\n", ColorDim(key+":"), value)
}

// Box draws a box around content
func Box(title, content string) {
	lines := strings.Split(content, "\n")
	maxLen := len(title)
	for _, line := range lines {
		if len(line) > maxLen {
			maxLen = len(line)
		}
	}

	borderLen := maxLen - len(title) - 1
	if borderLen < 0 {
		borderLen = 0
	}
	fmt.Fprintf(Output, "+- %s %s+\n", ColorBold(title), strings.Repeat("-", borderLen))
	for _, line := range lines {
		fmt.Fprintf(Output, "| %s%s |\n", line, strings.Repeat(" ", maxLen-len(line)))
	}
	fmt.Fprintf(Output, "+%s+\n", strings.Repeat("-", maxLen+3))
}

// getSuggestion returns helpful suggestions based on error messages
func getSuggestion(message string) string {
	lower := strings.ToLower(message)

	switch {
	case strings.Contains(lower, "authentication failed"), strings.Contains(lower, "incorrect username or password"):
		return "Check the Snowflake username, or run 'cmdwh auth login' to store the password again"
	case strings.Contains(lower, "could not find default credentials"):
		return "Run 'gcloud auth application-default login' or set bigquery.credentials_file"
	case strings.Contains(lower, "access denied"), strings.Contains(lower, "permission denied"):
		return "Ensure the account can read the bucket and write to the dataset"
	case strings.Contains(lower, "not found: dataset"):
		return "Create the dataset first, then run 'cmdwh external'"
	case strings.Contains(lower, "does not exist or not authorized"):
		return "Verify the database, schema and stage exist and the role can use them"
	default:
		return ""
	}
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", hours, minutes)
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
