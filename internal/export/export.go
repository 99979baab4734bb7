// Package export renders archived meetings for sharing outside the app.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"fomo/internal/domain"
)

// Format is an export rendering.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
)

// ParseFormat accepts "markdown", "md" or "json", case-insensitively.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q: use markdown or json", value)
	}
}

// Extension is the file extension for f, including the dot.
func (f Format) Extension() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".md"
}

// Render writes meeting to w in format f.
func Render(w io.Writer, meeting domain.Meeting, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meeting)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(meeting))
		return err
	default:
		return fmt.Errorf("unsupported export format %q", f)
	}
}

// String renders meeting in format f.
func String(meeting domain.Meeting, f Format) (string, error) {
	var b strings.Builder
	if err := Render(&b, meeting, f); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Markdown renders a human-readable meeting report.
func Markdown(meeting domain.Meeting) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", meeting.Title)
	if meeting.StartTime > 0 {
		fmt.Fprintf(&b, "- **Date:** %s\n", time.UnixMilli(meeting.StartTime).UTC().Format("2006-01-02 15:04 MST"))
	}
	fmt.Fprintf(&b, "- **Duration:** %s\n", FormatDuration(meeting.Duration))
	fmt.Fprintf(&b, "- **Status:** %s\n", meeting.Status)
	if len(meeting.Participants) > 0 {
		fmt.Fprintf(&b, "- **Participants:** %s\n", strings.Join(meeting.Participants, ", "))
	}

	if s := meeting.Summary; s != nil {
		b.WriteString("\n## Summary\n\n")
		if s.Overview != "" {
			b.WriteString(s.Overview + "\n")
		}
		writeList(&b, "Key points", s.KeyPoints)
		writeList(&b, "Decisions", s.Decisions)
		writeList(&b, "Blockers", s.Blockers)
	}

	if len(meeting.ActionItems) > 0 {
		b.WriteString("\n## Action items\n\n")
		for _, item := range meeting.ActionItems {
			mark := " "
			if item.Status == domain.ActionItemCreated {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s (%s", mark, item.Text, item.Priority)
			if item.Assignee != nil {
				fmt.Fprintf(&b, ", @%s", *item.Assignee)
			}
			b.WriteString(")")
			if item.GitHubIssue != nil {
				fmt.Fprintf(&b, " [%s#%d](%s)", item.GitHubIssue.Repository, item.GitHubIssue.Number, item.GitHubIssue.URL)
			}
			b.WriteString("\n")
		}
	}

	if len(meeting.NextSteps) > 0 {
		b.WriteString("\n## Next steps\n\n")
		for i, step := range meeting.NextSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}

	if len(meeting.Transcript) > 0 {
		b.WriteString("\n## Transcript\n\n")
		for _, seg := range meeting.Transcript {
			speaker := seg.Speaker
			if speaker == "" {
				speaker = "Unknown"
			}
			fmt.Fprintf(&b, "**[%s] %s:** %s\n\n", FormatDuration(int(seg.StartTime)), speaker, seg.Text)
		}
	}

	return b.String()
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n### %s\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}

// FormatDuration renders seconds as mm:ss, or h:mm:ss from one hour.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
