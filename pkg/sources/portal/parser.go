package portal

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// FeedbackItem is one idea card parsed from the portal's rendered markdown.
type FeedbackItem struct {
	ID        string
	Author    string
	Title     string
	Content   string
	URL       string
	CreatedAt time.Time
	Votes     int
	Status    string
	Comments  int
}

const portalBase = "https://feedbackportal.microsoft.com"

var (
	// Primary pattern: a full idea card as firecrawl renders it. Vote count,
	// author initials, author name, relative date, bold title, content,
	// status, comment count, idea link.
	cardPattern = regexp.MustCompile(`(?s)__(\d+)\s*\\?\[.*?Vote.*?\b([A-Z]{2})\b.*?\n([A-Za-z][A-Za-z .'-]{1,48})\n.*?(\d+\s+(?:months?|years?|days?|weeks?)\s+ago).*?\*\*([^*]+)\*\*\s*\n+([^\n]+).*?\b(Open|Planned|Under Review|Closed|Completed)\b.*?__\s*(\d+)\s*comments.*?\((` + portalBase + `/feedback/idea/([a-f0-9-]+))\)`)

	ideaURLPattern  = regexp.MustCompile(`\((` + portalBase + `/feedback/idea/([a-f0-9-]+))\)`)
	votePattern     = regexp.MustCompile(`^__(\d+)$`)
	relDatePattern  = regexp.MustCompile(`^(\d+)\s+(months?|years?|days?|weeks?)\s+ago$`)
	boldPattern     = regexp.MustCompile(`^\*\*(.+)\*\*\s*$`)
	commentsPattern = regexp.MustCompile(`__\s*(\d+)\s*comments`)
	namePattern     = regexp.MustCompile(`^[A-Za-z\s]+$`)
	relSpanPattern  = regexp.MustCompile(`(\d+)\s+(months?|years?|days?|weeks?)`)
)

var knownStatuses = []string{"Open", "Planned", "Under Review", "Closed", "Completed"}

func isStatus(line string) bool {
	for _, s := range knownStatuses {
		if line == s {
			return true
		}
	}
	return false
}

// ParseFeedback extracts idea cards from the portal markdown. The strict card
// pattern runs first; when it finds nothing (the portal markup drifts often)
// a lenient line scan keyed on the idea URL takes over. Results are deduped
// by URL and by normalized title because the lenient scan can emit
// near-duplicate fragments for one logical post.
func ParseFeedback(markdown string, now time.Time) []FeedbackItem {
	items := parseStrict(markdown, now)
	if len(items) == 0 {
		items = parseLenient(markdown, now)
	}
	return dedupeItems(items)
}

func parseStrict(markdown string, now time.Time) []FeedbackItem {
	const maxItems = 50

	var items []FeedbackItem
	for _, match := range cardPattern.FindAllStringSubmatch(markdown, maxItems) {
		votes, _ := strconv.Atoi(match[1])
		initials := match[2]
		author := strings.TrimSpace(match[3])
		if author == "" {
			author = "User " + initials
		}
		comments, _ := strconv.Atoi(match[8])

		items = append(items, FeedbackItem{
			ID:        match[10],
			Author:    author,
			Title:     strings.TrimSpace(match[5]),
			Content:   strings.TrimSpace(match[6]),
			URL:       match[9],
			CreatedAt: parseRelativeDate(match[4], now),
			Votes:     votes,
			Status:    match[7],
			Comments:  comments,
		})
	}
	return items
}

// parseLenient walks the markdown line by line, accumulating card fields as
// they appear and closing a card whenever the next vote marker starts.
func parseLenient(markdown string, now time.Time) []FeedbackItem {
	var (
		items   []FeedbackItem
		current *FeedbackItem
	)

	lines := strings.Split(markdown, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)

		if match := votePattern.FindStringSubmatch(line); match != nil {
			next := ""
			if i+2 < len(lines) {
				next = lines[i+2]
			}
			if strings.Contains(next, "Vote") {
				if current != nil && current.ID != "" {
					items = append(items, *current)
				}
				votes, _ := strconv.Atoi(match[1])
				current = &FeedbackItem{Votes: votes}
				continue
			}
		}
		if current == nil {
			continue
		}

		if current.Author == "" && namePattern.MatchString(line) && len(line) > 2 && len(line) < 50 &&
			!isStatus(line) && line != "Vote" && line != "Follow" && line != "Share" {
			current.Author = line
			continue
		}

		if relDatePattern.MatchString(line) {
			current.CreatedAt = parseRelativeDate(line, now)
			continue
		}

		if match := boldPattern.FindStringSubmatch(line); match != nil {
			current.Title = strings.TrimSpace(match[1])
			continue
		}

		if match := ideaURLPattern.FindStringSubmatch(line); match != nil {
			current.ID = match[2]
			current.URL = match[1]
		}

		if match := commentsPattern.FindStringSubmatch(line); match != nil {
			current.Comments, _ = strconv.Atoi(match[1])
		}

		if isStatus(line) {
			current.Status = line
		}

		if current.Title != "" && current.Content == "" &&
			len(line) > 20 && !strings.HasPrefix(line, "__") && !strings.HasPrefix(line, "[") && !isStatus(line) {
			current.Content = line
		}
	}

	if current != nil && current.ID != "" {
		items = append(items, *current)
	}
	return items
}

// dedupeItems drops repeated URLs and repeated normalized titles, keeping the
// first occurrence of each.
func dedupeItems(items []FeedbackItem) []FeedbackItem {
	seenURL := make(map[string]bool)
	seenTitle := make(map[string]bool)

	out := items[:0]
	for _, item := range items {
		if item.URL != "" && seenURL[item.URL] {
			continue
		}
		title := normalizeTitle(item.Title)
		if title != "" && seenTitle[title] {
			continue
		}
		if item.URL != "" {
			seenURL[item.URL] = true
		}
		if title != "" {
			seenTitle[title] = true
		}
		out = append(out, item)
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// parseRelativeDate converts "3 weeks ago" style markers into an approximate
// absolute timestamp. Unparseable input yields now.
func parseRelativeDate(relative string, now time.Time) time.Time {
	match := relSpanPattern.FindStringSubmatch(relative)
	if match == nil {
		return now
	}

	value, _ := strconv.Atoi(match[1])
	switch {
	case strings.HasPrefix(match[2], "month"):
		return now.AddDate(0, -value, 0)
	case strings.HasPrefix(match[2], "year"):
		return now.AddDate(-value, 0, 0)
	case strings.HasPrefix(match[2], "week"):
		return now.AddDate(0, 0, -value*7)
	case strings.HasPrefix(match[2], "day"):
		return now.AddDate(0, 0, -value)
	}
	return now
}
