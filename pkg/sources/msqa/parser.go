package msqa

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Question is one parsed card from a Microsoft Q&A tag listing page.
type Question struct {
	ID           string
	Author       string
	Title        string
	Content      string
	URL          string
	CreatedAt    time.Time
	AnswersCount int
	Tags         []string
}

var (
	questionIDPattern = regexp.MustCompile(`questions/(\d+)/`)
	answerPattern     = regexp.MustCompile(`(\d+)\s*answer`)
	tagPattern        = regexp.MustCompile(`question-tag-(.+)`)
)

// ParseQuestions extracts question cards from a rendered tag listing page.
// The page structure is not an API contract; cards that no longer match are
// skipped so that one drifted card never sinks the whole page.
func ParseQuestions(html string) ([]Question, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var questions []Question
	doc.Find("div.box.margin-bottom-xxs").Each(func(_ int, box *goquery.Selection) {
		link := box.Find("h2.title a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}

		idMatch := questionIDPattern.FindStringSubmatch(href)
		if idMatch == nil {
			return
		}

		url := href
		if !strings.HasPrefix(url, "http") {
			url = "https://learn.microsoft.com" + url
		}

		content := strings.TrimSpace(box.Find("p.has-text-wrap").First().Text())
		if content == "" {
			content = title
		}

		author := strings.TrimSpace(box.Find("a.profile-url").First().Text())
		if author == "" {
			author = "Anonymous"
		}

		createdAt := time.Time{}
		if datetime, ok := box.Find("time[datetime]").First().Attr("datetime"); ok {
			if parsed, err := time.Parse(time.RFC3339, datetime); err == nil {
				createdAt = parsed.UTC()
			}
		}

		answers := 0
		if match := answerPattern.FindStringSubmatch(box.Text()); match != nil {
			answers, _ = strconv.Atoi(match[1])
		}

		var tags []string
		box.Find("[data-test-id]").Each(func(_ int, s *goquery.Selection) {
			testID, _ := s.Attr("data-test-id")
			if match := tagPattern.FindStringSubmatch(testID); match != nil {
				tags = append(tags, match[1])
			}
		})

		questions = append(questions, Question{
			ID:           idMatch[1],
			Author:       author,
			Title:        title,
			Content:      content,
			URL:          url,
			CreatedAt:    createdAt,
			AnswersCount: answers,
			Tags:         tags,
		})
	})

	return questions, nil
}
