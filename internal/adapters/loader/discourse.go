// Package loader provides document loading adapters.
// Clean Architecture: Adapter implementing ports.TopicLoader.
// It understands the topic-export JSON format and the HTML inside it;
// the domain layer only ever sees cleaned plain text.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"forumrag/internal/domain/entities"
)

// DiscourseLoader reads Discourse topic-export JSON files. A file holds
// either a single topic object or an array of them:
//
//	{"topic_id": 5, "title": "...", "slug": "topic-slug",
//	 "posts": [{"post_id": 12, "author": "...", "created_at": "...", "cooked": "<p>...</p>"}]}
type DiscourseLoader struct {
	baseURL string
}

// NewDiscourseLoader creates a loader. baseURL is the forum root used
// to build canonical post URLs when the export omits them.
func NewDiscourseLoader(baseURL string) *DiscourseLoader {
	return &DiscourseLoader{baseURL: strings.TrimRight(baseURL, "/")}
}

type exportPost struct {
	PostID     json.Number `json:"post_id"`
	PostNumber int         `json:"post_number"`
	Author     string      `json:"author"`
	Username   string      `json:"username"`
	CreatedAt  string      `json:"created_at"`
	Cooked     string      `json:"cooked"`
	Raw        string      `json:"raw"`
}

type exportTopic struct {
	TopicID json.Number  `json:"topic_id"`
	Title   string       `json:"title"`
	Slug    string       `json:"slug"`
	URL     string       `json:"url"`
	Posts   []exportPost `json:"posts"`
}

// Load parses a topic export file into domain topics.
func (l *DiscourseLoader) Load(ctx context.Context, path string) ([]entities.Topic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export file: %w", err)
	}

	var exports []exportTopic
	if err := json.Unmarshal(data, &exports); err != nil {
		var single exportTopic
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("parsing export file %s: %w", path, err)
		}
		exports = []exportTopic{single}
	}

	topics := make([]entities.Topic, 0, len(exports))
	for _, exp := range exports {
		topic := entities.Topic{
			TopicID: exp.TopicID.String(),
			Title:   exp.Title,
			URL:     l.topicURL(exp),
		}
		for _, p := range exp.Posts {
			text := p.Raw
			if text == "" {
				text = StripHTML(p.Cooked)
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			author := p.Author
			if author == "" {
				author = p.Username
			}
			topic.Posts = append(topic.Posts, entities.Post{
				PostID:    p.PostID.String(),
				Author:    author,
				CreatedAt: p.CreatedAt,
				Text:      text,
			})
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// SupportedExtensions returns file extensions this loader handles.
func (l *DiscourseLoader) SupportedExtensions() []string {
	return []string{".json"}
}

func (l *DiscourseLoader) topicURL(exp exportTopic) string {
	if exp.URL != "" {
		return exp.URL
	}
	if l.baseURL == "" {
		return ""
	}
	slug := exp.Slug
	if slug == "" {
		slug = "topic"
	}
	return fmt.Sprintf("%s/t/%s/%s", l.baseURL, slug, exp.TopicID.String())
}

var (
	blockTagRe = regexp.MustCompile(`(?i)</(p|div|li|blockquote|pre|h[1-6]|tr)>|<br\s*/?>`)
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	spaceRe    = regexp.MustCompile(`[ \t]+`)
	blankRe    = regexp.MustCompile(`\n{3,}`)
)

// StripHTML reduces cooked post HTML to readable plain text: block
// closers become newlines, remaining tags are dropped, entities are
// decoded and whitespace collapsed.
func StripHTML(s string) string {
	s = blockTagRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")
	s = blankRe.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
