package youtube

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/insightdeck/insightdeck/internal/core"
)

// PageSource is a comment threads payload that passed validation.
type PageSource struct {
	Items         []CommentSource
	NextPageToken string
	PageInfo      PageInfo
}

// CommentSource is the top-level comment snippet of one thread.
type CommentSource struct {
	TextDisplay           string
	TextOriginal          string
	AuthorDisplayName     string
	AuthorProfileImageURL string
	AuthorChannelURL      string
	LikeCount             int64
	PublishedAt           string
}

// PageInfo carries the upstream result counters.
type PageInfo struct {
	TotalResults   int64
	ResultsPerPage *int64
}

// Validate checks a raw comment threads payload. Every problem found is reported in
// a single *core.ValidationError; nothing is returned unless the whole payload is valid.
func Validate(raw []byte) (*PageSource, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var root any
	if err := decoder.Decode(&root); err != nil {
		return nil, &core.ValidationError{Problems: []string{"$: malformed JSON: " + err.Error()}}
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, &core.ValidationError{Problems: []string{"$: trailing data"}}
	}

	v := &validator{}
	source := &PageSource{}

	obj, ok := v.object("$", root)
	if !ok {
		return nil, v.err()
	}

	rawItems, present := obj["items"]
	if !present {
		v.fail("items", "required")
	} else if items, ok := rawItems.([]any); !ok {
		v.fail("items", "expected array, got %s", typeName(rawItems))
	} else {
		source.Items = make([]CommentSource, 0, len(items))
		for i, item := range items {
			if comment, ok := v.comment(fmt.Sprintf("items[%d]", i), item); ok {
				source.Items = append(source.Items, comment)
			}
		}
	}

	source.NextPageToken, _ = v.optionalString(obj, "nextPageToken", "nextPageToken")

	if info, ok := v.child(obj, "pageInfo", "pageInfo"); ok {
		source.PageInfo.TotalResults, _ = v.count(info, "totalResults", "pageInfo.totalResults")
		if _, present := info["resultsPerPage"]; present {
			if perPage, ok := v.count(info, "resultsPerPage", "pageInfo.resultsPerPage"); ok {
				source.PageInfo.ResultsPerPage = &perPage
			}
		}
	}

	if err := v.err(); err != nil {
		return nil, err
	}
	return source, nil
}

// Comments maps validated items into render-ready comments.
func (p *PageSource) Comments() []core.Comment {
	if p == nil {
		return nil
	}
	comments := make([]core.Comment, 0, len(p.Items))
	for _, item := range p.Items {
		comments = append(comments, core.Comment{
			Text:          item.TextOriginal,
			Author:        item.AuthorDisplayName,
			AuthorImage:   item.AuthorProfileImageURL,
			AuthorChannel: item.AuthorChannelURL,
			Likes:         item.LikeCount,
			PublishedDate: item.PublishedAt,
		})
	}
	return comments
}

// Page builds the caller-facing page. The cursor is forwarded unmodified.
func (p *PageSource) Page() *core.Page {
	if p == nil {
		return &core.Page{Comments: []core.Comment{}}
	}
	return &core.Page{
		Comments:     p.Comments(),
		NextCursor:   p.NextPageToken,
		TotalResults: p.PageInfo.TotalResults,
	}
}

type validator struct {
	problems []string
}

func (v *validator) fail(path, format string, args ...any) {
	v.problems = append(v.problems, path+": "+fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.problems) == 0 {
		return nil
	}
	return &core.ValidationError{Problems: v.problems}
}

func (v *validator) comment(path string, item any) (CommentSource, bool) {
	before := len(v.problems)

	obj, ok := v.object(path, item)
	if !ok {
		return CommentSource{}, false
	}
	thread, ok := v.child(obj, "snippet", path+".snippet")
	if !ok {
		return CommentSource{}, false
	}
	top, ok := v.child(thread, "topLevelComment", path+".snippet.topLevelComment")
	if !ok {
		return CommentSource{}, false
	}
	snippetPath := path + ".snippet.topLevelComment.snippet"
	snippet, ok := v.child(top, "snippet", snippetPath)
	if !ok {
		return CommentSource{}, false
	}

	var comment CommentSource
	comment.TextDisplay, _ = v.requiredString(snippet, "textDisplay", snippetPath+".textDisplay")
	comment.TextOriginal, _ = v.requiredString(snippet, "textOriginal", snippetPath+".textOriginal")
	comment.AuthorDisplayName, _ = v.requiredString(snippet, "authorDisplayName", snippetPath+".authorDisplayName")
	comment.AuthorProfileImageURL, _ = v.optionalString(snippet, "authorProfileImageUrl", snippetPath+".authorProfileImageUrl")
	comment.AuthorChannelURL, _ = v.optionalString(snippet, "authorChannelUrl", snippetPath+".authorChannelUrl")
	comment.PublishedAt, _ = v.requiredString(snippet, "publishedAt", snippetPath+".publishedAt")
	comment.LikeCount, _ = v.count(snippet, "likeCount", snippetPath+".likeCount")

	return comment, len(v.problems) == before
}

func (v *validator) object(path string, value any) (map[string]any, bool) {
	obj, ok := value.(map[string]any)
	if !ok {
		v.fail(path, "expected object, got %s", typeName(value))
		return nil, false
	}
	return obj, true
}

func (v *validator) child(parent map[string]any, key, path string) (map[string]any, bool) {
	value, present := parent[key]
	if !present {
		v.fail(path, "required")
		return nil, false
	}
	return v.object(path, value)
}

func (v *validator) requiredString(parent map[string]any, key, path string) (string, bool) {
	value, present := parent[key]
	if !present {
		v.fail(path, "required")
		return "", false
	}
	s, ok := value.(string)
	if !ok {
		v.fail(path, "expected string, got %s", typeName(value))
		return "", false
	}
	return s, true
}

func (v *validator) optionalString(parent map[string]any, key, path string) (string, bool) {
	if _, present := parent[key]; !present {
		return "", true
	}
	return v.requiredString(parent, key, path)
}

// count reads a required non-negative integer.
func (v *validator) count(parent map[string]any, key, path string) (int64, bool) {
	value, present := parent[key]
	if !present {
		v.fail(path, "required")
		return 0, false
	}
	number, ok := value.(json.Number)
	if !ok {
		v.fail(path, "expected number, got %s", typeName(value))
		return 0, false
	}

	if n, err := number.Int64(); err == nil {
		if n < 0 {
			v.fail(path, "must be non-negative, got %d", n)
			return 0, false
		}
		return n, true
	}

	f, err := number.Float64()
	if err != nil || math.IsInf(f, 0) {
		v.fail(path, "number out of range: %s", number.String())
		return 0, false
	}
	if f < 0 {
		v.fail(path, "must be non-negative, got %s", number.String())
		return 0, false
	}
	if f != math.Trunc(f) || f > math.MaxInt64 {
		v.fail(path, "expected integer, got %s", number.String())
		return 0, false
	}
	return int64(f), true
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", value), "*")
	}
}
