package site

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// FilterByTag returns the entries carrying tag, preserving order.
func FilterByTag(entries []*Entry, tag string) []*Entry {
	return filter(entries, func(e *Entry) bool { return e.HasTag(tag) })
}

// FilterByCollection returns the entries of one collection, preserving order.
func FilterByCollection(entries []*Entry, collection string) []*Entry {
	return filter(entries, func(e *Entry) bool { return e.Collection == collection })
}

// FilterByAuthor returns the entries written by author, preserving order.
func FilterByAuthor(entries []*Entry, author string) []*Entry {
	return filter(entries, func(e *Entry) bool { return e.Author == author })
}

func filter(entries []*Entry, keep func(*Entry) bool) []*Entry {
	var out []*Entry
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// entrySource adapts entries to fuzzy.Source, matching on title and tags.
type entrySource []*Entry

func (s entrySource) String(i int) string {
	return s[i].Title + " " + strings.Join(s[i].Tags, " ")
}

func (s entrySource) Len() int { return len(s) }

// Search fuzzy-matches query against entry titles and tags, best match first.
// An empty query returns entries unchanged.
func Search(entries []*Entry, query string) []*Entry {
	if strings.TrimSpace(query) == "" {
		return entries
	}
	matches := fuzzy.FindFrom(query, entrySource(entries))
	out := make([]*Entry, 0, len(matches))
	for _, m := range matches {
		out = append(out, entries[m.Index])
	}
	return out
}

// TagCount is a tag and how many entries carry it. Tags that slugify to
// the same Slug share one TagCount; Variants lists every spelling seen and
// Name is the first of them in sort order.
type TagCount struct {
	Name     string
	Slug     string
	Count    int
	Variants []string
}

// URL returns the tag page path relative to the site root.
func (t TagCount) URL() string {
	return "tags/" + t.Slug + "/"
}

// Tags counts the tags used by entries, grouped by slug and sorted by name.
// An entry is counted once per slug however many spellings it carries.
func Tags(entries []*Entry) []TagCount {
	bySlug := map[string]*TagCount{}
	for _, e := range entries {
		seen := map[string]bool{}
		for _, t := range e.Tags {
			if t == "" {
				continue
			}
			slug := Slugify(t)
			tc, ok := bySlug[slug]
			if !ok {
				tc = &TagCount{Slug: slug}
				bySlug[slug] = tc
			}
			if !containsString(tc.Variants, t) {
				tc.Variants = append(tc.Variants, t)
			}
			if !seen[slug] {
				seen[slug] = true
				tc.Count++
			}
		}
	}

	tags := make([]TagCount, 0, len(bySlug))
	for _, tc := range bySlug {
		sort.Strings(tc.Variants)
		tc.Name = tc.Variants[0]
		tags = append(tags, *tc)
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Name != tags[j].Name {
			return tags[i].Name < tags[j].Name
		}
		return tags[i].Slug < tags[j].Slug
	})
	return tags
}

// FilterByTagSlug returns the entries carrying any tag that slugifies to
// slug, preserving order.
func FilterByTagSlug(entries []*Entry, slug string) []*Entry {
	return filter(entries, func(e *Entry) bool {
		for _, t := range e.Tags {
			if t != "" && Slugify(t) == slug {
				return true
			}
		}
		return false
	})
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var (
	nonSlugChars = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	slugSpaces   = regexp.MustCompile(`[-\s]+`)
)

// Slugify converts text to a lower-case URL-friendly slug.
func Slugify(text string) string {
	text = strings.ToLower(strings.TrimSpace(nonSlugChars.ReplaceAllString(text, "")))
	text = slugSpaces.ReplaceAllString(text, "-")
	if text == "" {
		return "untitled"
	}
	return text
}

// titleCase upper-cases the first letter of every word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
