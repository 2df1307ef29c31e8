// Package extract pulls structured chapter data out of arbitrary source-site
// HTML using configurable CSS selectors. New source sites are configuration
// (a Rules value registered per host), not code.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/corvida/mangrove/internal/models"
)

// ErrEmptyResult signals that the selectors matched nothing at all. Callers
// must treat this as "selectors broke", not "no update".
var ErrEmptyResult = errors.New("extract: selectors yielded no results")

// Rules is the CSS-selector strategy for one source host.
type Rules struct {
	// ChapterItem selects one element per chapter on a series page.
	ChapterItem string
	// ChapterLink selects the anchor inside a chapter item; its href is the
	// chapter URL and its text the chapter title.
	ChapterLink string
	// ChapterTitle optionally selects a title element inside the item. When
	// empty the link text is used.
	ChapterTitle string
	// PageImage selects the page images on a chapter page.
	PageImage string
	// PageImageAttr is the attribute holding the image URL, "src" by default.
	// Lazy-loading sites put the real URL in data-src.
	PageImageAttr string
}

// DefaultRules works for the common "list of chapter links, strip of imgs"
// layout most aggregator sites use.
var DefaultRules = Rules{
	ChapterItem:   "ul.chapter-list li, div.chapter-list div.chapter-item, li.wp-manga-chapter",
	ChapterLink:   "a",
	PageImage:     "div.reading-content img, div#readerarea img, section.images img",
	PageImageAttr: "src",
}

// Extractor applies a Rules strategy to raw HTML. baseURL resolves relative
// links found in the document.
type Extractor struct {
	rules Rules
	base  *url.URL
}

// New returns an Extractor using the rules registered for the host of
// baseURL, falling back to DefaultRules.
func New(baseURL string) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	return &Extractor{rules: RulesFor(u.Host), base: u}, nil
}

// NewWithRules returns an Extractor with an explicit strategy. Used by tests
// and by the repair path when the admin supplies overrides.
func NewWithRules(baseURL string, rules Rules) (*Extractor, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	return &Extractor{rules: rules, base: u}, nil
}

var chapterNumberRe = regexp.MustCompile(`(\d+(?:[.,]\d+)?)`)

// ChapterList parses a series page and returns its chapters in ascending
// number order. Entries whose number cannot be parsed are dropped with a
// warning; a document yielding zero entries returns ErrEmptyResult.
func (e *Extractor) ChapterList(html []byte) ([]models.ChapterRef, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var chapters []models.ChapterRef
	doc.Find(e.rules.ChapterItem).Each(func(i int, s *goquery.Selection) {
		a := s
		if e.rules.ChapterLink != "" {
			a = s.Find(e.rules.ChapterLink).First()
		}
		href, exists := a.Attr("href")
		if !exists || href == "" {
			return
		}

		title := strings.TrimSpace(a.Text())
		if e.rules.ChapterTitle != "" {
			if t := strings.TrimSpace(s.Find(e.rules.ChapterTitle).First().Text()); t != "" {
				title = t
			}
		}

		match := chapterNumberRe.FindString(title)
		if match == "" {
			match = chapterNumberRe.FindString(href)
		}
		number, err := ParseChapterNumber(match)
		if err != nil {
			log.Printf("Warning: dropping chapter entry with unparseable number (title=%q url=%q)", title, href)
			return
		}

		chapters = append(chapters, models.ChapterRef{
			Number: number,
			Title:  title,
			URL:    e.resolve(href),
		})
	})

	if len(chapters) == 0 {
		return nil, ErrEmptyResult
	}

	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Number < chapters[j].Number
	})
	return chapters, nil
}

// ChapterPages parses a chapter page and returns its page image URLs in
// source order. Zero images returns ErrEmptyResult.
func (e *Extractor) ChapterPages(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	attr := e.rules.PageImageAttr
	if attr == "" {
		attr = "src"
	}

	var pages []string
	doc.Find(e.rules.PageImage).Each(func(i int, s *goquery.Selection) {
		src, ok := s.Attr(attr)
		if !ok || strings.TrimSpace(src) == "" {
			// Lazy-loaded images often keep src empty; fall back to data-src.
			src, ok = s.Attr("data-src")
			if !ok || strings.TrimSpace(src) == "" {
				return
			}
		}
		pages = append(pages, e.resolve(strings.TrimSpace(src)))
	})

	if len(pages) == 0 {
		return nil, ErrEmptyResult
	}
	return pages, nil
}

func (e *Extractor) resolve(href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return e.base.ResolveReference(ref).String()
}

// ParseChapterNumber parses a chapter number from text, tolerating a comma
// decimal separator ("10,5" parses as 10.5).
func ParseChapterNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty chapter number")
	}
	s = strings.Replace(s, ",", ".", 1)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable chapter number %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative chapter number %q", s)
	}
	return n, nil
}
