package arxiv

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// atomFeed is the subset of the arXiv Atom response the pipeline consumes.
// Unknown elements are ignored by the XML decoder.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Published       string         `xml:"published"`
	Authors         []atomAuthor   `xml:"author"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
	Links           []atomLink     `xml:"link"`
}

type atomAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

// parseFeed decodes an Atom response body.
func parseFeed(body []byte) (*atomFeed, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: parsing Atom feed: %v", ErrAPIError, err)
	}
	return &feed, nil
}

// paperFromEntry converts one Atom entry to a Paper. Entries without an ID,
// title or any category fail individually; the caller skips them.
func paperFromEntry(entry atomEntry) (Paper, error) {
	rawID := idFromEntryURL(entry.ID)
	if rawID == "" {
		return Paper{}, fmt.Errorf("entry has no arXiv id")
	}
	id, version := StripVersion(rawID)

	title := cleanText(entry.Title)
	if title == "" {
		return Paper{}, fmt.Errorf("entry %s has no title", id)
	}

	var categories []string
	for _, c := range entry.Categories {
		if c.Term != "" {
			categories = append(categories, c.Term)
		}
	}
	if len(categories) == 0 {
		return Paper{}, fmt.Errorf("entry %s has no categories", id)
	}

	primary := entry.PrimaryCategory.Term
	if primary == "" {
		primary = categories[0]
	}
	if !contains(categories, primary) {
		categories = append([]string{primary}, categories...)
	}

	published, err := time.Parse(time.RFC3339, entry.Published)
	if err != nil {
		return Paper{}, fmt.Errorf("entry %s has bad published date %q", id, entry.Published)
	}

	var pdfURL string
	for _, link := range entry.Links {
		if link.Title == "pdf" {
			pdfURL = link.Href
			break
		}
	}

	authors := make([]Authorship, 0, len(entry.Authors))
	for i, a := range entry.Authors {
		name := cleanText(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, Authorship{
			Name:        name,
			Affiliation: cleanText(a.Affiliation),
			Position:    i + 1,
		})
	}

	return Paper{
		ArxivID:         id,
		Version:         version,
		Title:           title,
		Abstract:        cleanText(entry.Summary),
		Categories:      categories,
		PrimaryCategory: primary,
		PublishedDate:   published,
		PDFURL:          pdfURL,
		Authors:         authors,
	}, nil
}

// cleanText collapses the newlines and runs of whitespace arXiv embeds in
// titles and abstracts.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
