package browser

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fdcscrape/scraper/internal/domain"
)

// Selectors are the CSS selectors used to read rendered FDC pages
type Selectors struct {
	ResultRows        string
	ResultDescription string
	FoodDescription   string
	TableHeaders      string
	TableRows         string
	TableCells        string
}

var innerWhitespace = regexp.MustCompile(`\s+`)

// cleanText trims and collapses runs of whitespace
func cleanText(s string) string {
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(s, " "))
}

// ParseSearchResults returns the description of every result row, in page order
func ParseSearchResults(r io.Reader, sel Selectors) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return searchDescriptions(doc, sel), nil
}

func searchDescriptions(doc *goquery.Document, sel Selectors) []string {
	var descriptions []string
	doc.Find(sel.ResultRows).Each(func(_ int, row *goquery.Selection) {
		text := cleanText(row.Find(sel.ResultDescription).First().Text())
		if text != "" {
			descriptions = append(descriptions, text)
		}
	})
	return descriptions
}

// ParseFoodPage reads the food description, the table headers and every
// table row as its list of cell texts
func ParseFoodPage(r io.Reader, pageURL string, sel Selectors) (*domain.FoodPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	page := &domain.FoodPage{
		URL:         pageURL,
		Description: cleanText(doc.Find(sel.FoodDescription).First().Text()),
	}
	doc.Find(sel.TableHeaders).Each(func(_ int, th *goquery.Selection) {
		page.Headers = append(page.Headers, cleanText(th.Text()))
	})
	doc.Find(sel.TableRows).Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find(sel.TableCells).Each(func(_ int, td *goquery.Selection) {
			cells = append(cells, cleanText(td.Text()))
		})
		page.Rows = append(page.Rows, cells)
	})
	return page, nil
}

// findLink returns the absolute href of the first anchor whose text is
// exactly description
func findLink(doc *goquery.Document, base, description string) (string, error) {
	want := cleanText(description)
	var href string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if cleanText(a.Text()) != want {
			return true
		}
		href, _ = a.Attr("href")
		return href == ""
	})
	if href == "" {
		return "", fmt.Errorf("%w: link %q", domain.ErrElementNotFound, description)
	}
	return resolveURL(base, href)
}

func resolveURL(base, href string) (string, error) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("invalid link %q: %w", href, err)
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref.String(), nil
	}
	return b.ResolveReference(ref).String(), nil
}
