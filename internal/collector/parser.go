package collector

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLParser extracts records from HTML payloads using the source's CSS
// selector. Each matched element contributes one record: the period comes
// from a data-period attribute and the value from the element text.
type HTMLParser struct{}

// NewHTMLParser returns an HTMLParser.
func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse extracts records from the fetched payload. Elements without a usable
// numeric value are skipped; a payload yielding zero records is an error so
// broken selectors surface instead of silently collecting nothing.
func (p *HTMLParser) Parse(source Source, resp FetchResponse) ([]Record, error) {
	if source.Selector == "" {
		return nil, fmt.Errorf("source %q has no selector", source.Name)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html from %s: %w", resp.URL, err)
	}

	var records []Record
	doc.Find(source.Selector).Each(func(_ int, sel *goquery.Selection) {
		value, err := parseValue(sel.Text())
		if err != nil {
			return
		}
		period, _ := sel.Attr("data-period")
		records = append(records, Record{
			Source:   source.Name,
			Series:   source.Series,
			Period:   period,
			Value:    value,
			Currency: source.Currency,
			URL:      resp.URL,
		})
	})
	if len(records) == 0 {
		return nil, fmt.Errorf("source %q: selector %q matched no values at %s", source.Name, source.Selector, resp.URL)
	}
	return records, nil
}

// parseValue turns a displayed figure like "1,234.56" or "$ 3.20" into a
// float.
func parseValue(text string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, text)
	if cleaned == "" {
		return 0, fmt.Errorf("no numeric value in %q", strings.TrimSpace(text))
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("parse value %q: %w", strings.TrimSpace(text), err)
	}
	return value, nil
}
