package scraper

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/shopspring/decimal"
)

const DefaultPriceSelector = ".price_color"

var (
	ErrNoPriceElement   = errors.New("no price element")
	ErrUnparseablePrice = errors.New("price text is not a number")
)

// Extractor finds the price text on a product page. Selectors starting with
// "/" or "(" are XPath expressions, everything else is CSS.
type Extractor struct {
	selector string
	css      cascadia.Selector
	xpath    *xpath.Expr
}

func NewExtractor(selector string) (*Extractor, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		selector = DefaultPriceSelector
	}

	e := &Extractor{selector: selector}
	if isXPath(selector) {
		expr, err := xpath.Compile(selector)
		if err != nil {
			return nil, fmt.Errorf("compile xpath %q: %w", selector, err)
		}
		e.xpath = expr
		return e, nil
	}

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("compile selector %q: %w", selector, err)
	}
	e.css = sel
	return e, nil
}

func (e *Extractor) Selector() string {
	return e.selector
}

// Extract returns the page price, or an invalid Price when the element is
// missing or its text is not a number.
func (e *Extractor) Extract(markup string) Price {
	d, err := e.Lookup(markup)
	if err != nil {
		return Price{}
	}
	return PriceOf(d)
}

// Lookup is Extract with the reason for a missing price: ErrNoPriceElement or
// ErrUnparseablePrice.
func (e *Extractor) Lookup(markup string) (decimal.Decimal, error) {
	text, err := e.priceText(markup)
	if err != nil {
		return decimal.Zero, err
	}
	return ParsePrice(text)
}

func (e *Extractor) priceText(markup string) (string, error) {
	if e.xpath != nil {
		doc, err := htmlquery.Parse(strings.NewReader(markup))
		if err != nil {
			return "", fmt.Errorf("parse html: %w", err)
		}
		n := htmlquery.QuerySelector(doc, e.xpath)
		if n == nil {
			return "", ErrNoPriceElement
		}
		return strings.TrimSpace(htmlquery.InnerText(n)), nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	sel := doc.FindMatcher(e.css).First()
	if sel.Length() == 0 {
		return "", ErrNoPriceElement
	}
	return strings.TrimSpace(sel.Text()), nil
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}
