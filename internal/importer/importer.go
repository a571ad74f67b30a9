// Package importer scrapes partner listing pages into pending deals.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/wanderdeals/internal/models"
	"github.com/pauljones0/wanderdeals/internal/util"
)

const (
	maxRetries       = 3
	detailFetchLimit = 5
)

type Client struct {
	httpClient     *http.Client
	allowedDomains []string
	selectors      SelectorConfig
	retryBase      time.Duration
}

// New returns an importer that only fetches pages whose host, or registrable
// domain, is listed in allowedDomains.
func New(allowedDomains []string, selectors SelectorConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		allowedDomains: allowedDomains,
		selectors:      selectors,
		retryBase:      time.Second,
	}
}

// SetHTTPClient replaces the client used for listing and detail fetches.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// Import scrapes one partner listing page and enriches each deal from its detail page.
// Detail page failures are logged and do not fail the listing.
func (c *Client) Import(ctx context.Context, source string) ([]models.Deal, error) {
	slog.Info("Importing partner listing", "source", source)

	var deals []models.Deal
	err := util.RetryWithBackoff(ctx, maxRetries, c.retryBase, func(attempt int) error {
		var scrapeErr error
		deals, scrapeErr = c.scrapeListing(ctx, source)
		if scrapeErr != nil {
			slog.Warn("Listing scrape attempt failed", "source", source, "attempt", attempt+1, "error", scrapeErr)
		}
		return scrapeErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scrape listing %s: %w", source, err)
	}

	c.fetchDetails(ctx, deals)
	return deals, nil
}

func (c *Client) scrapeListing(ctx context.Context, source string) ([]models.Deal, error) {
	base, err := url.Parse(source)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to parse source URL %s: %w", source, err))
	}
	doc, err := c.fetchHTMLContent(ctx, source)
	if err != nil {
		return nil, err
	}

	list := c.selectors.Listing
	if doc.Find(list.Container.Item).Length() == 0 {
		return nil, fmt.Errorf("no '%s' elements found on %s. Potential block or page structure change", list.Container.Item, source)
	}

	var deals []models.Deal
	doc.Find(list.Container.Item).Each(func(_ int, s *goquery.Selection) {
		if list.Container.IgnoreModifier != "" && s.Is(list.Container.IgnoreModifier) {
			return
		}
		deal, parseErrors := parseCard(s, list.Elements, base)
		if len(parseErrors) > 0 {
			slog.Debug("Parsing issues for listing card", "title", deal.Title, "url", deal.SourceURL, "issues", strings.Join(parseErrors, "; "))
		}
		if deal.Title == "" || deal.SourceURL == "" {
			return
		}
		deals = append(deals, deal)
	})
	return deals, nil
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func parseCard(s *goquery.Selection, el ListElements, base *url.URL) (models.Deal, []string) {
	var deal models.Deal
	var parseErrors []string

	link := s.Find(el.TitleLink).First()
	if link.Length() > 0 && !link.Is("a") {
		link = link.Find("a").First()
	}
	if link.Length() == 0 {
		return deal, append(parseErrors, "title link not found")
	}
	deal.Title = strings.TrimSpace(link.Text())
	if href, ok := link.Attr("href"); ok {
		deal.SourceURL = resolveDealURL(base, href)
	}

	deal.BusinessName = text(s, el.Business)
	deal.BusinessType = text(s, el.BusinessType)
	deal.Location.City = text(s, el.City)
	deal.Location.Country = text(s, el.Country)

	deal.Discount = text(s, el.Discount)
	switch {
	case strings.Contains(deal.Discount, "%"):
		deal.DiscountType = models.DiscountPercentage
	case deal.Discount != "":
		deal.DiscountType = models.DiscountFixed
	default:
		parseErrors = append(parseErrors, "discount not found")
	}

	if p, ok := util.ParsePrice(text(s, el.OriginalPrice)); ok {
		deal.OriginalPrice = p
	}
	if p, ok := util.ParsePrice(text(s, el.DiscountedPrice)); ok {
		deal.DiscountedPrice = p
	}

	if src, ok := s.Find(el.Image).First().Attr("src"); ok && src != "" {
		deal.Images = []string{resolve(base, src)}
	}

	if el.ValidUntil != "" {
		if t := s.Find(el.ValidUntil).First(); t.Length() > 0 {
			raw, ok := t.Attr("datetime")
			if !ok {
				raw = t.Text()
			}
			if until, ok := parseDate(raw); ok {
				deal.ValidUntil = &until
			} else {
				parseErrors = append(parseErrors, fmt.Sprintf("failed to parse valid-until '%s'", raw))
			}
		}
	}
	return deal, parseErrors
}

func resolve(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// resolveDealURL makes href absolute, strips affiliate redirects and normalizes it.
func resolveDealURL(base *url.URL, href string) string {
	abs := resolve(base, href)
	if dest, changed := util.UnwrapRedirect(abs); changed {
		abs = dest
	}
	if normalized, err := util.NormalizeURL(abs); err == nil {
		return normalized
	}
	return abs
}

// fetchDetails fills description, gallery images and offer data from each
// deal's detail page, at most detailFetchLimit pages at a time.
func (c *Client) fetchDetails(ctx context.Context, deals []models.Deal) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchLimit)
	for i := range deals {
		g.Go(func() error {
			if err := c.scrapeDealDetailPage(gctx, &deals[i]); err != nil {
				slog.Warn("Failed to scrape detail page", "url", deals[i].SourceURL, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Client) scrapeDealDetailPage(ctx context.Context, deal *models.Deal) error {
	doc, err := c.fetchHTMLContent(ctx, deal.SourceURL)
	if err != nil {
		return err
	}
	base, _ := url.Parse(deal.SourceURL)

	det := c.selectors.Details
	if det.Description != "" {
		deal.Description = strings.TrimSpace(doc.Find(det.Description).First().Text())
	}
	if det.Gallery != "" {
		doc.Find(det.Gallery).Each(func(_ int, s *goquery.Selection) {
			if src, ok := s.Attr("src"); ok && src != "" {
				abs := resolve(base, src)
				if !slices.Contains(deal.Images, abs) {
					deal.Images = append(deal.Images, abs)
				}
			}
		})
	}

	offer, ok := findJSONLDOffer(doc)
	if !ok {
		return nil
	}
	if deal.Description == "" {
		deal.Description = strings.TrimSpace(offer.Description)
	}
	if deal.DiscountedPrice == 0 {
		if p, ok := offer.price(); ok {
			deal.DiscountedPrice = p
		}
	}
	if deal.ValidUntil == nil {
		if until, ok := offer.validThrough(); ok {
			deal.ValidUntil = &until
		}
	}
	for _, img := range offer.images() {
		abs := resolve(base, img)
		if !slices.Contains(deal.Images, abs) {
			deal.Images = append(deal.Images, abs)
		}
	}
	return nil
}

func (c *Client) allowed(hostname string) bool {
	domain := util.GetDomain("https://" + hostname)
	for _, d := range c.allowedDomains {
		if hostname == d || domain == d {
			return true
		}
	}
	return false
}

func (c *Client) fetchHTMLContent(ctx context.Context, urlStr string) (*goquery.Document, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to parse URL %s: %w", urlStr, err))
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, util.Permanent(fmt.Errorf("invalid URL scheme %s: only http and https allowed", parsedURL.Scheme))
	}

	hostname := parsedURL.Hostname()
	if !c.allowed(hostname) {
		return nil, util.Permanent(fmt.Errorf("security violation: URL hostname %s is not in allowlist", hostname))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, util.Permanent(fmt.Errorf("failed to create request for URL %s: %w", urlStr, err))
	}
	req.Header.Set("User-Agent", "WanderDealsImporter/1.0")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", urlStr, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		err := fmt.Errorf("failed to fetch URL %s: status code %d", urlStr, res.StatusCode)
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != http.StatusTooManyRequests {
			return nil, util.Permanent(err)
		}
		return nil, err
	}

	return goquery.NewDocumentFromReader(res.Body)
}
