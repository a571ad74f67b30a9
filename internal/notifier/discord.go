package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/wanderdeals/internal/models"
)

const (
	colorSubmission = 3447003  // #3498DB
	colorImport     = 10181046 // #9B59B6
	colorSummary    = 3066993  // #2ECC71
	colorFailures   = 15158332 // #E74C3C

	maxRetries = 3
)

// Origin tells moderators where a pending deal came from.
type Origin string

const (
	OriginSubmission Origin = "submission"
	OriginImport     Origin = "import"
)

// ImportSummary describes one run of the partner import.
type ImportSummary struct {
	Sources int
	Created int
	Updated int
	Failed  int
	Took    time.Duration
}

type Client struct {
	webhookURL  string
	adminURL    string
	client      *http.Client
	rateLimiter *rate.Limiter
}

// New returns a webhook client. adminURL, if set, is linked from each embed.
func New(webhookURL, adminURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		adminURL:   adminURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord allows roughly 30 webhook messages per minute.
		rateLimiter: rate.NewLimiter(rate.Every(2*time.Second), 5),
	}
}

// NotifyPendingDeal posts a moderation request for deal and returns the message ID.
func (c *Client) NotifyPendingDeal(ctx context.Context, deal models.Deal, origin Origin) (string, error) {
	if c.webhookURL == "" {
		return "", nil
	}
	return c.send(ctx, c.formatDealToEmbed(deal, origin))
}

// NotifyImportSummary posts the outcome of an import run. Runs that changed
// nothing and had no failures are not reported.
func (c *Client) NotifyImportSummary(ctx context.Context, s ImportSummary) error {
	if c.webhookURL == "" || (s.Created == 0 && s.Failed == 0) {
		return nil
	}
	_, err := c.send(ctx, formatSummaryEmbed(s))
	return err
}

// Internal structures
type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedThumbnail struct {
	URL string `json:"url,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string                `json:"title,omitempty"`
	Description string                `json:"description,omitempty"`
	URL         string                `json:"url,omitempty"`
	Timestamp   string                `json:"timestamp,omitempty"`
	Color       int                   `json:"color,omitempty"`
	Thumbnail   discordEmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []discordEmbedField   `json:"fields,omitempty"`
	Footer      discordEmbedFooter    `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func (c *Client) formatDealToEmbed(deal models.Deal, origin Origin) discordEmbed {
	title := fmt.Sprintf("[%s] %s", deal.HumanDiscountLabel(), deal.Title)

	color := colorSubmission
	if origin == OriginImport {
		color = colorImport
	}

	fields := []discordEmbedField{
		{Name: "Business", Value: deal.BusinessName, Inline: true},
	}
	if deal.Category != "" {
		fields = append(fields, discordEmbedField{Name: "Category", Value: deal.Category, Inline: true})
	}
	if deal.OriginalPrice > 0 {
		fields = append(fields, discordEmbedField{
			Name:   "Price",
			Value:  fmt.Sprintf("~~$%.2f~~ $%.2f", deal.OriginalPrice, deal.DiscountedPrice),
			Inline: true,
		})
	}
	if loc := formatLocation(deal.Location); loc != "" {
		fields = append(fields, discordEmbedField{Name: "Location", Value: loc, Inline: true})
	}

	var description string
	if deal.SourceURL != "" {
		description = fmt.Sprintf("[Partner listing](%s)", deal.SourceURL)
	}

	var thumbnail discordEmbedThumbnail
	if len(deal.Images) > 0 {
		thumbnail.URL = deal.Images[0]
	}

	var isoTimestamp string
	if !deal.CreatedAt.IsZero() {
		isoTimestamp = deal.CreatedAt.Format(time.RFC3339)
	}

	var link string
	if c.adminURL != "" {
		link = c.adminURL + "/admin/tables/deals"
	}

	return discordEmbed{
		Title:       title,
		URL:         link,
		Description: description,
		Timestamp:   isoTimestamp,
		Color:       color,
		Thumbnail:   thumbnail,
		Fields:      fields,
		Footer:      discordEmbedFooter{Text: fmt.Sprintf("Pending review · %s · %s", origin, deal.ID)},
	}
}

func formatLocation(l models.Location) string {
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.City != "":
		return l.City
	}
	return l.Country
}

func formatSummaryEmbed(s ImportSummary) discordEmbed {
	color := colorSummary
	if s.Failed > 0 {
		color = colorFailures
	}
	return discordEmbed{
		Title: "Partner import finished",
		Color: color,
		Fields: []discordEmbedField{
			{Name: "Sources", Value: strconv.Itoa(s.Sources), Inline: true},
			{Name: "New", Value: strconv.Itoa(s.Created), Inline: true},
			{Name: "Updated", Value: strconv.Itoa(s.Updated), Inline: true},
			{Name: "Failed", Value: strconv.Itoa(s.Failed), Inline: true},
		},
		Footer: discordEmbedFooter{Text: "Took " + s.Took.Round(time.Second).String()},
	}
}

func (c *Client) send(ctx context.Context, embed discordEmbed) (string, error) {
	payload := discordWebhookPayload{Embeds: []discordEmbed{embed}}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", err
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	for attempt := 0; ; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, parsedURL.String(), bytes.NewReader(payloadBytes))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return "", err
		}
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			var msgResponse discordMessageResponse
			if err := json.Unmarshal(bodyBytes, &msgResponse); err != nil {
				return "", err
			}
			return msgResponse.ID, nil
		}

		wait := retryBackoff(resp, attempt)
		if wait == 0 || attempt >= maxRetries {
			return "", fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
		}
		slog.Warn("Discord webhook failed, retrying", "status", resp.StatusCode, "attempt", attempt+1, "wait", wait)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
}

// retryBackoff returns how long to wait before retrying resp, or 0 when the
// status is not retryable. 429 honours Retry-After.
func retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return time.Duration(1<<attempt) * time.Second
	case resp.StatusCode >= 500:
		return time.Duration(1<<attempt) * 100 * time.Millisecond
	}
	return 0
}
