// Package transport consumes a public journey-planner website as a routing
// black box: (origin stop, destination, target arrival time, weekday) in,
// best feasible journey or confirmed-absent out. The page's internal layout
// is this collaborator's concern; the client only reads the connection
// summary it publishes.
package transport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/prihlasky/admissions-cli/internal/model"
)

// Options configures the journey-planner client.
type Options struct {
	BaseURL        string
	OriginStop     string
	OriginStopCode string
	// ArrivalTime is the target arrival, "HH:MM".
	ArrivalTime string
	// Weekday selects the travel date: the next occurrence of this weekday.
	Weekday   time.Weekday
	Timeout   time.Duration
	UserAgent string
}

// Client queries the journey planner over HTTP.
type Client struct {
	rest *resty.Client
	opts Options
	now  func() time.Time
}

// New creates a journey-planner client.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	}
	if opts.ArrivalTime == "" {
		opts.ArrivalTime = "07:45"
	}

	rest := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	return &Client{rest: rest, opts: opts, now: time.Now}
}

// WithNow sets a fixed clock for testing.
func (c *Client) WithNow(now func() time.Time) *Client {
	c.now = now
	return c
}

// connMeta is the JSON the planner embeds, base64-encoded, in its
// connection meta tag. Field names are the provider's.
type connMeta struct {
	Departure string `json:"cas_odj"`
	Arrival   string `json:"cas_pri"`
}

var transferRe = regexp.MustCompile(`(?i)Přesun\s+asi\s+(\d+)\s*(?:minut|min)`)

// FindJourney looks up the best connection from the configured origin stop
// to destination arriving by the configured time. The returned LookupResult
// is found (with a Journey), confirmed-absent (page answered but carries no
// timing data), or an error for transport-level failures the caller records
// as a failed lookup.
func (c *Client) FindJourney(ctx context.Context, destination string) (*model.LookupResult, error) {
	searchURL := c.buildSearchURL(destination)

	resp, err := c.rest.R().SetContext(ctx).Get(searchURL)
	if err != nil {
		return nil, eris.Wrapf(err, "transport: fetch connection for %q", destination)
	}
	if resp.IsError() {
		return nil, eris.Errorf("transport: unexpected status %d for %q", resp.StatusCode(), destination)
	}

	body := resp.String()
	journey, ok := c.parseJourney(body)
	if !ok {
		zap.L().Debug("transport: no connection data on result page",
			zap.String("destination", destination),
		)
		return &model.LookupResult{
			Kind:    model.LookupTransport,
			Outcome: model.LookupAbsent,
			Detail:  "no connection data",
		}, nil
	}

	journey.PlannerURL = searchURL
	return &model.LookupResult{
		Kind:    model.LookupTransport,
		Outcome: model.LookupFound,
		Journey: journey,
	}, nil
}

// buildSearchURL assembles the arrival-constrained search URL. The travel
// date is the next occurrence of the configured weekday.
func (c *Client) buildSearchURL(destination string) string {
	date := NextWeekday(c.now(), c.opts.Weekday)

	q := url.Values{}
	q.Set("date", date.Format("02.01.2006"))
	q.Set("time", c.opts.ArrivalTime)
	q.Set("f", c.opts.OriginStop)
	if c.opts.OriginStopCode != "" {
		q.Set("fc", c.opts.OriginStopCode)
	}
	q.Set("t", destination)
	q.Set("arr", "true")
	q.Set("submit", "true")

	return strings.TrimRight(c.opts.BaseURL, "?") + "?" + q.Encode()
}

// parseJourney extracts the first connection's timing from the result page.
func (c *Client) parseJourney(body string) (*model.Journey, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, false
	}

	content, exists := doc.Find(`meta[name="mafra_conn"]`).Attr("content")
	if !exists {
		return nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		zap.L().Debug("transport: connection meta tag is not valid base64", zap.Error(err))
		return nil, false
	}
	var meta connMeta
	if err := json.Unmarshal(decoded, &meta); err != nil {
		zap.L().Debug("transport: connection meta tag is not valid JSON", zap.Error(err))
		return nil, false
	}

	duration, ok := journeyDuration(meta.Departure, meta.Arrival)
	if !ok {
		return nil, false
	}

	journey := &model.Journey{
		DurationMinutes: duration,
		Departure:       meta.Departure,
		Arrival:         meta.Arrival,
	}

	// Transfer points show up as "Přesun asi N min" walk segments; a
	// direct route says "bez přestupu" instead.
	if matches := transferRe.FindAllStringSubmatch(body, -1); len(matches) > 0 {
		n := len(matches)
		journey.Transfers = &n
	} else if strings.Contains(strings.ToLower(body), "bez přestupu") {
		zero := 0
		journey.Transfers = &zero
	}

	return journey, true
}

// journeyDuration computes minutes between "H:MM" clock times, rolling over
// midnight when the arrival reads earlier than the departure.
func journeyDuration(departure, arrival string) (int, bool) {
	dep, err1 := time.Parse("15:04", normalizeClock(departure))
	arr, err2 := time.Parse("15:04", normalizeClock(arrival))
	if err1 != nil || err2 != nil {
		return 0, false
	}
	if arr.Before(dep) {
		arr = arr.Add(24 * time.Hour)
	}
	return int(arr.Sub(dep).Minutes()), true
}

func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i == 1 {
		return "0" + s
	}
	return s
}

// NextWeekday returns the next occurrence of wd strictly after from.
func NextWeekday(from time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(from.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return from.AddDate(0, 0, days)
}
