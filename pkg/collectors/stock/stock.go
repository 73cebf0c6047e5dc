// Package stock fetches daily quotes from Alpha Vantage for every symbol a
// bar shows. One collector serves all stock widgets so requests can be paced
// against the API's per-minute quota.
package stock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"gitlab.com/tinyland/lab/i3pulse/pkg/cache"
)

// Name is the collector's registry key.
const Name = "stock"

const (
	DefaultBaseURL = "https://www.alphavantage.co"
	DefaultRefresh = 5 * time.Minute

	minBackoff = time.Second
	maxBackoff = time.Minute
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config configures the collector.
type Config struct {
	APIKey  string
	BaseURL string
	// Refresh is how long a successfully fetched quote stays fresh.
	Refresh time.Duration
	// RequestsPerMinute paces requests; zero disables pacing.
	RequestsPerMinute int
	HTTPClient        *http.Client
	// Cache, if set, keeps quotes across restarts so a restart within
	// Refresh does not spend API quota.
	Cache *cache.Store
}

// Quote is the latest daily bar for one symbol.
type Quote struct {
	Symbol        string
	Date          string
	Open          float64
	High          float64
	Low           float64
	Close         float64
	Volume        float64
	PreviousClose float64
}

// Change is Close minus PreviousClose.
func (q Quote) Change() float64 { return q.Close - q.PreviousClose }

// ChangePercent is the magnitude of Change relative to PreviousClose.
func (q Quote) ChangePercent() float64 {
	if q.PreviousClose == 0 {
		return 0
	}
	pct := 100 * q.Change() / q.PreviousClose
	if pct < 0 {
		pct = -pct
	}
	return pct
}

// Quotes maps symbol to its latest quote.
type Quotes map[string]Quote

// Collector refreshes each symbol independently. A symbol whose fetch
// failed is retried after a backoff that starts at one second and doubles
// up to a minute; any success resets it.
type Collector struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	symbols  []string
	due      map[string]time.Time
	quotes   Quotes
	backoff  time.Duration
	interval time.Duration
	healthy  bool
}

// New returns a collector with no symbols.
func New(cfg Config) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	return &Collector{
		cfg:      cfg,
		client:   client,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		due:      make(map[string]time.Time),
		quotes:   make(Quotes),
		backoff:  minBackoff,
		interval: minBackoff,
		healthy:  true,
	}
}

// AddSymbol schedules symbol for fetching. Adding a symbol twice is a no-op.
func (c *Collector) AddSymbol(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.due[symbol]; ok {
		return
	}
	c.symbols = append(c.symbols, symbol)
	c.due[symbol] = time.Time{}

	if c.cfg.Cache == nil {
		return
	}
	if q, fetched, ok := cache.GetTyped[Quote](c.cfg.Cache, cacheKey(symbol)); ok {
		c.quotes[symbol] = q
		c.due[symbol] = fetched.Add(c.cfg.Refresh)
	}
}

func cacheKey(symbol string) string { return "stock/" + symbol }

// Symbols returns the tracked symbols in the order they were added.
func (c *Collector) Symbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.symbols...)
}

func (c *Collector) Name() string { return Name }

// Interval is the time until the next symbol falls due, or the current
// backoff when a symbol is overdue after a failure.
func (c *Collector) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

func (c *Collector) Healthy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy
}

// Collect fetches every due symbol and returns a copy of all quotes known
// so far, together with any fetch errors.
func (c *Collector) Collect(ctx context.Context) (any, error) {
	var errs []error
	for _, sym := range c.dueSymbols() {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.finish(errors.Join(append(errs, err)...))
		}
		q, err := c.fetch(ctx, sym)
		if err != nil {
			errs = append(errs, fmt.Errorf("quote %s: %w", sym, err))
			continue
		}
		c.mu.Lock()
		c.quotes[sym] = q
		c.due[sym] = c.now().Add(c.cfg.Refresh)
		c.backoff = minBackoff
		c.mu.Unlock()

		if c.cfg.Cache != nil {
			if err := cache.PutTyped(c.cfg.Cache, cacheKey(sym), q, c.cfg.Refresh); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return c.finish(errors.Join(errs...))
}

func (c *Collector) dueSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var out []string
	for _, sym := range c.symbols {
		if !c.due[sym].After(now) {
			out = append(out, sym)
		}
	}
	return out
}

// finish computes the next interval and snapshots the quotes.
func (c *Collector) finish(err error) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy = err == nil
	now := c.now()

	next := c.cfg.Refresh
	for i, sym := range c.symbols {
		if wait := c.due[sym].Sub(now); i == 0 || wait < next {
			next = wait
		}
	}
	switch {
	case next <= 0:
		c.interval = c.backoff
		c.backoff = min(2*c.backoff, maxBackoff)
	default:
		c.interval = next
	}

	if len(c.quotes) == 0 {
		return nil, err
	}
	out := make(Quotes, len(c.quotes))
	for k, v := range c.quotes {
		out[k] = v
	}
	return out, err
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

type dailyResponse struct {
	Series      map[string]dailyBar `json:"Time Series (Daily)"`
	Note        string              `json:"Note"`
	Information string              `json:"Information"`
	Error       string              `json:"Error Message"`
}

func (c *Collector) fetch(ctx context.Context, symbol string) (Quote, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", symbol)
	q.Set("outputsize", "compact")
	q.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/query?"+q.Encode(), nil)
	if err != nil {
		return Quote{}, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body dailyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Quote{}, fmt.Errorf("decode response: %w", err)
	}
	return parseDaily(symbol, body)
}

// parseDaily takes the newest bar as the quote and the close of the bar
// before it as the previous close. With a single bar the open stands in.
func parseDaily(symbol string, body dailyResponse) (Quote, error) {
	if len(body.Series) == 0 {
		for _, msg := range []string{body.Error, body.Note, body.Information} {
			if msg != "" {
				return Quote{}, errors.New(msg)
			}
		}
		return Quote{}, errors.New("empty time series")
	}

	dates := make([]string, 0, len(body.Series))
	for d := range body.Series {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	latest := body.Series[dates[0]]
	q := Quote{Symbol: symbol, Date: dates[0]}

	var err error
	if q.Open, err = strconv.ParseFloat(latest.Open, 64); err != nil {
		return Quote{}, fmt.Errorf("parse open %q: %w", latest.Open, err)
	}
	if q.Close, err = strconv.ParseFloat(latest.Close, 64); err != nil {
		return Quote{}, fmt.Errorf("parse close %q: %w", latest.Close, err)
	}
	q.High, _ = strconv.ParseFloat(latest.High, 64)
	q.Low, _ = strconv.ParseFloat(latest.Low, 64)
	q.Volume, _ = strconv.ParseFloat(latest.Volume, 64)

	q.PreviousClose = q.Open
	if len(dates) > 1 {
		if pc, err := strconv.ParseFloat(body.Series[dates[1]].Close, 64); err == nil {
			q.PreviousClose = pc
		}
	}
	return q, nil
}
