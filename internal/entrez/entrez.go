// Package entrez implements a rate-limited, retrying client for the three
// Entrez E-utilities endpoints this pipeline needs: esearch, epost and
// efetch. The retry/validation shape is grounded on eutils' citref.go --
// the teacher's only net/http call site -- which issues a plain http.Get,
// reads the body with io.ReadAll, and hand-validates the response by
// substring/field inspection rather than trusting the status code alone.
package entrez

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// Sentinel error kinds, matching spec.md §7's logical error taxonomy.
var (
	ErrTransport  = errors.New("entrez: transport failure")
	ErrProtocol   = errors.New("entrez: protocol failure")
	ErrEmptyInput = errors.New("entrez: empty input")
	ErrEmptyResult = errors.New("entrez: empty result")
)

const (
	dbPMC            = "pmc"
	openAccessFilter = "open+access[filter]"

	defaultTimeout   = 27 * time.Second
	nAttempts        = 5
	retryDelay       = 2 * time.Second
	periodNoAPIKey   = 1050 * time.Millisecond
	periodWithAPIKey = 150 * time.Millisecond
)

// SessionToken is the server-side "history" handle returned by search/post,
// consumed by fetch. See spec.md §3.
type SessionToken struct {
	WebEnv   string
	QueryKey string
	Count    int
}

// Client is a rate-limited, retrying Entrez client. Rate-limiter state lives
// on the value itself (spec.md §9's "hold inside the client value, don't use
// module-level singletons"), so a Client is safe to construct per-run but
// must not be used from multiple goroutines concurrently without its own
// external synchronization (the download stage, like the original, drives
// one Client from a single goroutine).
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	mu              sync.Mutex
	lastRequestTime time.Time
}

// New builds a Client with the given base URL (e.g.
// "https://eutils.ncbi.nlm.nih.gov/entrez/eutils") and optional API key.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: defaultTimeout},
	}
}

func (c *Client) requestPeriod() time.Duration {
	if c.APIKey != "" {
		return periodWithAPIKey
	}
	return periodNoAPIKey
}

// waitForSlot blocks until at least requestPeriod has elapsed since the
// previous request, matching spec.md §4.1's rate-limit contract.
func (c *Client) waitForSlot() {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.lastRequestTime)
	if wait := c.requestPeriod() - elapsed; wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequestTime = time.Now()
}

// doWithRetry sends form to endpoint up to nAttempts times, sleeping
// retryDelay between failed attempts, validating each response body with
// validate. A failing attempt does not consume the next request's rate-limit
// slot (the wait happens once per attempt, immediately before sending).
func (c *Client) doWithRetry(ctx context.Context, endpoint string, form url.Values, validate func([]byte, int) error) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < nAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		c.waitForSlot()

		body, status, err := c.post(ctx, endpoint, form)
		if err != nil {
			lastErr = fmt.Errorf("%w: %s", ErrTransport, err)
			continue
		}
		if err := validate(body, status); err != nil {
			lastErr = fmt.Errorf("%w: %s", ErrProtocol, err)
			continue
		}
		return body, nil
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/"+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) withAPIKey(form url.Values) url.Values {
	if c.APIKey != "" {
		form.Set("api_key", c.APIKey)
	}
	return form
}

type esearchResult struct {
	ESearchResult struct {
		Count    string   `json:"count"`
		WebEnv   string   `json:"webenv"`
		QueryKey string   `json:"querykey"`
		Error    string   `json:"ERROR"`
		ErrorList []string `json:"errorlist,omitempty"`
	} `json:"esearchresult"`
}

func validateSearch(body []byte, status int) error {
	if status != http.StatusOK {
		return fmt.Errorf("esearch: unexpected status %d", status)
	}
	var result esearchResult
	if err := sonic.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("esearch: invalid JSON: %w", err)
	}
	if result.ESearchResult.Error != "" {
		return fmt.Errorf("esearch: server error: %s", result.ESearchResult.Error)
	}
	if result.ESearchResult.WebEnv == "" || result.ESearchResult.QueryKey == "" {
		return errors.New("esearch: missing webenv/querykey")
	}
	return nil
}

// Search runs an esearch against the PMC open-access subset. If webEnv and
// queryKey are both set, the query is intersected with that existing
// server-side result set (spec.md §4.1).
func (c *Client) Search(ctx context.Context, query, webEnv, queryKey string) (SessionToken, error) {
	term := openAccessFilter
	if query != "" {
		term = query + "+AND+" + openAccessFilter
	}
	form := c.withAPIKey(url.Values{
		"db":       {dbPMC},
		"term":     {term},
		"usehistory": {"y"},
		"retmode":  {"json"},
		"retmax":   {"5"},
	})
	if webEnv != "" && queryKey != "" {
		form.Set("WebEnv", webEnv)
		form.Set("query_key", queryKey)
	}

	body, err := c.doWithRetry(ctx, "esearch.fcgi", form, validateSearch)
	if err != nil {
		return SessionToken{}, err
	}
	var result esearchResult
	_ = sonic.Unmarshal(body, &result)

	count := 0
	fmt.Sscanf(result.ESearchResult.Count, "%d", &count)
	return SessionToken{
		WebEnv:   result.ESearchResult.WebEnv,
		QueryKey: result.ESearchResult.QueryKey,
		Count:    count,
	}, nil
}

type epostResponse struct {
	XMLName  xml.Name `xml:"ePostResult"`
	WebEnv   string   `xml:"WebEnv"`
	QueryKey string   `xml:"QueryKey"`
}

func validatePost(body []byte, status int) error {
	if status != http.StatusOK {
		return fmt.Errorf("epost: unexpected status %d", status)
	}
	var result epostResponse
	if err := xml.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("epost: invalid XML: %w", err)
	}
	if result.WebEnv == "" || result.QueryKey == "" {
		return errors.New("epost: missing WebEnv/QueryKey")
	}
	return nil
}

// Post uploads an id list via epost, then immediately restricts the
// resulting history-server set to the open-access subset via Search --
// matching the original's EntrezClient.epost, which never returns the raw
// epost token directly but always re-searches it first.
func (c *Client) Post(ctx context.Context, ids []int) (SessionToken, error) {
	if len(ids) == 0 {
		return SessionToken{}, fmt.Errorf("%w: post requires at least one id", ErrEmptyInput)
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = fmt.Sprintf("%d", id)
	}
	form := c.withAPIKey(url.Values{
		"db": {dbPMC},
		"id": {strings.Join(idStrs, ",")},
	})

	body, err := c.doWithRetry(ctx, "epost.fcgi", form, validatePost)
	if err != nil {
		return SessionToken{}, err
	}
	var result epostResponse
	if err := xml.Unmarshal(body, &result); err != nil {
		return SessionToken{}, fmt.Errorf("%w: %s", ErrProtocol, err)
	}
	return c.Search(ctx, "", result.WebEnv, result.QueryKey)
}

func validateFetch(body []byte, status int) error {
	if status != http.StatusOK {
		return fmt.Errorf("efetch: unexpected status %d", status)
	}
	decoder := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("efetch: could not parse XML root: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			if start.Name.Local != "articleset" && start.Name.Local != "pmc-articleset" {
				return fmt.Errorf("efetch: unexpected root element %q", start.Name.Local)
			}
			return nil
		}
	}
}

// FetchBatch retrieves one batch of up to retmax records starting at
// retstart and returns the raw response body (an articleset XML document).
func (c *Client) FetchBatch(ctx context.Context, token SessionToken, retstart, retmax int) ([]byte, error) {
	form := c.withAPIKey(url.Values{
		"db":        {dbPMC},
		"WebEnv":    {token.WebEnv},
		"query_key": {token.QueryKey},
		"retmax":    {fmt.Sprintf("%d", retmax)},
		"retstart":  {fmt.Sprintf("%d", retstart)},
	})
	return c.doWithRetry(ctx, "efetch.fcgi", form, validateFetch)
}
