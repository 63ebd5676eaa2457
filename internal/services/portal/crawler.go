package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

// ErrMissingTokens is returned when the REST crawl is attempted without a
// complete session token set
var ErrMissingTokens = fmt.Errorf("portal: session id and auth token are both required")

// PageError tags a crawl failure with the page it happened on. Partial
// snapshots are never valid, so any page failure aborts the whole crawl.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("failed to fetch page %d: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// CrawlerConfig describes the portal list endpoint
type CrawlerConfig struct {
	ListURL        string        // Absolute URL of the list endpoint
	Referer        string        // Listing page URL the portal expects as referer
	Origin         string        // Portal origin
	UserAgent      string
	PageSize       int
	PageDelay      time.Duration // Pacing between page fetches
	RequestTimeout time.Duration
}

// Crawler fetches the full ticket listing through the portal's REST API
type Crawler struct {
	config  CrawlerConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  arbor.ILogger
}

// NewCrawler creates a REST crawler
func NewCrawler(config CrawlerConfig, logger arbor.ILogger) *Crawler {
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	if config.PageDelay <= 0 {
		config.PageDelay = 200 * time.Millisecond
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	return &Crawler{
		config:  config,
		client:  &http.Client{Timeout: config.RequestTimeout},
		limiter: rate.NewLimiter(rate.Every(config.PageDelay), 1),
		logger:  logger,
	}
}

// listRequest is the portal's page-request body. The filter fields are fixed
// to the values the listing UI sends.
type listRequest struct {
	Object  listRequestObject `json:"object"`
	RealURL string            `json:"realUrl"`
}

type listRequestObject struct {
	PaginaSelecionada     int    `json:"paginaSelecionada"`
	PalavraChave          string `json:"palavraChave"`
	IDSolicitacao         *int   `json:"idSolicitacao"`
	IDTipo                int    `json:"idTipo"`
	IDContrato            int    `json:"idContrato"`
	IDGrupoAtual          int    `json:"idGrupoAtual"`
	Exibicao              string `json:"exibicao"`
	TipoVisualizacao      string `json:"tipoVisualizacao"`
	ExibicaoSubSolic      string `json:"exibicaoSubSolicitacoes"`
	SituacaoSLA           string `json:"situacaoSla"`
	OrdenarPor            string `json:"ordenarPor"`
	AllowCommentOnly      bool   `json:"allowCommentOnly"`
	ItensPorPagina        int    `json:"itensPorPagina"`
	IDStatus              *int   `json:"idStatus"`
	IDStatusFluxo         *int   `json:"idStatusFluxo"`
	TotalRequests         int    `json:"totalRequests"`
	Totalize              bool   `json:"totalize"`
}

// listResponse is the portal's page response envelope
type listResponse struct {
	Requests      []json.RawMessage `json:"requests"`
	TotalRequests int               `json:"totalRequests"`
	LastPage      int               `json:"lastPage"`
}

// FetchAll crawls every page of the listing. Requires both tokens; any page
// failure aborts the crawl with a PageError.
func (c *Crawler) FetchAll(ctx context.Context, tokens SessionTokens) ([]RawTicket, error) {
	if !tokens.Valid() {
		return nil, ErrMissingTokens
	}

	// Every page goes through the limiter. Page 1 consumes the initial token
	// so the inter-page delay applies from page 2 onward.
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &PageError{Page: 1, Err: err}
	}

	first, err := c.fetchPage(ctx, tokens, 1)
	if err != nil {
		return nil, &PageError{Page: 1, Err: err}
	}
	if first.Requests == nil {
		return nil, &PageError{Page: 1, Err: fmt.Errorf("malformed response: missing requests field")}
	}

	c.logger.Debug().
		Int("total_tickets", first.TotalRequests).
		Int("pages", first.LastPage).
		Msg("Listing size discovered")

	records := append([]json.RawMessage{}, first.Requests...)

	for page := 2; page <= first.LastPage; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &PageError{Page: page, Err: err}
		}
		resp, err := c.fetchPage(ctx, tokens, page)
		if err != nil {
			return nil, &PageError{Page: page, Err: err}
		}
		records = append(records, resp.Requests...)
	}

	tickets := make([]RawTicket, 0, len(records))
	for _, record := range records {
		var raw RawTicket
		if err := json.Unmarshal(record, &raw); err != nil {
			return nil, fmt.Errorf("malformed ticket record: %w", err)
		}
		raw.Payload = record
		tickets = append(tickets, raw)
	}

	c.logger.Info().Int("tickets", len(tickets)).Msg("Crawl complete")
	return tickets, nil
}

func (c *Crawler) fetchPage(ctx context.Context, tokens SessionTokens, page int) (*listResponse, error) {
	body := listRequest{
		Object: listRequestObject{
			PaginaSelecionada: page,
			IDTipo:            -1,
			IDContrato:        -1,
			IDGrupoAtual:      -1,
			ExibicaoSubSolic:  "N",
			OrdenarPor:        "NSolicitacao",
			ItensPorPagina:    c.config.PageSize,
			Totalize:          true,
		},
		RealURL: "/4biz/serviceRequestIncident/serviceRequestIncident.load",
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.ListURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build page request: %w", err)
	}

	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Cookie", tokens.CookieHeader())
	if c.config.Origin != "" {
		req.Header.Set("Origin", c.config.Origin)
	}
	if c.config.Referer != "" {
		req.Header.Set("Referer", c.config.Referer)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var decoded listResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}
	return &decoded, nil
}
