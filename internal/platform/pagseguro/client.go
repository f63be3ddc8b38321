// Package pagseguro is the HTTP client for the PagSeguro transaction web services.
package pagseguro

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html/charset"

	"github.com/pagseguro-reconciler/internal/config"
	"github.com/pagseguro-reconciler/internal/domain/payment"
)

const (
	ProductionBaseURL = "https://ws.pagseguro.uol.com.br"
	SandboxBaseURL    = "https://ws.sandbox.pagseguro.uol.com.br"

	maxBodyBytes = 1 << 20
)

var _ payment.TransactionLookup = (*Client)(nil)

// Client fetches transaction records by notification code or by order reference
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	token      string
	charset    string
	logger     *slog.Logger
}

// NewClient creates a client for the configured environment
func NewClient(logger *slog.Logger, cfg config.PagSeguroConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = SandboxBaseURL
		if cfg.Environment == config.PagSeguroProduction {
			baseURL = ProductionBaseURL
		}
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      cfg.Email,
		token:      cfg.Token,
		charset:    cfg.Charset,
		logger:     logger.With("component", "pagseguro_client"),
	}
}

type transactionXML struct {
	XMLName       xml.Name `xml:"transaction"`
	Code          string   `xml:"code"`
	Reference     string   `xml:"reference"`
	Status        int      `xml:"status"`
	GrossAmount   string   `xml:"grossAmount"`
	LastEventDate string   `xml:"lastEventDate"`
}

type searchResultXML struct {
	XMLName      xml.Name         `xml:"transactionSearchResult"`
	Transactions []transactionXML `xml:"transactions>transaction"`
}

type errorsXML struct {
	XMLName xml.Name `xml:"errors"`
	Errors  []struct {
		Code    string `xml:"code"`
		Message string `xml:"message"`
	} `xml:"error"`
}

// Fetch loads the transaction identified by the query.
// A notification code takes precedence over a reference.
func (c *Client) Fetch(ctx context.Context, query payment.Query) (*payment.TransactionRecord, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	if query.NotificationCode != "" {
		return c.fetchTransaction(ctx, query, "/v3/transactions/notifications/"+url.PathEscape(query.NotificationCode), nil)
	}
	return c.fetchByReference(ctx, query)
}

// fetchByReference searches the reference and loads the details of its most recent transaction
func (c *Client) fetchByReference(ctx context.Context, query payment.Query) (*payment.TransactionRecord, error) {
	var result searchResultXML
	if err := c.get(ctx, query, "/v2/transactions", url.Values{"reference": {query.Reference}}, &result); err != nil {
		return nil, err
	}
	if len(result.Transactions) == 0 {
		return nil, payment.ErrTransactionNotFound{Query: query}
	}

	records := make([]*payment.TransactionRecord, 0, len(result.Transactions))
	for _, tx := range result.Transactions {
		record, err := tx.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].LastEventDate.After(records[j].LastEventDate)
	})

	latest := records[0]
	c.logger.Debug("Resolved reference to transaction",
		"reference", query.Reference,
		"transaction_code", latest.Code,
		"candidates", len(records))

	return c.fetchTransaction(ctx, query, "/v3/transactions/"+url.PathEscape(latest.Code), nil)
}

func (c *Client) fetchTransaction(ctx context.Context, query payment.Query, path string, params url.Values) (*payment.TransactionRecord, error) {
	var tx transactionXML
	if err := c.get(ctx, query, path, params, &tx); err != nil {
		return nil, err
	}
	return tx.toRecord()
}

func (c *Client) get(ctx context.Context, query payment.Query, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("email", c.email)
	params.Set("token", c.token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build pagseguro request: %w", err)
	}
	req.Header.Set("Accept", "application/xml;charset="+c.charset)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pagseguro request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read pagseguro response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return payment.ErrTransactionNotFound{Query: query}
	default:
		return c.providerError(resp.StatusCode, body)
	}

	if err := decodeXML(body, out); err != nil {
		return fmt.Errorf("failed to decode pagseguro response: %w", err)
	}
	return nil
}

// decodeXML honours the encoding declared in the document prolog; PagSeguro answers in ISO-8859-1
func decodeXML(body []byte, out any) error {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel
	return decoder.Decode(out)
}

// providerError turns an <errors> document into a ProviderError carrying its first entry
func (c *Client) providerError(status int, body []byte) error {
	perr := &payment.ProviderError{HTTPStatus: status}

	var doc errorsXML
	if err := decodeXML(body, &doc); err == nil && len(doc.Errors) > 0 {
		perr.Code = doc.Errors[0].Code
		perr.Message = doc.Errors[0].Message
	}

	c.logger.Warn("PagSeguro returned an error",
		"http_status", status,
		"code", perr.Code,
		"message", perr.Message)
	return perr
}

func (t transactionXML) toRecord() (*payment.TransactionRecord, error) {
	if t.Code == "" {
		return nil, errors.New("pagseguro transaction without code")
	}

	record := &payment.TransactionRecord{
		Code:      t.Code,
		Reference: t.Reference,
		Status:    payment.StatusCode(t.Status),
	}

	if t.GrossAmount != "" {
		amount, err := decimal.NewFromString(strings.TrimSpace(t.GrossAmount))
		if err != nil {
			return nil, fmt.Errorf("invalid gross amount %q: %w", t.GrossAmount, err)
		}
		record.GrossAmount = amount
	}

	if t.LastEventDate != "" {
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(t.LastEventDate))
		if err != nil {
			return nil, fmt.Errorf("invalid last event date %q: %w", t.LastEventDate, err)
		}
		record.LastEventDate = at
	}

	return record, nil
}
