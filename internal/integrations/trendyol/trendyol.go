// internal/integrations/trendyol/trendyol.go
package trendyol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sivellexfc/paket-pilot/internal/integrations"
	"github.com/Sivellexfc/paket-pilot/internal/table"
	"github.com/rs/zerolog"
)

const (
	Name = "trendyol"

	DefaultBaseURL = "https://api.trendyol.com/sapigw"
	DefaultApp     = "BenimStokUygulamam"

	StatusPicking   = "Picking"
	StatusCancelled = "Cancelled"

	// tekst błędu z API przycinamy, żeby nie zalać logów HTML-em
	maxErrorBody = 512
)

// Nagłówki tabel zwracanych przez klienta.
var (
	OpenOrderHeaders = []table.Cell{
		"Paket No", "Sipariş Numarası", "Sipariş Statüsü", "İl", "Teslimat Adresi",
		"Ürün Adı", "Barkod", "Adet", "Birim Fiyatı",
	}
	CancelledOrderHeaders = []table.Cell{
		"Sipariş Numarası", "Sipariş Statüsü", "Ürün Adı", "Barkod", "Adet",
		"Müşteri", "Sipariş Tarihi", "Durum Tarihi", "Kargo Takip No",
	}
)

// dateLayout – format dat w tabeli anulowanych.
const dateLayout = "02.01.2006 15:04"

type Config struct {
	BaseURL    string `json:"base_url"`
	App        string `json:"app"` // druga część User-Agent: "{seller} - {app}"
	PageSize   int    `json:"page_size"`
	MaxPages   int    `json:"max_pages"`
	TimeoutSec int    `json:"timeout_sec"`
}

// Defaults – wartości wpisywane do config.json przy pierwszym uruchomieniu.
func Defaults() Config {
	return Config{BaseURL: DefaultBaseURL, App: DefaultApp, PageSize: 200, MaxPages: 50, TimeoutSec: 20}
}

func (c Config) withDefaults() Config {
	d := Defaults()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.App == "" {
		c.App = d.App
	}
	if c.PageSize <= 0 || c.PageSize > 200 {
		c.PageSize = d.PageSize
	}
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = d.TimeoutSec
	}
	return c
}

// Client – klient API zamówień Trendyol (integrations.Marketplace).
type Client struct {
	log  zerolog.Logger
	cfg  Config
	http *http.Client
	loc  *time.Location
}

var _ integrations.Marketplace = (*Client)(nil)

func New(log zerolog.Logger, cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		log:  log,
		cfg:  cfg,
		http: &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		loc:  time.Local,
	}
}

func (c *Client) Name() string { return Name }

// FetchOpenOrders – paczki w statusie Picking, jeden wiersz na linię zamówienia.
func (c *Client) FetchOpenOrders(ctx context.Context, cred integrations.Credentials, r integrations.DateRange) (table.Table, error) {
	pkgs, err := c.fetch(ctx, cred, StatusPicking, r)
	if err != nil {
		return table.Table{}, err
	}
	rows := make([][]table.Cell, 0, len(pkgs))
	for _, p := range pkgs {
		for _, l := range p.Lines {
			rows = append(rows, []table.Cell{
				strconv.FormatInt(p.ID, 10),
				p.OrderNumber,
				p.Status,
				p.city(),
				p.fullAddress(),
				l.ProductName,
				l.Barcode,
				l.Quantity,
				l.Amount,
			})
		}
	}
	return table.New(OpenOrderHeaders, rows)
}

// FetchCancelledOrders – paczki w statusie Cancelled z przedziału r.
func (c *Client) FetchCancelledOrders(ctx context.Context, cred integrations.Credentials, r integrations.DateRange) (table.Table, error) {
	pkgs, err := c.fetch(ctx, cred, StatusCancelled, r)
	if err != nil {
		return table.Table{}, err
	}
	rows := make([][]table.Cell, 0, len(pkgs))
	for _, p := range pkgs {
		for _, l := range p.Lines {
			rows = append(rows, []table.Cell{
				p.OrderNumber,
				p.Status,
				l.ProductName,
				l.Barcode,
				l.Quantity,
				p.customer(),
				c.formatMillis(p.OrderDate),
				c.formatMillis(p.LastModifiedDate),
				p.CargoTrackingNumber.String(),
			})
		}
	}
	return table.New(CancelledOrderHeaders, rows)
}

// fetch pobiera wszystkie strony dla statusu. Strony liczone od 0,
// kończymy gdy page+1 >= totalPages albo strona przyszła pusta.
func (c *Client) fetch(ctx context.Context, cred integrations.Credentials, status string, r integrations.DateRange) ([]orderPackage, error) {
	if !cred.Valid() {
		return nil, fmt.Errorf("trendyol: brak danych API dla sklepu (seller id / key / secret)")
	}
	op := "trendyol " + strings.ToLower(status)

	var out []orderPackage
	for page := 0; page < c.cfg.MaxPages; page++ {
		res, err := c.fetchPage(ctx, cred, status, r, page)
		if err != nil {
			var fe *integrations.FetchError
			if errors.As(err, &fe) {
				fe.Op = op
				return nil, fe
			}
			return nil, fmt.Errorf("%s page %d: %w", op, page, err)
		}
		out = append(out, res.Content...)

		c.log.Debug().
			Str("status", status).
			Int("page", page).
			Int("total_pages", res.TotalPages).
			Int("packages", len(res.Content)).
			Msg("trendyol page")

		if len(res.Content) == 0 || page+1 >= res.TotalPages {
			return out, nil
		}
	}
	c.log.Warn().Str("status", status).Int("max_pages", c.cfg.MaxPages).Msg("trendyol: osiągnięto limit stron")
	return out, nil
}

func (c *Client) fetchPage(ctx context.Context, cred integrations.Credentials, status string, r integrations.DateRange, page int) (*ordersPage, error) {
	u, err := url.Parse(c.cfg.BaseURL + "/suppliers/" + url.PathEscape(cred.SellerID) + "/orders")
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	q := u.Query()
	q.Set("status", status)
	q.Set("startDate", strconv.FormatInt(r.Start.UnixMilli(), 10))
	q.Set("endDate", strconv.FormatInt(r.End.UnixMilli(), 10))
	q.Set("orderBy", "Date")
	q.Set("direction", "DESC")
	q.Set("size", strconv.Itoa(c.cfg.PageSize))
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", cred.SellerID+" - "+c.cfg.App)
	req.SetBasicAuth(cred.APIKey, cred.APISecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &integrations.FetchError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var res ordersPage
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &res, nil
}

func (c *Client) formatMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	return time.UnixMilli(ms).In(c.loc).Format(dateLayout)
}

func factory(log zerolog.Logger, raw json.RawMessage) (integrations.Marketplace, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}
	return New(log, cfg), nil
}

func init() {
	integrations.RegisterMarketplace(Name, factory)
}
