package blockchain

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

	"wallet-cluster-analyzer/internal/domain/entity"
	"wallet-cluster-analyzer/internal/infrastructure/config"
	"wallet-cluster-analyzer/internal/infrastructure/logger"
	"wallet-cluster-analyzer/internal/infrastructure/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	moralisService   = "moralis"
	nativeDecimals   = 18
	priceCacheSize   = 4096
	priceCacheTTL    = 10 * time.Minute
	maxErrorBodySize = 512
)

// ErrUnsupportedChain is returned for chains the indexer client has no mapping for
var ErrUnsupportedChain = errors.New("unsupported chain")

// chainInfo maps a supported chain to its Moralis identifier and native token
type chainInfo struct {
	moralisID     string
	nativeSymbol  string
	wrappedNative string
}

var chains = map[string]chainInfo{
	"ethereum": {moralisID: "eth", nativeSymbol: "ETH", wrappedNative: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
	"bsc":      {moralisID: "bsc", nativeSymbol: "BNB", wrappedNative: "0xbb4cdb9cbd36b01bd1cbaebf2de08d9173bc095c"},
	"polygon":  {moralisID: "polygon", nativeSymbol: "MATIC", wrappedNative: "0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270"},
}

// MoralisClient fetches wallet histories from the Moralis EVM API
type MoralisClient struct {
	cfg        config.MoralisConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	prices     *expirable.LRU[string, float64]
	metrics    *metrics.Metrics
	logger     *logger.Logger
}

// NewMoralisClient creates a new Moralis client
func NewMoralisClient(cfg config.MoralisConfig, m *metrics.Metrics, logger *logger.Logger) *MoralisClient {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	return &MoralisClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		prices:     expirable.NewLRU[string, float64](priceCacheSize, nil, priceCacheTTL),
		metrics:    m,
		logger:     logger.WithComponent("moralis-client"),
	}
}

type nativeTransaction struct {
	Hash           string `json:"hash"`
	FromAddress    string `json:"from_address"`
	ToAddress      string `json:"to_address"`
	Value          string `json:"value"`
	BlockTimestamp string `json:"block_timestamp"`
}

type tokenTransfer struct {
	TransactionHash string `json:"transaction_hash"`
	Address         string `json:"address"`
	FromAddress     string `json:"from_address"`
	ToAddress       string `json:"to_address"`
	Value           string `json:"value"`
	BlockTimestamp  string `json:"block_timestamp"`
	TokenSymbol     string `json:"token_symbol"`
	TokenDecimals   string `json:"token_decimals"`
}

type page[T any] struct {
	Cursor string `json:"cursor"`
	Result []T    `json:"result"`
}

type priceResponse struct {
	USDPrice float64 `json:"usdPrice"`
}

// GetWalletTransactions returns native and ERC20 transfers touching address since the given time.
// Records the API returns in an unusable shape are logged and skipped.
func (c *MoralisClient) GetWalletTransactions(ctx context.Context, address, chain string, since time.Time) ([]*entity.TransactionRecord, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	info, ok := chains[chain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, chain)
	}
	address = entity.NormalizeAddress(address)

	params := url.Values{}
	params.Set("chain", info.moralisID)
	params.Set("limit", strconv.Itoa(c.cfg.PageSize))
	if !since.IsZero() {
		params.Set("from_date", since.UTC().Format(time.RFC3339))
	}

	natives, err := fetchPages[nativeTransaction](ctx, c, "/"+address, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch native transactions for %s: %w", address, err)
	}
	transfers, err := fetchPages[tokenTransfer](ctx, c, "/"+address+"/erc20/transfers", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token transfers for %s: %w", address, err)
	}

	records := make([]*entity.TransactionRecord, 0, len(natives)+len(transfers))

	if len(natives) > 0 {
		nativePrice := c.tokenPrice(ctx, info.moralisID, info.wrappedNative)
		for _, tx := range natives {
			rec, err := c.convertNative(tx, chain, info, nativePrice)
			if err != nil {
				c.logger.Warn("Skipping native transaction",
					zap.String("hash", tx.Hash),
					zap.Error(err))
				continue
			}
			records = append(records, rec)
		}
	}

	for _, tr := range transfers {
		price := c.tokenPrice(ctx, info.moralisID, tr.Address)
		rec, err := c.convertTransfer(tr, chain, price)
		if err != nil {
			c.logger.Warn("Skipping token transfer",
				zap.String("hash", tr.TransactionHash),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}

	c.logger.Debug("Fetched wallet transactions",
		zap.String("address", address),
		zap.String("chain", chain),
		zap.Int("native", len(natives)),
		zap.Int("erc20", len(transfers)),
		zap.Int("records", len(records)))

	return records, nil
}

// fetchPages follows the cursor until the result is exhausted or the per-wallet cap is hit
func fetchPages[T any](ctx context.Context, c *MoralisClient, path string, params url.Values) ([]T, error) {
	var out []T
	q := cloneValues(params)

	for {
		var p page[T]
		if err := c.get(ctx, path, q, &p); err != nil {
			return nil, err
		}
		out = append(out, p.Result...)

		if c.cfg.MaxTransactionsPerWallet > 0 && len(out) >= c.cfg.MaxTransactionsPerWallet {
			return out[:c.cfg.MaxTransactionsPerWallet], nil
		}
		if p.Cursor == "" || len(p.Result) == 0 {
			return out, nil
		}
		q.Set("cursor", p.Cursor)
	}
}

// tokenPrice returns the USD price of a token, zero when unknown
func (c *MoralisClient) tokenPrice(ctx context.Context, chainID, token string) float64 {
	token = entity.NormalizeAddress(token)
	key := chainID + ":" + token
	if price, ok := c.prices.Get(key); ok {
		return price
	}

	params := url.Values{}
	params.Set("chain", chainID)

	var resp priceResponse
	if err := c.get(ctx, "/erc20/"+token+"/price", params, &resp); err != nil {
		c.logger.Debug("Token price unavailable",
			zap.String("token", token),
			zap.Error(err))
		if ctx.Err() == nil {
			c.prices.Add(key, 0)
		}
		return 0
	}

	c.prices.Add(key, resp.USDPrice)
	return resp.USDPrice
}

func (c *MoralisClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	start := time.Now()
	err = c.do(req, out)
	c.metrics.RecordUpstream(moralisService, time.Since(start).Seconds(), err)
	return err
}

func (c *MoralisClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("moralis %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode moralis response: %w", err)
	}
	return nil
}

func (c *MoralisClient) convertNative(tx nativeTransaction, chain string, info chainInfo, price float64) (*entity.TransactionRecord, error) {
	ts, err := parseTimestamp(tx.BlockTimestamp)
	if err != nil {
		return nil, err
	}
	usd, err := USDValue(tx.Value, nativeDecimals, price)
	if err != nil {
		return nil, err
	}
	rec := &entity.TransactionRecord{
		Hash:          tx.Hash,
		FromAddress:   entity.NormalizeAddress(tx.FromAddress),
		ToAddress:     entity.NormalizeAddress(tx.ToAddress),
		Value:         tx.Value,
		USDValue:      usd,
		Timestamp:     ts,
		TokenSymbol:   info.nativeSymbol,
		TokenDecimals: nativeDecimals,
		Network:       chain,
	}
	return rec, rec.Validate()
}

func (c *MoralisClient) convertTransfer(tr tokenTransfer, chain string, price float64) (*entity.TransactionRecord, error) {
	ts, err := parseTimestamp(tr.BlockTimestamp)
	if err != nil {
		return nil, err
	}
	decimals := nativeDecimals
	if tr.TokenDecimals != "" {
		if decimals, err = strconv.Atoi(tr.TokenDecimals); err != nil {
			return nil, fmt.Errorf("invalid token decimals %q: %w", tr.TokenDecimals, err)
		}
	}
	usd, err := USDValue(tr.Value, decimals, price)
	if err != nil {
		return nil, err
	}
	rec := &entity.TransactionRecord{
		Hash:          tr.TransactionHash,
		FromAddress:   entity.NormalizeAddress(tr.FromAddress),
		ToAddress:     entity.NormalizeAddress(tr.ToAddress),
		Value:         tr.Value,
		USDValue:      usd,
		Timestamp:     ts,
		TokenAddress:  entity.NormalizeAddress(tr.Address),
		TokenSymbol:   tr.TokenSymbol,
		TokenDecimals: decimals,
		Network:       chain,
	}
	return rec, rec.Validate()
}

// USDValue converts a raw integer token amount into USD: value / 10^decimals * price
func USDValue(raw string, decimals int, price float64) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	usd, _ := amount.Shift(int32(-decimals)).Mul(decimal.NewFromFloat(price)).Float64()
	return usd, nil
}

func parseTimestamp(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid block timestamp %q: %w", s, err)
	}
	return ts.UTC(), nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
