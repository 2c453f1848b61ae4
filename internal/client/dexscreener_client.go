package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"portfolio_tracker/internal/entity"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DEXScreenerClient defines the interface for interacting with the DEX Screener API.
type DEXScreenerClient interface {
	// GetTokenPairs returns all pairs DEX Screener knows for a token address.
	// An unknown token yields an empty slice and no error.
	GetTokenPairs(ctx context.Context, tokenAddress string) ([]entity.PairData, error)
}

// dexScreenerClientImpl is the implementation of DEXScreenerClient.
type dexScreenerClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDEXScreenerClient creates a new instance of dexScreenerClientImpl.
// requestsPerSecond <= 0 disables client-side rate limiting.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger, requestsPerSecond float64, burst int) DEXScreenerClient {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &dexScreenerClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		limiter: limiter,
		logger:  logger.Named("DEXScreenerClient"),
	}
}

// GetTokenPairs implements the DEXScreenerClient interface.
func (c *dexScreenerClientImpl) GetTokenPairs(ctx context.Context, tokenAddress string) ([]entity.PairData, error) {
	if strings.TrimSpace(tokenAddress) == "" {
		return nil, fmt.Errorf("tokenAddress cannot be empty")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait for %s: %w", tokenAddress, err)
		}
	}

	requestURL := fmt.Sprintf("%s/latest/dex/tokens/%s", c.baseURL, url.PathEscape(tokenAddress))
	c.logger.Debug("Requesting token pairs from DEX Screener", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to DEX Screener", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to DEX Screener (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("DEX Screener API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, fmt.Errorf("DEX Screener API request to %s failed with status %d", requestURL, resp.StatusCode())
	}

	var wrapper entity.DEXTokenPair
	if err := json.Unmarshal(rawBody, &wrapper); err != nil {
		c.logger.Error("Failed to unmarshal DEX Screener response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to unmarshal DEX Screener response from %s: %w", requestURL, err)
	}

	if len(wrapper.Pairs) == 0 {
		c.logger.Debug("DEX Screener returned no pairs", zap.String("tokenAddress", tokenAddress))
		return []entity.PairData{}, nil
	}

	c.logger.Debug("Successfully unmarshalled DEX Screener response",
		zap.String("tokenAddress", tokenAddress),
		zap.Int("pairCount", len(wrapper.Pairs)))
	return wrapper.Pairs, nil
}
