// Package httpfeed implements PriceFeed against a market data REST service.
package httpfeed

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/business/market/app"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/httpclient"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const httpTimeout = 5 * time.Second

var _ app.PriceFeed = (*Feed)(nil)

// Feed reads GET {base}/prices/{chain}/{token}.
type Feed struct {
	client httpclient.Client
	logger logger.LoggerInterface
}

// NewFeed creates a feed rooted at baseURL.
func NewFeed(baseURL string, timeout time.Duration, log logger.LoggerInterface) (*Feed, error) {
	if baseURL == "" {
		return nil, apperror.New(apperror.CodeConfigInvalid,
			apperror.WithContext("market http_base_url is not set"))
	}
	if timeout == 0 {
		timeout = httpTimeout
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("market"),
		httpclient.WithBaseURL(baseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(map[string]string{"Accept": "application/json"}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return &Feed{client: client, logger: log}, nil
}

type priceResponse struct {
	Price string `json:"price"`
}

// GetPrice fetches one price. 404 means the service has no price.
func (f *Feed) GetPrice(ctx context.Context, chain string, token common.Address) (decimal.Decimal, error) {
	var result priceResponse
	_, err := f.client.NewRequest(
		httpclient.WithLabels(httpclient.Label{Key: "chain", Value: chain}),
		httpclient.WithResponseErrorHandler(priceErrorHandler),
	).
		SetResult(&result).
		Get(ctx, fmt.Sprintf("/prices/%s/%s", chain, token.Hex()))
	if err != nil {
		if apperror.IsCode(err, apperror.CodePriceUnavailable) {
			return decimal.Zero, err
		}
		return decimal.Zero, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("market data request"))
	}

	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, apperror.New(apperror.CodePriceUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("malformed price %q", result.Price)))
	}
	return price, nil
}

func priceErrorHandler(statusCode int, body []byte) error {
	switch {
	case statusCode == http.StatusNotFound:
		return apperror.New(apperror.CodePriceUnavailable,
			apperror.WithContext(string(body)))
	case statusCode >= 400:
		return fmt.Errorf("market data API error %d: %s", statusCode, body)
	}
	return nil
}
