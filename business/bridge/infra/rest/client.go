// Package rest implements the BridgeClient port against a bridge aggregator REST API.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/crosschain-arb/business/bridge/app"
	"github.com/fd1az/crosschain-arb/business/bridge/domain"
	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/circuitbreaker"
	"github.com/fd1az/crosschain-arb/internal/httpclient"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

const (
	tracerName = "github.com/fd1az/crosschain-arb/business/bridge/infra/rest"

	transfersEndpoint = "/transfers"

	httpTimeout = 10 * time.Second
)

var _ app.BridgeClient = (*Client)(nil)

// ClientConfig holds configuration for the bridge REST client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Wallet receives the bridged funds on the target chain.
	Wallet string
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL, apiKey string) ClientConfig {
	return ClientConfig{BaseURL: baseURL, APIKey: apiKey, Timeout: httpTimeout}
}

// Client talks to POST /transfers and GET /transfers/{id}.
type Client struct {
	client httpclient.Client
	config ClientConfig
	logger logger.LoggerInterface
	cb     *circuitbreaker.CircuitBreaker[*httpclient.Response]
	tracer trace.Tracer
}

// NewClient creates a new bridge REST client.
func NewClient(cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigInvalid,
			apperror.WithContext("bridge api url is not set"))
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = httpTimeout
	}

	headers := map[string]string{"Accept": "application/json"}
	if cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.APIKey
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("bridge"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(timeout),
		httpclient.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	cbCfg := circuitbreaker.DefaultConfig("bridge-api")
	// 4xx answers come from a healthy API.
	cbCfg.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		return err == nil || (errors.As(err, &apiErr) && apiErr.Status < 500)
	}

	return &Client{
		client: client,
		config: cfg,
		logger: log,
		cb:     circuitbreaker.New[*httpclient.Response](cbCfg),
		tracer: otel.Tracer(tracerName),
	}, nil
}

type transferRequest struct {
	Bridge    string `json:"bridge"`
	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain"`
	Token     string `json:"token"`
	Amount    string `json:"amount"`
	Recipient string `json:"recipient,omitempty"`
}

type transferResponse struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	DeliveredAmount string `json:"deliveredAmount"`
	SourceTxHash    string `json:"sourceTxHash"`
	TargetTxHash    string `json:"targetTxHash"`
	Error           string `json:"error"`
}

// Transfer initiates a transfer. The call is never retried here; a bridge
// transfer is not idempotent.
func (c *Client) Transfer(ctx context.Context, req domain.TransferRequest) (domain.TransferHandle, error) {
	ctx, span := c.tracer.Start(ctx, "bridge.transfer",
		trace.WithAttributes(
			attribute.String("bridge", req.Bridge),
			attribute.String("from", req.From),
			attribute.String("to", req.To),
			attribute.String("amount", req.Amount.String()),
		),
	)
	defer span.End()

	var result transferResponse
	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.client.NewRequest(
			httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "transfer"}),
			httpclient.WithResponseErrorHandler(bridgeErrorHandler),
		).
			SetBody(transferRequest{
				Bridge:    req.Bridge,
				FromChain: req.From,
				ToChain:   req.To,
				Token:     req.Token,
				Amount:    req.Amount.String(),
				Recipient: c.config.Wallet,
			}).
			SetResult(&result).
			Post(ctx, transfersEndpoint)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer failed")
		return domain.TransferHandle{}, apperror.New(apperror.CodeBridgeAPIError,
			apperror.WithCause(err),
			apperror.WithContext("initiate transfer via "+req.Bridge))
	}
	if result.ID == "" {
		err := apperror.New(apperror.CodeBridgeAPIError, apperror.WithContext("transfer response has no id"))
		span.RecordError(err)
		return domain.TransferHandle{}, err
	}

	span.SetAttributes(attribute.String("transfer_id", result.ID))
	span.SetStatus(codes.Ok, "initiated")
	c.logger.Info(ctx, "bridge transfer initiated", "bridge", req.Bridge, "id", result.ID,
		"from", req.From, "to", req.To, "amount", req.Amount.String())

	return domain.TransferHandle{Bridge: req.Bridge, ID: result.ID}, nil
}

// GetTransfer fetches the current transfer state.
func (c *Client) GetTransfer(ctx context.Context, h domain.TransferHandle) (domain.Transfer, error) {
	ctx, span := c.tracer.Start(ctx, "bridge.get_transfer",
		trace.WithAttributes(attribute.String("transfer_id", h.ID)),
	)
	defer span.End()

	var result transferResponse
	_, err := c.cb.Execute(func() (*httpclient.Response, error) {
		return c.client.NewRequest(
			httpclient.WithLabels(httpclient.Label{Key: "endpoint", Value: "status"}),
			httpclient.WithResponseErrorHandler(bridgeErrorHandler),
		).
			SetResult(&result).
			Get(ctx, transfersEndpoint+"/"+url.PathEscape(h.ID))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "status failed")
		return domain.Transfer{}, apperror.New(apperror.CodeBridgeAPIError,
			apperror.WithCause(err),
			apperror.WithContext("transfer status "+h.ID))
	}

	t := domain.Transfer{
		Handle:       h,
		SourceTxHash: result.SourceTxHash,
		TargetTxHash: result.TargetTxHash,
		Error:        result.Error,
	}

	switch result.Status {
	case "completed", "filled":
		t.Status = domain.TransferCompleted
		t.DeliveredAmount, err = decimal.NewFromString(result.DeliveredAmount)
		if err != nil {
			span.RecordError(err)
			return domain.Transfer{}, apperror.New(apperror.CodeBridgeAPIError,
				apperror.WithCause(err),
				apperror.WithContext("invalid delivered amount"))
		}
	case "failed", "refunded", "expired":
		t.Status = domain.TransferFailed
	default:
		t.Status = domain.TransferPending
	}

	span.SetAttributes(attribute.String("status", string(t.Status)))
	span.SetStatus(codes.Ok, "fetched")
	return t, nil
}

// APIError is an error response from the bridge API.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bridge API error %d %s: %s", e.Status, e.Code, e.Message)
}

func bridgeErrorHandler(statusCode int, body []byte) error {
	if statusCode < 400 {
		return nil
	}
	apiErr := &APIError{Status: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(body)
	}
	return apiErr
}
