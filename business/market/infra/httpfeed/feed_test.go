package httpfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fd1az/crosschain-arb/internal/apperror"
	"github.com/fd1az/crosschain-arb/internal/logger"
)

func TestFeed_GetPrice(t *testing.T) {
	weth := common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /prices/arbitrum/"+weth.Hex(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"price":"3010.55"}`))
	})
	mux.HandleFunc("GET /prices/base/"+weth.Hex(), func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"price":"n/a"}`))
	})
	mux.HandleFunc("GET /prices/optimism/"+weth.Hex(), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f, err := NewFeed(srv.URL, time.Second, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	got, err := f.GetPrice(ctx, "arbitrum", weth)
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("3010.55")) {
		t.Errorf("price = %s", got)
	}

	tests := []struct {
		chain string
		code  apperror.Code
	}{
		{"polygon", apperror.CodePriceUnavailable}, // 404 from the mux
		{"base", apperror.CodePriceUnavailable},
		{"optimism", apperror.CodeExternalServiceError},
	}
	for _, tt := range tests {
		t.Run(tt.chain, func(t *testing.T) {
			_, err := f.GetPrice(ctx, tt.chain, weth)
			if !apperror.IsCode(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestNewFeed_RequiresURL(t *testing.T) {
	if _, err := NewFeed("", 0, logger.NewNop()); !apperror.IsCode(err, apperror.CodeConfigInvalid) {
		t.Errorf("err = %v, want CONFIG_INVALID", err)
	}
}
