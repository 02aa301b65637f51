package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeYahoo serves canned v7 quote and v8 chart responses
type fakeYahoo struct {
	quoteBody  string
	quoteCode  int
	chartBody  string
	chartCode  int
	quoteCalls int
	chartCalls int
}

func (f *fakeYahoo) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v7/finance/quote", func(w http.ResponseWriter, r *http.Request) {
		f.quoteCalls++
		code := f.quoteCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		fmt.Fprint(w, f.quoteBody)
	})
	mux.HandleFunc("/v8/finance/chart/", func(w http.ResponseWriter, r *http.Request) {
		f.chartCalls++
		code := f.chartCode
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		fmt.Fprint(w, f.chartBody)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func quoteJSON(fields string) string {
	return fmt.Sprintf(`{"quoteResponse":{"result":[{%s}],"error":null}}`, fields)
}

const emptyQuoteJSON = `{"quoteResponse":{"result":[],"error":null}}`

func chartJSON(timestamps []int64, closes []float64) string {
	ts, cl := "", ""
	for i, t := range timestamps {
		if i > 0 {
			ts += ","
			cl += ","
		}
		ts += fmt.Sprintf("%d", t)
		cl += fmt.Sprintf("%g", closes[i])
	}
	return fmt.Sprintf(`{"chart":{"result":[{"timestamp":[%s],"indicators":{"quote":[{"close":[%s]}]}}],"error":null}}`, ts, cl)
}

func TestGetStockInfo(t *testing.T) {
	log := zerolog.Nop()
	ctx := context.Background()

	t.Run("uses regularMarketPrice and longName", func(t *testing.T) {
		fake := &fakeYahoo{
			quoteBody: quoteJSON(`"symbol":"AAPL","regularMarketPrice":175.5,"currentPrice":170.0,"longName":"Apple Inc.","shortName":"Apple"`),
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		quote, err := client.GetStockInfo(ctx, "aapl")
		require.NoError(t, err)
		assert.Equal(t, "AAPL", quote.Symbol)
		assert.Equal(t, "Apple Inc.", quote.CompanyName)
		assert.Equal(t, 175.5, quote.CurrentPrice)
		assert.Zero(t, fake.chartCalls)
	})

	t.Run("falls back to currentPrice and shortName", func(t *testing.T) {
		fake := &fakeYahoo{
			quoteBody: quoteJSON(`"symbol":"MSFT","currentPrice":372.25,"shortName":"Microsoft"`),
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		quote, err := client.GetStockInfo(ctx, "MSFT")
		require.NoError(t, err)
		assert.Equal(t, "Microsoft", quote.CompanyName)
		assert.Equal(t, 372.25, quote.CurrentPrice)
	})

	t.Run("falls back to last historical close", func(t *testing.T) {
		fake := &fakeYahoo{
			quoteBody: quoteJSON(`"symbol":"TSLA","longName":"Tesla, Inc."`),
			chartBody: chartJSON([]int64{1717200000, 1717286400}, []float64{238.1, 240.5}),
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		quote, err := client.GetStockInfo(ctx, "TSLA")
		require.NoError(t, err)
		assert.Equal(t, 240.5, quote.CurrentPrice)
		assert.Equal(t, 1, fake.chartCalls)
	})

	t.Run("symbol falls back as the name", func(t *testing.T) {
		fake := &fakeYahoo{
			quoteBody: quoteJSON(`"symbol":"XYZ","regularMarketPrice":10.0`),
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		quote, err := client.GetStockInfo(ctx, "XYZ")
		require.NoError(t, err)
		assert.Equal(t, "XYZ", quote.CompanyName)
	})

	t.Run("price zero when history has no closes", func(t *testing.T) {
		fake := &fakeYahoo{
			quoteBody: quoteJSON(`"symbol":"PENNY","longName":"Penny Corp"`),
			chartBody: `{"chart":{"result":[],"error":null}}`,
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		quote, err := client.GetStockInfo(ctx, "PENNY")
		require.NoError(t, err)
		assert.Equal(t, "Penny Corp", quote.CompanyName)
		assert.Zero(t, quote.CurrentPrice)
	})

	t.Run("history failure degrades to placeholder quote", func(t *testing.T) {
		fake := &fakeYahoo{
			quoteBody: quoteJSON(`"symbol":"BRKN","longName":"Broken Corp"`),
			chartCode: http.StatusInternalServerError,
			chartBody: "upstream error",
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		quote, err := client.GetStockInfo(ctx, "BRKN")
		require.NoError(t, err)
		assert.Equal(t, "BRKN", quote.Symbol)
		assert.Equal(t, "BRKN Inc.", quote.CompanyName)
		assert.Zero(t, quote.CurrentPrice)
	})

	t.Run("unknown symbol returns ErrSymbolNotFound", func(t *testing.T) {
		fake := &fakeYahoo{quoteBody: emptyQuoteJSON}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		_, err := client.GetStockInfo(ctx, "NOPE")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSymbolNotFound)
	})

	t.Run("empty symbol is rejected without a request", func(t *testing.T) {
		fake := &fakeYahoo{quoteBody: emptyQuoteJSON}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		_, err := client.GetStockInfo(ctx, "")
		require.Error(t, err)
		assert.Zero(t, fake.quoteCalls)
	})
}

func TestGetDailyHistory(t *testing.T) {
	log := zerolog.Nop()
	ctx := context.Background()

	t.Run("parses timestamps and closes", func(t *testing.T) {
		fake := &fakeYahoo{
			chartBody: chartJSON([]int64{1717200000, 1717286400, 1717372800}, []float64{100.5, 101.25, 99.75}),
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		history, err := client.GetDailyHistory(ctx, "AAPL", "1mo")
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, 100.5, history[0].Close)
		assert.Equal(t, 99.75, history[2].Close)
		assert.True(t, history[0].Date.Before(history[1].Date))
	})

	t.Run("drops zero closes", func(t *testing.T) {
		fake := &fakeYahoo{
			chartBody: chartJSON([]int64{1717200000, 1717286400}, []float64{0, 101.25}),
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		history, err := client.GetDailyHistory(ctx, "AAPL", "5d")
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, 101.25, history[0].Close)
	})

	t.Run("empty result is not an error", func(t *testing.T) {
		fake := &fakeYahoo{chartBody: `{"chart":{"result":[],"error":null}}`}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		history, err := client.GetDailyHistory(ctx, "AAPL", "1d")
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("chart API error is surfaced", func(t *testing.T) {
		fake := &fakeYahoo{
			chartBody: `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`,
		}
		client := NewClientWithBaseURL(log, fake.server(t).URL)

		_, err := client.GetDailyHistory(ctx, "NOPE", "1d")
		require.Error(t, err)
	})
}
