package middleware

import (
	"context"
	"errors"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tabsplit/internal/metrics"
)

type ping struct{}

func call(t *testing.T, interceptor connect.UnaryInterceptorFunc, header string, fail error) (connect.AnyResponse, string, error) {
	t.Helper()
	var seen string
	next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		seen = RequestID(ctx)
		if fail != nil {
			return nil, fail
		}
		return connect.NewResponse(&ping{}), nil
	}

	req := connect.NewRequest(&ping{})
	if header != "" {
		req.Header().Set(RequestIDHeader, header)
	}
	resp, err := interceptor(next)(context.Background(), req)
	return resp, seen, err
}

func TestLoggingInterceptorPropagatesRequestID(t *testing.T) {
	resp, seen, err := call(t, LoggingInterceptor(), "req-42", nil)
	require.NoError(t, err)
	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", resp.Header().Get(RequestIDHeader))
}

func TestLoggingInterceptorGeneratesRequestID(t *testing.T) {
	_, seen, err := call(t, LoggingInterceptor(), "", connect.NewError(connect.CodeNotFound, errors.New("missing")))
	require.Error(t, err)
	assert.Len(t, seen, 36)

	var connectErr *connect.Error
	require.ErrorAs(t, err, &connectErr)
	assert.Equal(t, seen, connectErr.Meta().Get(RequestIDHeader))
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	interceptor := MetricsInterceptor(m)

	_, _, err := call(t, interceptor, "", nil)
	require.NoError(t, err)
	_, _, err = call(t, interceptor, "", connect.NewError(connect.CodeInvalidArgument, errors.New("bad")))
	require.Error(t, err)

	count, err := testutil.GatherAndCount(reg, "tabsplit_rpc_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsInterceptorNilMetrics(t *testing.T) {
	_, _, err := call(t, MetricsInterceptor(nil), "", nil)
	assert.NoError(t, err)
}
