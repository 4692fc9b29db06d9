package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func stubTransport(t *testing.T, fn roundTripperFunc) {
	t.Helper()
	orig := httpClient
	t.Cleanup(func() { httpClient = orig })
	httpClient = &http.Client{Transport: fn}
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     make(http.Header),
	}
}

var testCreds = Credentials{InstanceID: "INST", Token: "TOK", ClientToken: "CT"}

func TestSendText_BuildsRequest(t *testing.T) {
	var (
		gotURL    string
		gotMethod string
		gotHeader string
		gotBody   map[string]any
	)
	stubTransport(t, func(req *http.Request) (*http.Response, error) {
		gotURL = req.URL.String()
		gotMethod = req.Method
		gotHeader = req.Header.Get("Client-Token")
		b, _ := io.ReadAll(req.Body)
		_ = json.Unmarshal(b, &gotBody)
		return jsonResponse(200, `{"zaapId":"Z1","messageId":"M1","id":"M1"}`), nil
	})

	c := NewClient("https://api.test/", time.Second, 0)
	res, err := c.SendText(context.Background(), testCreds, "5511999990000", "oi")
	require.NoError(t, err)

	assert.Equal(t, "https://api.test/instances/INST/token/TOK/send-text", gotURL)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "CT", gotHeader)
	assert.Equal(t, "5511999990000", gotBody["phone"])
	assert.Equal(t, "oi", gotBody["message"])
	assert.Equal(t, "M1", res.GatewayID())
}

func TestSendDocument_ExtensionInPath(t *testing.T) {
	var gotPath string
	stubTransport(t, func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.Path
		return jsonResponse(200, `{"messageId":"D1"}`), nil
	})

	c := NewClient("https://api.test", time.Second, 0)
	_, err := c.SendDocument(context.Background(), testCreds, "55", "https://x/f.PDF", ".PDF", "f.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/instances/INST/token/TOK/send-document/pdf", gotPath)
}

func TestSend_Non2xxIsSendFailure(t *testing.T) {
	stubTransport(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(400, `{"error":"invalid phone"}`), nil
	})

	c := NewClient("https://api.test", time.Second, 0)
	_, err := c.SendText(context.Background(), testCreds, "55", "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSendFailure))

	var sf *SendFailure
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, 400, sf.Status)
	assert.Equal(t, "send-text", sf.Op)
	assert.Equal(t, http.StatusBadGateway, sf.StatusCode())
}

func TestSend_TimeoutIsFlagged(t *testing.T) {
	stubTransport(t, func(req *http.Request) (*http.Response, error) {
		<-req.Context().Done()
		return nil, req.Context().Err()
	})

	c := NewClient("https://api.test", 20*time.Millisecond, 0)
	_, err := c.SendText(context.Background(), testCreds, "55", "x")

	var sf *SendFailure
	require.True(t, errors.As(err, &sf))
	assert.True(t, sf.Timeout)
}

func TestSend_IncompleteCredentials(t *testing.T) {
	c := NewClient("https://api.test", time.Second, 0)
	_, err := c.SendText(context.Background(), Credentials{InstanceID: "x"}, "55", "x")
	assert.ErrorIs(t, err, ErrSendFailure)
}

func TestStatus(t *testing.T) {
	stubTransport(t, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "/instances/INST/token/TOK/status", req.URL.Path)
		return jsonResponse(200, `{"connected":true,"smartphoneConnected":true}`), nil
	})

	c := NewClient("https://api.test", time.Second, 0)
	st, err := c.Status(context.Background(), testCreds)
	require.NoError(t, err)
	assert.True(t, st.Connected)
}

func TestLimiter_PerInstance(t *testing.T) {
	c := NewClient("https://api.test", time.Second, 2)
	a := c.limiter("A")
	assert.Same(t, a, c.limiter("A"))
	assert.NotSame(t, a, c.limiter("B"))
}
