package types

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseFromHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.18.0")
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc123"})
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<html>hello</html>"))
	}))
	defer ts.Close()

	httpResp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer httpResp.Body.Close()

	resp, err := ResponseFromHTTP(httpResp, 0)
	require.NoError(t, err)

	assert.Equal(t, ts.URL, resp.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nginx/1.18.0", resp.Headers.Get("Server"))
	assert.Equal(t, "abc123", resp.Cookies["PHPSESSID"])
	assert.Equal(t, []byte("<html>hello</html>"), resp.Body)
}

func TestResponseFromHTTP_BodyCapped(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer ts.Close()

	httpResp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer httpResp.Body.Close()

	resp, err := ResponseFromHTTP(httpResp, 100)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}
