package metadata

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"scorevc/pkg/requestcontext"
)

func TestClientIPFromRequest(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "forwarded chain", headers: map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, want: "203.0.113.7"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.2 "}, want: "198.51.100.2"},
		{name: "remote addr", remote: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "ipv6 remote addr", remote: "[::1]:5555", want: "[::1]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, ClientIPFromRequest(req))
		})
	}
}

func TestClientAgent(t *testing.T) {
	assert.Equal(t, "unknown", ClientAgent(""))
	assert.Equal(t, "bot", ClientAgent("Googlebot/2.1 (+http://www.google.com/bot.html)"))

	firefox := "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0"
	assert.Contains(t, ClientAgent(firefox), "Firefox/")
}

func TestClientMetadata_PopulatesContext(t *testing.T) {
	var gotIP, gotUA, gotAgent string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIP = requestcontext.ClientIP(r.Context())
		gotUA = requestcontext.UserAgent(r.Context())
		gotAgent = requestcontext.ClientAgent(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:1234"
	req.Header.Set("User-Agent", "curl/8.4.0")
	ClientMetadata(next).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "192.0.2.9", gotIP)
	assert.Equal(t, "curl/8.4.0", gotUA)
	assert.NotEmpty(t, gotAgent)
}
