package auth_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/SecureVault/auth"
)

// SHA1("password") = 5BAA61E4C9B93F3F0682250B6CF8331B7EE68FD8
const passwordSuffix = "1E4C9B93F3F0682250B6CF8331B7EE68FD8"

func newHIBPServer(t *testing.T, status int, body string) (*httptest.Server, *string) {
	t.Helper()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &gotPath
}

func TestBreachCheckerFound(t *testing.T) {
	body := "0018A45C4D1DEF81644B54AB7F969B88D65:1\r\n" +
		passwordSuffix + ":3861493\r\n" +
		"00D4F6E8FA6EECAD2A3AA415EEC418D38EC:0\r\n"
	srv, path := newHIBPServer(t, http.StatusOK, body)

	checker := &auth.BreachChecker{Client: srv.Client(), BaseURL: srv.URL}
	res, err := checker.Check(context.Background(), "password")
	require.NoError(t, err)

	assert.Equal(t, "/5BAA6", *path)
	assert.True(t, res.Found)
	assert.Equal(t, 3861493, res.Count)
}

func TestBreachCheckerNotFound(t *testing.T) {
	srv, _ := newHIBPServer(t, http.StatusOK, "0018A45C4D1DEF81644B54AB7F969B88D65:1\n")

	checker := &auth.BreachChecker{Client: srv.Client(), BaseURL: srv.URL + "/"}
	res, err := checker.Check(context.Background(), "password")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestBreachCheckerPaddingIgnored(t *testing.T) {
	srv, _ := newHIBPServer(t, http.StatusOK, passwordSuffix+":0\n")

	checker := &auth.BreachChecker{Client: srv.Client(), BaseURL: srv.URL}
	res, err := checker.Check(context.Background(), "password")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestBreachCheckerErrors(t *testing.T) {
	srv, _ := newHIBPServer(t, http.StatusServiceUnavailable, "")
	checker := &auth.BreachChecker{Client: srv.Client(), BaseURL: srv.URL}
	_, err := checker.Check(context.Background(), "password")
	assert.ErrorContains(t, err, "unexpected status")

	srv, _ = newHIBPServer(t, http.StatusOK, passwordSuffix+":lots\n")
	checker = &auth.BreachChecker{Client: srv.Client(), BaseURL: srv.URL}
	_, err = checker.Check(context.Background(), "password")
	assert.ErrorContains(t, err, "parse count")
}
