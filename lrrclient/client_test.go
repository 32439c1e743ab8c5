package lrrclient_test

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"arcsat.dev/satellite/lrrclient"
)

func TestAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"LANraragi","version":"0.9"}`))
	}))
	defer srv.Close()

	c := lrrclient.New(srv.URL, "hunter2")
	info, err := c.GetServerInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, "LANraragi", info.Name)

	want := "Bearer " + base64.StdEncoding.EncodeToString([]byte("hunter2"))
	require.Equal(t, want, gotAuth)
}

func TestSignatureValidation(t *testing.T) {
	require.True(t, lrrclient.IsValidSignature(lrrclient.SignatureHex([]byte{0x50, 0x4b, 0x03, 0x04, 0, 0, 0, 0})))
	require.False(t, lrrclient.IsValidSignature(lrrclient.SignatureHex([]byte{0x00, 0x01, 0x02})))
}

func TestSourceFromTags(t *testing.T) {
	require.Equal(t, "nhentai.net", lrrclient.SourceFromTags("artist:foo, source:nhentai.net, language:english"))
	require.Equal(t, "", lrrclient.SourceFromTags("artist:foo"))
}
