package external

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snpedia-variant-pipeline/internal/domain"
)

const summaryXML = `<?xml version="1.0" encoding="UTF-8"?>
<eSummaryResult>
<DocSum>
	<Id>12345</Id>
	<Item Name="PubDate" Type="Date">2004 Jan</Item>
	<Item Name="Title" Type="String">MTHFR C677T and homocysteine &amp; folate</Item>
</DocSum>
<DocSum>
	<Id>67890</Id>
	<Item Name="Title" Type="String">Second study</Item>
</DocSum>
</eSummaryResult>`

func TestPubMedClient_FetchTitles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/esummary.fcgi"))
		assert.Equal(t, "pubmed", r.URL.Query().Get("db"))
		assert.Equal(t, "12345,67890", r.URL.Query().Get("id"))
		assert.Equal(t, "me@example.org", r.URL.Query().Get("email"))
		fmt.Fprint(w, summaryXML)
	}))
	defer server.Close()

	client := NewPubMedClient(domain.PubMedConfig{
		BaseURL:   server.URL,
		Email:     "me@example.org",
		Timeout:   5 * time.Second,
		RateLimit: 100,
	}, nil)

	titles, err := client.FetchTitles(context.Background(), []string{"12345", "67890", "12345", "not-a-pmid"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"12345": "MTHFR C677T and homocysteine & folate",
		"67890": "Second study",
	}, titles)
}

func TestPubMedClient_FetchTitles_Empty(t *testing.T) {
	client := NewPubMedClient(domain.PubMedConfig{BaseURL: "http://127.0.0.1:0/"}, nil)

	titles, err := client.FetchTitles(context.Background(), nil)

	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestPubMedClient_FetchTitles_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewPubMedClient(domain.PubMedConfig{BaseURL: server.URL, RateLimit: 100}, nil)
	_, err := client.FetchTitles(context.Background(), []string{"1"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestUniqueNumericIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "22"}, uniqueNumericIDs([]string{" 1", "22", "1", "", "abc", "3x"}))
}
