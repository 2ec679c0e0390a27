package pubchem

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemtrace/sds-cli/internal/model"
)

const (
	acetoneCIDs = `{"IdentifierList":{"CID":[180]}}`

	acetoneProps = `{"PropertyTable":{"Properties":[{
		"CID": 180,
		"Title": "Acetone",
		"MolecularFormula": "C3H6O",
		"MolecularWeight": "58.08"
	}]}}`

	acetoneSynonyms = `{"InformationList":{"Information":[{
		"CID": 180,
		"Synonym": ["acetone", "67-64-1", "2-propanone", "dimethyl ketone"]
	}]}}`

	acetoneGHS = `{"Record":{"Section":[{
		"TOCHeading": "Safety and Hazards",
		"Section": [{
			"TOCHeading": "GHS Classification",
			"Information": [
				{"Name": "Signal", "Value": {"StringWithMarkup": [{"String": "Danger"}]}},
				{"Name": "GHS Hazard Statements", "Value": {"StringWithMarkup": [
					{"String": "H225 (100%): Highly flammable liquid and vapour"},
					{"String": "H319 (100%): Causes serious eye irritation"},
					{"String": "H336 (98.2%): May cause drowsiness or dizziness"}
				]}},
				{"Name": "Precautionary Statement Codes", "Value": {"StringWithMarkup": [
					{"String": "P210, P233, P305+P351+P338"}
				]}}
			]
		}]
	}]}}`
)

func newTestServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/compound/name/acetone/cids/JSON", "/compound/name/67-64-1/cids/JSON",
			"/compound/fastformula/C3H6O/cids/JSON":
			_, _ = w.Write([]byte(acetoneCIDs))
		case "/compound/cid/180/property/Title,MolecularFormula,MolecularWeight/JSON":
			_, _ = w.Write([]byte(acetoneProps))
		case "/compound/cid/180/synonyms/JSON":
			_, _ = w.Write([]byte(acetoneSynonyms))
		case "/data/compound/180/JSON":
			_, _ = w.Write([]byte(acetoneGHS))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"Fault":{"Code":"PUGREST.NotFound"}}`))
		}
	}))
}

func newTestClient(srv *httptest.Server, opts ...Option) Client {
	base := []Option{
		WithBaseURL(srv.URL),
		WithViewBaseURL(srv.URL),
		WithRateLimit(1000),
	}
	return NewClient(append(base, opts...)...)
}

func TestLookup_ByName(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv)
	props, err := client.Lookup(context.Background(), model.IdentifierName, "acetone")
	require.NoError(t, err)
	require.NotNil(t, props)

	assert.Equal(t, int64(180), props.CID)
	assert.Equal(t, "Acetone", props.Name)
	assert.Equal(t, "67-64-1", props.CAS)
	assert.Equal(t, "C3H6O", props.MolecularFormula)
	assert.InDelta(t, 58.08, props.MolecularWeight, 0.001)
	assert.Contains(t, props.Synonyms, "2-propanone")
	assert.Equal(t, []string{"H225", "H319", "H336"}, props.HStatements)
	assert.Equal(t, []string{"P210", "P233", "P305+P351+P338"}, props.PStatements)
	assert.Equal(t, "Danger", props.SignalWord)
}

func TestLookup_ByCAS(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv)
	props, err := client.Lookup(context.Background(), model.IdentifierCAS, "67-64-1")
	require.NoError(t, err)
	assert.Equal(t, "Acetone", props.Name)
}

func TestLookup_ByFormula(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv)
	props, err := client.Lookup(context.Background(), model.IdentifierFormula, "C3H6O")
	require.NoError(t, err)
	assert.Equal(t, int64(180), props.CID)
}

func TestLookup_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv)
	props, err := client.Lookup(context.Background(), model.IdentifierName, "no-such-compound")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, props)
}

func TestLookup_UnknownIdentifierType(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Lookup(context.Background(), "smiles", "CC(=O)C")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown identifier type")
}

func TestLookup_EmptyIdentifier(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Lookup(context.Background(), model.IdentifierName, "  ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty identifier")
}

func TestLookup_CachesResults(t *testing.T) {
	var requests atomic.Int32
	srv := newTestServer(t, &requests)
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Lookup(context.Background(), model.IdentifierName, "acetone")
	require.NoError(t, err)
	after := requests.Load()

	for i := 0; i < 3; i++ {
		_, err := client.Lookup(context.Background(), model.IdentifierName, "acetone")
		require.NoError(t, err)
	}
	assert.Equal(t, after, requests.Load(), "cached lookups should not hit the API")
}

func TestLookup_CachesNotFound(t *testing.T) {
	var requests atomic.Int32
	srv := newTestServer(t, &requests)
	defer srv.Close()

	client := newTestClient(srv)
	_, err := client.Lookup(context.Background(), model.IdentifierName, "no-such-compound")
	require.ErrorIs(t, err, ErrNotFound)
	after := requests.Load()

	_, err = client.Lookup(context.Background(), model.IdentifierName, "no-such-compound")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, after, requests.Load())
}

func TestLookup_CacheExpires(t *testing.T) {
	var requests atomic.Int32
	srv := newTestServer(t, &requests)
	defer srv.Close()

	client := newTestClient(srv, WithCacheTTL(time.Nanosecond))
	_, err := client.Lookup(context.Background(), model.IdentifierName, "acetone")
	require.NoError(t, err)
	after := requests.Load()

	time.Sleep(time.Millisecond)
	_, err = client.Lookup(context.Background(), model.IdentifierName, "acetone")
	require.NoError(t, err)
	assert.Greater(t, requests.Load(), after)
}

func TestLookup_ContextCancelled(t *testing.T) {
	srv := newTestServer(t, nil)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(srv)
	_, err := client.Lookup(ctx, model.IdentifierName, "acetone")
	require.Error(t, err)
}

func TestFirstCAS(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "67-64-1", firstCAS([]string{"acetone", "67-64-1", "7732-18-5"}))
	assert.Equal(t, "", firstCAS([]string{"acetone", "2-propanone"}))
	assert.Equal(t, "", firstCAS(nil))
}

func TestDedup(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"H225", "H319"}, dedup([]string{"H225", "H319", "H225"}))
	assert.Empty(t, dedup(nil))
}
