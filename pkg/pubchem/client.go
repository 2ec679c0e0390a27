package pubchem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/chemtrace/sds-cli/internal/model"
)

const (
	defaultBaseURL     = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"
	defaultViewBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug_view"

	// PubChem asks clients to stay under 5 requests per second.
	defaultRateLimit = 5

	defaultCacheTTL = 24 * time.Hour
)

// ErrNotFound is returned when no compound matches the identifier.
var ErrNotFound = errors.New("pubchem: compound not found")

// Client resolves chemical identifiers against the PubChem database.
type Client interface {
	Lookup(ctx context.Context, identifierType, identifier string) (*model.ChemicalProperties, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the PUG REST base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithViewBaseURL overrides the PUG View base URL.
func WithViewBaseURL(u string) Option {
	return func(c *httpClient) {
		c.viewBaseURL = strings.TrimRight(u, "/")
	}
}

// WithRateLimit overrides the outbound request rate (requests per second).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
}

// WithCacheTTL overrides how long lookup results are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *httpClient) {
		c.cacheTTL = ttl
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type cacheEntry struct {
	props    *model.ChemicalProperties
	notFound bool
	expires  time.Time
}

type httpClient struct {
	baseURL     string
	viewBaseURL string
	http        *http.Client
	limiter     *rate.Limiter
	cacheTTL    time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// NewClient creates a PubChem PUG REST client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:     defaultBaseURL,
		viewBaseURL: defaultViewBaseURL,
		limiter:     rate.NewLimiter(defaultRateLimit, defaultRateLimit),
		cacheTTL:    defaultCacheTTL,
		cache:       make(map[string]cacheEntry),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, identifierType, identifier string) (*model.ChemicalProperties, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, eris.New("pubchem: empty identifier")
	}

	key := identifierType + "|" + strings.ToLower(identifier)
	if entry, ok := c.cached(key); ok {
		if entry.notFound {
			return nil, ErrNotFound
		}
		return entry.props, nil
	}

	cid, err := c.resolveCID(ctx, identifierType, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.store(key, cacheEntry{notFound: true})
		}
		return nil, err
	}

	props, err := c.fetchProperties(ctx, cid)
	if err != nil {
		return nil, err
	}
	if syns, err := c.fetchSynonyms(ctx, cid); err == nil {
		props.Synonyms = syns
		props.CAS = firstCAS(syns)
	}
	// GHS data is best-effort: many compounds have no classification record.
	if ghs, err := c.fetchGHS(ctx, cid); err == nil {
		props.HStatements = ghs.hCodes
		props.PStatements = ghs.pCodes
		props.SignalWord = ghs.signalWord
	}

	c.store(key, cacheEntry{props: props})
	return props, nil
}

func (c *httpClient) cached(key string) (cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok || time.Now().After(entry.expires) {
		delete(c.cache, key)
		return cacheEntry{}, false
	}
	return entry, true
}

func (c *httpClient) store(key string, entry cacheEntry) {
	entry.expires = time.Now().Add(c.cacheTTL)
	c.mu.Lock()
	c.cache[key] = entry
	c.mu.Unlock()
}

// resolveCID maps an identifier to a PubChem compound ID. CAS numbers are
// registered as synonyms, so both CAS and name go through the name endpoint.
func (c *httpClient) resolveCID(ctx context.Context, identifierType, identifier string) (int64, error) {
	var path string
	switch identifierType {
	case model.IdentifierCAS, model.IdentifierName:
		path = fmt.Sprintf("/compound/name/%s/cids/JSON", url.PathEscape(identifier))
	case model.IdentifierFormula:
		path = fmt.Sprintf("/compound/fastformula/%s/cids/JSON", url.PathEscape(identifier))
	default:
		return 0, eris.Errorf("pubchem: unknown identifier type %q", identifierType)
	}

	var result struct {
		IdentifierList struct {
			CID []int64 `json:"CID"`
		} `json:"IdentifierList"`
	}
	if err := c.getJSON(ctx, c.baseURL+path, &result); err != nil {
		return 0, err
	}
	if len(result.IdentifierList.CID) == 0 {
		return 0, ErrNotFound
	}
	return result.IdentifierList.CID[0], nil
}

func (c *httpClient) fetchProperties(ctx context.Context, cid int64) (*model.ChemicalProperties, error) {
	var result struct {
		PropertyTable struct {
			Properties []struct {
				CID              int64  `json:"CID"`
				Title            string `json:"Title"`
				MolecularFormula string `json:"MolecularFormula"`
				MolecularWeight  string `json:"MolecularWeight"`
			} `json:"Properties"`
		} `json:"PropertyTable"`
	}
	u := fmt.Sprintf("%s/compound/cid/%d/property/Title,MolecularFormula,MolecularWeight/JSON", c.baseURL, cid)
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	if len(result.PropertyTable.Properties) == 0 {
		return nil, ErrNotFound
	}

	p := result.PropertyTable.Properties[0]
	props := &model.ChemicalProperties{
		CID:              p.CID,
		Name:             p.Title,
		MolecularFormula: p.MolecularFormula,
	}
	// PubChem serializes MolecularWeight as a string.
	fmt.Sscanf(p.MolecularWeight, "%f", &props.MolecularWeight)
	return props, nil
}

func (c *httpClient) fetchSynonyms(ctx context.Context, cid int64) ([]string, error) {
	var result struct {
		InformationList struct {
			Information []struct {
				Synonym []string `json:"Synonym"`
			} `json:"Information"`
		} `json:"InformationList"`
	}
	u := fmt.Sprintf("%s/compound/cid/%d/synonyms/JSON", c.baseURL, cid)
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	if len(result.InformationList.Information) == 0 {
		return nil, ErrNotFound
	}
	syns := result.InformationList.Information[0].Synonym
	if len(syns) > 32 {
		syns = syns[:32]
	}
	return syns, nil
}

type ghsData struct {
	hCodes     []string
	pCodes     []string
	signalWord string
}

// viewSection is the recursive section tree returned by PUG View.
type viewSection struct {
	TOCHeading  string        `json:"TOCHeading"`
	Section     []viewSection `json:"Section"`
	Information []struct {
		Name  string `json:"Name"`
		Value struct {
			StringWithMarkup []struct {
				String string `json:"String"`
			} `json:"StringWithMarkup"`
		} `json:"Value"`
	} `json:"Information"`
}

var (
	hCodeRe = regexp.MustCompile(`\bH[23]\d{2}\b`)
	pCodeRe = regexp.MustCompile(`\bP\d{3}(?:\+P\d{3})*\b`)
	casRe   = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)
)

func (c *httpClient) fetchGHS(ctx context.Context, cid int64) (*ghsData, error) {
	var result struct {
		Record struct {
			Section []viewSection `json:"Section"`
		} `json:"Record"`
	}
	u := fmt.Sprintf("%s/data/compound/%d/JSON?heading=GHS+Classification", c.viewBaseURL, cid)
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}

	ghs := &ghsData{}
	for _, s := range result.Record.Section {
		collectGHS(s, ghs)
	}
	if len(ghs.hCodes) == 0 && len(ghs.pCodes) == 0 && ghs.signalWord == "" {
		return nil, ErrNotFound
	}
	ghs.hCodes = dedup(ghs.hCodes)
	ghs.pCodes = dedup(ghs.pCodes)
	return ghs, nil
}

func collectGHS(s viewSection, out *ghsData) {
	for _, info := range s.Information {
		for _, sm := range info.Value.StringWithMarkup {
			text := sm.String
			switch info.Name {
			case "Signal":
				if out.signalWord == "" && (text == "Danger" || text == "Warning") {
					out.signalWord = text
				}
			case "GHS Hazard Statements":
				out.hCodes = append(out.hCodes, hCodeRe.FindAllString(text, -1)...)
			case "Precautionary Statement Codes":
				out.pCodes = append(out.pCodes, pCodeRe.FindAllString(text, -1)...)
			}
		}
	}
	for _, child := range s.Section {
		collectGHS(child, out)
	}
}

func (c *httpClient) getJSON(ctx context.Context, u string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "pubchem: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return eris.Wrap(err, "pubchem: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "pubchem: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "pubchem: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return eris.Errorf("pubchem: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "pubchem: unmarshal response")
	}
	return nil
}

// firstCAS picks the first synonym that looks like a CAS registry number.
func firstCAS(synonyms []string) string {
	for _, s := range synonyms {
		if casRe.MatchString(strings.TrimSpace(s)) {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
