package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"tokenLedger/internal/custody"
	"tokenLedger/internal/ledger"
	"tokenLedger/internal/model"
	"tokenLedger/internal/storage"
	"tokenLedger/internal/transfer"
)

var (
	mint      = common.HexToAddress("0x1000000000000000000000000000000000000001")
	authority = common.HexToAddress("0xa000000000000000000000000000000000000001")
	alice     = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Ledger) {
	t.Helper()
	ctx := context.Background()

	issuer, err := custody.NewIssuer()
	require.NoError(t, err)
	book := transfer.NewBook(issuer.Verifier(), nil)
	book.RegisterMint(mint, 6)
	require.NoError(t, book.Mint(mint, authority, 10_000_000))
	require.NoError(t, book.Mint(mint, alice, 10_000_000))

	journal, err := storage.OpenJournal(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)

	l, err := ledger.New(ledger.Config{
		Store:    storage.NewMemory(),
		Transfer: book,
		Issuer:   issuer,
		Clock:    clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		Sink:     journal,
	})
	require.NoError(t, err)

	_, err = l.InitializePool(ctx, ledger.InitParams{
		Mint:      mint,
		Authority: authority,
		Fees:      model.FeeShares{ReflectionBps: 200, LPBps: 200, BurnBps: 100},
	})
	require.NoError(t, err)
	_, err = l.Stake(ctx, mint, alice, 2_500_000)
	require.NoError(t, err)
	_, err = l.DepositReflections(ctx, mint, authority, 1_000_000)
	require.NoError(t, err)

	srv := httptest.NewServer(New(l, journal, nil).Handler())
	t.Cleanup(srv.Close)
	return srv, l
}

func get(t *testing.T, srv *httptest.Server, path string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]interface{}
	require.Equal(t, http.StatusOK, get(t, srv, "/healthz", &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, float64(1), body["pools"])
}

func TestPoolRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	var pool struct {
		TotalStaked uint64            `json:"total_staked"`
		Decimals    uint8             `json:"decimals"`
		Display     map[string]string `json:"display"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools/"+mint.Hex(), &pool))
	require.Equal(t, uint64(2_500_000), pool.TotalStaked)
	require.Equal(t, uint8(6), pool.Decimals)
	require.Equal(t, "2.5", pool.Display["total_staked"])
	require.Equal(t, "2%", pool.Display["reflection_fee"])

	var pools []json.RawMessage
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools", &pools))
	require.Len(t, pools, 1)
}

func TestPositionRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	var pos struct {
		StakedAmount uint64            `json:"staked_amount"`
		Claimable    uint64            `json:"claimable"`
		Display      map[string]string `json:"display"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools/"+mint.Hex()+"/positions/"+alice.Hex(), &pos))
	require.Equal(t, uint64(2_500_000), pos.StakedAmount)
	require.Equal(t, uint64(1_000_000), pos.Claimable)
	require.Equal(t, "1", pos.Display["claimable"])

	var all []json.RawMessage
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools/"+mint.Hex()+"/positions", &all))
	require.Len(t, all, 1)
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t)
	other := common.HexToAddress("0x2000000000000000000000000000000000000002")

	var e errorResponse
	require.Equal(t, http.StatusNotFound, get(t, srv, "/v1/pools/"+other.Hex(), &e))
	require.Equal(t, string(ledger.ClassState), e.Class)

	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/pools/not-an-address", &e))
	require.Equal(t, http.StatusNotFound, get(t, srv, "/v1/pools/"+mint.Hex()+"/lp", &e))
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/pools/"+mint.Hex()+"/proposals/xyz", &e))
	require.Equal(t, http.StatusNotFound,
		get(t, srv, "/v1/pools/"+mint.Hex()+"/proposals/6f1c1b7e-3a0c-4b59-9c39-0d7a8a1e2f10", &e))
	require.Equal(t, http.StatusBadRequest, get(t, srv, "/v1/pools/"+mint.Hex()+"/events?limit=-1", &e))
}

func TestProposalRoute(t *testing.T) {
	srv, l := newTestServer(t)
	p, err := l.ProposeFeeUpdate(context.Background(), mint, authority,
		model.FeeShares{ReflectionBps: 300, LPBps: 100, BurnBps: 100})
	require.NoError(t, err)

	var view struct {
		Status       string    `json:"status"`
		ExecutableAt time.Time `json:"executable_at"`
	}
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools/"+mint.Hex()+"/proposals/"+p.ID.String(), &view))
	require.Equal(t, "proposed", view.Status)
	require.True(t, view.ExecutableAt.Equal(time.Unix(1_700_000_000+86400, 0)), view.ExecutableAt)
}

func TestAuditAndEventsRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	var report ledger.AuditReport
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools/"+mint.Hex()+"/audit", &report))
	require.True(t, report.OK())

	var events []model.Event
	require.Equal(t, http.StatusOK, get(t, srv, "/v1/pools/"+mint.Hex()+"/events?limit=2", &events))
	require.Len(t, events, 2)
	require.Equal(t, "stake", events[0].Operation)
	require.Equal(t, "deposit_reflections", events[1].Operation)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	get(t, srv, "/healthz", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), "token_ledger_http_requests_total"))
	require.True(t, strings.Contains(string(body), "token_ledger_operations_total"))
}

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "0", FormatAmount(0, 9))
	require.Equal(t, "1.5", FormatAmount(1_500_000_000, 9))
	require.Equal(t, "18446744073709.551615", FormatAmount(^uint64(0), 6))
	require.Equal(t, "42", FormatAmount(42, 0))
	require.Equal(t, "0.5%", FormatBps(50))
}
