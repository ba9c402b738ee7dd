package repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glassfy/pkg/api"
	"glassfy/pkg/v2/types"
)

type staticIdentity struct {
	installationID string
	subscriberID   string
}

func (s staticIdentity) InstallationID() string { return s.installationID }
func (s staticIdentity) SubscriberID() string   { return s.subscriberID }

type recordedRequest struct {
	method string
	path   string
	query  map[string]string
	auth   string
	body   []byte
}

type fakeServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newFakeServer(t *testing.T, routes func(r *mux.Router)) *fakeServer {
	fs := &fakeServer{}
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ := io.ReadAll(req.Body)
			q := map[string]string{}
			for k := range req.URL.Query() {
				q[k] = req.URL.Query().Get(k)
			}
			fs.mu.Lock()
			fs.requests = append(fs.requests, recordedRequest{
				method: req.Method,
				path:   req.URL.Path,
				query:  q,
				auth:   req.Header.Get("Authorization"),
				body:   body,
			})
			fs.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	routes(r)
	fs.Server = httptest.NewServer(r)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) last() recordedRequest {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.requests[len(fs.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(fs *fakeServer, id Identity) *Client {
	return New(Config{BaseURL: fs.URL, APIKey: "key-123", DeviceID: "device-1"}, id)
}

func TestInitializeSendsIdentity(t *testing.T) {
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v0/init", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200, "subscriberid": "sub-42"})
		}).Methods(http.MethodPost)
	})
	c := newTestClient(fs, staticIdentity{installationID: "inst-1"})

	installTime := int64(1700000000000)
	info, err := c.Initialize(context.Background(), InitializeRequest{
		PackageName: "io.glassfy.sample",
		Tokens: HistoryTokens(
			[]*types.PurchaseHistoryRecord{{PurchaseToken: "t-sub", ProductIDs: []string{"sub1"}, Quantity: 1}},
			[]*types.PurchaseHistoryRecord{{PurchaseToken: "t-inapp", ProductIDs: []string{"coins"}, Quantity: 1}},
		),
		InstallTime: &installTime,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-42", info.SubscriberID)

	req := fs.last()
	assert.Equal(t, "Bearer key-123", req.auth)
	assert.Equal(t, "device-1", req.query["glii"])
	assert.Equal(t, "inst-1", req.query["installationid"])
	_, hasSubscriber := req.query["subscriberid"]
	assert.False(t, hasSubscriber)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.body, &body))
	assert.Equal(t, "io.glassfy.sample", body["packagename"])
	tokens := body["tokens"].([]interface{})
	require.Len(t, tokens, 2)
	assert.Equal(t, true, tokens[0].(map[string]interface{})["purchasesubscription"])
	assert.Equal(t, "t-inapp", tokens[1].(map[string]interface{})["token"])
}

func TestPermissions(t *testing.T) {
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v1/permissions", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":       200,
				"subscriberid": "sub-42",
				"permissions": []map[string]interface{}{
					{"identifier": "premium", "entitlement": 5, "expires_date": 1900000000,
						"skuarray": []map[string]interface{}{{"identifier": "sku1", "productid": "sub1", "store": 2, "istrial": true}}},
					{"identifier": "legacy", "entitlement": 42, "expires_date": 0},
				},
			})
		}).Methods(http.MethodGet)
	})
	c := newTestClient(fs, staticIdentity{installationID: "inst-1", subscriberID: "sub-42"})

	perms, err := c.Permissions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sub-42", fs.last().query["subscriberid"])
	require.Len(t, perms.All, 2)

	premium, ok := perms.Get("premium")
	require.True(t, ok)
	assert.True(t, premium.IsValid())
	require.Len(t, premium.AccountableSkus, 1)
	assert.Equal(t, types.StorePlayStore, premium.AccountableSkus[0].Store)
	assert.True(t, premium.AccountableSkus[0].IsInTrialPeriod)

	legacy, _ := perms.Get("legacy")
	assert.Equal(t, types.EntitlementNeverBuy, legacy.Entitlement)
}

func TestOfferings(t *testing.T) {
	offerings := map[string]interface{}{
		"status": 200,
		"offerings": []map[string]interface{}{{
			"identifier": "premium",
			"skus": []map[string]interface{}{
				{"identifier": "monthly", "productid": "sub1", "store": 2, "baseplan": "m", "offerid": "", "type": 1,
					"fallbacksku": map[string]interface{}{"productid": "sub1", "baseplan": "m-legacy"}},
				{"identifier": "coins", "productid": "coins", "store": 2, "type": 2},
				{"identifier": "web", "productid": "paddle_1", "store": 3, "name": "Web plan"},
			},
		}},
	}
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v1/offerings", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, offerings)
		}).Methods(http.MethodGet)
		r.HandleFunc("/v0/offerings", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200, "offerings": []interface{}{}})
		}).Methods(http.MethodGet)
	})
	c := newTestClient(fs, nil)

	got, err := c.Offerings(context.Background(), 6)
	require.NoError(t, err)
	require.Len(t, got.All, 1)
	o := got.All[0]
	assert.Equal(t, "premium", o.OfferingID)
	require.Len(t, o.Skus, 2)

	monthly := o.Skus[0]
	assert.Equal(t, "premium", monthly.OfferingID)
	assert.Equal(t, types.ProductDescriptor{ProductID: "sub1", PlanID: "m", Kind: types.ProductKindSubscription}, monthly.Params)
	require.NotNil(t, monthly.Fallback)
	assert.Equal(t, "m-legacy", monthly.Fallback.PlanID)
	assert.Equal(t, types.ProductKindConsumable, o.Skus[1].Params.Kind)

	legacy, err := c.Offerings(context.Background(), 4)
	require.NoError(t, err)
	assert.Empty(t, legacy.All)
	assert.Equal(t, "/v0/offerings", fs.last().path)
}

func TestSkuVariants(t *testing.T) {
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v1/sku", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200, "sku": map[string]interface{}{
				"identifier": req.URL.Query().Get("identifier"), "productid": "paddle_1", "store": 3, "name": "Web",
				"recurringprice": map[string]interface{}{"price": 9.99, "locale": "EUR"},
			}})
		}).Methods(http.MethodGet)
		r.HandleFunc("/v0/sku", func(w http.ResponseWriter, req *http.Request) {
			if req.URL.Query().Get("identifier") == "missing" {
				writeJSON(w, http.StatusOK, map[string]interface{}{"status": 404, "error": map[string]interface{}{"code": 404, "description": "sku not found"}})
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200, "sku": map[string]interface{}{
				"identifier": "monthly", "productid": "sub1", "store": 2, "baseplan": "m", "type": 1,
			}})
		}).Methods(http.MethodGet)
	})
	c := newTestClient(fs, nil)

	v, err := c.SkuByIdentifierAndStore(context.Background(), "web", types.StorePaddle)
	require.NoError(t, err)
	paddle, ok := v.(*types.PaddleSku)
	require.True(t, ok)
	assert.Equal(t, types.StorePaddle, paddle.Base().Store)
	require.NotNil(t, paddle.InitialPrice)
	assert.InDelta(t, 9.99, *paddle.InitialPrice, 0.001)
	assert.Equal(t, "3", fs.last().query["store"])

	sku, err := c.SkuByProductID(context.Background(), "sub1")
	require.NoError(t, err)
	assert.Equal(t, "monthly", sku.SkuID)
	assert.Equal(t, "sub1", fs.last().query["productid"])

	_, err = c.SkuByIdentifier(context.Background(), "missing")
	assert.True(t, api.IsCode(err, api.ErrorServerError))
	assert.Contains(t, err.Error(), "sku not found")
}

func TestConnectErrorCodes(t *testing.T) {
	var code atomic.Int64
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v0/connect", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": 400, "error": map[string]interface{}{"code": code.Load(), "description": "nope"}})
		}).Methods(http.MethodPost)
	})
	c := newTestClient(fs, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		code    int
		connect func() error
		want    api.ErrorCode
	}{
		{"license already connected", 1050, func() error { return c.ConnectPaddleLicense(ctx, "k", false) }, api.ErrorLicenseAlreadyConnected},
		{"license not found", 1051, func() error { return c.ConnectPaddleLicense(ctx, "k", true) }, api.ErrorLicenseNotFound},
		{"license other", 1060, func() error { return c.ConnectPaddleLicense(ctx, "k", false) }, api.ErrorServerError},
		{"code already connected", 1060, func() error { return c.ConnectUniversalCode(ctx, "c", false) }, api.ErrorLicenseAlreadyConnected},
		{"code not found", 1061, func() error { return c.ConnectUniversalCode(ctx, "c", false) }, api.ErrorLicenseNotFound},
		{"custom subscriber", 1050, func() error { id := "u1"; return c.ConnectCustomSubscriber(ctx, &id) }, api.ErrorServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code.Store(int64(tt.code))
			err := tt.connect()
			require.Error(t, err)
			assert.Equal(t, tt.want, api.CodeOf(err))
		})
	}

	_ = c.ConnectUniversalCode(ctx, "c", true)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(fs.last().body, &body))
	assert.Equal(t, float64(types.StoreGlassfy), body["store"])
	assert.Equal(t, "c", body["licensekey"])
	assert.Equal(t, true, body["force"])
}

func TestTransportAndStatusErrors(t *testing.T) {
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v1/permissions", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		r.HandleFunc("/v0/storeinfo", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("{not json"))
		})
	})
	c := newTestClient(fs, nil)

	_, err := c.Permissions(context.Background())
	assert.Equal(t, api.ErrorHttpException, api.CodeOf(err))
	assert.Contains(t, err.Error(), "502")

	_, err = c.StoreInfo(context.Background())
	assert.Equal(t, api.ErrorServerError, api.CodeOf(err))

	fs.Close()
	_, err = c.Permissions(context.Background())
	assert.Equal(t, api.ErrorIOException, api.CodeOf(err))
}

func TestPaywallValidation(t *testing.T) {
	var payload atomic.Value
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v1/paywall", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, payload.Load())
		})
	})
	c := newTestClient(fs, nil)

	payload.Store(map[string]interface{}{"status": 200, "paywall": map[string]interface{}{"pwid": "pw1", "url": "https://x", "locale": "en", "type": "html"},
		"skus": []map[string]interface{}{{"identifier": "monthly", "productid": "sub1", "store": 2, "baseplan": "m", "type": 1}}})
	pw, err := c.Paywall(context.Background(), "pw1", "en")
	require.NoError(t, err)
	assert.Equal(t, types.PaywallHTML, pw.Type)
	require.Len(t, pw.Skus, 1)
	assert.Equal(t, "pw1", pw.Skus[0].OfferingID)
	assert.Equal(t, "en", fs.last().query["locale"])

	payload.Store(map[string]interface{}{"status": 200, "paywall": map[string]interface{}{"pwid": "pw1", "locale": "en", "type": "html"}})
	_, err = c.Paywall(context.Background(), "pw1", "en")
	assert.Equal(t, api.ErrorServerError, api.CodeOf(err))
}

func TestUserPropertiesAndAttributions(t *testing.T) {
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v1/property", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200})
		}).Methods(http.MethodPost)
		r.HandleFunc("/v0/property", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200, "property": map[string]interface{}{"email": "a@b.c", "info": map[string]string{"k": "v"}}})
		}).Methods(http.MethodGet)
		r.HandleFunc("/v0/attribution", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200})
		}).Methods(http.MethodPost)
	})
	c := newTestClient(fs, nil)
	ctx := context.Background()

	require.NoError(t, c.SetUserProperty(ctx, EmailProperty(nil)))
	assert.JSONEq(t, `{"email":null}`, string(fs.last().body))

	require.NoError(t, c.SetUserProperty(ctx, ExtraProperty(map[string]string{"plan": "gold"})))
	assert.JSONEq(t, `{"info":{"plan":"gold"}}`, string(fs.last().body))

	props, err := c.UserProperties(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", props.Email)
	assert.Equal(t, "v", props.Extra["k"])

	ip := "10.0.0.1"
	require.NoError(t, c.SetAttributions(ctx, []types.AttributionItem{
		{Type: types.AttributionIP, Value: &ip},
		{Type: types.AttributionGAID},
	}))
	assert.JSONEq(t, `{"ip":"10.0.0.1","gaid":null}`, string(fs.last().body))
}

func TestPurchaseHistoryAndStoreInfo(t *testing.T) {
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v0/purchases", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200, "subscriberid": "sub-42", "customid": "u1",
				"purchases": []map[string]interface{}{{"productid": "sub1", "type": 5001, "store": 2, "date_ms": 1000}}})
		})
		r.HandleFunc("/v0/storeinfo", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"status": 200,
				"info": []map[string]interface{}{{"store": 3, "userid": "pu1", "updateurl": "https://paddle/update"}}})
		})
	})
	c := newTestClient(fs, nil)

	h, err := c.PurchaseHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", h.CustomID)
	require.Len(t, h.All, 1)
	assert.Equal(t, types.EventInitialBuy, h.All[0].Type)

	info, err := c.StoreInfo(context.Background())
	require.NoError(t, err)
	paddle := info.Filter(types.StorePaddle)
	require.Len(t, paddle, 1)
	assert.Equal(t, "pu1", paddle[0].UserID())
	assert.Equal(t, "/update", paddle[0].UpdateURL().Path)
}

func TestLastSeenAcceptsEmptyReply(t *testing.T) {
	var calls int32
	fs := newFakeServer(t, func(r *mux.Router) {
		r.HandleFunc("/v0/lastseen", func(w http.ResponseWriter, _ *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusOK)
		}).Methods(http.MethodPut)
	})
	c := newTestClient(fs, staticIdentity{installationID: "inst-1", subscriberID: "sub-42"})

	require.NoError(t, c.LastSeen(context.Background()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, "sub-42", fs.last().query["subscriberid"])
}
