// Package repository talks to the remote entitlement server. Every failure
// leaves this package as an *api.Error.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/golang/glog"

	"glassfy/pkg/api"
	"glassfy/pkg/v2/types"
)

const (
	DefaultBaseURL = "https://api.glassfy.io"
	DefaultTimeout = 30 * time.Second

	headerFramework        = "x-glassfy-framework"
	headerFrameworkVersion = "x-glassfy-framework-version"
)

// Repository is the remote side of the SDK
type Repository interface {
	Initialize(ctx context.Context, req InitializeRequest) (*ServerInfo, error)
	Token(ctx context.Context, req TokenRequest) (*types.Transaction, error)
	Permissions(ctx context.Context) (*types.Permissions, error)
	RestoreTokens(ctx context.Context, tokens []TokenRequest) (*types.Permissions, error)
	LastSeen(ctx context.Context) error

	Offerings(ctx context.Context, billingVersion int) (*types.Offerings, error)
	SkuByIdentifier(ctx context.Context, id string) (*types.Sku, error)
	SkuByIdentifierAndStore(ctx context.Context, id string, store types.Store) (types.SkuVariant, error)
	SkuByProductID(ctx context.Context, productID string) (*types.Sku, error)
	Paywall(ctx context.Context, id, locale string) (*types.Paywall, error)

	ConnectCustomSubscriber(ctx context.Context, customID *string) error
	ConnectPaddleLicense(ctx context.Context, licenseKey string, force bool) error
	ConnectUniversalCode(ctx context.Context, code string, force bool) error

	StoreInfo(ctx context.Context) (*types.StoresInfo, error)
	SetUserProperty(ctx context.Context, req UserPropertyRequest) error
	UserProperties(ctx context.Context) (*types.UserProperties, error)
	SetAttributions(ctx context.Context, items []types.AttributionItem) error
	PurchaseHistory(ctx context.Context) (*types.PurchasesHistory, error)
}

// Identity supplies the ids stamped on every request
type Identity interface {
	InstallationID() string
	SubscriberID() string
}

type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	DeviceID         string // glii
	Framework        string
	FrameworkVersion string
}

// Client is the REST implementation of Repository
type Client struct {
	http *resty.Client
}

func New(cfg Config, identity Identity) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json")
	if cfg.Framework != "" {
		c.SetHeader(headerFramework, cfg.Framework)
		c.SetHeader(headerFrameworkVersion, cfg.FrameworkVersion)
	}

	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		r.SetQueryParam("glii", cfg.DeviceID)
		if identity != nil {
			r.SetQueryParam("installationid", identity.InstallationID())
			if sid := identity.SubscriberID(); sid != "" {
				r.SetQueryParam("subscriberid", sid)
			}
		}
		return nil
	})

	return &Client{http: c}
}

// call performs one request and decodes the response into out. An empty
// body on a 2xx reply leaves out untouched. Transport, status and payload
// errors are all mapped onto the SDK taxonomy.
func (c *Client) call(ctx context.Context, method, path string, query map[string]string, body interface{}, out response, onServerError serverErrorMapper) error {
	req := c.http.R().SetContext(ctx)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		glog.Warningf("url:%s, method:%s, err:%v", path, method, err)
		return mapTransportError(err)
	}

	raw := resp.Body()
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, out)
	}
	if len(raw) > 0 && decodeErr == nil {
		if e := out.apiError(); e != nil {
			glog.V(2).Infof("url:%s, server error code:%d %s", path, e.Code, e.Description)
			if onServerError == nil {
				onServerError = defaultServerError
			}
			return onServerError(e)
		}
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		glog.Warningf("url:%s, res:%s, resp.StatusCode:%d", path, string(raw), resp.StatusCode())
		return httpStatusError(resp.StatusCode(), http.StatusText(resp.StatusCode()))
	}
	if decodeErr != nil {
		return api.NewError(api.ErrorServerError, decodeErr.Error())
	}
	return nil
}

// convert maps DTO validation failures onto ServerError
func convert[T any](v T, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, api.NewError(api.ErrorServerError, err.Error())
	}
	return v, nil
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*ServerInfo, error) {
	var out InitializeResponse
	if err := c.call(ctx, http.MethodPost, "/v0/init", nil, req, &out, nil); err != nil {
		return nil, err
	}
	return &ServerInfo{SubscriberID: out.SubscriberID}, nil
}

func (c *Client) Token(ctx context.Context, req TokenRequest) (*types.Transaction, error) {
	var out TransactionResponse
	if err := c.call(ctx, http.MethodPost, "/v1/token", nil, req, &out, nil); err != nil {
		return nil, err
	}
	perms, err := convert(out.ToPermissions())
	if err != nil {
		return nil, err
	}
	productID := ""
	if len(req.ProductIDs) > 0 {
		productID = req.ProductIDs[0]
	}
	return &types.Transaction{ProductID: productID, ReceiptValidated: true, Permissions: perms}, nil
}

func (c *Client) Permissions(ctx context.Context) (*types.Permissions, error) {
	var out PermissionsResponse
	if err := c.call(ctx, http.MethodGet, "/v1/permissions", nil, nil, &out, nil); err != nil {
		return nil, err
	}
	return convert(out.ToPermissions())
}

func (c *Client) RestoreTokens(ctx context.Context, tokens []TokenRequest) (*types.Permissions, error) {
	if tokens == nil {
		tokens = []TokenRequest{}
	}
	var out PermissionsResponse
	if err := c.call(ctx, http.MethodPost, "/v1/restoretokens", nil, tokens, &out, nil); err != nil {
		return nil, err
	}
	return convert(out.ToPermissions())
}

func (c *Client) LastSeen(ctx context.Context) error {
	var out lastSeenResponse
	return c.call(ctx, http.MethodPut, "/v0/lastseen", nil, nil, &out, nil)
}

// Offerings uses the catalog format matching the device billing library
func (c *Client) Offerings(ctx context.Context, billingVersion int) (*types.Offerings, error) {
	path := "/v1/offerings"
	if billingVersion < 5 {
		path = "/v0/offerings"
	}
	var out OfferingsResponse
	if err := c.call(ctx, http.MethodGet, path, nil, nil, &out, nil); err != nil {
		return nil, err
	}
	offerings := &types.Offerings{All: make([]*types.Offering, 0, len(out.Offerings))}
	for i := range out.Offerings {
		o, err := convert(out.Offerings[i].ToOffering())
		if err != nil {
			return nil, err
		}
		offerings.All = append(offerings.All, o)
	}
	return offerings, nil
}

func (c *Client) sku(ctx context.Context, path string, query map[string]string) (types.SkuVariant, error) {
	var out SkuResponse
	if err := c.call(ctx, http.MethodGet, path, query, nil, &out, nil); err != nil {
		return nil, err
	}
	if out.Sku == nil {
		return nil, api.NewError(api.ErrorNotFoundOnGlassfy)
	}
	return convert(out.Sku.ToSku(""))
}

func playStoreSku(v types.SkuVariant) (*types.Sku, error) {
	sku, ok := v.(*types.Sku)
	if !ok {
		return nil, api.NewError(api.ErrorUnknown, "Wrong sku store")
	}
	return sku, nil
}

func (c *Client) SkuByIdentifier(ctx context.Context, id string) (*types.Sku, error) {
	v, err := c.sku(ctx, "/v0/sku", map[string]string{"identifier": id})
	if err != nil {
		return nil, err
	}
	return playStoreSku(v)
}

func (c *Client) SkuByIdentifierAndStore(ctx context.Context, id string, store types.Store) (types.SkuVariant, error) {
	return c.sku(ctx, "/v1/sku", map[string]string{
		"identifier": id,
		"store":      strconv.Itoa(int(store)),
	})
}

func (c *Client) SkuByProductID(ctx context.Context, productID string) (*types.Sku, error) {
	v, err := c.sku(ctx, "/v0/sku", map[string]string{"productid": productID})
	if err != nil {
		return nil, err
	}
	return playStoreSku(v)
}

func (c *Client) Paywall(ctx context.Context, id, locale string) (*types.Paywall, error) {
	var out PaywallResponse
	if err := c.call(ctx, http.MethodGet, "/v1/paywall", map[string]string{"identifier": id, "locale": locale}, nil, &out, nil); err != nil {
		return nil, err
	}
	return convert(out.ToPaywall())
}

func (c *Client) ConnectCustomSubscriber(ctx context.Context, customID *string) error {
	var out emptyResponse
	return c.call(ctx, http.MethodPost, "/v0/connect", nil, ConnectRequest{CustomID: customID}, &out, nil)
}

func (c *Client) ConnectPaddleLicense(ctx context.Context, licenseKey string, force bool) error {
	store := types.StorePaddle
	var out emptyResponse
	return c.call(ctx, http.MethodPost, "/v0/connect", nil,
		ConnectRequest{Store: &store, LicenseKey: &licenseKey, Force: &force}, &out, licenseServerError)
}

func (c *Client) ConnectUniversalCode(ctx context.Context, code string, force bool) error {
	store := types.StoreGlassfy
	var out emptyResponse
	return c.call(ctx, http.MethodPost, "/v0/connect", nil,
		ConnectRequest{Store: &store, LicenseKey: &code, Force: &force}, &out, universalCodeServerError)
}

func (c *Client) StoreInfo(ctx context.Context) (*types.StoresInfo, error) {
	var out StoresInfoResponse
	if err := c.call(ctx, http.MethodGet, "/v0/storeinfo", nil, nil, &out, nil); err != nil {
		return nil, err
	}
	info := &types.StoresInfo{All: make([]types.StoreInfo, 0, len(out.Info))}
	for _, i := range out.Info {
		info.All = append(info.All, i.ToStoreInfo())
	}
	return info, nil
}

func (c *Client) SetUserProperty(ctx context.Context, req UserPropertyRequest) error {
	var out emptyResponse
	return c.call(ctx, http.MethodPost, "/v1/property", nil, req, &out, nil)
}

func (c *Client) UserProperties(ctx context.Context) (*types.UserProperties, error) {
	var out UserPropertiesResponse
	if err := c.call(ctx, http.MethodGet, "/v0/property", nil, nil, &out, nil); err != nil {
		return nil, err
	}
	if out.Property == nil {
		return &types.UserProperties{}, nil
	}
	return out.Property, nil
}

// SetAttributions posts every item in one request; a nil value clears it
func (c *Client) SetAttributions(ctx context.Context, items []types.AttributionItem) error {
	body := make(map[string]*string, len(items))
	for _, i := range items {
		body[string(i.Type)] = i.Value
	}
	var out emptyResponse
	return c.call(ctx, http.MethodPost, "/v0/attribution", nil, body, &out, nil)
}

func (c *Client) PurchaseHistory(ctx context.Context) (*types.PurchasesHistory, error) {
	var out PurchaseHistoryResponse
	if err := c.call(ctx, http.MethodGet, "/v0/purchases", nil, nil, &out, nil); err != nil {
		return nil, err
	}
	h := &types.PurchasesHistory{
		SubscriberID: out.SubscriberID,
		CustomID:     out.CustomID,
		All:          make([]types.PurchaseHistory, 0, len(out.Purchases)),
	}
	for i := range out.Purchases {
		p, err := convert(out.Purchases[i].ToPurchaseHistory())
		if err != nil {
			return nil, err
		}
		h.All = append(h.All, p)
	}
	return h, nil
}

var _ Repository = (*Client)(nil)
