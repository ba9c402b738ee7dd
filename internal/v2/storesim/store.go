// Package storesim is an in-memory store client. It behaves like the
// platform billing client closely enough to drive the SDK in tests and in
// the simulator command: connection callbacks and purchase updates are
// delivered asynchronously.
package storesim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

const DefaultLibraryVersion = "6.0.1"

// Store is a simulated billing client
type Store struct {
	mu sync.Mutex

	ready          bool
	version        string
	features       map[store.Feature]store.ResponseCode
	connectResults []store.Result
	autoComplete   bool
	launchResult   store.Result
	launchDelay    time.Duration
	queryErrors    map[string]store.Result

	products map[string]*types.ProductDetails
	legacy   map[string]*types.StoreProduct
	history  map[types.ProductKind][]*types.PurchaseHistoryRecord
	owned    map[types.ProductKind][]*types.PurchaseRecord

	listener     store.PurchasesUpdatedListener
	pending      map[string]store.FlowParams
	launches     []store.FlowParams
	consumed     []string
	acknowledged []string
	cancelled    []string
	calls        map[string]int
	seq          int
}

type Option func(*Store)

// WithLibraryVersion sets the reported billing library version
func WithLibraryVersion(v string) Option {
	return func(s *Store) { s.version = v }
}

// WithAutoComplete makes every launched flow complete as purchased
func WithAutoComplete() Option {
	return func(s *Store) { s.autoComplete = true }
}

func New(opts ...Option) *Store {
	s := &Store{
		version:     DefaultLibraryVersion,
		features:    map[store.Feature]store.ResponseCode{},
		queryErrors: map[string]store.Result{},
		products:    map[string]*types.ProductDetails{},
		legacy:      map[string]*types.StoreProduct{},
		history:     map[types.ProductKind][]*types.PurchaseHistoryRecord{},
		owned:       map[types.ProductKind][]*types.PurchaseRecord{},
		pending:     map[string]store.FlowParams{},
		calls:       map[string]int{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Setup

func (s *Store) AddProduct(pd *types.ProductDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[pd.ProductID] = pd
}

func (s *Store) AddLegacyProduct(p *types.StoreProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.legacy[p.ProductID] = p
}

func (s *Store) AddHistory(kind types.ProductKind, r *types.PurchaseHistoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[kind] = append(s.history[kind], r)
}

func (s *Store) AddOwned(kind types.ProductKind, p *types.PurchaseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned[kind] = append(s.owned[kind], p)
}

// FailConnections queues results returned by the next connection attempts
func (s *Store) FailConnections(results ...store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectResults = append(s.connectResults, results...)
}

func (s *Store) SetFeature(f store.Feature, code store.ResponseCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.features[f] = code
}

func (s *Store) SetLaunchResult(res store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchResult = res
}

// SetLaunchDelay slows LaunchBillingFlow down, widening race windows in tests
func (s *Store) SetLaunchDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchDelay = d
}

// FailQuery makes the named query method return res until cleared with an OK result
func (s *Store) FailQuery(method string, res store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res.IsOK() {
		delete(s.queryErrors, method)
		return
	}
	s.queryErrors[method] = res
}

// Disconnect drops the connection; the next call has to reconnect
func (s *Store) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
}

// Inspection

func (s *Store) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *Store) Launches() []store.FlowParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.FlowParams(nil), s.launches...)
}

func (s *Store) Consumed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.consumed...)
}

func (s *Store) Acknowledged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acknowledged...)
}

func (s *Store) Cancelled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cancelled...)
}

// Pending reports whether a purchase UI is open for productID
func (s *Store) Pending(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[productID]
	return ok
}

// store.Client

func (s *Store) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

func (s *Store) StartConnection(l store.ConnectionListener) {
	s.mu.Lock()
	s.calls["StartConnection"]++
	res := store.OK()
	if len(s.connectResults) > 0 {
		res = s.connectResults[0]
		s.connectResults = s.connectResults[1:]
	}
	s.ready = res.IsOK()
	s.mu.Unlock()

	go func() {
		if res.Code == store.ResponseServiceDisconnected {
			l.OnBillingServiceDisconnected()
			return
		}
		l.OnBillingSetupFinished(res)
	}()
}

func (s *Store) EndConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["EndConnection"]++
	s.ready = false
}

func (s *Store) SetPurchasesUpdatedListener(l store.PurchasesUpdatedListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// begin counts the call and returns the configured failure, if any
func (s *Store) begin(method string) store.Result {
	s.calls[method]++
	if res, ok := s.queryErrors[method]; ok {
		return res
	}
	if !s.ready {
		return store.NewResult(store.ResponseServiceDisconnected, "")
	}
	return store.OK()
}

func (s *Store) QueryPurchaseHistory(_ context.Context, kind types.ProductKind) ([]*types.PurchaseHistoryRecord, store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.begin("QueryPurchaseHistory"); !res.IsOK() {
		return nil, res
	}
	return append([]*types.PurchaseHistoryRecord(nil), s.history[kind]...), store.OK()
}

func (s *Store) QueryPurchases(_ context.Context, kind types.ProductKind) ([]*types.PurchaseRecord, store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.begin("QueryPurchases"); !res.IsOK() {
		return nil, res
	}
	out := make([]*types.PurchaseRecord, 0, len(s.owned[kind]))
	for _, p := range s.owned[kind] {
		cp := *p
		out = append(out, &cp)
	}
	return out, store.OK()
}

func (s *Store) QueryProductDetails(_ context.Context, productIDs []string, kind types.ProductKind) ([]*types.ProductDetails, store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.begin("QueryProductDetails"); !res.IsOK() {
		return nil, res
	}
	var out []*types.ProductDetails
	for _, id := range productIDs {
		if pd, ok := s.products[id]; ok && pd.Kind == kind {
			out = append(out, pd)
		}
	}
	return out, store.OK()
}

func (s *Store) QuerySkuDetails(_ context.Context, productIDs []string) ([]*types.StoreProduct, store.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.begin("QuerySkuDetails"); !res.IsOK() {
		return nil, res
	}
	var out []*types.StoreProduct
	for _, id := range productIDs {
		if p, ok := s.legacy[id]; ok {
			out = append(out, p)
		}
	}
	return out, store.OK()
}

func (s *Store) LaunchBillingFlow(_ store.Activity, params store.FlowParams) store.Result {
	s.mu.Lock()
	delay := s.launchDelay
	s.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["LaunchBillingFlow"]++
	if params.Product == nil {
		return store.NewResult(store.ResponseDeveloperError, "missing product")
	}
	if !s.launchResult.IsOK() {
		return s.launchResult
	}
	s.launches = append(s.launches, params)
	s.pending[params.Product.ProductID] = params
	glog.V(2).Infof("storesim: billing flow opened for %s", params.Product.ProductID)

	if s.autoComplete {
		id := params.Product.ProductID
		go s.Complete(id, types.PurchaseStatePurchased)
	}
	return store.OK()
}

// Complete closes the open purchase UI of productID with a purchase in the
// given state and delivers it to the purchases listener.
func (s *Store) Complete(productID string, state types.PurchaseState) *types.PurchaseRecord {
	s.mu.Lock()
	params, ok := s.pending[productID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.pending, productID)
	s.seq++
	p := &types.PurchaseRecord{
		OrderID:       fmt.Sprintf("GPA.sim-%04d", s.seq),
		PackageName:   "io.glassfy.sim",
		PurchaseToken: fmt.Sprintf("token-%s-%d", productID, s.seq),
		ProductIDs:    []string{productID},
		PurchaseTime:  time.Now().UnixMilli(),
		Quantity:      1,
		AutoRenewing:  params.Product.Kind == types.ProductKindSubscription,
		State:         state,
		AccountID:     params.AccountID,
	}
	if state == types.PurchaseStatePurchased {
		owned := *p
		s.owned[params.Product.Kind] = append(s.owned[params.Product.Kind], &owned)
		s.history[params.Product.Kind] = append(s.history[params.Product.Kind], &types.PurchaseHistoryRecord{
			PurchaseToken: p.PurchaseToken,
			ProductIDs:    p.ProductIDs,
			PurchaseTime:  p.PurchaseTime,
			Quantity:      p.Quantity,
		})
	}
	l := s.listener
	s.mu.Unlock()

	if l != nil {
		l(store.OK(), []*types.PurchaseRecord{p})
	}
	return p
}

// Deliver pushes an unsolicited purchase update, as the platform does for
// purchases completed outside the app.
func (s *Store) Deliver(res store.Result, purchases ...*types.PurchaseRecord) {
	s.mu.Lock()
	l := s.listener
	if !res.IsOK() {
		s.pending = map[string]store.FlowParams{}
	}
	s.mu.Unlock()
	if l != nil {
		l(res, purchases)
	}
}

func (s *Store) CancelBillingFlow(_ store.Activity, productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, productID)
	s.cancelled = append(s.cancelled, productID)
}

func (s *Store) Consume(_ context.Context, token string) store.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.begin("Consume"); !res.IsOK() {
		return res
	}
	s.consumed = append(s.consumed, token)
	kept := s.owned[types.ProductKindConsumable][:0]
	for _, p := range s.owned[types.ProductKindConsumable] {
		if p.PurchaseToken != token {
			kept = append(kept, p)
		}
	}
	s.owned[types.ProductKindConsumable] = kept
	return store.OK()
}

func (s *Store) Acknowledge(_ context.Context, token string) store.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res := s.begin("Acknowledge"); !res.IsOK() {
		return res
	}
	s.acknowledged = append(s.acknowledged, token)
	for _, p := range s.owned[types.ProductKindSubscription] {
		if p.PurchaseToken == token {
			p.Acknowledged = true
		}
	}
	return store.OK()
}

func (s *Store) IsFeatureSupported(f store.Feature) store.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["IsFeatureSupported"]++
	if code, ok := s.features[f]; ok {
		return store.NewResult(code, "")
	}
	return store.OK()
}

func (s *Store) LibraryVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

var (
	_ store.Client       = (*Store)(nil)
	_ store.FlowCanceler = (*Store)(nil)
)
