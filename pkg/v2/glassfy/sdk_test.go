package glassfy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glassfy/internal/v2/storesim"
	"glassfy/pkg/api"
	"glassfy/pkg/v2/store"
	"glassfy/pkg/v2/types"
)

func TestInitializeConcurrentCallsRunOnce(t *testing.T) {
	ctx := context.Background()
	sim := premiumSim()
	repo := newFakeRepo()
	repo.initBlock = make(chan struct{})
	sdk := newTestSDK(sim, repo)

	type outcome struct {
		ok  bool
		err error
	}
	results := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			ok, err := sdk.Initialize(ctx, testConfig())
			results <- outcome{ok, err}
		}()
	}

	require.Eventually(t, func() bool { return repo.initCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, Initializing, sdk.State())
	close(repo.initBlock)

	performed := 0
	for i := 0; i < 2; i++ {
		out := <-results
		require.NoError(t, out.err)
		if out.ok {
			performed++
		}
	}
	assert.Equal(t, 1, performed)
	assert.Equal(t, 1, repo.initCount())
	assert.Equal(t, 2, sim.Calls("QueryPurchaseHistory"), "one history fetch per product kind")
	assert.Equal(t, Initialized, sdk.State())

	ok, err := sdk.Initialize(ctx, testConfig())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, repo.initCount())
}

func TestInitializeSubmitsHistory(t *testing.T) {
	sim := premiumSim()
	sim.AddHistory(types.ProductKindConsumable, &types.PurchaseHistoryRecord{PurchaseToken: "h-coins", ProductIDs: []string{"coins"}, Quantity: 1})
	sim.AddHistory(types.ProductKindSubscription, &types.PurchaseHistoryRecord{PurchaseToken: "h-sub", ProductIDs: []string{"sub1"}, Quantity: 1})
	repo := newFakeRepo()

	sdk, err := initialized(context.Background(), sim, repo)
	require.NoError(t, err)
	defer sdk.Close()

	require.Len(t, repo.initReqs, 1)
	req := repo.initReqs[0]
	assert.Equal(t, "io.glassfy.test", req.PackageName)
	require.NotNil(t, req.InstallTime)
	assert.Positive(t, *req.InstallTime)
	require.Len(t, req.Tokens, 2)
	assert.Equal(t, "h-sub", req.Tokens[0].Token)
	assert.True(t, req.Tokens[0].IsSubscription)
	assert.Equal(t, "h-coins", req.Tokens[1].Token)
	assert.False(t, req.Tokens[1].IsSubscription)
}

func TestInitializeAcknowledgesOwnedSubscription(t *testing.T) {
	sim := premiumSim()
	sim.AddOwned(types.ProductKindSubscription, &types.PurchaseRecord{
		PurchaseToken: "t-sub", ProductIDs: []string{"sub1"}, State: types.PurchaseStatePurchased,
	})
	repo := newFakeRepo()
	delegate := &recordingDelegate{}

	sdk := newTestSDK(sim, repo)
	sdk.SetPurchaseDelegate(delegate)
	ok, err := sdk.Initialize(context.Background(), testConfig())
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"t-sub"}, sim.Acknowledged())
	calls := delegate.recorded()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].isSubscription)
	assert.Equal(t, "t-sub", calls[0].purchase.PurchaseToken)
}

func TestInitializeFinalizesOnlyWhatIsNeeded(t *testing.T) {
	sim := premiumSim()
	sim.AddOwned(types.ProductKindConsumable, &types.PurchaseRecord{
		PurchaseToken: "t-coins", ProductIDs: []string{"coins"}, State: types.PurchaseStatePurchased,
	})
	sim.AddOwned(types.ProductKindConsumable, &types.PurchaseRecord{
		PurchaseToken: "t-pending", ProductIDs: []string{"coins"}, State: types.PurchaseStatePending,
	})
	sim.AddOwned(types.ProductKindSubscription, &types.PurchaseRecord{
		PurchaseToken: "t-acked", ProductIDs: []string{"sub1"}, State: types.PurchaseStatePurchased, Acknowledged: true,
	})
	delegate := &recordingDelegate{}

	sdk := newTestSDK(sim, newFakeRepo())
	sdk.SetPurchaseDelegate(delegate)
	_, err := sdk.Initialize(context.Background(), testConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"t-coins"}, sim.Consumed())
	assert.Empty(t, sim.Acknowledged())
	calls := delegate.recorded()
	require.Len(t, calls, 1)
	assert.False(t, calls[0].isSubscription)
}

func TestInitializeWatcherMode(t *testing.T) {
	sim := premiumSim()
	sim.AddOwned(types.ProductKindSubscription, &types.PurchaseRecord{
		PurchaseToken: "t-sub", ProductIDs: []string{"sub1"}, State: types.PurchaseStatePurchased,
	})
	delegate := &recordingDelegate{}

	sdk := newTestSDK(sim, newFakeRepo())
	sdk.SetPurchaseDelegate(delegate)
	cfg := testConfig()
	cfg.WatcherMode = true
	_, err := sdk.Initialize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Empty(t, sim.Acknowledged())
	assert.Empty(t, delegate.recorded())
}

func TestInitializeFailures(t *testing.T) {
	tests := []struct {
		name     string
		prepare  func(sim *storesim.Store, repo *fakeRepo)
		code     api.ErrorCode
		initReqs int
	}{
		{
			name: "history fetch",
			prepare: func(sim *storesim.Store, _ *fakeRepo) {
				sim.FailQuery("QueryPurchaseHistory", store.NewResult(store.ResponseServiceUnavailable, "offline"))
			},
			code:     api.ErrorStoreError,
			initReqs: 0,
		},
		{
			name: "server error",
			prepare: func(_ *storesim.Store, repo *fakeRepo) {
				repo.initErrs = []error{api.NewError(api.ErrorServerError, "boom")}
			},
			code:     api.ErrorServerError,
			initReqs: 1,
		},
		{
			name: "missing subscriber id",
			prepare: func(_ *storesim.Store, repo *fakeRepo) {
				repo.subscriberID = ""
			},
			code:     api.ErrorSDKNotInitialized,
			initReqs: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := premiumSim()
			repo := newFakeRepo()
			tt.prepare(sim, repo)
			sdk := newTestSDK(sim, repo)

			ok, err := sdk.Initialize(context.Background(), testConfig())
			assert.False(t, ok)
			require.Error(t, err)
			assert.Equal(t, tt.code, api.CodeOf(err))
			assert.Equal(t, Failed, sdk.State())
			assert.Equal(t, tt.initReqs, repo.initCount())
		})
	}
}

func TestInitializeRejectsInvalidConfig(t *testing.T) {
	sdk := newTestSDK(premiumSim(), newFakeRepo())
	ok, err := sdk.Initialize(context.Background(), Config{})
	assert.False(t, ok)
	assert.True(t, api.IsCode(err, api.ErrorSDKNotInitialized))
	assert.Equal(t, NotInitialized, sdk.State())
}

func TestInitializeWithMinimalConfig(t *testing.T) {
	repo := newFakeRepo()
	sdk := newTestSDK(premiumSim(), repo)
	defer sdk.Close()

	ok, err := sdk.Initialize(context.Background(), Config{APIKey: "k", PackageName: "io.example"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Initialized, sdk.State())
	assert.Equal(t, DefaultInitializedTimeout, sdk.initializedTimeout())
	require.Len(t, repo.initReqs, 1)
	assert.Equal(t, "io.example", repo.initReqs[0].PackageName)
}

func TestOperationRetriesFailedInitialization(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.initErrs = []error{api.NewError(api.ErrorInternetConnection)}
	sdk := newTestSDK(premiumSim(), repo)

	_, err := sdk.Initialize(ctx, testConfig())
	require.True(t, api.IsCode(err, api.ErrorInternetConnection))
	require.Equal(t, Failed, sdk.State())

	perms, err := sdk.Permissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.initCount())
	assert.Equal(t, Initialized, sdk.State())
	assert.NotEmpty(t, perms.InstallationID)

	_, err = sdk.Permissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.initCount())
}

func TestOperationFailsWhenRetryFails(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.initErrs = []error{api.NewError(api.ErrorServerError), api.NewError(api.ErrorServerError)}
	sdk := newTestSDK(premiumSim(), repo)

	_, err := sdk.Initialize(ctx, testConfig())
	require.Error(t, err)

	_, err = sdk.Permissions(ctx)
	assert.True(t, api.IsCode(err, api.ErrorSDKNotInitialized))
	assert.Equal(t, 2, repo.initCount())
	assert.Equal(t, 0, repo.permissions)
}

func TestOperationBeforeInitialize(t *testing.T) {
	repo := newFakeRepo()
	sdk := newTestSDK(premiumSim(), repo)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sdk.Permissions(ctx)
	assert.True(t, api.IsCode(err, api.ErrorSDKNotInitialized))
	assert.Equal(t, 0, repo.permissions)
	assert.Equal(t, NotInitialized, sdk.State())
}

func TestOperationWaitsForInitialization(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.initBlock = make(chan struct{})
	sdk := newTestSDK(premiumSim(), repo)

	go sdk.Initialize(ctx, testConfig())
	require.Eventually(t, func() bool { return repo.initCount() == 1 }, time.Second, 5*time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := sdk.Permissions(ctx)
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("permissions returned before initialization finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.initBlock)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("permissions did not return")
	}
}

func TestCloseEndsConnection(t *testing.T) {
	sim := premiumSim()
	sdk, err := initialized(context.Background(), sim, newFakeRepo())
	require.NoError(t, err)

	require.NoError(t, sdk.Close())
	assert.Equal(t, 1, sim.Calls("EndConnection"))
	assert.False(t, sim.IsReady())

	assert.NoError(t, New(sim).Close())
}
