package spot

import (
	"testing"

	"github.com/gdex-labs/gdex/pkg/controller/bank"
	"github.com/gdex-labs/gdex/pkg/engine"
	"github.com/gdex-labs/gdex/pkg/types"
)

func pk(b byte) types.AccountPubKey {
	var out types.AccountPubKey
	for i := range out {
		out[i] = b
	}
	return out
}

// newExchange funds userA with all of asset 1 and userB with all of asset
// 0, and opens the (1, 0) orderbook.
func newExchange(t *testing.T, userA, userB types.AccountPubKey) (*bank.Controller, *Controller) {
	t.Helper()
	bc := bank.NewController()
	if _, err := bc.CreateAsset(userB); err != nil { // asset 0 -> B
		t.Fatalf("create asset 0: %v", err)
	}
	if err := bc.Transfer(userB, userA, 0, 1); err != nil { // bootstrap A's account
		t.Fatalf("bootstrap account: %v", err)
	}
	if _, err := bc.CreateAsset(userA); err != nil { // asset 1 -> A
		t.Fatalf("create asset 1: %v", err)
	}

	sc := NewController(bc)
	if err := sc.InitializeControllerAccount(); err != nil {
		t.Fatalf("controller account: %v", err)
	}
	if err := sc.CreateOrderbook(1, 0); err != nil {
		t.Fatalf("create orderbook: %v", err)
	}
	return bc, sc
}

func balance(t *testing.T, bc *bank.Controller, who types.AccountPubKey, asset types.AssetID) uint64 {
	t.Helper()
	out, err := bc.GetBalance(who, asset)
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return out
}

func TestCreateOrderbookValidation(t *testing.T) {
	a, b := pk(1), pk(2)
	_, sc := newExchange(t, a, b)

	if err := sc.CreateOrderbook(1, 0); err != types.ErrOrderBookCreation {
		t.Fatalf("duplicate pair err = %v", err)
	}
	if err := sc.CreateOrderbook(9, 0); err != types.ErrAssetLookup {
		t.Fatalf("unknown asset err = %v", err)
	}
}

// Full cross: A asks 10@100, B bids 10@100. Assets swap completely and the
// book ends empty.
func TestSpotMatch(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := newExchange(t, a, b)

	aBase := balance(t, bc, a, 1)
	bQuote := balance(t, bc, b, 0)

	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Ask, 100, 10); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := sc.PlaceLimitOrder(b, 1, 0, engine.Bid, 100, 10); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	if got := balance(t, bc, a, 1); got != aBase-10 {
		t.Fatalf("A asset-1 = %d, want %d", got, aBase-10)
	}
	if got := balance(t, bc, a, 0); got != 1+1000 {
		t.Fatalf("A asset-0 = %d, want %d", got, 1+1000)
	}
	if got := balance(t, bc, b, 0); got != bQuote-1000 {
		t.Fatalf("B asset-0 = %d, want %d", got, bQuote-1000)
	}
	if got := balance(t, bc, b, 1); got != 10 {
		t.Fatalf("B asset-1 = %d, want 10", got)
	}

	depth, err := sc.Depth(1, 0, 10)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if len(depth.Bids) != 0 || len(depth.Asks) != 0 {
		t.Fatalf("book should be empty, got %+v", depth)
	}

	// escrow fully released
	if got := balance(t, bc, ControllerAccount, 0); got != 0 {
		t.Fatalf("controller quote escrow = %d", got)
	}
	if got := balance(t, bc, ControllerAccount, 1); got != 0 {
		t.Fatalf("controller base escrow = %d", got)
	}
}

// Partial fill then cancel: A asks 10@100, B bids 4@100; A cancels the
// resting 6 and the escrow comes back.
func TestPartialFillAndCancel(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := newExchange(t, a, b)

	aBase := balance(t, bc, a, 1)

	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Ask, 100, 10); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := sc.PlaceLimitOrder(b, 1, 0, engine.Bid, 100, 4); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	// 4 sold, 6 still escrowed
	if got := balance(t, bc, a, 1); got != aBase-10 {
		t.Fatalf("A asset-1 = %d, want %d", got, aBase-10)
	}
	if got := balance(t, bc, ControllerAccount, 1); got != 6 {
		t.Fatalf("escrowed base = %d, want 6", got)
	}

	acct, err := sc.Account(1, 0, a)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if len(acct.OpenOrders) != 1 || acct.BaseEscrow != 6 {
		t.Fatalf("account = %+v", acct)
	}
	var orderID uint64
	for id := range acct.OpenOrders {
		orderID = id
	}

	if err := sc.CancelOrder(a, 1, 0, engine.Ask, orderID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := balance(t, bc, a, 1); got != aBase-4 {
		t.Fatalf("A asset-1 after cancel = %d, want %d", got, aBase-4)
	}
	if got := balance(t, bc, ControllerAccount, 1); got != 0 {
		t.Fatalf("escrow after cancel = %d", got)
	}

	depth, _ := sc.Depth(1, 0, 10)
	if len(depth.Bids) != 0 || len(depth.Asks) != 0 {
		t.Fatalf("book should be empty, got %+v", depth)
	}
}

func TestBidPriceImprovementRefund(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := newExchange(t, a, b)

	bQuote := balance(t, bc, b, 0)

	// A rests an ask at 90; B bids at 100 and fills at 90
	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Ask, 90, 10); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	if err := sc.PlaceLimitOrder(b, 1, 0, engine.Bid, 100, 10); err != nil {
		t.Fatalf("place bid: %v", err)
	}

	if got := balance(t, bc, b, 0); got != bQuote-900 {
		t.Fatalf("B paid %d, want 900", bQuote-got)
	}
	if got := balance(t, bc, ControllerAccount, 0); got != 0 {
		t.Fatalf("stranded escrow = %d", got)
	}
}

func TestOrderExceedsBalance(t *testing.T) {
	a, b := pk(1), pk(2)
	_, sc := newExchange(t, a, b)

	// A owns no asset 0 beyond the bootstrap unit
	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Bid, 100, 10); err != types.ErrOrderExceedsBalance {
		t.Fatalf("err = %v, want ErrOrderExceedsBalance", err)
	}
}

func TestBalanceExactlyEqualToOrderRequirement(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := newExchange(t, a, b)

	// top A up to exactly 1000 quote: 999 here plus the bootstrap unit
	if err := bc.Transfer(b, a, 0, 999); err != nil {
		t.Fatalf("fund: %v", err)
	}
	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Bid, 100, 10); err != nil {
		t.Fatalf("exact balance must be sufficient: %v", err)
	}
	if got := balance(t, bc, a, 0); got != 0 {
		t.Fatalf("A quote after escrow = %d, want 0", got)
	}
}

func TestMarketOrderRefundsUnfillable(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := newExchange(t, a, b)

	// A rests 4 base at 100; B market-buys 10 and only 4 fill
	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Ask, 100, 4); err != nil {
		t.Fatalf("place ask: %v", err)
	}
	bQuote := balance(t, bc, b, 0)
	if err := sc.PlaceMarketOrder(b, 1, 0, engine.Bid, 10); err != nil {
		t.Fatalf("market order: %v", err)
	}

	if got := balance(t, bc, b, 0); got != bQuote-400 {
		t.Fatalf("B paid %d, want 400", bQuote-got)
	}
	if got := balance(t, bc, b, 1); got != 4 {
		t.Fatalf("B base = %d, want 4", got)
	}
	if got := balance(t, bc, ControllerAccount, 0); got != 0 {
		t.Fatalf("stranded quote escrow = %d", got)
	}
}

func TestUpdateOrderAdjustsEscrow(t *testing.T) {
	a, b := pk(1), pk(2)
	bc, sc := newExchange(t, a, b)

	if err := sc.PlaceLimitOrder(a, 1, 0, engine.Ask, 100, 10); err != nil {
		t.Fatalf("place: %v", err)
	}
	acct, _ := sc.Account(1, 0, a)
	var orderID uint64
	for id := range acct.OpenOrders {
		orderID = id
	}

	// shrink the order; 6 base come back
	if err := sc.UpdateOrder(a, 1, 0, engine.Ask, 110, 4, orderID); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := balance(t, bc, ControllerAccount, 1); got != 4 {
		t.Fatalf("escrow = %d, want 4", got)
	}

	// a stranger cannot touch it
	if err := sc.UpdateOrder(b, 1, 0, engine.Ask, 120, 4, orderID); err != types.ErrOrderRequest {
		t.Fatalf("foreign update err = %v", err)
	}
	if err := sc.CancelOrder(b, 1, 0, engine.Ask, orderID); err != types.ErrOrderRequest {
		t.Fatalf("foreign cancel err = %v", err)
	}
}

func TestCatchupStateRoundTrip(t *testing.T) {
	a, b := pk(1), pk(2)
	_, sc := newExchange(t, a, b)

	_ = sc.PlaceLimitOrder(a, 1, 0, engine.Ask, 100, 10)
	_ = sc.PlaceLimitOrder(b, 1, 0, engine.Bid, 95, 7)

	blob, err := sc.CatchupState()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	restored := NewController(bank.NewController())
	if err := restored.LoadCatchupState(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	blob2, err := restored.CatchupState()
	if err != nil {
		t.Fatalf("re-snapshot: %v", err)
	}
	if string(blob) != string(blob2) {
		t.Fatal("catchup state must round trip byte-identically")
	}

	depth, err := restored.Depth(1, 0, 10)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if len(depth.Asks) != 1 || depth.Asks[0].Price != 100 || depth.Asks[0].Quantity != 10 {
		t.Fatalf("restored asks = %+v", depth.Asks)
	}
	if len(depth.Bids) != 1 || depth.Bids[0].Price != 95 {
		t.Fatalf("restored bids = %+v", depth.Bids)
	}
}
