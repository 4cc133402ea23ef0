package types

import (
	"bytes"
	"testing"

	"github.com/gdex-labs/gdex/pkg/crypto"
)

func testKeyPair(t *testing.T, seed byte) *crypto.KeyPair {
	t.Helper()
	s := make([]byte, crypto.SeedSize)
	for i := range s {
		s[i] = seed
	}
	kp, err := crypto.KeyPairFromSeed(s)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	return kp
}

func pubKeyOf(kp *crypto.KeyPair) AccountPubKey {
	pk, _ := PubKeyFromBytes(kp.Public)
	return pk
}

func TestTransactionRoundTrip(t *testing.T) {
	kp := testKeyPair(t, 1)
	receiver := testKeyPair(t, 2)

	req := PaymentRequest{Receiver: pubKeyOf(receiver), AssetID: 0, Quantity: 500}
	tx := NewTransaction(pubKeyOf(kp), ControllerBank, RequestPayment, crypto.Digest{}, 1000, req.Marshal())

	encoded := tx.Marshal()
	var decoded Transaction
	if err := decoded.Unmarshal(encoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Sender != tx.Sender {
		t.Fatal("sender mismatch")
	}
	if decoded.TargetController != ControllerBank || decoded.RequestType != RequestPayment {
		t.Fatalf("routing mismatch: %v %v", decoded.TargetController, decoded.RequestType)
	}
	if decoded.Fee != 1000 {
		t.Fatalf("fee = %d", decoded.Fee)
	}
	if !bytes.Equal(decoded.RequestBytes, tx.RequestBytes) {
		t.Fatal("request bytes mismatch")
	}

	var decodedReq PaymentRequest
	if err := decodedReq.Unmarshal(decoded.RequestBytes); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if decodedReq != req {
		t.Fatalf("payload = %+v, want %+v", decodedReq, req)
	}
}

func TestTransactionDigestIsStable(t *testing.T) {
	kp := testKeyPair(t, 3)
	tx := NewTransaction(pubKeyOf(kp), ControllerSpot, RequestLimitOrder, crypto.Digest{}, 10,
		(&LimitOrderRequest{BaseAssetID: 1, QuoteAssetID: 0, Side: 1, Price: 100, Quantity: 7}).Marshal())

	d1 := tx.Digest()
	var decoded Transaction
	if err := decoded.Unmarshal(tx.Marshal()); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Digest() != d1 {
		t.Fatal("digest changed across a serialization round trip")
	}
}

func TestSignAndVerify(t *testing.T) {
	kp := testKeyPair(t, 4)
	tx := NewTransaction(pubKeyOf(kp), ControllerBank, RequestCreateAsset, crypto.Digest{}, 0,
		(&CreateAssetRequest{}).Marshal())

	signed, err := tx.Sign(kp)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := signed.VerifySignature(); err != nil {
		t.Fatalf("verify: %v", err)
	}

	var decoded SignedTransaction
	if err := decoded.Unmarshal(signed.Marshal()); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := decoded.VerifySignature(); err != nil {
		t.Fatalf("verify after round trip: %v", err)
	}

	// a different sender must not verify
	other := testKeyPair(t, 5)
	decoded.Transaction.Sender = pubKeyOf(other)
	if err := decoded.VerifySignature(); err == nil {
		t.Fatal("expected signature verification failure for wrong sender")
	}
}

func TestRequestEnumBoundaries(t *testing.T) {
	if _, err := ControllerTypeFromInt32(5); err == nil {
		t.Fatal("controller 5 should be invalid")
	}
	if _, err := ControllerTypeFromInt32(-1); err == nil {
		t.Fatal("controller -1 should be invalid")
	}
	for v := int32(0); v <= 4; v++ {
		if _, err := ControllerTypeFromInt32(v); err != nil {
			t.Fatalf("controller %d should be valid: %v", v, err)
		}
	}
}

func TestUpdatePricesRequestRoundTrip(t *testing.T) {
	req := UpdatePricesRequest{LatestPrices: []uint64{100, 250, 3}}
	var decoded UpdatePricesRequest
	if err := decoded.Unmarshal(req.Marshal()); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.LatestPrices) != 3 || decoded.LatestPrices[1] != 250 {
		t.Fatalf("prices = %v", decoded.LatestPrices)
	}
}

func TestLiquidateRequestRoundTrip(t *testing.T) {
	admin := testKeyPair(t, 6)
	target := testKeyPair(t, 7)
	req := LiquidateRequest{
		BaseAssetID: 1, QuoteAssetID: 0, Side: 2, Price: 95, Quantity: 5,
		MarketAdmin: pubKeyOf(admin), Target: pubKeyOf(target),
	}
	var decoded LiquidateRequest
	if err := decoded.Unmarshal(req.Marshal()); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != req {
		t.Fatalf("decoded = %+v, want %+v", decoded, req)
	}
}
