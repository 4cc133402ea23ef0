package types

// AssetID identifies an asset in the bank controller's registry.
type AssetID = uint64

// PrimaryAssetID is the stakeable, gas-settled asset. Receipt of it
// bootstraps bank account creation.
const PrimaryAssetID AssetID = 0

// CreatedAssetBalance is the fixed supply minted to the owner on asset
// creation: 10 billion with 6 decimals.
const CreatedAssetBalance uint64 = 10_000_000_000_000_000

// Asset records the registry entry for one asset. The owner currently has
// no privileges beyond receiving the initial mint.
type Asset struct {
	AssetID     AssetID
	OwnerPubKey AccountPubKey
}
