package dexther

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"dexther/core/state"
)

var noFee = feeConfig{}

// feeFor returns the treasury cut of a fungible amount, rounded down.
func feeFor(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || bps == 0 {
		return new(big.Int)
	}
	fee := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return fee.Quo(fee, big.NewInt(MaxFeeBps))
}

// moveAssets transfers every asset from from to to with the vault as the
// operator. Fungible transfers pay cfg's fee to the treasury out of the
// moved amount. Any failure aborts the caller's transition.
func (e *Engine) moveAssets(kv state.KV, from, to common.Address, assets []Asset, cfg feeConfig) ([]FeeCharge, error) {
	operator := e.Vault()
	var charges []FeeCharge
	for _, asset := range assets {
		amount := cloneBigInt(asset.Amount)
		if asset.Kind == AssetKindFungible && cfg.bps > 0 && cfg.treasury != (common.Address{}) {
			fee := feeFor(amount, cfg.bps)
			if fee.Sign() > 0 {
				if err := e.registry.transfer(kv, operator, from, cfg.treasury, asset, fee); err != nil {
					return nil, err
				}
				charges = append(charges, FeeCharge{Token: asset.Token, Payer: from, Amount: fee})
				amount.Sub(amount, fee)
			}
			if amount.Sign() == 0 {
				continue
			}
		}
		if err := e.registry.transfer(kv, operator, from, to, asset, amount); err != nil {
			return nil, err
		}
	}
	return charges, nil
}
