package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseSide(t *testing.T) {
	cases := map[string]TradeSide{
		"buy":     SideBuy,
		"BUY":     SideBuy,
		" b ":     SideBuy,
		"bid":     SideBuy,
		"sell":    SideSell,
		"s":       SideSell,
		"ask":     SideSell,
		"":        SideUnknown,
		"maker":   SideUnknown,
		"unknown": SideUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSide(in), "input %q", in)
	}
}

func TestTradeRecordValid(t *testing.T) {
	good := TradeRecord{Price: decimal.NewFromFloat(2.5), Quantity: decimal.NewFromInt(10)}
	assert.True(t, good.Valid())

	zeroPrice := TradeRecord{Price: decimal.Zero, Quantity: decimal.NewFromInt(10)}
	assert.False(t, zeroPrice.Valid())

	negativeQty := TradeRecord{Price: decimal.NewFromInt(2), Quantity: decimal.NewFromInt(-1)}
	assert.False(t, negativeQty.Valid())
}

func TestPairKeyString(t *testing.T) {
	k := PairKey{Exchange: "NonKYC", Pair: "JKC/USDT"}
	assert.Equal(t, "NonKYC:JKC/USDT", k.String())

	trade := TradeRecord{Exchange: "CoinEx", Pair: "JKC/USDT"}
	assert.Equal(t, PairKey{Exchange: "CoinEx", Pair: "JKC/USDT"}, trade.Key())
}

func TestPriceLevelValue(t *testing.T) {
	l := PriceLevel{Price: decimal.NewFromFloat(2.1), Quantity: decimal.NewFromInt(40)}
	assert.True(t, l.Value().Equal(decimal.NewFromInt(84)))
}
