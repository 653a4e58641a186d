package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetKind discriminates the asset families known to the engine.
type AssetKind uint8

const (
	AssetCurrency AssetKind = iota
	AssetOutcome
	AssetCombinatorial
)

// Asset is a comparable asset selector. Only the fields relevant to Kind are set.
type Asset struct {
	Kind     AssetKind
	Currency uint32
	Market   MarketID
	Index    uint16
	Token    common.Hash
}

// Currency returns a collateral currency asset.
func Currency(id uint32) Asset {
	return Asset{Kind: AssetCurrency, Currency: id}
}

// Outcome returns the categorical outcome asset of a market.
func Outcome(market MarketID, index uint16) Asset {
	return Asset{Kind: AssetOutcome, Market: market, Index: index}
}

// CombinatorialToken returns a combinatorial position token.
func CombinatorialToken(token common.Hash) Asset {
	return Asset{Kind: AssetCombinatorial, Token: token}
}

func (a Asset) String() string {
	switch a.Kind {
	case AssetCurrency:
		return "currency:" + strconv.FormatUint(uint64(a.Currency), 10)
	case AssetOutcome:
		return fmt.Sprintf("outcome:%d:%d", a.Market, a.Index)
	case AssetCombinatorial:
		return "combo:" + a.Token.Hex()
	default:
		return fmt.Sprintf("unknown:%d", a.Kind)
	}
}

// Bytes returns a stable binary encoding, used for storage keys and hashing.
func (a Asset) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(a.Kind))
	switch a.Kind {
	case AssetCurrency:
		_ = binary.Write(&buf, binary.BigEndian, a.Currency)
	case AssetOutcome:
		_ = binary.Write(&buf, binary.BigEndian, uint64(a.Market))
		_ = binary.Write(&buf, binary.BigEndian, a.Index)
	case AssetCombinatorial:
		buf.Write(a.Token.Bytes())
	}
	return buf.Bytes()
}

// ParseAsset is the inverse of Asset.String.
func ParseAsset(s string) (Asset, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch parts[0] {
	case "currency":
		if len(parts) != 2 {
			break
		}
		id, err := strconv.ParseUint(parts[1], 10, 32)
		if err != nil {
			return Asset{}, fmt.Errorf("parse currency id: %w", err)
		}
		return Currency(uint32(id)), nil
	case "outcome":
		if len(parts) != 3 {
			break
		}
		market, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return Asset{}, fmt.Errorf("parse market id: %w", err)
		}
		index, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return Asset{}, fmt.Errorf("parse outcome index: %w", err)
		}
		return Outcome(MarketID(market), uint16(index)), nil
	case "combo":
		if len(parts) != 2 || len(common.FromHex(parts[1])) != common.HashLength {
			break
		}
		return CombinatorialToken(common.HexToHash(parts[1])), nil
	}
	return Asset{}, fmt.Errorf("invalid asset: %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Asset) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Asset) UnmarshalText(text []byte) error {
	parsed, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
