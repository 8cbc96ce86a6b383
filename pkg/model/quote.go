// pkg/model/quote.go
package model

import "sort"

// PriceUpdateMessage 行情服务每个周期发布的一批报价
type PriceUpdateMessage struct {
	Timestamp int64                  `json:"timestamp"`
	Source    string                 `json:"source"`
	Symbols   map[string]SymbolQuote `json:"symbols"`
}

// SymbolQuote 单个股票的行情快照，一次评估内只读
type SymbolQuote struct {
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	ChangePct float64 `json:"change_pct"`
}

// SymbolList 返回批次内的全部股票代码，按字母排序
func (m *PriceUpdateMessage) SymbolList() []string {
	symbols := make([]string, 0, len(m.Symbols))
	for symbol := range m.Symbols {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}
