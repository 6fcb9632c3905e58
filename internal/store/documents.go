package store

import (
	"time"

	"github.com/hamlet-sim/lem-engine/internal/clearing"
	"github.com/hamlet-sim/lem-engine/internal/marketcfg"
	"github.com/hamlet-sim/lem-engine/internal/money"
	"github.com/hamlet-sim/lem-engine/internal/quote"
	"github.com/hamlet-sim/lem-engine/internal/timetable"
)

// dims is embedded in every persisted document (spec §3: "Dimensions on
// every row").
type dims struct {
	Region    string    `bson:"region"`
	Market    string    `bson:"market"`
	Name      string    `bson:"name"`
	Timestamp time.Time `bson:"timestamp"`
	Timestep  time.Time `bson:"timestep"`
}

type timetableDoc struct {
	dims    `bson:",inline"`
	Actions []string               `bson:"actions"`
	Type    marketcfg.ClearingType `bson:"type"`
	Method  marketcfg.Method       `bson:"method"`
	Pricing marketcfg.Pricing      `bson:"pricing"`
	Coupling marketcfg.Coupling    `bson:"coupling"`
}

func toTimetableDoc(r timetable.Row) timetableDoc {
	actions := make([]string, len(r.Actions))
	for i, a := range r.Actions {
		actions[i] = string(a)
	}
	return timetableDoc{
		dims: dims{
			Region: r.Region, Market: r.Market, Name: r.Name,
			Timestamp: r.Timestamp, Timestep: r.Timestep,
		},
		Actions: actions, Type: r.Type, Method: r.Method, Pricing: r.Pricing, Coupling: r.Coupling,
	}
}

func fromTimetableDoc(d timetableDoc) timetable.Row {
	actions := make([]timetable.Action, len(d.Actions))
	for i, a := range d.Actions {
		actions[i] = timetable.Action(a)
	}
	return timetable.Row{
		Region: d.Region, Market: d.Market, Name: d.Name,
		Timestamp: d.Timestamp, Timestep: d.Timestep,
		Type: d.Type, Method: d.Method, Pricing: d.Pricing, Coupling: d.Coupling,
		Actions: actions,
	}
}

type clearedBidDoc struct {
	dims         `bson:",inline"`
	IDAgentIn    string       `bson:"id_agent_in"`
	TradeOrdinal int          `bson:"trade_ordinal"`
	EnergyIn     money.Energy `bson:"energy_in"`
	PricePUIn    money.PU     `bson:"price_pu_in"`
	PriceIn      money.Price  `bson:"price_in"`
}

type clearedOfferDoc struct {
	dims         `bson:",inline"`
	IDAgentOut   string       `bson:"id_agent_out"`
	TradeOrdinal int          `bson:"trade_ordinal"`
	EnergyOut    money.Energy `bson:"energy_out"`
	PricePUOut   money.PU     `bson:"price_pu_out"`
	PriceOut     money.Price  `bson:"price_out"`
}

type unclearedBidDoc struct {
	dims      `bson:",inline"`
	IDAgentIn string       `bson:"id_agent_in"`
	EnergyIn  money.Energy `bson:"energy_in"`
}

type unclearedOfferDoc struct {
	dims       `bson:",inline"`
	IDAgentOut string       `bson:"id_agent_out"`
	EnergyOut  money.Energy `bson:"energy_out"`
}

type transactionDoc struct {
	dims       `bson:",inline"`
	IDAgent    string                   `bson:"id_agent"`
	Ordinal    int                      `bson:"ordinal"`
	Type       clearing.TransactionType `bson:"type_transaction"`
	EnergyIn   money.Energy             `bson:"energy_in"`
	EnergyOut  money.Energy             `bson:"energy_out"`
	PricePUIn  money.PU                 `bson:"price_pu_in"`
	PricePUOut money.PU                 `bson:"price_pu_out"`
	PriceIn    money.Price              `bson:"price_in"`
	PriceOut   money.Price              `bson:"price_out"`
	Quality    int32                    `bson:"quality"`
}

type quoteDoc struct {
	dims       `bson:",inline"`
	IDAgent    string             `bson:"id_agent"`
	EnergyType quote.EnergyType   `bson:"energy_type"`
	EnergyIn   money.Energy       `bson:"energy_in"`
	EnergyOut  money.Energy       `bson:"energy_out"`
	PricePUIn  money.PU           `bson:"price_pu_in"`
	PricePUOut money.PU           `bson:"price_pu_out"`
}

func fromQuoteDoc(d quoteDoc) quote.Quote {
	return quote.Quote{
		IDAgent: d.IDAgent, EnergyType: d.EnergyType,
		EnergyIn: d.EnergyIn, EnergyOut: d.EnergyOut,
		PricePUIn: d.PricePUIn, PricePUOut: d.PricePUOut,
	}
}

type retailerDoc struct {
	dims               `bson:",inline"`
	Retailer           string       `bson:"retailer"`
	EnergyPriceSell    money.PU     `bson:"energy_price_sell"`
	EnergyPriceBuy     money.PU     `bson:"energy_price_buy"`
	EnergyQuantitySell money.Energy `bson:"energy_quantity_sell"`
	EnergyQuantityBuy  money.Energy `bson:"energy_quantity_buy"`
	BalancingPriceSell money.PU     `bson:"balancing_price_sell"`
	BalancingPriceBuy  money.PU     `bson:"balancing_price_buy"`
	GridLocalSell      money.PU     `bson:"grid_local_sell"`
	GridLocalBuy       money.PU     `bson:"grid_local_buy"`
	GridRetailSell     money.PU     `bson:"grid_retail_sell"`
	GridRetailBuy      money.PU     `bson:"grid_retail_buy"`
	LeviesPriceSell    money.PU     `bson:"levies_price_sell"`
	LeviesPriceBuy     money.PU     `bson:"levies_price_buy"`
}

func fromRetailerDoc(d retailerDoc) quote.RetailerRow {
	return quote.RetailerRow{
		Retailer: d.Retailer,
		EnergyPriceSell: d.EnergyPriceSell, EnergyPriceBuy: d.EnergyPriceBuy,
		EnergyQuantitySell: d.EnergyQuantitySell, EnergyQuantityBuy: d.EnergyQuantityBuy,
		BalancingPriceSell: d.BalancingPriceSell, BalancingPriceBuy: d.BalancingPriceBuy,
		GridLocalSell: d.GridLocalSell, GridLocalBuy: d.GridLocalBuy,
		GridRetailSell: d.GridRetailSell, GridRetailBuy: d.GridRetailBuy,
		LeviesPriceSell: d.LeviesPriceSell, LeviesPriceBuy: d.LeviesPriceBuy,
	}
}
