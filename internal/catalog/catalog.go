// Package catalog provides the instrument catalog used to seed the price feed.
//
// The built-in defaults mirror a small basket of A-share large caps with seed
// prices. A YAML file can replace the defaults entirely, which keeps the
// simulator usable offline and the instrument universe configurable without
// a rebuild.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/XavierD3728/stockquant/internal/model"

	"github.com/shopspring/decimal"
)

// Entry is one catalog row. SeedPrice becomes the instrument's initial last
// price; PrevPrice is the prior session close (falls back to SeedPrice).
type Entry struct {
	Code      string  `yaml:"code"`
	Name      string  `yaml:"name"`
	Industry  string  `yaml:"industry"`
	Market    string  `yaml:"market"`
	SeedPrice float64 `yaml:"seed_price"`
	PrevPrice float64 `yaml:"prev_price"`
}

// Load returns the catalog entries from path, or the built-in defaults when
// path is empty.
func Load(path string) ([]Entry, error) {
	if path == "" {
		return Defaults(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no instruments", path)
	}
	for i, e := range entries {
		if e.Code == "" || e.SeedPrice <= 0 {
			return nil, fmt.Errorf("catalog entry %d: code and positive seed_price required", i)
		}
	}
	return entries, nil
}

// Instruments converts catalog entries to model instruments.
func Instruments(entries []Entry) []model.Instrument {
	out := make([]model.Instrument, 0, len(entries))
	for _, e := range entries {
		prev := e.PrevPrice
		if prev <= 0 {
			prev = e.SeedPrice
		}
		out = append(out, model.Instrument{
			Code:      e.Code,
			Name:      e.Name,
			Industry:  e.Industry,
			Market:    e.Market,
			LastPrice: decimal.NewFromFloat(e.SeedPrice).Round(2),
			PrevPrice: decimal.NewFromFloat(prev).Round(2),
		})
	}
	return out
}

// Defaults returns the built-in instrument basket.
func Defaults() []Entry {
	return []Entry{
		{Code: "000001.SZ", Name: "Ping An Bank", Industry: "Banking", Market: "Main Board", SeedPrice: 10.25, PrevPrice: 10.15},
		{Code: "000002.SZ", Name: "Vanke A", Industry: "Real Estate", Market: "Main Board", SeedPrice: 15.80, PrevPrice: 15.60},
		{Code: "000063.SZ", Name: "ZTE", Industry: "Telecom Equipment", Market: "Main Board", SeedPrice: 28.50, PrevPrice: 28.20},
		{Code: "000066.SZ", Name: "Great Wall Tech", Industry: "Computer Hardware", Market: "Main Board", SeedPrice: 12.30, PrevPrice: 12.20},
		{Code: "000333.SZ", Name: "Midea Group", Industry: "Home Appliances", Market: "Main Board", SeedPrice: 45.20, PrevPrice: 44.80},
		{Code: "000651.SZ", Name: "Gree Electric", Industry: "Home Appliances", Market: "Main Board", SeedPrice: 35.80, PrevPrice: 35.50},
		{Code: "000725.SZ", Name: "BOE Technology", Industry: "Optoelectronics", Market: "Main Board", SeedPrice: 4.25, PrevPrice: 4.20},
		{Code: "000768.SZ", Name: "AVIC Aircraft", Industry: "Aerospace", Market: "Main Board", SeedPrice: 25.60, PrevPrice: 25.40},
		{Code: "000858.SZ", Name: "Wuliangye", Industry: "Liquor", Market: "Main Board", SeedPrice: 180.50, PrevPrice: 179.80},
		{Code: "000977.SZ", Name: "Inspur", Industry: "Computer Hardware", Market: "Main Board", SeedPrice: 32.40, PrevPrice: 32.20},
		{Code: "600000.SH", Name: "SPD Bank", Industry: "Banking", Market: "Main Board", SeedPrice: 8.25},
		{Code: "600036.SH", Name: "China Merchants Bank", Industry: "Banking", Market: "Main Board", SeedPrice: 35.80},
		{Code: "600276.SH", Name: "Hengrui Medicine", Industry: "Pharmaceuticals", Market: "Main Board", SeedPrice: 85.60},
		{Code: "600519.SH", Name: "Kweichow Moutai", Industry: "Liquor", Market: "Main Board", SeedPrice: 1800.50},
		{Code: "600745.SH", Name: "Wingtech", Industry: "Semiconductors", Market: "Main Board", SeedPrice: 95.30},
		{Code: "601318.SH", Name: "Ping An Insurance", Industry: "Insurance", Market: "Main Board", SeedPrice: 45.20},
		{Code: "601398.SH", Name: "ICBC", Industry: "Banking", Market: "Main Board", SeedPrice: 5.25},
		{Code: "601888.SH", Name: "China Duty Free", Industry: "Retail", Market: "Main Board", SeedPrice: 180.50},
		{Code: "603501.SH", Name: "Will Semiconductor", Industry: "Semiconductors", Market: "Main Board", SeedPrice: 125.30},
		{Code: "688981.SH", Name: "SMIC", Industry: "Semiconductors", Market: "STAR Market", SeedPrice: 45.80},
	}
}
