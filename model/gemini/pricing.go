//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package gemini

import (
	"github.com/robraux/autogen/log"
	imodel "github.com/robraux/autogen/model/internal/model"
)

// Price is the USD cost per token of a model. Prompts longer than Threshold
// tokens are billed at the Above rates when Threshold is set.
type Price struct {
	Input       float64
	Output      float64
	Threshold   int
	InputAbove  float64
	OutputAbove float64
}

const perMillion = 1e-6

// fallbackPrice is the gemini-1.0-pro rate, used for unknown models.
var fallbackPrice = Price{Input: 0.5 * perMillion, Output: 1.5 * perMillion}

var prices = imodel.NewTable(map[string]Price{
	"gemini-2.5-pro": {
		Input: 1.25 * perMillion, Output: 10 * perMillion,
		Threshold: 200000, InputAbove: 2.5 * perMillion, OutputAbove: 15 * perMillion,
	},
	"gemini-2.5-flash":      {Input: 0.30 * perMillion, Output: 2.50 * perMillion},
	"gemini-2.5-flash-lite": {Input: 0.10 * perMillion, Output: 0.40 * perMillion},
	"gemini-2.0-flash":      {Input: 0.10 * perMillion, Output: 0.40 * perMillion},
	"gemini-2.0-flash-lite": {Input: 0.075 * perMillion, Output: 0.30 * perMillion},
	"gemini-1.5-pro": {
		Input: 3.5 * perMillion, Output: 10.5 * perMillion,
		Threshold: 128000, InputAbove: 7 * perMillion, OutputAbove: 21 * perMillion,
	},
	"gemini-1.5-flash": {
		Input: 0.35 * perMillion, Output: 1.05 * perMillion,
		Threshold: 128000, InputAbove: 0.7 * perMillion, OutputAbove: 2.1 * perMillion,
	},
	"gemini-1.5-flash-8b":   {Input: 0.0375 * perMillion, Output: 0.15 * perMillion},
	"gemini-1.0-pro":        fallbackPrice,
	"gemini-1.0-pro-vision": fallbackPrice,
	"gemini-pro":            fallbackPrice,
	"gemini-pro-vision":     fallbackPrice,
})

// RegisterPricing adds or overrides the price of modelName and of every model
// name it prefixes that has no closer entry.
func RegisterPricing(modelName string, p Price) {
	prices.Set(modelName, p)
}

// LookupPrice returns the price of modelName and whether it was known.
func LookupPrice(modelName string) (Price, bool) {
	return prices.Lookup(modelName)
}

// CalculateCost returns the USD cost of a call. Unknown models are billed at
// the gemini-1.0-pro rate with a warning.
func CalculateCost(modelName string, promptTokens, completionTokens int) float64 {
	p, ok := prices.Lookup(modelName)
	if !ok {
		log.Warnf("gemini: cost for model %q is unknown, using gemini-1.0-pro pricing", modelName)
		p = fallbackPrice
	}
	in, out := p.Input, p.Output
	if p.Threshold > 0 && promptTokens > p.Threshold {
		in, out = p.InputAbove, p.OutputAbove
	}
	return in*float64(promptTokens) + out*float64(completionTokens)
}
