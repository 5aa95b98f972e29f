//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//


package openai

import (
	"github.com/robraux/autogen/log"
	imodel "github.com/robraux/autogen/model/internal/model"
)

// Price is the USD cost per prompt and completion token.
type Price struct {
	Input  float64
	Output float64
}

const perMillion = 1e-6

var prices = imodel.NewTable(map[string]Price{
	"gpt-4o":        {Input: 2.5 * perMillion, Output: 10 * perMillion},
	"gpt-4o-mini":   {Input: 0.15 * perMillion, Output: 0.6 * perMillion},
	"gpt-4.1":       {Input: 2 * perMillion, Output: 8 * perMillion},
	"gpt-4.1-mini":  {Input: 0.4 * perMillion, Output: 1.6 * perMillion},
	"gpt-4.1-nano":  {Input: 0.1 * perMillion, Output: 0.4 * perMillion},
	"gpt-4-turbo":   {Input: 10 * perMillion, Output: 30 * perMillion},
	"gpt-4":         {Input: 30 * perMillion, Output: 60 * perMillion},
	"gpt-3.5-turbo": {Input: 0.5 * perMillion, Output: 1.5 * perMillion},
	"o1":            {Input: 15 * perMillion, Output: 60 * perMillion},
	"o3-mini":       {Input: 1.1 * perMillion, Output: 4.4 * perMillion},
})

// RegisterPricing adds or overrides the price of modelName.
func RegisterPricing(modelName string, p Price) {
	prices.Set(modelName, p)
}

// CalculateCost returns the USD cost of a call. Unknown models cost zero
// with a warning.
func CalculateCost(modelName string, promptTokens, completionTokens int) float64 {
	p, ok := prices.Lookup(modelName)
	if !ok {
		log.Warnf("openai: cost for model %q is unknown, reporting zero", modelName)
		return 0
	}
	return p.Input*float64(promptTokens) + p.Output*float64(completionTokens)
}
