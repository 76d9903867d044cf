// Copyright (C) 2025 The tau authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/pedronobrol/tau/services/tau/translate"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultMaxTokens   = 600
	defaultTemperature = 0.2

	// Tails of prover output forwarded to the oracle. Why3 puts verdicts at
	// the end; the head is noise.
	refineOutputTail   = 4000
	classifyOutputTail = 2000
)

// Client is the live LLM oracle over an OpenAI-compatible chat API.
type Client struct {
	api    *openai.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient builds the live oracle. The API key is required; all other
// fields default.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("oracle: %w: no API key", ErrUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}

	cfg.Logger.Info("initializing LLM oracle", "model", cfg.Model)
	return &Client{
		api:    openai.NewClientWithConfig(apiCfg),
		cfg:    cfg,
		logger: cfg.Logger,
	}, nil
}

// Propose asks for an initial contract.
func (c *Client) Propose(ctx context.Context, req ContractRequest) (*translate.LoopContract, error) {
	text, err := c.call(ctx, proposePrompt, map[string]any{
		"function_name":   req.FunctionName,
		"function_source": req.Source,
		"requires":        req.Requires,
		"ensures":         req.Ensures,
	})
	if err != nil {
		return nil, err
	}
	return parseContract(text)
}

// Refine asks for a revised contract given the prover's raw output.
func (c *Client) Refine(ctx context.Context, req RefineRequest) (*translate.LoopContract, error) {
	text, err := c.call(ctx, refinePrompt, map[string]any{
		"function_name":   req.FunctionName,
		"function_source": req.Source,
		"requires":        req.Requires,
		"ensures":         req.Ensures,
		"current_contract": map[string]any{
			"invariants": req.Current.Invariants,
			"variant":    req.Current.Variant,
		},
		"prover_output": truncateTail(req.ProverOutput, refineOutputTail),
	})
	if err != nil {
		return nil, err
	}
	return parseContract(text)
}

// Classify asks the bug-classification question.
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*BugAnalysis, error) {
	payload := map[string]any{
		"function_name":   req.FunctionName,
		"function_source": req.Source,
		"requires":        req.Requires,
		"ensures":         req.Ensures,
	}
	if req.ProverOutput != "" {
		payload["prover_output"] = truncateTail(req.ProverOutput, classifyOutputTail)
	}
	text, err := c.call(ctx, classifyPrompt, payload)
	if err != nil {
		return nil, err
	}
	return parseBugAnalysis(text)
}

func (c *Client) call(ctx context.Context, system string, payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("oracle: %w: %v", ErrUnavailable, err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: string(data)},
		},
	})
	if err != nil {
		c.logger.Error("oracle call failed", "error", err)
		return "", fmt.Errorf("oracle: %w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("oracle returned no choices")
		return "", fmt.Errorf("oracle: %w: empty response", ErrUnavailable)
	}
	c.logger.Debug("oracle responded", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
