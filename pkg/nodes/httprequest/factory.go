// Package httprequest implements the HTTP_REQUEST node: one outbound HTTP call
// with an optional post-condition evaluated against the response.
package httprequest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campushq/pulse/pkg/expression"
	"github.com/campushq/pulse/pkg/models"
	"github.com/campushq/pulse/pkg/protocol"
)

const defaultTimeoutSeconds = 30

// Config is the parsed HTTP_REQUEST node configuration.
type Config struct {
	URL            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	Body           string            `json:"body,omitempty"`
	BodyExpression string            `json:"body_expression,omitempty"` // Evaluated against run context when set
	TimeoutSeconds int               `json:"timeout_seconds"`
	Condition      string            `json:"condition,omitempty"`  // Post-condition over status/body/json
	ResultKey      string            `json:"result_key,omitempty"` // Context key for the response payload
}

// Factory builds HTTP_REQUEST executors.
type Factory struct {
	client    protocol.HTTPClient
	evaluator expression.Evaluator
}

func NewFactory(client protocol.HTTPClient, evaluator expression.Evaluator) *Factory {
	return &Factory{client: client, evaluator: evaluator}
}

func (f *Factory) Kind() models.NodeKind {
	return models.NodeKindHTTPRequest
}

func (f *Factory) Create(_ context.Context, node *models.NodeConfig) (protocol.NodeExecutor, error) {
	cfg := Config{
		Method:         "GET",
		Headers:        make(map[string]string),
		TimeoutSeconds: defaultTimeoutSeconds,
	}

	url, ok := node.Config["url"].(string)
	if !ok || url == "" {
		return nil, errors.New("missing required field 'url'")
	}

	cfg.URL = url

	if method, ok := node.Config["method"].(string); ok {
		cfg.Method = strings.ToUpper(method)
	}

	if !validMethods[cfg.Method] {
		return nil, fmt.Errorf("invalid HTTP method: %s", cfg.Method)
	}

	if headers, ok := node.Config["headers"].(map[string]any); ok {
		for k, v := range headers {
			if strVal, ok := v.(string); ok {
				cfg.Headers[k] = strVal
			}
		}
	}

	if body, ok := node.Config["body"].(string); ok {
		cfg.Body = body
	}

	if bodyExpr, ok := node.Config["body_expression"].(string); ok {
		cfg.BodyExpression = bodyExpr
	}

	if timeout, ok := node.Config["timeout_seconds"].(float64); ok {
		if timeout < 1 || timeout > 300 {
			return nil, errors.New("timeout_seconds must be between 1 and 300")
		}

		cfg.TimeoutSeconds = int(timeout)
	}

	if condition, ok := node.Config["condition"].(string); ok {
		cfg.Condition = condition
	}

	if resultKey, ok := node.Config["result_key"].(string); ok {
		cfg.ResultKey = resultKey
	}

	return &Executor{
		node:      node,
		config:    cfg,
		client:    f.client,
		evaluator: f.evaluator,
	}, nil
}

var validMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url":    map[string]any{"type": "string", "format": "uri"},
			"method": map[string]any{"type": "string", "enum": []any{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
			},
			"body":            map[string]any{"type": "string"},
			"body_expression": map[string]any{"type": "string"},
			"timeout_seconds": map[string]any{"type": "number", "minimum": 1, "maximum": 300},
			"condition":       map[string]any{"type": "string"},
			"result_key":      map[string]any{"type": "string"},
		},
		"required": []any{"url"},
	}
}
