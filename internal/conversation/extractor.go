package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/wolfman30/chatcommerce/internal/customers"
)

const extractionPrompt = `You extract order details from a customer's WhatsApp message for an Indian online store.
Return only a JSON object with these keys: "name", "phone", "email", "address", "items_summary", "quantity".
Use an empty string for any value the message does not contain and 0 for an unknown quantity.
Never invent values.`

// LLMOrderExtractor parses free-text order details with an LLM.
type LLMOrderExtractor struct {
	llm   LLMClient
	model string
}

func NewLLMOrderExtractor(llm LLMClient, model string) *LLMOrderExtractor {
	if llm == nil {
		panic("conversation: llm client required")
	}
	return &LLMOrderExtractor{llm: llm, model: model}
}

// ParseOrderDetails returns nil when the message carries no usable field.
func (e *LLMOrderExtractor) ParseOrderDetails(ctx context.Context, text string) (*customers.OrderDetails, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:       e.model,
		System:      []string{extractionPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: text}},
		MaxTokens:   400,
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: extract order details: %w", err)
	}
	return parseExtraction(resp.Text)
}

type extractedFields struct {
	Name         string          `json:"name"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email"`
	Address      string          `json:"address"`
	ItemsSummary string          `json:"items_summary"`
	Quantity     json.RawMessage `json:"quantity"`
}

// parseExtraction reads the JSON object between the first "{" and the last "}".
func parseExtraction(raw string) (*customers.OrderDetails, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, nil
	}
	var fields extractedFields
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("conversation: decode extraction: %w", err)
	}
	details := customers.OrderDetails{}.Merge(customers.OrderDetails{
		Name:         fields.Name,
		Phone:        fields.Phone,
		Email:        fields.Email,
		Address:      fields.Address,
		ItemsSummary: fields.ItemsSummary,
		Quantity:     parseQuantity(fields.Quantity),
	})
	if details == (customers.OrderDetails{}) {
		return nil, nil
	}
	return &details, nil
}

// models return quantity as a number or a numeric string
func parseQuantity(raw json.RawMessage) int {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
