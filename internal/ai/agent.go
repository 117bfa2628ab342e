// Package ai drafts receive notes for purchase orders with discrepancies.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"branch-supply/internal/core"
)

// ReceiveNoteSuggestion is a draft receive note. It is never stored by itself;
// the receiving user edits it and submits it with the confirm call.
type ReceiveNoteSuggestion struct {
	Note       string   `json:"note" jsonschema:"description=Receive note in the language of the product names, at most three sentences"`
	Highlights []string `json:"highlights" jsonschema:"description=One short phrase per line with a shortfall"`
	Confidence float64  `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	Generated  bool     `json:"-"`
}

// NoteDrafter produces receive-note drafts.
type NoteDrafter interface {
	SuggestReceiveNote(ctx context.Context, po *core.PurchaseOrder, lines []core.Discrepancy) (*ReceiveNoteSuggestion, error)
}

type Agent struct {
	client *openai.Client
	model  shared.ResponsesModel
}

// NewAgent returns an Agent. An empty model selects gpt-4o.
func NewAgent(apiKey, model string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	m := shared.ResponsesModel(shared.ChatModelGPT4o)
	if model != "" {
		m = shared.ResponsesModel(model)
	}
	return &Agent{client: &client, model: m}
}

func (a *Agent) SuggestReceiveNote(ctx context.Context, po *core.PurchaseOrder, lines []core.Discrepancy) (*ReceiveNoteSuggestion, error) {
	prompt := fmt.Sprintf(`You help branch staff record what arrived from the central warehouse.
Write a short, factual receive note for purchase order #%d delivered to %s.
Rules:
1. Mention every line listed below with its shortfall in the product's unit.
2. Do not invent causes; if no reason is given say the quantity did not arrive.
3. Keep the note under three sentences.
4. Provide a confidence score (0.0-1.0).

Lines received short (product | unit | ordered | shipped | received):
%s`, po.ID, po.DestinationBranchName, describeLines(lines))

	schemaMap, err := SchemaMap(ReceiveNoteSuggestion{})
	if err != nil {
		return nil, err
	}

	params := responses.ResponseNewParams{
		Model: a.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "receive_note_suggestion",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A draft receive note for a purchase order with missing quantities"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var s ReceiveNoteSuggestion
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	s.Note = strings.TrimSpace(s.Note)
	if s.Note == "" {
		return nil, fmt.Errorf("model returned an empty note")
	}
	s.Generated = true
	return &s, nil
}

func describeLines(lines []core.Discrepancy) string {
	var b strings.Builder
	for _, d := range lines {
		fmt.Fprintf(&b, "- %s | %s | %d | %d | %d\n", d.ProductName, d.Unit, d.Ordered, d.Shipped, d.Received)
	}
	return b.String()
}

// DraftReceiveNote builds a plain receive note without a model. It is used
// when no API key is configured or the model call fails.
func DraftReceiveNote(po *core.PurchaseOrder, lines []core.Discrepancy) *ReceiveNoteSuggestion {
	if len(lines) == 0 {
		return &ReceiveNoteSuggestion{Note: "All items received complete.", Highlights: []string{}, Confidence: 1}
	}
	parts := make([]string, 0, len(lines))
	for _, d := range lines {
		parts = append(parts, fmt.Sprintf("%s: %d %s missing (ordered %d, received %d)",
			d.ProductName, d.Missing(), d.Unit, d.Ordered, d.Received))
	}
	return &ReceiveNoteSuggestion{
		Note:       "Received short: " + strings.Join(parts, "; ") + ".",
		Highlights: parts,
		Confidence: 1,
	}
}

// Schema reflects v into an inline JSON Schema without additional properties.
func Schema(v any) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(v)
}

// SchemaMap is Schema decoded into a generic map, the form the Responses API expects.
func SchemaMap(v any) (map[string]any, error) {
	schemaJSON, err := json.Marshal(Schema(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}
	return schemaMap, nil
}
