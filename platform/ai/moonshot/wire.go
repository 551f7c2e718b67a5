package moonshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ErrNoChoices is returned when the API answers without any choice.
var ErrNoChoices = errors.New("moonshot: response has no choices")

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   int32         `json:"max_tokens,omitempty"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function functionDecl `json:"function"`
}

type functionDecl struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// encodeRequest flattens genai contents into chat messages. A content that
// carries function responses yields one tool message per response, in part
// order, after any text or calls of the same content.
func encodeRequest(modelName string, req *model.LLMRequest) chatRequest {
	out := chatRequest{Model: modelName}

	if cfg := req.Config; cfg != nil {
		if system := joinText(cfg.SystemInstruction); system != "" {
			out.Messages = append(out.Messages, chatMessage{Role: "system", Content: system})
		}
		out.Temperature = cfg.Temperature
		out.MaxTokens = cfg.MaxOutputTokens
		out.Tools = encodeTools(cfg.Tools)
		if len(out.Tools) > 0 {
			out.ToolChoice = "auto"
		}
	}

	for _, content := range req.Contents {
		if content == nil {
			continue
		}
		out.Messages = append(out.Messages, encodeContent(content)...)
	}
	return out
}

func encodeContent(content *genai.Content) []chatMessage {
	role := "user"
	if content.Role == genai.RoleModel {
		role = "assistant"
	}

	var (
		text    strings.Builder
		calls   []toolCall
		results []chatMessage
	)
	for _, part := range content.Parts {
		switch {
		case part == nil:
		case part.FunctionResponse != nil:
			payload, _ := json.Marshal(part.FunctionResponse.Response)
			results = append(results, chatMessage{
				Role:       "tool",
				ToolCallID: part.FunctionResponse.ID,
				Name:       part.FunctionResponse.Name,
				Content:    string(payload),
			})
		case part.FunctionCall != nil:
			args, _ := json.Marshal(part.FunctionCall.Args)
			calls = append(calls, toolCall{
				ID:       part.FunctionCall.ID,
				Type:     "function",
				Function: functionCall{Name: part.FunctionCall.Name, Arguments: string(args)},
			})
		default:
			appendLine(&text, part.Text)
		}
	}

	var out []chatMessage
	if text.Len() > 0 || len(calls) > 0 {
		out = append(out, chatMessage{Role: role, Content: text.String(), ToolCalls: calls})
	}
	return append(out, results...)
}

func encodeTools(tools []*genai.Tool) []chatTool {
	var out []chatTool
	for _, tool := range tools {
		if tool == nil {
			continue
		}
		for _, decl := range tool.FunctionDeclarations {
			if decl == nil || decl.Name == "" {
				continue
			}
			var params any
			if decl.ParametersJsonSchema != nil {
				params = decl.ParametersJsonSchema
			} else if decl.Parameters != nil {
				params = decl.Parameters
			}
			out = append(out, chatTool{
				Type:     "function",
				Function: functionDecl{Name: decl.Name, Description: decl.Description, Parameters: params},
			})
		}
	}
	return out
}

// decodeResponse converts the first choice into a model response. Tool call
// arguments that are not valid JSON are passed through under "_raw" so the
// caller can report a validation error back to the model.
func decodeResponse(body []byte) (*model.LLMResponse, error) {
	var res chatResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("moonshot: decode response: %w", err)
	}
	if res.Error != nil {
		return nil, fmt.Errorf("moonshot: %s: %s", res.Error.Type, res.Error.Message)
	}
	if len(res.Choices) == 0 {
		return nil, ErrNoChoices
	}

	msg := res.Choices[0].Message
	parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
	if strings.TrimSpace(msg.Content) != "" {
		parts = append(parts, genai.NewPartFromText(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				args = map[string]any{"_raw": raw}
			}
		}
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		}})
	}

	out := &model.LLMResponse{
		Content:      &genai.Content{Role: genai.RoleModel, Parts: parts},
		TurnComplete: true,
	}
	if u := res.Usage; u != nil {
		out.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     u.PromptTokens,
			CandidatesTokenCount: u.CompletionTokens,
			TotalTokenCount:      u.TotalTokens,
		}
	}
	return out, nil
}

func joinText(content *genai.Content) string {
	if content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range content.Parts {
		if part != nil {
			appendLine(&b, part.Text)
		}
	}
	return b.String()
}

func appendLine(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(text)
}
