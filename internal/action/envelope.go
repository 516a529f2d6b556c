// Package action is the agent-action surface: it receives one inbound
// function-call request, dispatches it to the matching memory handler and
// wraps the result back into the caller's response envelope.
package action

import "strings"

// Parameter is one name/value pair in the inbound request.
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestBody is the nested write-operation payload.
type RequestBody struct {
	Content map[string]BodyContent `json:"content"`
}

// BodyContent holds the property list for one content type.
type BodyContent struct {
	Properties []Parameter `json:"properties"`
}

// Request is the inbound action envelope.
type Request struct {
	ActionGroup string       `json:"actionGroup"`
	Function    string       `json:"function"`
	Parameters  []Parameter  `json:"parameters"`
	RequestBody *RequestBody `json:"requestBody,omitempty"`
}

// Params returns the flat parameter list as a map.
func (r Request) Params() map[string]string {
	return flatten(r.Parameters)
}

// Body returns the application/json body properties as a map, empty when the
// request carries no body.
func (r Request) Body() map[string]string {
	if r.RequestBody == nil {
		return map[string]string{}
	}
	content, ok := r.RequestBody.Content["application/json"]
	if !ok {
		return map[string]string{}
	}
	return flatten(content.Properties)
}

func flatten(params []Parameter) map[string]string {
	out := make(map[string]string, len(params))
	for _, p := range params {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			continue
		}
		out[name] = p.Value
	}
	return out
}

// Response is the outbound envelope. The handler result travels as a
// JSON-encoded string inside the TEXT body.
type Response struct {
	MessageVersion string       `json:"messageVersion"`
	Response       FunctionCall `json:"response"`
}

type FunctionCall struct {
	ActionGroup      string           `json:"actionGroup"`
	Function         string           `json:"function"`
	FunctionResponse FunctionResponse `json:"functionResponse"`
}

type FunctionResponse struct {
	ResponseBody ResponseBody `json:"responseBody"`
}

type ResponseBody struct {
	Text TextBody `json:"TEXT"`
}

type TextBody struct {
	Body string `json:"body"`
}

const messageVersion = "1.0"

func newResponse(actionGroup, function, body string) Response {
	return Response{
		MessageVersion: messageVersion,
		Response: FunctionCall{
			ActionGroup: actionGroup,
			Function:    function,
			FunctionResponse: FunctionResponse{
				ResponseBody: ResponseBody{
					Text: TextBody{Body: body},
				},
			},
		},
	}
}
