package bus

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

var factories = map[Action]func() Message{
	ActionViewportDimensions: func() Message { return &ViewportDimensions{} },
	ActionInitiateTutorial:   func() Message { return &InitiateTutorial{} },
	ActionStepCompleted:      func() Message { return &StepCompleted{} },
	ActionDisplayStep:        func() Message { return &DisplayStep{} },
	ActionFindElementInDOM:   func() Message { return &FindElementInDOM{} },
	ActionFindElementResult:  func() Message { return &FindElementResult{} },
	ActionEndTutorial:        func() Message { return &EndTutorial{} },
	ActionPageNavigated:      func() Message { return &PageNavigated{} },
	ActionPageReady:          func() Message { return &PageReady{} },
	ActionCancelTutorial:     func() Message { return &CancelTutorial{} },
	ActionGetStatus:          func() Message { return &GetStatus{} },
	ActionTutorialStatus:     func() Message { return &TutorialStatus{} },
	ActionError:              func() Message { return &ErrorReply{} },
}

// Encode serializes a message as a JSON object tagged with its "action" field.
func Encode(msg Message) ([]byte, error) {
	fields, err := toMap(msg)
	if err != nil {
		return nil, err
	}
	fields["action"] = string(msg.Action())
	return json.Marshal(fields)
}

// Decode parses a JSON object produced by Encode (or by the page script).
func Decode(data []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return DecodeMap(raw)
}

// DecodeMap builds a message from loosely typed fields.
// Numbers may arrive as strings and vice versa; the page script is not strict about it.
func DecodeMap(raw map[string]any) (Message, error) {
	tag, _ := raw["action"].(string)
	factory, ok := factories[Action(tag)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag)
	}
	msg := factory()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           msg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", tag, err)
	}
	return deref(msg), nil
}

// toMap goes through JSON so the nested domain types keep their wire names.
func toMap(msg Message) (map[string]any, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Action(), err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// deref returns messages by value so handlers can switch on the concrete types.
func deref(msg Message) Message {
	switch m := msg.(type) {
	case *ViewportDimensions:
		return *m
	case *InitiateTutorial:
		return *m
	case *StepCompleted:
		return *m
	case *DisplayStep:
		return *m
	case *FindElementInDOM:
		return *m
	case *FindElementResult:
		return *m
	case *EndTutorial:
		return *m
	case *PageNavigated:
		return *m
	case *PageReady:
		return *m
	case *CancelTutorial:
		return *m
	case *GetStatus:
		return *m
	case *TutorialStatus:
		return *m
	case *ErrorReply:
		return *m
	}
	return msg
}

type wireEnvelope struct {
	From    Address         `json:"from"`
	To      Address         `json:"to"`
	Message json.RawMessage `json:"message"`
}

// EncodeEnvelope serializes an envelope for transports that cross process boundaries.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	body, err := Encode(env.Message)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{From: env.From, To: env.To, Message: body})
}

// DecodeEnvelope parses an envelope written by EncodeEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	msg, err := Decode(w.Message)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{From: w.From, To: w.To, Message: msg}, nil
}
