package types

import (
	"encoding/json"
	"fmt"
)

type TriggerType string

const (
	TriggerTypeTime  TriggerType = "time"
	TriggerTypePrice TriggerType = "price"
)

// Trigger is the sealed union of recurring activation conditions. A strategy
// holds at most one trigger.
type Trigger interface {
	TriggerType() TriggerType
}

type TimeTrigger struct {
	CronExpression string `json:"cron_expression"`
}

func (t TimeTrigger) TriggerType() TriggerType { return TriggerTypeTime }

func (t TimeTrigger) MarshalJSON() ([]byte, error) {
	type alias TimeTrigger
	return marshalTrigger(TriggerTypeTime, alias(t))
}

type PriceCondition string

const (
	PriceAbove PriceCondition = "above"
	PriceBelow PriceCondition = "below"
	PriceEqual PriceCondition = "equal"
	PriceRange PriceCondition = "range"
)

type PriceTrigger struct {
	Condition   PriceCondition `json:"condition"`
	SourceValue float64        `json:"source_value"`
	TargetValue float64        `json:"target_value"`
	Asset       *ChainAddress  `json:"asset,omitempty"`
	SourceURL   string         `json:"source_url"`
}

func (t PriceTrigger) TriggerType() TriggerType { return TriggerTypePrice }

func (t PriceTrigger) MarshalJSON() ([]byte, error) {
	type alias PriceTrigger
	return marshalTrigger(TriggerTypePrice, alias(t))
}

func marshalTrigger(t TriggerType, v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"] = json.RawMessage(fmt.Sprintf("%q", t))
	return json.Marshal(fields)
}

type TriggerList []Trigger

type triggerEnvelope struct {
	Type TriggerType `json:"type"`
}

func (l *TriggerList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	triggers := make([]Trigger, 0, len(raws))
	for i, raw := range raws {
		var env triggerEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return fmt.Errorf("trigger %d: %w", i, err)
		}
		var (
			trigger Trigger
			err     error
		)
		switch env.Type {
		case TriggerTypeTime:
			var t TimeTrigger
			err = json.Unmarshal(raw, &t)
			trigger = t
		case TriggerTypePrice:
			var t PriceTrigger
			err = json.Unmarshal(raw, &t)
			trigger = t
		default:
			return fmt.Errorf("trigger %d: unknown type %q", i, env.Type)
		}
		if err != nil {
			return fmt.Errorf("trigger %d (%s): %w", i, env.Type, err)
		}
		triggers = append(triggers, trigger)
	}
	*l = triggers
	return nil
}
