package venue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Schedule maps day-and-hour-range keys (ex. "*:6-15", "su:6-23") to prices.
// It is a slice rather than a map because rule order is significant for rate lookup
// and is preserved across YAML and JSON round trips.
type Schedule []Rule

// Rule is one entry of a Schedule.
type Rule struct {
	Key   string
	Price Price
}

// Get returns the price of the first rule with the given key.
func (s Schedule) Get(key string) (Price, bool) {
	for _, r := range s {
		if r.Key == key {
			return r.Price, true
		}
	}
	return Price{}, false
}

func (s Schedule) Equal(other Schedule) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s Schedule) Clone() Schedule {
	if s == nil {
		return nil
	}
	return append(Schedule{}, s...)
}

func (s *Schedule) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*s = Schedule{}
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: schedule must be a mapping", value.Line)
	}
	out := make(Schedule, 0, len(value.Content)/2)
	for i := 0; i+1 < len(value.Content); i += 2 {
		var price Price
		err := price.UnmarshalYAML(value.Content[i+1])
		if err != nil {
			return err
		}
		out = append(out, Rule{Key: value.Content[i].Value, Price: price})
	}
	*s = out
	return nil
}

func (s Schedule) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if len(s) == 0 {
		node.Style = yaml.FlowStyle
	}
	for _, r := range s {
		value, err := r.Price.MarshalYAML()
		if err != nil {
			return nil, err
		}
		node.Content = append(
			node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: r.Key},
			value.(*yaml.Node),
		)
	}
	return node, nil
}

func (s *Schedule) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Schedule{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schedule must be a JSON object, got %v", tok)
	}

	out := Schedule{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected schedule key %v", tok)
		}
		var raw json.RawMessage
		err = dec.Decode(&raw)
		if err != nil {
			return fmt.Errorf("schedule value of %q: %w", key, err)
		}
		var price Price
		err = price.UnmarshalJSON(raw)
		if err != nil {
			return fmt.Errorf("schedule value of %q: %w", key, err)
		}
		out = append(out, Rule{Key: key, Price: price})
	}
	_, err = dec.Token()
	if err != nil {
		return err
	}

	*s = out
	return nil
}

func (s Schedule) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(r.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := r.Price.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Price is an opaque price value, it remembers whether it was written as a number
// or as a string so it can be written back the same way.
type Price struct {
	Text   string
	Number bool
}

// StringPrice is the constructor for a price written as a string.
func StringPrice(text string) Price {
	return Price{Text: text}
}

func (p Price) String() string {
	return p.Text
}

func (p *Price) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a scalar", value.Line)
	}
	*p = Price{
		Text:   value.Value,
		Number: value.Tag == "!!int" || value.Tag == "!!float",
	}
	return nil
}

func (p Price) MarshalYAML() (any, error) {
	if p.Number {
		return &yaml.Node{Kind: yaml.ScalarNode, Value: p.Text}, nil
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Text}, nil
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty price")
	}
	switch data[0] {
	case '"':
		var text string
		err := json.Unmarshal(data, &text)
		if err != nil {
			return err
		}
		*p = Price{Text: text}
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var num json.Number
		err := json.Unmarshal(data, &num)
		if err != nil {
			return err
		}
		*p = Price{Text: num.String(), Number: true}
		return nil
	}
	return fmt.Errorf("price must be a string or a number, got %s", data)
}

func (p Price) MarshalJSON() ([]byte, error) {
	if p.Number {
		return []byte(p.Text), nil
	}
	return json.Marshal(p.Text)
}
