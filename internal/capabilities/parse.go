package capabilities

import "encoding/json"

// ParseResult is the outcome of BestEffortParse: either Structured or Raw.
type ParseResult interface {
	parseResult()
}

// Structured holds provider output that is a complete JSON document.
type Structured struct {
	Value json.RawMessage
}

// Raw holds provider output that is not JSON, unchanged.
type Raw struct {
	Text string
}

func (Structured) parseResult() {}
func (Raw) parseResult()        {}

// BestEffortParse classifies provider output without altering it. Raw text
// that later travels as a JSON string keeps every valid UTF-8 sequence, but
// each byte outside UTF-8 comes back as U+FFFD.
func BestEffortParse(text string) ParseResult {
	if json.Valid([]byte(text)) {
		return Structured{Value: json.RawMessage(text)}
	}
	return Raw{Text: text}
}

type rawAnalysis struct {
	RawAnalysis string `json:"rawAnalysis"`
}

func analysisDocument(text string) (json.RawMessage, error) {
	switch parsed := BestEffortParse(text).(type) {
	case Structured:
		return parsed.Value, nil
	case Raw:
		return json.Marshal(rawAnalysis{RawAnalysis: parsed.Text})
	default:
		return nil, nil
	}
}
