package search

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Candidate is one ICD-11 code returned for an entity.
type Candidate struct {
	Score float64
	Code  string
}

// MarshalJSON encodes a candidate as the pair [score, code].
func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Score, c.Code})
}

// UnmarshalJSON decodes the [score, code] pair.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("candidate: want [score, code], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Score); err != nil {
		return fmt.Errorf("candidate score: %w", err)
	}
	if err := json.Unmarshal(pair[1], &c.Code); err != nil {
		return fmt.Errorf("candidate code: %w", err)
	}
	return nil
}

// rank sorts candidates by descending score, keeping input order for ties, and
// returns at most topN of them.
func rank(candidates []Candidate, topN int) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if topN >= 0 && len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates
}

// Predictions maps normalized entity text to its ranked candidates, remembering
// insertion order. Setting an existing key replaces its value in place.
type Predictions struct {
	keys   []string
	values map[string][]Candidate
}

// NewPredictions returns an empty result map.
func NewPredictions() *Predictions {
	return &Predictions{values: make(map[string][]Candidate)}
}

// Set stores candidates under key. The last write for a key wins.
func (p *Predictions) Set(key string, candidates []Candidate) {
	if p.values == nil {
		p.values = make(map[string][]Candidate)
	}
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	p.values[key] = candidates
}

// Get returns the candidates stored under key.
func (p *Predictions) Get(key string) ([]Candidate, bool) {
	c, ok := p.values[key]
	return c, ok
}

// Keys returns the keys in insertion order.
func (p *Predictions) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Len returns the number of keys.
func (p *Predictions) Len() int {
	return len(p.keys)
}

// MarshalJSON encodes the map as a JSON object with keys in insertion order.
func (p *Predictions) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
