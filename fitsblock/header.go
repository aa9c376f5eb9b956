// Package fitsblock reads and writes the FITS-style block container used by
// redmonster archives and result files: 2880-byte blocks, 80-character
// header cards, and big-endian binary payloads. It implements only the
// subset of the format this pipeline produces (primary and extension image
// HDUs of floats, and binary tables with atomic columns).
package fitsblock

import (
	"fmt"
	"strconv"
	"strings"
)

// BlockSize is the FITS block length in bytes. Headers and data payloads
// are both padded to a whole number of blocks.
const BlockSize = 2880

const (
	cardLength    = 80
	cardsPerBlock = BlockSize / cardLength
)

// Card is one header entry: a key of at most 8 ASCII characters, a typed
// value (int, float64, bool or string), and an optional comment.
type Card struct {
	Key     string
	Value   interface{}
	Comment string
}

// Header is an ordered sequence of cards with by-key lookup. Keys are
// unique; Set replaces the value of an existing key in place, preserving
// the original card order.
type Header struct {
	cards []Card
	index map[string]int
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{index: make(map[string]int)}
}

// Set appends a card, or replaces the existing card with the same key.
func (h *Header) Set(key string, value interface{}, comment string) {
	if i, ok := h.index[key]; ok {
		h.cards[i].Value = value
		h.cards[i].Comment = comment
		return
	}
	h.index[key] = len(h.cards)
	h.cards = append(h.cards, Card{Key: key, Value: value, Comment: comment})
}

// Has reports whether the key is present.
func (h *Header) Has(key string) bool {
	_, ok := h.index[key]
	return ok
}

// HasAll reports whether every one of the given keys is present. An empty
// key list is vacuously satisfied.
func (h *Header) HasAll(keys ...string) bool {
	for _, k := range keys {
		if !h.Has(k) {
			return false
		}
	}
	return true
}

// Get returns the raw value for a key.
func (h *Header) Get(key string) (interface{}, bool) {
	i, ok := h.index[key]
	if !ok {
		return nil, false
	}
	return h.cards[i].Value, true
}

// Int returns the value for a key as an int.
func (h *Header) Int(key string) (int, bool) {
	v, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	n, ok := v.(int)
	return n, ok
}

// Float returns the value for a key as a float64. Integer-valued cards
// are accepted, since a float written without a fractional part reads
// back as an int.
func (h *Header) Float(key string) (float64, bool) {
	v, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

// Str returns the value for a key as a string.
func (h *Header) Str(key string) (string, bool) {
	v, ok := h.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Cards returns the cards in order. The slice is shared with the header.
func (h *Header) Cards() []Card { return h.cards }

// Len returns the number of cards.
func (h *Header) Len() int { return len(h.cards) }

// formatFloat renders a float with the shortest representation that
// parses back to the same bits, forcing a decimal point so the value
// stays float-typed on reread.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".E") {
		s += ".0"
	}
	return s
}

// formatCard renders one 80-byte card image.
func formatCard(c Card) ([]byte, error) {
	if len(c.Key) > 8 {
		return nil, fmt.Errorf("fitsblock: key '%s' longer than 8 characters", c.Key)
	}
	var value string
	switch v := c.Value.(type) {
	case bool:
		t := "F"
		if v {
			t = "T"
		}
		value = fmt.Sprintf("%20s", t)
	case int:
		value = fmt.Sprintf("%20d", v)
	case float64:
		value = fmt.Sprintf("%20s", formatFloat(v))
	case string:
		quoted := strings.Replace(v, "'", "''", -1)
		if len(quoted) < 8 {
			quoted += strings.Repeat(" ", 8-len(quoted))
		}
		if len(quoted) > 68 {
			return nil, fmt.Errorf("fitsblock: string value for '%s' too long for one card", c.Key)
		}
		value = "'" + quoted + "'"
	default:
		return nil, fmt.Errorf("fitsblock: unsupported value type %T for key '%s'", c.Value, c.Key)
	}

	line := fmt.Sprintf("%-8s= %s", c.Key, value)
	if c.Comment != "" {
		line += " / " + c.Comment
	}
	if len(line) > cardLength {
		line = line[:cardLength]
	} else {
		line += strings.Repeat(" ", cardLength-len(line))
	}
	return []byte(line), nil
}

// parseString consumes a quoted FITS string (doubled quotes escape a
// single quote) and returns the value and whatever follows the closing
// quote.
func parseString(s string) (string, string, error) {
	if len(s) == 0 || s[0] != '\'' {
		return "", "", fmt.Errorf("fitsblock: string value does not start with a quote")
	}
	var b strings.Builder
	i := 1
	for i < len(s) {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i += 2
			continue
		}
		return strings.TrimRight(b.String(), " "), s[i+1:], nil
	}
	return "", "", fmt.Errorf("fitsblock: string value ends without a closing quote")
}

// parseCard decodes one 80-byte card image. Cards without the "= " value
// indicator (COMMENT, HISTORY, blank keys) are reported as not-ok and
// skipped by the caller.
func parseCard(line string) (Card, bool, error) {
	key := strings.TrimRight(line[:8], " ")
	if line[8:10] != "= " {
		return Card{}, false, nil
	}
	c := Card{Key: key}
	s := strings.TrimSpace(line[10:])
	if s == "" {
		return Card{}, false, nil
	}

	if s[0] == '\'' {
		v, rest, err := parseString(s)
		if err != nil {
			return Card{}, false, err
		}
		c.Value = v
		if j := strings.Index(rest, "/"); j != -1 {
			c.Comment = strings.TrimSpace(rest[j+1:])
		}
		return c, true, nil
	}

	if j := strings.Index(s, "/"); j != -1 {
		c.Comment = strings.TrimSpace(s[j+1:])
		s = strings.TrimSpace(s[:j])
	}
	if s == "" {
		return Card{}, false, nil
	}

	switch first := s[0]; {
	case s == "T":
		c.Value = true
	case s == "F":
		c.Value = false
	case (first >= '0' && first <= '9') || first == '+' || first == '-' || first == '.':
		if strings.ContainsAny(s, ".EeDd") {
			s = strings.Replace(s, "D", "E", 1)
			x, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return Card{}, false, fmt.Errorf("fitsblock: bad numeric value '%s' for key '%s'", s, key)
			}
			c.Value = x
		} else {
			x, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return Card{}, false, fmt.Errorf("fitsblock: bad integer value '%s' for key '%s'", s, key)
			}
			c.Value = int(x)
		}
	default:
		return Card{}, false, fmt.Errorf("fitsblock: unparseable value '%s' for key '%s'", s, key)
	}
	return c, true, nil
}
