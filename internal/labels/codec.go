// Package labels maps classifier output indices to sign labels and back.
package labels

// NotFound is returned by Encode for labels the codec does not know.
const NotFound = -1

// Codec is an immutable bidirectional mapping between label strings and
// their position in the ordered label list the model was trained with.
type Codec struct {
	labels  []string
	indexOf map[string]int
}

// NewCodec builds a codec from an ordered label list. Index i maps to labels[i].
// If a label appears twice, Encode returns its first position.
func NewCodec(labels []string) *Codec {
	c := &Codec{
		labels:  make([]string, len(labels)),
		indexOf: make(map[string]int, len(labels)),
	}
	copy(c.labels, labels)
	for i, l := range c.labels {
		if _, ok := c.indexOf[l]; !ok {
			c.indexOf[l] = i
		}
	}
	return c
}

// Encode returns the index of label, or NotFound.
func (c *Codec) Encode(label string) int {
	if i, ok := c.indexOf[label]; ok {
		return i
	}
	return NotFound
}

// Decode returns the label at index, or false if index is out of range.
func (c *Codec) Decode(index int) (string, bool) {
	if index < 0 || index >= len(c.labels) {
		return "", false
	}
	return c.labels[index], true
}

// EncodeList encodes labels, dropping unknown ones.
func (c *Codec) EncodeList(labels []string) []int {
	out := make([]int, 0, len(labels))
	for _, l := range labels {
		if i := c.Encode(l); i != NotFound {
			out = append(out, i)
		}
	}
	return out
}

// DecodeList decodes indices, dropping out-of-range ones.
func (c *Codec) DecodeList(indices []int) []string {
	out := make([]string, 0, len(indices))
	for _, i := range indices {
		if l, ok := c.Decode(i); ok {
			out = append(out, l)
		}
	}
	return out
}

// Size returns the number of labels.
func (c *Codec) Size() int {
	return len(c.labels)
}

// Contains reports whether label is known.
func (c *Codec) Contains(label string) bool {
	_, ok := c.indexOf[label]
	return ok
}

// Labels returns a copy of the ordered label list.
func (c *Codec) Labels() []string {
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}
