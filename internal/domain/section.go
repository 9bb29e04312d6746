package domain

import (
	"encoding/json"
	"fmt"
)

type SectionType string

const (
	SectionHeading   SectionType = "heading"
	SectionParagraph SectionType = "paragraph"
	SectionList      SectionType = "list"
	SectionTable     SectionType = "table"
	SectionSignature SectionType = "signature"
)

// SectionContent is a closed tagged variant: exactly one of the typed
// branches is set, matching Type. It marshals as {"type": ..., <branch>}.
type SectionContent struct {
	Type      SectionType       `json:"type"`
	Heading   *HeadingContent   `json:"heading,omitempty"`
	Paragraph *ParagraphContent `json:"paragraph,omitempty"`
	List      *ListContent      `json:"list,omitempty"`
	Table     *TableContent     `json:"table,omitempty"`
	Signature *SignatureContent `json:"signature,omitempty"`
}

type HeadingContent struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}

type ParagraphContent struct {
	Text string `json:"text"`
}

type ListContent struct {
	Ordered bool     `json:"ordered"`
	Items   []string `json:"items"`
}

type TableContent struct {
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

type SignatureContent struct {
	ClientLabel   string `json:"client_label"`
	ProviderLabel string `json:"provider_label"`
}

// Validate checks that the populated branch matches Type and nothing else is
// set.
func (c SectionContent) Validate() error {
	branches := 0
	var want bool
	if c.Heading != nil {
		branches++
		want = want || c.Type == SectionHeading
	}
	if c.Paragraph != nil {
		branches++
		want = want || c.Type == SectionParagraph
	}
	if c.List != nil {
		branches++
		want = want || c.Type == SectionList
	}
	if c.Table != nil {
		branches++
		want = want || c.Type == SectionTable
	}
	if c.Signature != nil {
		branches++
		want = want || c.Type == SectionSignature
	}
	switch c.Type {
	case SectionHeading, SectionParagraph, SectionList, SectionTable, SectionSignature:
	default:
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown section type %q", c.Type)}
	}
	if branches != 1 || !want {
		return &ValidationError{Field: string(c.Type), Reason: "content does not match section type"}
	}
	return nil
}

// TextFields returns pointers to every text-bearing value in the content, in
// a stable order. The renderer substitutes merge-field placeholders through
// these; structural fields are never touched.
func (c *SectionContent) TextFields() []*string {
	switch c.Type {
	case SectionHeading:
		return []*string{&c.Heading.Text}
	case SectionParagraph:
		return []*string{&c.Paragraph.Text}
	case SectionList:
		out := make([]*string, 0, len(c.List.Items))
		for i := range c.List.Items {
			out = append(out, &c.List.Items[i])
		}
		return out
	case SectionTable:
		var out []*string
		for i := range c.Table.Header {
			out = append(out, &c.Table.Header[i])
		}
		for i := range c.Table.Rows {
			for j := range c.Table.Rows[i] {
				out = append(out, &c.Table.Rows[i][j])
			}
		}
		return out
	case SectionSignature:
		return []*string{&c.Signature.ClientLabel, &c.Signature.ProviderLabel}
	}
	return nil
}

// Clone returns a deep copy so rendering never mutates the template's
// sections.
func (c SectionContent) Clone() SectionContent {
	// JSON round-trip keeps the copy honest as branches evolve.
	b, _ := json.Marshal(c)
	var out SectionContent
	_ = json.Unmarshal(b, &out)
	return out
}
