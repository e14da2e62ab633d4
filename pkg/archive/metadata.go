package archive

import (
	"encoding/xml"
	"fmt"
	"io"
)

// Metadata is the optional descriptive block of an archive (index.xml).
type Metadata struct {
	Info Info
}

// Info holds the locale code and the localized display titles.
type Info struct {
	Locale      string
	Titles      []Title // archive order is preserved
	Description string
	Producer    string
}

// Title is a display title with an optional xml:lang tag. HasLang tells an
// explicit empty tag apart from a missing one.
type Title struct {
	Lang    string
	HasLang bool
	Value   string
}

// Tagged returns a title carrying the language tag lang.
func Tagged(lang, value string) Title {
	return Title{Lang: lang, HasLang: true, Value: value}
}

// LocaleName picks the title whose language equals the archive locale,
// falling back to the first title. ok is false when there are no titles.
func (m *Metadata) LocaleName() (name string, ok bool) {
	if m == nil || len(m.Info.Titles) == 0 {
		return "", false
	}
	for _, t := range m.Info.Titles {
		if t.HasLang && t.Lang == m.Info.Locale {
			return t.Value, true
		}
	}
	return m.Info.Titles[0].Value, true
}

type xmlSpeller struct {
	XMLName xml.Name `xml:"hfstspeller"`
	Info    xmlInfo  `xml:"info"`
}

type xmlInfo struct {
	Locale      string     `xml:"locale"`
	Titles      []xmlTitle `xml:"title"`
	Description string     `xml:"description,omitempty"`
	Producer    string     `xml:"producer,omitempty"`
}

// Lang lives in the namespace encoding/xml assigns to the reserved xml: prefix.
type xmlTitle struct {
	Lang  *string `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Value string `xml:",chardata"`
}

func decodeMetadata(r io.Reader) (*Metadata, error) {
	var doc xmlSpeller
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, invalidf("metadata: %v", err)
	}
	m := &Metadata{Info: Info{
		Locale:      doc.Info.Locale,
		Description: doc.Info.Description,
		Producer:    doc.Info.Producer,
	}}
	for _, t := range doc.Info.Titles {
		title := Title{Value: t.Value}
		if t.Lang != nil {
			title.Lang, title.HasLang = *t.Lang, true
		}
		m.Info.Titles = append(m.Info.Titles, title)
	}
	return m, nil
}

func encodeMetadata(w io.Writer, m *Metadata) error {
	doc := xmlSpeller{Info: xmlInfo{
		Locale:      m.Info.Locale,
		Description: m.Info.Description,
		Producer:    m.Info.Producer,
	}}
	for _, t := range m.Info.Titles {
		xt := xmlTitle{Value: t.Value}
		if t.HasLang {
			lang := t.Lang
			xt.Lang = &lang
		}
		doc.Info.Titles = append(doc.Info.Titles, xt)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return enc.Flush()
}
