package mixer

import (
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// trueToken is the only attribute value the mixer uses for true.
const trueToken = "True"

// ParseStatus converts a raw status document into a StatusSnapshot.
// Missing or malformed optional attributes fall back to defaults; only a
// document that is not valid markup is an error.
func ParseStatus(raw []byte) (StatusSnapshot, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return StatusSnapshot{}, &ParseError{Err: err}
	}
	if !wellFormed(doc) {
		return StatusSnapshot{}, &ParseError{}
	}

	return StatusSnapshot{
		Inputs: parseInputs(doc),
		Audio:  parseAudio(doc),
	}, nil
}

// wellFormed reports whether doc has exactly one root element and no
// stray text beside it.
func wellFormed(doc *etree.Document) bool {
	if len(doc.ChildElements()) != 1 {
		return false
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return false
		}
	}
	return true
}

func parseInputs(doc *etree.Document) []InputSnapshot {
	nodes := doc.FindElements("//inputs/input")
	inputs := make([]InputSnapshot, 0, len(nodes))
	for _, n := range nodes {
		title := n.SelectAttrValue("title", "")
		shortTitle := n.SelectAttrValue("shortTitle", "")
		if shortTitle == "" {
			shortTitle = title
		}
		inputs = append(inputs, InputSnapshot{
			Key:        n.SelectAttrValue("key", ""),
			Number:     attrInt(n, "number"),
			Title:      title,
			ShortTitle: shortTitle,
			Type:       n.SelectAttrValue("type", ""),
			State:      n.SelectAttrValue("state", ""),
			Duration:   max(attrInt(n, "duration"), 0),
			Position:   max(attrInt(n, "position"), 0),
			Muted:      attrBool(n, "muted"),
			Solo:       attrBool(n, "solo"),
			Volume:     attrFloat(n, "volume", 0),
			Selected:   attrBool(n, "selected"),
			Preview:    attrBool(n, "preview"),
		})
	}
	return inputs
}

func parseAudio(doc *etree.Document) AudioSnapshot {
	audio := AudioSnapshot{
		MasterVolume: DefaultMasterVolume,
		Buses:        []BusSnapshot{},
	}

	master := doc.FindElement("//audio")
	if master == nil {
		return audio
	}
	audio.MasterVolume = attrFloat(master, "masterVolume", DefaultMasterVolume)
	audio.MasterMute = attrBool(master, "masterMute")

	for _, b := range doc.FindElements("//audio/bus") {
		audio.Buses = append(audio.Buses, BusSnapshot{
			ID:      b.SelectAttrValue("id", ""),
			Enabled: !attrBool(b, "mute"),
			Volume:  attrFloat(b, "volume", 0),
			Solo:    attrBool(b, "solo"),
		})
	}
	return audio
}

func attrBool(e *etree.Element, key string) bool {
	return e.SelectAttrValue(key, "") == trueToken
}

func attrFloat(e *etree.Element, key string, fallback float64) float64 {
	attr := e.SelectAttr(key)
	if attr == nil {
		return fallback
	}
	v, err := strconv.ParseFloat(attr.Value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// attrInt truncates fractional values; numeric fields like position are
// occasionally reported with decimals. Values outside the int range are 0.
func attrInt(e *etree.Element, key string) int {
	v := attrFloat(e, key, 0)
	if v >= math.MaxInt || v < math.MinInt {
		return 0
	}
	return int(v)
}
