package catalog

import (
	"strconv"

	"gorm.io/gorm"
)

// MomoMeta is the descriptive metadata for one momo prototype.
type MomoMeta struct {
	Prototype int64  `json:"prototype"`
	TokenName string `json:"token_name"`
	Name      string `json:"name"`
	Quality   int64  `json:"quality"`
	Category  int64  `json:"category"`
	MmNum     int64  `json:"mm_num"`
}

// GemMeta is the descriptive metadata for one gem id. Name and color derive
// from the gem family (hundreds digit), the level from the remainder.
type GemMeta struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
	Color string `json:"color"`
}

// Entry is the persisted form of one catalog item, momo or gem.
type Entry struct {
	gorm.Model `json:"-"`
	Class      string `gorm:"index" json:"class"`
	ItemID     int64  `gorm:"index" json:"item_id"`
	TokenName  string `json:"token_name"`
	Name       string `json:"name"`
	Quality    int64  `json:"quality"`
	Category   int64  `json:"category"`
	MmNum      int64  `json:"mm_num"`
	Level      string `json:"level"`
	Color      string `json:"color"`
}

// Qualities maps a quality id to its display tier.
var Qualities = map[int64]string{
	-1: "None",
	1:  "Common",
	2:  "Uncommon",
	3:  "Unique",
	4:  "Rare",
	5:  "Epic",
	6:  "Legendary",
}

// KnownQuality reports whether a quality id exists in the fixed tier table.
func KnownQuality(q int64) bool {
	_, ok := Qualities[q]
	return ok
}

var gemNames = map[int64]string{
	100: "Ruby",
	200: "Emerald",
	300: "Sapphire",
	400: "Topaz",
}

var gemColors = map[int64]string{
	100: "#d00b00",
	200: "#4eb403",
	300: "#205acf",
	400: "#ffee41",
}

// GemMetaFor derives display metadata for a gem id, false when the id does
// not belong to a known gem family or carries a level outside 1-10.
func GemMetaFor(id int64) (GemMeta, bool) {
	family := id - id%100
	level := id % 100

	name, ok := gemNames[family]
	if !ok || level < 1 || level > 10 {
		return GemMeta{}, false
	}

	return GemMeta{
		ID:    id,
		Name:  name,
		Level: "Lvl. " + strconv.FormatInt(level, 10),
		Color: gemColors[family],
	}, true
}
