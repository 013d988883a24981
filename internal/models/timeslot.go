package models

// TimeSlot is one block from the institutional slot catalog. Times are
// fixed-width "HH:MM" strings so lexical comparison matches chronological
// order both in Go and in SQL.
type TimeSlot struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// slotCatalog is the fixed set of bookable blocks per day, seven
// 90-minute sessions with a midday and late-afternoon break.
var slotCatalog = []TimeSlot{
	{StartTime: "07:30", EndTime: "09:00"},
	{StartTime: "09:00", EndTime: "10:30"},
	{StartTime: "10:45", EndTime: "12:15"},
	{StartTime: "13:00", EndTime: "14:30"},
	{StartTime: "14:30", EndTime: "16:00"},
	{StartTime: "16:15", EndTime: "17:45"},
	{StartTime: "18:00", EndTime: "19:30"},
}

// SlotCatalog returns the catalog in preferred placement order.
func SlotCatalog() []TimeSlot {
	catalog := make([]TimeSlot, len(slotCatalog))
	copy(catalog, slotCatalog)
	return catalog
}

// SlotByIndex returns the 1-based catalog entry, reporting whether the
// index is in range.
func SlotByIndex(index int) (TimeSlot, bool) {
	if index < 1 || index > len(slotCatalog) {
		return TimeSlot{}, false
	}
	return slotCatalog[index-1], true
}

// SlotCount returns the number of catalog entries.
func SlotCount() int {
	return len(slotCatalog)
}
