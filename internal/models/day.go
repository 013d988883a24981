package models

import "strings"

// Day enumerates days of the week for weekly recurring sessions.
type Day string

// Week days in catalog order.
const (
	Monday    Day = "MONDAY"
	Tuesday   Day = "TUESDAY"
	Wednesday Day = "WEDNESDAY"
	Thursday  Day = "THURSDAY"
	Friday    Day = "FRIDAY"
	Saturday  Day = "SATURDAY"
	Sunday    Day = "SUNDAY"
)

// WeekDays lists all days in order, Monday first.
var WeekDays = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayIndex = map[Day]int{
	Monday:    1,
	Tuesday:   2,
	Wednesday: 3,
	Thursday:  4,
	Friday:    5,
	Saturday:  6,
	Sunday:    7,
}

// ParseDay normalises a day name, reporting whether it is valid.
func ParseDay(raw string) (Day, bool) {
	day := Day(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := dayIndex[day]
	return day, ok
}

// Valid reports whether the day is one of the seven week days.
func (d Day) Valid() bool {
	_, ok := dayIndex[d]
	return ok
}

// Index returns the ISO weekday index (Monday = 1), or 0 when invalid.
func (d Day) Index() int {
	return dayIndex[d]
}
