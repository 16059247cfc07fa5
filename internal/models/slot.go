package models

// Slot часовой интервал дневного расписания.
type Slot struct {
	Date     string `json:"date"`
	Label    string `json:"time_slot"`
	Hour     int    `json:"hour"`
	Capacity int    `json:"capacity"`
	Booked   int    `json:"booked"`
}

func (s Slot) Remaining() int {
	if s.Booked >= s.Capacity {
		return 0
	}
	return s.Capacity - s.Booked
}

func (s Slot) Available() bool {
	return s.Remaining() > 0
}
