package calendar

import "time"

// Interval is a half-open busy period [Start, End) in salon-local time
type Interval struct {
	Start time.Time
	End   time.Time
}

// Slot is one bookable opening on a given date
type Slot struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// slotStride is the spacing between consecutive offered slots
const slotStride = 30 * time.Minute

// FindOpenSlots sweeps the business window from open to close and returns
// every start at which a full-duration appointment fits around the busy
// intervals. On a conflict the candidate jumps straight to the end of the
// blocking interval rather than stepping linearly; free candidates advance by
// the fixed stride.
func FindOpenSlots(busy []Interval, dayStart, dayEnd time.Time, duration time.Duration) []Slot {
	var slots []Slot
	date := dayStart.Format("2006-01-02")

	current := dayStart
	for !current.Add(duration).After(dayEnd) {
		slotEnd := current.Add(duration)

		free := true
		for _, b := range busy {
			if current.Before(b.End) && slotEnd.After(b.Start) {
				free = false
				current = b.End
				break
			}
		}
		if free {
			slots = append(slots, Slot{
				Date:      date,
				StartTime: current.Format("15:04"),
				EndTime:   slotEnd.Format("15:04"),
			})
			current = current.Add(slotStride)
		}
	}
	return slots
}
