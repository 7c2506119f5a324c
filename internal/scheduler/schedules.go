package scheduler

import "fmt"

// Common six-field cron schedules for job configuration.
const (
	ScheduleDaily      = "0 0 2 * * *"    // 2 AM daily
	ScheduleHourly     = "0 0 * * * *"    // every hour
	ScheduleWeekly     = "0 0 2 * * 0"    // 2 AM on Sunday
	ScheduleTwiceDaily = "0 0 2,14 * * *" // 2 AM and 2 PM
)

// EveryNHours builds a schedule firing every n hours on the hour.
func EveryNHours(n int) string {
	return fmt.Sprintf("0 0 */%d * * *", n)
}

// DailyAt builds a schedule firing once a day at the given time.
func DailyAt(hour, minute int) string {
	return fmt.Sprintf("0 %d %d * * *", minute, hour)
}
