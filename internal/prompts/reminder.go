package prompts

import (
	"fmt"
	"time"
)

// ReminderLayout is the datetime layout the reminder parser must answer in.
const ReminderLayout = "2006-01-02 15:04:05"

// reminderParseTemplate asks the classifier model to resolve a natural
// language reminder into an absolute local time. Format verbs: current
// time, zone name, zone offset.
const reminderParseTemplate = `Extract the reminder datetime from the message and return ONLY a JSON object.
Current time is %s %s (UTC%s).
Convert ALL times to absolute datetime, including relative ones like 'in 2 minutes', 'in 1 hour', 'tomorrow'.
Return ONLY this JSON:
{"datetime": "YYYY-MM-DD HH:MM:SS", "message": "what to remind about"}
If no datetime found: {"datetime": null, "message": null}`

// ReminderParseSystem returns the system prompt for reminder parsing,
// anchored at now in now's location.
func ReminderParseSystem(now time.Time) string {
	zone, _ := now.Zone()
	return fmt.Sprintf(reminderParseTemplate,
		now.Format("2006-01-02 15:04"),
		zone,
		now.Format("-07:00"),
	)
}
