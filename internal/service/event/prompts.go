package event

const (
	questionTitle     = "What should the event be called?"
	questionDay       = "Which day is it on? Use YYYY-MM-DD, today or tomorrow."
	questionStartTime = "What time does it start? Use HH:MM."
	questionEndTime   = "What time does it end? Use HH:MM."

	questionEndBeforeStart = "End time must be after the start time."

	reasonDuplicate   = "This is already scheduled."
	questionDuplicate = "Would you like to schedule something else?"

	questionPickAnother = "Would you like to pick another time?"

	reasonFailed = "We couldn't save the event. Please try again."
)

var questions = map[string]string{
	FieldTitle:     questionTitle,
	FieldDay:       questionDay,
	FieldStartTime: questionStartTime,
	FieldEndTime:   questionEndTime,
}
