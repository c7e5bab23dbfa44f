package nudge

import "fmt"

func resurfaceMessage(title, context string) string {
	if context != "" {
		return fmt.Sprintf("Worth another look: %q (%s)", title, context)
	}
	return fmt.Sprintf("Worth another look: %q", title)
}

func legacyResurfaceMessage(title string) string {
	return fmt.Sprintf("%q has been quiet for a while. Still relevant?", title)
}

func staleInboxMessage(count int) string {
	return fmt.Sprintf("Your inbox has %d notes older than two weeks. Time to triage?", count)
}

func connectionPromptMessage(tag string, count int) string {
	return fmt.Sprintf("You captured %d notes tagged %q this week. See any connections?", count, tag)
}

func streakMessage(board string, days int) string {
	return fmt.Sprintf("%d days in a row on %q. Keep it going?", days, board)
}

func continueCourseMessage(course string, position, total, relatedNotes int) string {
	msg := fmt.Sprintf("Pick up %q: lecture %d of %d is next.", course, position, total)
	if relatedNotes > 0 {
		msg += fmt.Sprintf(" %d of your notes share its tags.", relatedNotes)
	}
	return msg
}
