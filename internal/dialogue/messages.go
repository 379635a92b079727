package dialogue

const (
	msgWelcome = "Welcome to your Personal Task Manager!\n\n" +
		"Available commands:\n" +
		"/new - Create a new task\n" +
		"/list - List all your tasks\n" +
		"/delete - Delete a task\n" +
		"/frequency - Set reminder frequency\n" +
		"/categories - Show your categories\n" +
		"/cancel - Cancel the current action"

	msgAskName          = "What's the name of your task?"
	msgEmptyName        = "The name can't be empty. What's the name of your task?"
	msgAskCategory      = "Select a category or create a new one:"
	msgNewCategoryBtn   = "New Category"
	msgAskNewCategory   = "Enter the name of the new category:"
	msgAskDueDate       = "When is this task due? (Format: YYYY-MM-DD)"
	msgTaskCreated      = "Task created successfully!\nName: %s\nCategory: %s\nDue Date: %s"
	msgInvalidDate      = "Invalid date format. Please use YYYY-MM-DD.\nTask creation cancelled."
	msgNothingToDelete  = "You have no tasks to delete!"
	msgAskDelete        = "Select a task to delete:"
	msgDeleted          = "Deleted task: %s"
	msgTaskGone         = "That task no longer exists. Send /delete to get a fresh list."
	msgAskFrequency     = "Select how often you want to receive reminders:"
	msgFrequencySet     = "Reminder frequency set to: %s\nYou'll receive reminders at %s"
	msgCancelled        = "Cancelled."
	msgNothingToCancel  = "There is nothing to cancel."
	msgMenuExpired      = "This menu has expired"
	msgUseButtons       = "Please choose one of the options above, or send /cancel."
	msgIdle             = "I didn't understand that. Send /new to create a task or /help to see all commands."
	msgUnknownCommand   = "Unknown command. Send /help to see all commands."
	msgSaveFailed       = "Sorry, I couldn't save your changes. Please try again later."
	defaultReminderTime = "9:00 AM (UTC+8)"
)
