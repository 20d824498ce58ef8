package voice

// TrainingPrompts is the fixed ordered list of sentences a user records to
// build a voice profile. Indices into this list are the only valid sample
// keys; the list never changes order between releases.
var TrainingPrompts = []string{
	"Hello, it is very nice to meet you.",
	"The weather is really lovely today.",
	"This is a voice training session for speech synthesis.",
	"The system is learning the sound of your voice.",
	"Thank you very much for your effort.",
	"Yes, I understand completely.",
	"No, thank you, I am fine.",
	"Good morning, everyone.",
	"Goodbye, and have a great day.",
	"Could you please say that one more time?",
	"I am afraid I do not understand.",
	"Please speak a little more slowly.",
	"Let us move ahead quickly.",
	"Please wait just a moment.",
	"Everything is ready to go.",
	"Let us begin now.",
	"That concludes this session.",
	"Please check and confirm.",
	"Your work has been saved.",
	"Are you sure you want to delete this?",
	"Let me introduce a new feature.",
	"What is the topic for today?",
	"Do you have any questions so far?",
	"I will answer your question now.",
	"Let me start the explanation.",
	"This is an important point.",
	"Please listen very carefully.",
	"Let us move on to the next step.",
	"Let us review the previous material.",
	"That is all for today's lesson.",
	"That is an excellent result.",
	"Please continue with your work.",
	"You are doing very well.",
	"Keep trying just a little longer.",
	"That was absolutely perfect.",
	"A problem has occurred.",
	"We have found a solution.",
	"Please try that once again.",
	"The task completed successfully.",
	"All of the work is finished now.",
}
